package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedBrowse replays entries and then blocks until ctx is done.
func scriptedBrowse(found []ServiceEntry, gone []ServiceEntry) browseFunc {
	return func(ctx context.Context, entries, removed chan<- ServiceEntry) error {
		for _, e := range found {
			select {
			case entries <- e:
			case <-ctx.Done():
				return nil
			}
		}
		for _, e := range gone {
			select {
			case removed <- e:
			case <-ctx.Done():
				return nil
			}
		}
		<-ctx.Done()
		return nil
	}
}

func testBrowser(browse browseFunc) *MDNSBrowser {
	b := NewMDNSBrowser(BrowserConfig{BrowseTimeout: 100 * time.Millisecond})
	b.browse = browse
	return b
}

var (
	livingRoom = ServiceEntry{Instance: "Living Room", Host: "mm-1.local.", Port: 23, Addrs: []string{"192.168.1.20"}}
	bedroom    = ServiceEntry{Instance: "Bedroom", Host: "mm-2.local.", Port: 23, Addrs: []string{"192.168.1.21"}}
)

func TestBrowseAggregatesInstances(t *testing.T) {
	second := livingRoom
	second.Addrs = []string{"fe80::20"}
	b := testBrowser(scriptedBrowse([]ServiceEntry{livingRoom, second, bedroom}, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results, err := b.Browse(ctx)
	require.NoError(t, err)

	first := <-results
	assert.Equal(t, "Living Room", first.Instance)
	next := <-results
	assert.Equal(t, "Bedroom", next.Instance)

	// The second Living Room entry was merged, not emitted.
	assert.Equal(t, []string{"192.168.1.20", "fe80::20"}, first.Addresses)

	cancel()
	for range results {
	}
}

func TestFindByName(t *testing.T) {
	b := testBrowser(scriptedBrowse([]ServiceEntry{bedroom, livingRoom}, nil))

	svc, err := b.FindByName(context.Background(), "living room")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20:23", svc.Address())
}

func TestFindByNameNotFound(t *testing.T) {
	b := testBrowser(scriptedBrowse([]ServiceEntry{bedroom}, nil))

	_, err := b.FindByName(context.Background(), "Kitchen")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindByNameCanceled(t *testing.T) {
	b := testBrowser(scriptedBrowse(nil, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.FindByName(ctx, "Kitchen")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindAll(t *testing.T) {
	b := testBrowser(scriptedBrowse([]ServiceEntry{livingRoom, bedroom}, nil))

	all, err := b.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Bedroom", all[0].Instance)
	assert.Equal(t, "Living Room", all[1].Instance)
}

func TestBrowseRemovedThenSeenAgain(t *testing.T) {
	b := testBrowser(func(ctx context.Context, entries, removed chan<- ServiceEntry) error {
		entries <- livingRoom
		removed <- livingRoom
		entries <- livingRoom
		<-ctx.Done()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results, err := b.Browse(ctx)
	require.NoError(t, err)

	first := <-results
	second := <-results
	assert.Equal(t, first.Instance, second.Instance)
	assert.NotSame(t, first, second)
}

func TestBrowseFailure(t *testing.T) {
	b := testBrowser(func(context.Context, chan<- ServiceEntry, chan<- ServiceEntry) error {
		return errors.New("no multicast interface")
	})

	results, err := b.Browse(context.Background())
	require.NoError(t, err)

	select {
	case _, ok := <-results:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("results not closed after browse failure")
	}
}

func TestStop(t *testing.T) {
	b := testBrowser(scriptedBrowse(nil, nil))

	results, err := b.Browse(context.Background())
	require.NoError(t, err)

	b.Stop()
	select {
	case _, ok := <-results:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("results not closed after Stop")
	}

	_, err = b.Browse(context.Background())
	assert.ErrorIs(t, err, ErrBrowserStopped)
}
