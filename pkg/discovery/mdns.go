package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// MDNSBrowser implements the Browser interface using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
	browse browseFunc

	mu      sync.Mutex
	stopped bool
	root    context.Context
	cancel  context.CancelFunc
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = BrowseTimeout
	}
	root, cancel := context.WithCancel(context.Background())
	b := &MDNSBrowser{
		config: config,
		root:   root,
		cancel: cancel,
	}
	b.browse = b.zeroconfBrowse
	return b
}

// Browse streams MotionMounts as they are found.
// Services are aggregated by instance name: addresses seen on several
// interfaces are merged into one entry, which is emitted once.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *Service, error) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil, ErrBrowserStopped
	}
	b.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(b.root, cancel)

	out := make(chan *Service)
	entries := make(chan ServiceEntry)
	removed := make(chan ServiceEntry)

	go func() {
		defer close(out)
		defer stop()
		defer cancel()

		services := make(map[string]*Service)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := entry.ToService()
				if existing, found := services[svc.Instance]; found {
					existing.Addresses = sortAddresses(mergeAddresses(existing.Addresses, svc.Addresses))
					continue
				}
				services[svc.Instance] = svc
				b.debugLog("Browse: found", "instance", svc.Instance, "host", svc.Host, "port", svc.Port)
				select {
				case out <- svc:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					removed = nil
					continue
				}
				name := unescapeInstance(entry.Instance)
				if existing, found := services[name]; found {
					existing.Addresses = removeAddresses(existing.Addresses, entry.Addrs)
					if len(existing.Addresses) == 0 {
						delete(services, name)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		if err := b.browse(ctx, entries, removed); err != nil && ctx.Err() == nil {
			b.debugLog("Browse: failed", "error", err)
			cancel()
		}
	}()

	return out, nil
}

// FindByName returns the first MotionMount whose instance name matches.
func (b *MDNSBrowser) FindByName(ctx context.Context, name string) (*Service, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case svc, ok := <-results:
			if !ok {
				return nil, b.notFound(ctx, name)
			}
			if MatchName(svc.Instance, name) {
				return svc, nil
			}
		case <-ctx.Done():
			return nil, b.notFound(ctx, name)
		}
	}
}

// FindAll collects MotionMounts, sorted by instance name.
func (b *MDNSBrowser) FindAll(ctx context.Context) ([]*Service, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}

	var found []*Service
	for svc := range results {
		found = append(found, svc)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return found, ctx.Err()
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Instance < found[j].Instance })
	return found, nil
}

// Stop stops all active browsing operations.
func (b *MDNSBrowser) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	b.cancel()
}

func (b *MDNSBrowser) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.config.BrowseTimeout)
}

func (b *MDNSBrowser) notFound(ctx context.Context, name string) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %q", ErrNotFound, name)
}

// zeroconfBrowse browses the network for ServiceType.
func (b *MDNSBrowser) zeroconfBrowse(ctx context.Context, entries, removed chan<- ServiceEntry) error {
	zEntries := make(chan *zeroconf.ServiceEntry)
	zRemoved := make(chan *zeroconf.ServiceEntry)

	go forwardEntries(ctx, zEntries, entries)
	go forwardEntries(ctx, zRemoved, removed)

	return zeroconf.Browse(ctx, ServiceType, Domain, zEntries, zRemoved, b.browserOptions()...)
}

// browserOptions returns zeroconf client options based on config.
func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		} else {
			b.debugLog("browserOptions: unknown interface", "interface", b.config.Interface, "error", err)
		}
	}

	return opts
}

func (b *MDNSBrowser) debugLog(msg string, args ...any) {
	if b.config.Logger != nil {
		b.config.Logger.Debug(msg, args...)
	}
}

func forwardEntries(ctx context.Context, in <-chan *zeroconf.ServiceEntry, out chan<- ServiceEntry) {
	for {
		select {
		case entry, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- fromZeroconf(entry):
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func fromZeroconf(entry *zeroconf.ServiceEntry) ServiceEntry {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	return ServiceEntry{
		Instance: entry.Instance,
		Host:     entry.HostName,
		Port:     entry.Port,
		Text:     entry.Text,
		Addrs:    addrs,
	}
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses drops gone addresses from the list.
func removeAddresses(addresses, gone []string) []string {
	drop := make(map[string]bool, len(gone))
	for _, addr := range gone {
		drop[addr] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !drop[addr] {
			result = append(result, addr)
		}
	}
	return result
}

// Ensure MDNSBrowser implements Browser interface.
var _ Browser = (*MDNSBrowser)(nil)
