package discovery

import (
	"context"
	"log/slog"
	"time"
)

// Browser finds MotionMounts.
type Browser interface {
	// Browse streams services as they are found. Each instance is reported
	// once. The channel is closed when ctx is done or the browser stops.
	Browse(ctx context.Context) (<-chan *Service, error)

	// FindByName returns the first service whose instance name matches
	// name. Without a deadline on ctx the lookup gives up after
	// BrowseTimeout with ErrNotFound.
	FindByName(ctx context.Context, name string) (*Service, error)

	// FindAll collects services until ctx is done, or for BrowseTimeout
	// if ctx has no deadline.
	FindAll(ctx context.Context) ([]*Service, error)

	// Stop ends all active browse operations.
	Stop()
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout is the default timeout for lookups.
	// Default: 5 seconds.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		BrowseTimeout: BrowseTimeout,
	}
}

// browseFunc runs one browse operation until ctx is done, sending raw
// entries as they are resolved and removed.
type browseFunc func(ctx context.Context, entries, removed chan<- ServiceEntry) error
