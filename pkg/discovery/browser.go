package discovery

import (
	"context"
	"time"
)

// Browser finds jigna servers on the local network.
type Browser interface {
	// Browse streams servers as they are found. The channel is closed when
	// ctx is done.
	Browse(ctx context.Context) (<-chan *Service, error)

	// Stop cancels every Browse started by this browser.
	Stop()
}

// BrowserConfig configures a Browser.
type BrowserConfig struct {
	// BrowseTimeout bounds Find. Zero lets Find run until its context is
	// done.
	BrowseTimeout time.Duration

	// Interface restricts browsing to one network interface.
	Interface string
}

// DefaultBrowserConfig browses every interface for BrowseTimeout.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{BrowseTimeout: BrowseTimeout}
}
