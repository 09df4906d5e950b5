package discovery

import (
	"context"
	"time"
)

// Advertiser announces a jigna server on the local network.
type Advertiser interface {
	// Advertise starts advertising info, replacing any earlier
	// advertisement.
	Advertise(ctx context.Context, info *Info) error

	// Stop withdraws the advertisement.
	Stop()
}

// AdvertiserConfig configures an Advertiser.
type AdvertiserConfig struct {
	// Interface restricts the announcement to one network interface.
	Interface string

	// TTL of the published records. Zero leaves the zeroconf default.
	TTL time.Duration
}

// DefaultAdvertiserConfig announces on every interface with a two minute
// record TTL.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{TTL: 2 * time.Minute}
}
