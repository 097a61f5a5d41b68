package discovery

import (
	"context"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/sirupsen/logrus"

	"github.com/strefethen/sonos-control/internal/logging"
)

const (
	mdnsService = "_sonos._tcp"
	mdnsDomain  = "local."
)

type browseFunc func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

// MDNSBrowser finds ZonePlayers advertising _sonos._tcp and yields their
// description locations.
type MDNSBrowser struct {
	window time.Duration
	logger logrus.FieldLogger
	browse browseFunc
}

// NewMDNSBrowser returns a browser that listens for window per call.
func NewMDNSBrowser(window time.Duration, logger logrus.FieldLogger) *MDNSBrowser {
	return &MDNSBrowser{
		window: window,
		logger: logging.OrDiscard(logger),
		browse: resolverBrowse,
	}
}

func resolverBrowse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return err
	}
	return resolver.Browse(ctx, service, domain, entries)
}

func (b *MDNSBrowser) Name() string { return "mdns" }

// Locations browses until the window closes or ctx ends.
func (b *MDNSBrowser) Locations(ctx context.Context) []string {
	log := b.logger.WithField("source", b.Name())
	locations := []string{}

	ctx, cancel := context.WithTimeout(ctx, b.window)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := b.browse(ctx, mdnsService, mdnsDomain, entries); err != nil {
		log.WithError(err).Error("mDNS browse failed")
		return locations
	}

	seen := make(map[string]struct{})
	for {
		select {
		case <-ctx.Done():
			// the resolver may still be sending; keep receiving until it
			// closes entries so its loop can shut down
			go drain(entries)
			log.WithField("count", len(locations)).Debug("mDNS browse finished")
			return locations
		case entry, ok := <-entries:
			if !ok {
				return locations
			}
			if entry == nil || len(entry.AddrIPv4) == 0 {
				continue
			}
			location := DescriptionLocation(entry.AddrIPv4[0].String())
			if _, dup := seen[location]; dup {
				continue
			}
			seen[location] = struct{}{}
			log.WithFields(logrus.Fields{
				"instance": entry.Instance,
				"location": location,
			}).Debug("mDNS found device")
			locations = append(locations, location)
		}
	}
}

func drain(entries <-chan *zeroconf.ServiceEntry) {
	for range entries {
	}
}
