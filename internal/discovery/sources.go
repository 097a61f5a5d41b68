package discovery

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/strefethen/sonos-control/internal/config"
	"github.com/strefethen/sonos-control/internal/logging"
)

// LocationSource yields device description locations. Implementations log
// their own failures and return what they found.
type LocationSource interface {
	Name() string
	Locations(ctx context.Context) []string
}

// Static is a fixed list of locations. Bare IPs are expanded to the
// standard description URL.
type Static []string

func (s Static) Name() string { return "static" }

func (s Static) Locations(context.Context) []string {
	locations := make([]string, 0, len(s))
	for _, entry := range s {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "://") {
			entry = DescriptionLocation(entry)
		}
		locations = append(locations, entry)
	}
	return locations
}

// Sources queries every source concurrently and merges the results,
// deduplicated by location in source order.
type Sources struct {
	sources []LocationSource
	logger  logrus.FieldLogger
}

// NewSources combines sources in the given order.
func NewSources(logger logrus.FieldLogger, sources ...LocationSource) *Sources {
	return &Sources{sources: sources, logger: logging.OrDiscard(logger)}
}

// SourcesFromConfig returns SSDP, then mDNS when enabled, then any static
// locations.
func SourcesFromConfig(cfg config.Config, logger logrus.FieldLogger) *Sources {
	sources := []LocationSource{NewSSDPDiscoverer(cfg, logger)}
	if cfg.MDNSDiscoveryEnabled {
		sources = append(sources, NewMDNSBrowser(cfg.MDNSBrowseWindow(), logger))
	}
	if len(cfg.StaticDeviceLocations) > 0 {
		sources = append(sources, Static(cfg.StaticDeviceLocations))
	}
	return NewSources(logger, sources...)
}

func (s *Sources) Name() string { return "merged" }

func (s *Sources) Locations(ctx context.Context) []string {
	results := make([][]string, len(s.sources))
	var wg sync.WaitGroup
	for i, source := range s.sources {
		wg.Add(1)
		go func(i int, source LocationSource) {
			defer wg.Done()
			results[i] = source.Locations(ctx)
		}(i, source)
	}
	wg.Wait()

	merged := []string{}
	seen := make(map[string]struct{})
	for i, found := range results {
		s.logger.WithFields(logrus.Fields{
			"source": s.sources[i].Name(),
			"count":  len(found),
		}).Debug("Location source finished")
		for _, location := range found {
			if _, dup := seen[location]; dup {
				continue
			}
			seen[location] = struct{}{}
			merged = append(merged, location)
		}
	}
	return merged
}
