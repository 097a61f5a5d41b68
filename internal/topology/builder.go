package topology

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/strefethen/sonos-control/internal/discovery"
	"github.com/strefethen/sonos-control/internal/logging"
	"github.com/strefethen/sonos-control/internal/sonos/soap"
)

const (
	DefaultModelPrefix = "Sonos"
	DefaultConcurrency = 16
)

// Locator yields candidate device description locations.
type Locator interface {
	Locations(ctx context.Context) []string
}

// Describer resolves a location to the identity the device advertises.
type Describer interface {
	Fetch(ctx context.Context, location string) (discovery.DeviceInfo, bool)
}

// DeviceRPC is the subset of the sonos service a pass needs.
type DeviceRPC interface {
	GetZoneGroupState(ctx context.Context, ip string) (string, bool)
	GetVolume(ctx context.Context, ip string) (int, bool)
}

// Options tunes a Builder. Zero values fall back to defaults.
type Options struct {
	ModelPrefix string
	Concurrency int
}

// Builder runs discovery passes. It holds no state between passes.
type Builder struct {
	locator     Locator
	describer   Describer
	rpc         DeviceRPC
	modelPrefix string
	concurrency int
	logger      logrus.FieldLogger
}

func NewBuilder(locator Locator, describer Describer, rpc DeviceRPC, opts Options, logger logrus.FieldLogger) *Builder {
	if opts.ModelPrefix == "" {
		opts.ModelPrefix = DefaultModelPrefix
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Builder{
		locator:     locator,
		describer:   describer,
		rpc:         rpc,
		modelPrefix: opts.ModelPrefix,
		concurrency: opts.Concurrency,
		logger:      logging.OrDiscard(logger),
	}
}

// Build discovers devices, enriches them from the zone group state and
// returns them sorted by room, or by name when the room is unknown. It never
// returns nil; device failures are logged and skipped.
func (b *Builder) Build(ctx context.Context) []*Device {
	log := b.logger.WithField("pass_id", uuid.NewString())

	locations := unique(b.locator.Locations(ctx))
	log.WithField("locations", len(locations)).Info("Discovery pass started")

	devices := b.describe(ctx, locations, nil, log)
	if len(devices) == 0 {
		log.Warn("No devices discovered")
		return []*Device{}
	}

	raw, ok := b.zoneGroupState(ctx, devices, log)
	if !ok {
		log.Error("Could not get zone state from any device")
		return finish(devices)
	}
	state, err := soap.ParseZoneGroupState(raw)
	if err != nil {
		log.WithError(err).Error("Failed to parse zone state")
		return finish(devices)
	}

	byLocation := make(map[string]*Device, len(devices))
	for _, device := range devices {
		byLocation[device.Location] = device
	}

	// members the location sources missed; locations already fetched this
	// pass are never fetched again, whatever their outcome
	known := make(map[string]struct{}, len(locations))
	for _, location := range locations {
		known[location] = struct{}{}
	}
	var missing []string
	zoneNames := make(map[string]string)
	for _, member := range state.Members {
		if member.Location == "" {
			continue
		}
		if _, seen := known[member.Location]; seen {
			continue
		}
		known[member.Location] = struct{}{}
		zoneNames[member.Location] = member.ZoneName
		missing = append(missing, member.Location)
	}
	for _, device := range b.describe(ctx, missing, zoneNames, log) {
		log.WithField("location", device.Location).Info("Added device from zone state")
		devices = append(devices, device)
		byLocation[device.Location] = device
	}

	for _, member := range state.Members {
		if device, ok := byLocation[member.Location]; ok && !member.Visible() {
			device.Visible = false
		}
	}

	groups := b.groups(ctx, state, byLocation, log)
	for _, device := range devices {
		for i, zoneGroup := range state.Groups {
			if zoneGroup.HasLocation(device.Location) {
				device.Groups = append(device.Groups, groups[i])
			}
		}
	}

	log.WithFields(logrus.Fields{
		"devices": len(devices),
		"groups":  len(groups),
	}).Info("Discovery pass finished")
	return finish(devices)
}

// describe fetches every location concurrently and keeps in-scope devices in
// location order. zoneNames supplies fallback names for topology-only devices.
func (b *Builder) describe(ctx context.Context, locations []string, zoneNames map[string]string, log logrus.FieldLogger) []*Device {
	found := make([]*Device, len(locations))
	b.fanOut(ctx, len(locations), func(ctx context.Context, i int) {
		location := locations[i]
		info, ok := b.describer.Fetch(ctx, location)
		if !ok {
			return
		}
		if !strings.HasPrefix(info.Model, b.modelPrefix) {
			log.WithFields(logrus.Fields{
				"location": location,
				"model":    info.Model,
			}).Debug("Skipping out of scope device")
			return
		}
		device := &Device{
			Location: location,
			IP:       soap.HostOf(location),
			Name:     info.Name,
			Room:     info.Room,
			Model:    info.Model,
			Zone:     info.Zone,
			UDN:      info.UDN,
			Groups:   []*Group{},
			Visible:  true,
		}
		if zoneName := zoneNames[location]; zoneName != "" {
			if device.Room == "" {
				device.Room = zoneName
			}
			if device.Name == "" || device.Name == "Unknown" {
				device.Name = zoneName
			}
		}
		found[i] = device
	})

	devices := make([]*Device, 0, len(found))
	for _, device := range found {
		if device != nil {
			devices = append(devices, device)
		}
	}
	return devices
}

// zoneGroupState asks each device in turn until one answers.
func (b *Builder) zoneGroupState(ctx context.Context, devices []*Device, log logrus.FieldLogger) (string, bool) {
	for _, device := range devices {
		if device.IP == "" {
			continue
		}
		if raw, ok := b.rpc.GetZoneGroupState(ctx, device.IP); ok {
			log.WithField("ip", device.IP).Debug("Zone state source")
			return raw, true
		}
		if ctx.Err() != nil {
			return "", false
		}
	}
	return "", false
}

type volumeSlot struct {
	group  int
	member int
	ip     string
}

// groups builds one Group per zone group with its visible members and reads
// their volumes concurrently. A failed read is recorded as 0.
func (b *Builder) groups(ctx context.Context, state soap.ZoneGroupState, byLocation map[string]*Device, log logrus.FieldLogger) []*Group {
	groups := make([]*Group, len(state.Groups))
	var slots []volumeSlot

	for i, zoneGroup := range state.Groups {
		group := &Group{
			ID:          zoneGroup.ID,
			Coordinator: zoneGroup.Coordinator,
			Members:     []Member{},
		}
		for _, zoneMember := range zoneGroup.VisibleMembers() {
			if zoneMember.IP == "" {
				continue
			}
			slots = append(slots, volumeSlot{group: i, member: len(group.Members), ip: zoneMember.IP})
			group.Members = append(group.Members, Member{
				UUID:     zoneMember.UUID,
				ZoneName: zoneMember.ZoneName,
				RoomName: zoneMember.RoomName,
				Location: zoneMember.Location,
				Visible:  true,
			})
		}
		groups[i] = group
	}

	volumes := make([]int, len(slots))
	b.fanOut(ctx, len(slots), func(ctx context.Context, i int) {
		volume, ok := b.rpc.GetVolume(ctx, slots[i].ip)
		if !ok {
			log.WithField("ip", slots[i].ip).Warn("Member volume unavailable, recording 0")
			return
		}
		volumes[i] = soap.ClampVolume(volume)
	})

	for i, slot := range slots {
		member := &groups[slot.group].Members[slot.member]
		member.Volume = volumes[i]
		if device, ok := byLocation[member.Location]; ok {
			device.Volume = volumes[i]
		}
	}
	return groups
}

// fanOut runs task for each index with bounded concurrency and waits for all
// of them. Tasks report nothing, so one failure never cancels the others.
func (b *Builder) fanOut(ctx context.Context, n int, task func(ctx context.Context, i int)) {
	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			task(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
}

func unique(locations []string) []string {
	seen := make(map[string]struct{}, len(locations))
	out := make([]string, 0, len(locations))
	for _, location := range locations {
		if _, dup := seen[location]; dup || location == "" {
			continue
		}
		seen[location] = struct{}{}
		out = append(out, location)
	}
	return out
}

func finish(devices []*Device) []*Device {
	for _, device := range devices {
		device.Volume = soap.ClampVolume(device.Volume)
	}
	sort.SliceStable(devices, func(i, j int) bool {
		return strings.ToLower(devices[i].sortKey()) < strings.ToLower(devices[j].sortKey())
	})
	return devices
}
