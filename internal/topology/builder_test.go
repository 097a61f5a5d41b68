package topology

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strefethen/sonos-control/internal/discovery"
	"github.com/strefethen/sonos-control/internal/sonos"
	"github.com/strefethen/sonos-control/internal/sonos/soap"
	"github.com/strefethen/sonos-control/internal/sonostest"
)

type fixedLocator []string

func (l fixedLocator) Locations(context.Context) []string { return l }

func newTestBuilder(locations []string, speakers ...*sonostest.Speaker) *Builder {
	network := sonostest.NewNetwork(speakers...)
	client := network.Client()
	fetcher := discovery.NewDescriptionFetcher(time.Second, nil, discovery.WithDescriptionClient(client))
	service := sonos.NewService(soap.NewClient(time.Second, soap.WithHTTPClient(client)), nil)
	return NewBuilder(fixedLocator(locations), fetcher, service, Options{Concurrency: 2}, nil)
}

type household struct {
	living, kitchen, sub, bedroom *sonostest.Speaker
}

// newHousehold has Living Room and Kitchen grouped with a hidden sub, and a
// Bedroom speaker on its own that SSDP never reports.
func newHousehold() household {
	living := sonostest.NewSpeaker("10.0.0.2", "RINCON_A", "Living Room").SetVolume(30)
	kitchen := sonostest.NewSpeaker("10.0.0.3", "RINCON_B", "Kitchen").SetVolume(50)
	sub := sonostest.NewSpeaker("10.0.0.9", "RINCON_S", "Living Room").SetVolume(77)
	sub.Model = "Sonos Sub"
	bedroom := sonostest.NewSpeaker("10.0.0.4", "RINCON_C", "Bedroom").SetVolume(10)

	state := sonostest.ZoneGroupStateXML(
		sonostest.Group{ID: "RINCON_A:1", Coordinator: living, Members: []*sonostest.Speaker{living, kitchen}, Hidden: []*sonostest.Speaker{sub}},
		sonostest.Group{ID: "RINCON_C:2", Coordinator: bedroom, Members: []*sonostest.Speaker{bedroom}},
	)
	for _, speaker := range []*sonostest.Speaker{living, kitchen, sub, bedroom} {
		speaker.ZoneGroupState = state
	}
	return household{living: living, kitchen: kitchen, sub: sub, bedroom: bedroom}
}

func (h household) speakers() []*sonostest.Speaker {
	return []*sonostest.Speaker{h.living, h.kitchen, h.sub, h.bedroom}
}

func locationsOf(devices []*Device) []string {
	out := make([]string, len(devices))
	for i, device := range devices {
		out[i] = device.Location
	}
	return out
}

func TestBuildAssemblesTopology(t *testing.T) {
	h := newHousehold()
	builder := newTestBuilder([]string{h.living.Location(), h.kitchen.Location(), h.living.Location()}, h.speakers()...)

	devices := builder.Build(context.Background())

	require.Equal(t, []string{
		h.bedroom.Location(),
		h.kitchen.Location(),
		h.living.Location(),
		h.sub.Location(),
	}, locationsOf(devices))

	bedroom, kitchen, living, sub := devices[0], devices[1], devices[2], devices[3]

	assert.Equal(t, "10.0.0.2", living.IP)
	assert.Equal(t, "Living Room", living.Name)
	assert.Equal(t, "Sonos One", living.Model)
	assert.Equal(t, "RINCON_A", living.UDN)
	assert.Equal(t, 30, living.Volume)
	assert.Equal(t, 50, kitchen.Volume)
	assert.Equal(t, 10, bedroom.Volume)
	assert.True(t, living.Visible)

	assert.False(t, sub.Visible)
	assert.Equal(t, 0, sub.Volume)
	assert.Equal(t, 0, h.sub.Calls("GetVolume"))

	require.Len(t, living.Groups, 1)
	group := living.Groups[0]
	assert.Equal(t, "RINCON_A:1", group.ID)
	assert.Equal(t, "RINCON_A", group.Coordinator)
	assert.Equal(t, []Member{
		{UUID: "RINCON_A", ZoneName: "Living Room", RoomName: "Living Room", Location: h.living.Location(), Visible: true, Volume: 30},
		{UUID: "RINCON_B", ZoneName: "Kitchen", RoomName: "Kitchen", Location: h.kitchen.Location(), Visible: true, Volume: 50},
	}, group.Members)

	require.Len(t, kitchen.Groups, 1)
	assert.Same(t, group, kitchen.Groups[0])
	require.Len(t, sub.Groups, 1)
	assert.Same(t, group, sub.Groups[0])
	require.Len(t, bedroom.Groups, 1)
	assert.Equal(t, "RINCON_C:2", bedroom.Groups[0].ID)

	assert.Equal(t, 1, h.living.Calls(sonostest.DescribeAction))
	assert.Equal(t, 1, h.bedroom.Calls(sonostest.DescribeAction))
}

func TestBuildAddsTopologyOnlyDeviceOnce(t *testing.T) {
	h := newHousehold()
	h.bedroom.Name = ""
	builder := newTestBuilder([]string{h.living.Location()}, h.speakers()...)

	devices := builder.Build(context.Background())

	count := 0
	for _, device := range devices {
		if device.Location == h.bedroom.Location() {
			count++
			assert.Equal(t, "Bedroom", device.Name)
		}
	}
	assert.Equal(t, 1, count)
	assert.Len(t, devices, 4)
}

func TestBuildFiltersByModelPrefix(t *testing.T) {
	h := newHousehold()
	h.kitchen.Model = "Acme Speaker"
	builder := newTestBuilder([]string{h.living.Location(), h.kitchen.Location(), "http://10.0.0.50:1400/xml/device_description.xml"}, h.speakers()...)

	devices := builder.Build(context.Background())

	assert.NotContains(t, locationsOf(devices), h.kitchen.Location())
	assert.NotContains(t, locationsOf(devices), "http://10.0.0.50:1400/xml/device_description.xml")
	assert.Contains(t, locationsOf(devices), h.living.Location())
}

func TestBuildDescribesEachLocationOnce(t *testing.T) {
	h := newHousehold()
	h.kitchen.Fail(sonostest.DescribeAction)
	h.sub.Model = "Acme Sub"
	builder := newTestBuilder([]string{h.living.Location(), h.kitchen.Location(), h.sub.Location()}, h.speakers()...)

	devices := builder.Build(context.Background())

	assert.Equal(t, []string{h.bedroom.Location(), h.living.Location()}, locationsOf(devices))
	assert.Equal(t, 1, h.kitchen.Calls(sonostest.DescribeAction))
	assert.Equal(t, 1, h.sub.Calls(sonostest.DescribeAction))
	assert.Equal(t, 1, h.bedroom.Calls(sonostest.DescribeAction))
}

func TestBuildTriesZoneStateInTurn(t *testing.T) {
	h := newHousehold()
	h.living.Fail("GetZoneGroupState")
	builder := newTestBuilder([]string{h.living.Location(), h.kitchen.Location()}, h.speakers()...)

	devices := builder.Build(context.Background())

	assert.Len(t, devices, 4)
	assert.Equal(t, 1, h.living.Calls("GetZoneGroupState"))
	assert.Equal(t, 1, h.kitchen.Calls("GetZoneGroupState"))
}

func TestBuildWithoutZoneState(t *testing.T) {
	h := newHousehold()
	h.living.Fail("GetZoneGroupState")
	h.kitchen.Malform("GetZoneGroupState")
	builder := newTestBuilder([]string{h.living.Location(), h.kitchen.Location()}, h.speakers()...)

	devices := builder.Build(context.Background())

	require.Equal(t, []string{h.kitchen.Location(), h.living.Location()}, locationsOf(devices))
	for _, device := range devices {
		assert.Equal(t, 0, device.Volume)
		assert.NotNil(t, device.Groups)
		assert.Empty(t, device.Groups)
	}
}

func TestBuildMalformedTopologyKeepsDevices(t *testing.T) {
	h := newHousehold()
	h.living.ZoneGroupState = "<ZoneGroupState><ZoneGroups>"
	builder := newTestBuilder([]string{h.living.Location(), h.kitchen.Location()}, h.speakers()...)

	devices := builder.Build(context.Background())

	assert.Len(t, devices, 2)
	assert.Equal(t, 0, h.kitchen.Calls("GetZoneGroupState"))
}

func TestBuildMemberVolumeFailureRecordsZero(t *testing.T) {
	h := newHousehold()
	h.kitchen.Fail("GetVolume")
	builder := newTestBuilder([]string{h.living.Location(), h.kitchen.Location()}, h.speakers()...)

	devices := builder.Build(context.Background())

	require.Len(t, devices, 4)
	kitchen := devices[1]
	assert.Equal(t, h.kitchen.Location(), kitchen.Location)
	assert.Equal(t, 0, kitchen.Volume)
	assert.Equal(t, 0, kitchen.Groups[0].Members[1].Volume)
	assert.Equal(t, 30, devices[2].Volume)
}

func TestBuildNothingFound(t *testing.T) {
	devices := newTestBuilder(nil).Build(context.Background())
	assert.NotNil(t, devices)
	assert.Empty(t, devices)
}

func TestFinishSortsCaseInsensitively(t *testing.T) {
	devices := finish([]*Device{
		{Name: "beta"},
		{Name: "zeta", Room: "Alpha"},
		{Name: "Charlie"},
		{Name: "able", Room: "bravo", Volume: 140},
	})

	keys := make([]string, len(devices))
	for i, device := range devices {
		keys[i] = device.sortKey()
	}
	assert.Equal(t, []string{"Alpha", "beta", "bravo", "Charlie"}, keys)
	assert.Equal(t, 100, devices[2].Volume)
}
