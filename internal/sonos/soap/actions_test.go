package soap_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strefethen/sonos-control/internal/sonos/soap"
	"github.com/strefethen/sonos-control/internal/sonostest"
)

func newClient(speakers ...*sonostest.Speaker) *soap.Client {
	network := sonostest.NewNetwork(speakers...)
	return soap.NewClient(time.Second, soap.WithHTTPClient(network.Client()))
}

func TestVolumeRoundTripClamps(t *testing.T) {
	speaker := sonostest.NewSpeaker("10.0.0.2", "RINCON_A", "Living Room")
	client := newClient(speaker)
	ctx := context.Background()

	for _, tc := range []struct{ set, want int }{{150, 100}, {-10, 0}, {35, 35}} {
		require.NoError(t, client.SetVolume(ctx, speaker.IP, tc.set))
		got, err := client.GetVolume(ctx, speaker.IP)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	first, err := client.GetVolume(ctx, speaker.IP)
	require.NoError(t, err)
	second, err := client.GetVolume(ctx, speaker.IP)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMuteRoundTrip(t *testing.T) {
	speaker := sonostest.NewSpeaker("10.0.0.2", "RINCON_A", "Living Room")
	client := newClient(speaker)
	ctx := context.Background()

	require.NoError(t, client.SetMute(ctx, speaker.IP, true))
	muted, err := client.GetMute(ctx, speaker.IP)
	require.NoError(t, err)
	assert.True(t, muted)

	require.NoError(t, client.SetMute(ctx, speaker.IP, false))
	muted, err = client.GetMute(ctx, speaker.IP)
	require.NoError(t, err)
	assert.False(t, muted)
}

func TestTransportCommands(t *testing.T) {
	speaker := sonostest.NewSpeaker("10.0.0.2", "RINCON_A", "Living Room").
		SetQueue(sonostest.Track{Title: "One"}, sonostest.Track{Title: "Two", Creator: "Band"})
	client := newClient(speaker)
	ctx := context.Background()

	require.NoError(t, client.Transport(ctx, speaker.IP, soap.ActionPlay))
	info, err := client.GetTransportInfo(ctx, speaker.IP)
	require.NoError(t, err)
	assert.Equal(t, soap.StatePlaying, info.CurrentTransportState)
	assert.Equal(t, "OK", info.CurrentTransportStatus)

	require.NoError(t, client.Transport(ctx, speaker.IP, soap.ActionNext))
	position, err := client.GetPositionInfo(ctx, speaker.IP)
	require.NoError(t, err)
	assert.Equal(t, 2, position.Track)
	metadata, ok := soap.ParseTrackMetadata(position.TrackMetaData)
	require.True(t, ok)
	assert.Equal(t, "Two - Band", metadata.String())

	require.NoError(t, client.Transport(ctx, speaker.IP, soap.ActionPause))
	assert.Equal(t, soap.StatePaused, speaker.State())

	require.Error(t, client.Transport(ctx, speaker.IP, soap.TransportAction("Stop")))
}

func TestFaultAndMalformedResponses(t *testing.T) {
	speaker := sonostest.NewSpeaker("10.0.0.2", "RINCON_A", "Living Room").
		Fail("Play").
		Malform("GetVolume")
	client := newClient(speaker)
	ctx := context.Background()

	err := client.Play(ctx, speaker.IP)
	var rejected *soap.SonosRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "701", rejected.Code)

	_, err = client.GetVolume(ctx, speaker.IP)
	var parseErr *soap.ParseError
	require.ErrorAs(t, err, &parseErr)

	_, err = client.GetVolume(ctx, "10.0.0.99")
	var unreachable *soap.SonosUnreachableError
	require.ErrorAs(t, err, &unreachable)
}

func TestGetZoneGroupStateReturnsRawDocument(t *testing.T) {
	speaker := sonostest.NewSpeaker("10.0.0.2", "RINCON_A", "Living Room")
	speaker.ZoneGroupState = sonostest.ZoneGroupStateXML(sonostest.Group{
		ID:          "RINCON_A:1",
		Coordinator: speaker,
		Members:     []*sonostest.Speaker{speaker},
	})
	client := newClient(speaker)

	raw, err := client.GetZoneGroupState(context.Background(), speaker.IP)
	require.NoError(t, err)

	state, err := soap.ParseZoneGroupState(raw)
	require.NoError(t, err)
	require.Len(t, state.Groups, 1)
	assert.Equal(t, speaker.Location(), state.Groups[0].Members[0].Location)
}
