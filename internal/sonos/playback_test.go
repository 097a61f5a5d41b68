package sonos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strefethen/sonos-control/internal/sonos/soap"
	"github.com/strefethen/sonos-control/internal/sonostest"
)

func TestControlPlayReturnsStateOnly(t *testing.T) {
	speaker := sonostest.NewSpeaker("10.0.0.2", "RINCON_A", "Kitchen").
		SetQueue(sonostest.Track{Title: "Intro"})
	service, _ := newTestService(t, speaker)
	controller := NewPlaybackController(service, 0, nil)

	outcome, ok := controller.Control(context.Background(), speaker.IP, soap.ActionPlay)
	require.True(t, ok)
	assert.Equal(t, soap.StateStopped, outcome.PreviousState)
	assert.Equal(t, soap.StatePlaying, outcome.State)
	assert.False(t, outcome.HasTrack)
	assert.Equal(t, 0, speaker.Calls("GetPositionInfo"))
}

func TestControlNextReturnsStateAndTrack(t *testing.T) {
	speaker := sonostest.NewSpeaker("10.0.0.2", "RINCON_A", "Kitchen").
		SetState(soap.StatePlaying).
		SetQueue(sonostest.Track{Title: "One"}, sonostest.Track{Title: "Two", Creator: "Band"})
	service, _ := newTestService(t, speaker)
	controller := NewPlaybackController(service, 10*time.Millisecond, nil)

	started := time.Now()
	outcome, ok := controller.Control(context.Background(), speaker.IP, soap.ActionNext)
	require.True(t, ok)
	assert.GreaterOrEqual(t, time.Since(started), 10*time.Millisecond)
	assert.Equal(t, soap.StatePlaying, outcome.State)
	assert.True(t, outcome.HasTrack)
	assert.Equal(t, "Two - Band", outcome.Track)

	outcome, ok = controller.Control(context.Background(), speaker.IP, soap.ActionPrevious)
	require.True(t, ok)
	assert.Equal(t, "One", outcome.Track)
}

func TestControlNextWithoutTrackStillSucceeds(t *testing.T) {
	speaker := sonostest.NewSpeaker("10.0.0.2", "RINCON_A", "Kitchen")
	service, _ := newTestService(t, speaker)
	controller := NewPlaybackController(service, 0, nil)

	outcome, ok := controller.Control(context.Background(), speaker.IP, soap.ActionNext)
	require.True(t, ok)
	assert.False(t, outcome.HasTrack)
	assert.Equal(t, soap.StateStopped, outcome.State)
}

func TestControlFaultFails(t *testing.T) {
	speaker := sonostest.NewSpeaker("10.0.0.2", "RINCON_A", "Kitchen").Fail("Pause")
	service, _ := newTestService(t, speaker)
	controller := NewPlaybackController(service, 0, nil)

	_, ok := controller.Control(context.Background(), speaker.IP, soap.ActionPause)
	assert.False(t, ok)
	assert.Equal(t, 1, speaker.Calls("GetTransportInfo"))
}

func TestControlPlayFailsWhenStateUnreadable(t *testing.T) {
	speaker := sonostest.NewSpeaker("10.0.0.2", "RINCON_A", "Kitchen").Malform("GetTransportInfo")
	service, _ := newTestService(t, speaker)
	controller := NewPlaybackController(service, 0, nil)

	_, ok := controller.Control(context.Background(), speaker.IP, soap.ActionPlay)
	assert.False(t, ok)
	assert.Equal(t, soap.StatePlaying, speaker.State())
}

func TestControlSettleCancelled(t *testing.T) {
	speaker := sonostest.NewSpeaker("10.0.0.2", "RINCON_A", "Kitchen")
	service, _ := newTestService(t, speaker)
	controller := NewPlaybackController(service, time.Hour, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, ok := controller.Control(ctx, speaker.IP, soap.ActionNext)
	assert.False(t, ok)
	assert.Equal(t, 1, speaker.Calls("Next"))
	assert.Equal(t, 0, speaker.Calls("GetPositionInfo"))
}
