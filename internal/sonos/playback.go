package sonos

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/strefethen/sonos-control/internal/logging"
	"github.com/strefethen/sonos-control/internal/sonos/soap"
)

// DefaultSettle is how long Next/Previous wait before re-reading the track.
const DefaultSettle = 500 * time.Millisecond

// PlaybackControls is the subset of Service the playback controller needs.
type PlaybackControls interface {
	GetTransportState(ctx context.Context, ip string) (string, bool)
	GetTrackInfo(ctx context.Context, ip string) (string, bool)
	SendTransport(ctx context.Context, ip string, action soap.TransportAction) bool
}

// PlaybackOutcome is the state read back after a transport command.
type PlaybackOutcome struct {
	Action        soap.TransportAction
	PreviousState string
	State         string
	// Track is only read for Next/Previous; HasTrack reports whether it
	// resolved.
	Track    string
	HasTrack bool
}

// PlaybackController sends transport commands and reads back the result.
type PlaybackController struct {
	controls PlaybackControls
	settle   time.Duration
	logger   logrus.FieldLogger
}

func NewPlaybackController(controls PlaybackControls, settle time.Duration, logger logrus.FieldLogger) *PlaybackController {
	if settle < 0 {
		settle = DefaultSettle
	}
	return &PlaybackController{
		controls: controls,
		settle:   settle,
		logger:   logging.OrDiscard(logger),
	}
}

// Control runs action on ip. For Play and Pause the outcome is the new
// transport state, so a failed re-read reports false. Next and Previous
// wait for the device to settle, then report the pair of state and track
// even when either read fails.
func (pc *PlaybackController) Control(ctx context.Context, ip string, action soap.TransportAction) (PlaybackOutcome, bool) {
	log := pc.logger.WithFields(logrus.Fields{"ip": ip, "action": action})

	previous, _ := pc.controls.GetTransportState(ctx, ip)
	log.WithField("state", previous).Info("Current transport state")

	if !pc.controls.SendTransport(ctx, ip, action) {
		log.Error("Playback command failed")
		return PlaybackOutcome{}, false
	}

	outcome := PlaybackOutcome{Action: action, PreviousState: previous}

	switch action {
	case soap.ActionNext, soap.ActionPrevious:
		if !pc.wait(ctx) {
			log.Warn("Playback settle interrupted")
			return PlaybackOutcome{}, false
		}
		outcome.Track, outcome.HasTrack = pc.controls.GetTrackInfo(ctx, ip)
		outcome.State, _ = pc.controls.GetTransportState(ctx, ip)
	default:
		state, ok := pc.controls.GetTransportState(ctx, ip)
		if !ok {
			return PlaybackOutcome{}, false
		}
		outcome.State = state
	}

	log.WithField("state", outcome.State).Info("New transport state")
	return outcome, true
}

func (pc *PlaybackController) wait(ctx context.Context) bool {
	if pc.settle == 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(pc.settle)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
