package sonos

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/strefethen/sonos-control/internal/logging"
	"github.com/strefethen/sonos-control/internal/sonos/soap"
)

// RPC is the device transport used by Service. *soap.Client implements it.
type RPC interface {
	GetVolume(ctx context.Context, ip string) (int, error)
	SetVolume(ctx context.Context, ip string, level int) error
	GetMute(ctx context.Context, ip string) (bool, error)
	SetMute(ctx context.Context, ip string, mute bool) error
	GetTransportInfo(ctx context.Context, ip string) (soap.TransportInfo, error)
	GetPositionInfo(ctx context.Context, ip string) (soap.PositionInfo, error)
	GetZoneGroupState(ctx context.Context, ip string) (string, error)
	Transport(ctx context.Context, ip string, action soap.TransportAction) error
}

// Service exposes Sonos operations to the rest of the program. Device
// errors stop here: each is logged and reported as a false ok.
type Service struct {
	client RPC
	logger logrus.FieldLogger
}

func NewService(client RPC, logger logrus.FieldLogger) *Service {
	return &Service{
		client: client,
		logger: logging.OrDiscard(logger),
	}
}

func (service *Service) fail(ip, action string, err error) {
	entry := service.logger.WithFields(logrus.Fields{"ip": ip, "action": action}).WithError(err)

	var rejected *soap.SonosRejectedError
	switch {
	case errors.As(err, &rejected):
		entry.WithField("error_code", rejected.Code).Error("Sonos rejected action")
	case errors.Is(err, soap.ErrFieldMissing):
		entry.Warn("Sonos response missing field")
	default:
		entry.Error("Sonos action failed")
	}
}

func (service *Service) GetVolume(ctx context.Context, ip string) (int, bool) {
	volume, err := service.client.GetVolume(ctx, ip)
	if err != nil {
		service.fail(ip, "GetVolume", err)
		return 0, false
	}
	return soap.ClampVolume(volume), true
}

// SetVolume clamps level to [0,100] before sending it.
func (service *Service) SetVolume(ctx context.Context, ip string, level int) bool {
	if err := service.client.SetVolume(ctx, ip, soap.ClampVolume(level)); err != nil {
		service.fail(ip, "SetVolume", err)
		return false
	}
	return true
}

func (service *Service) GetMute(ctx context.Context, ip string) (bool, bool) {
	muted, err := service.client.GetMute(ctx, ip)
	if err != nil {
		service.fail(ip, "GetMute", err)
		return false, false
	}
	return muted, true
}

func (service *Service) SetMute(ctx context.Context, ip string, mute bool) bool {
	if err := service.client.SetMute(ctx, ip, mute); err != nil {
		service.fail(ip, "SetMute", err)
		return false
	}
	return true
}

func (service *Service) GetTransportState(ctx context.Context, ip string) (string, bool) {
	info, err := service.client.GetTransportInfo(ctx, ip)
	if err != nil {
		service.fail(ip, "GetTransportInfo", err)
		return "", false
	}
	return info.CurrentTransportState, true
}

// GetTrackInfo returns "title - creator - album" for the current track,
// leaving out empty parts.
func (service *Service) GetTrackInfo(ctx context.Context, ip string) (string, bool) {
	position, err := service.client.GetPositionInfo(ctx, ip)
	if err != nil {
		service.fail(ip, "GetPositionInfo", err)
		return "", false
	}
	metadata, ok := soap.ParseTrackMetadata(position.TrackMetaData)
	if !ok {
		service.logger.WithField("ip", ip).Debug("No track metadata")
		return "", false
	}
	return metadata.String(), true
}

// GetZoneGroupState returns the raw topology document.
func (service *Service) GetZoneGroupState(ctx context.Context, ip string) (string, bool) {
	state, err := service.client.GetZoneGroupState(ctx, ip)
	if err != nil {
		service.fail(ip, "GetZoneGroupState", err)
		return "", false
	}
	return state, true
}

func (service *Service) SendTransport(ctx context.Context, ip string, action soap.TransportAction) bool {
	if err := service.client.Transport(ctx, ip, action); err != nil {
		service.fail(ip, string(action), err)
		return false
	}
	return true
}
