package sonos

import (
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/strefethen/sonos-control/internal/api"
	"github.com/strefethen/sonos-control/internal/apperrors"
	"github.com/strefethen/sonos-control/internal/sonos/soap"
)

// RegisterRoutes wires playback, volume and zone routes to the router.
func RegisterRoutes(router chi.Router, service *Service, playback *PlaybackController, groups *GroupVolumeCoordinator) {
	router.Method(http.MethodGet, "/api/control/{ip}/{action}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		ip, err := speakerIP(r)
		if err != nil {
			return err
		}
		ctx := r.Context()
		action := chi.URLParam(r, "action")

		switch action {
		case "GetState":
			state, ok := service.GetTransportState(ctx, ip)
			if !ok {
				return apperrors.NewDeviceError("Could not get device state", ip)
			}
			return api.WriteSuccess(w, map[string]any{"state": state})
		case "GetTrackInfo":
			track, ok := service.GetTrackInfo(ctx, ip)
			if !ok {
				return apperrors.NewDeviceError("Could not get track info", ip)
			}
			return api.WriteSuccess(w, map[string]any{"track": track})
		}

		transportAction, ok := soap.ParseTransportAction(action)
		if !ok {
			return apperrors.NewValidationError("Unknown control action", map[string]any{"action": action})
		}
		outcome, ok := playback.Control(ctx, ip, transportAction)
		if !ok {
			return apperrors.NewDeviceError("Could not "+action, ip)
		}

		var track any
		switch transportAction {
		case soap.ActionNext, soap.ActionPrevious:
			if outcome.HasTrack {
				track = outcome.Track
			}
		default:
			if outcome.State == soap.StatePlaying {
				if info, ok := service.GetTrackInfo(ctx, ip); ok {
					track = info
				}
			}
		}
		return api.WriteSuccess(w, map[string]any{"state": outcome.State, "track": track})
	}))

	router.Route("/api/volume/{ip}", func(volume chi.Router) {
		volume.Method(http.MethodGet, "/set/{value}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
			ip, err := speakerIP(r)
			if err != nil {
				return err
			}
			value, err := strconv.Atoi(chi.URLParam(r, "value"))
			if err != nil {
				return apperrors.NewValidationError("Invalid volume value", map[string]any{"value": chi.URLParam(r, "value")})
			}

			ctx := r.Context()
			if !service.SetVolume(ctx, ip, value) {
				return apperrors.NewDeviceError("Failed to set volume", ip)
			}
			var current any
			if level, ok := service.GetVolume(ctx, ip); ok {
				current = level
			}
			return api.WriteSuccess(w, map[string]any{"volume": current})
		}))

		volume.Method(http.MethodGet, "/{action}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
			ip, err := speakerIP(r)
			if err != nil {
				return err
			}
			ctx := r.Context()

			switch action := chi.URLParam(r, "action"); action {
			case "get":
				level, ok := service.GetVolume(ctx, ip)
				if !ok {
					return apperrors.NewDeviceError("Could not get volume", ip)
				}
				return api.WriteSuccess(w, map[string]any{"volume": level})
			case "mute", "unmute":
				if !service.SetMute(ctx, ip, action == "mute") {
					return apperrors.NewDeviceError("Failed to "+action, ip)
				}
				return api.WriteSuccess(w, nil)
			case "up", "down":
				level, ok := service.GetVolume(ctx, ip)
				if !ok {
					return apperrors.NewDeviceError("Could not get current volume", ip)
				}
				delta := VolumeStep
				if action == "down" {
					delta = -VolumeStep
				}
				target := soap.ClampVolume(level + delta)
				if !service.SetVolume(ctx, ip, target) {
					return apperrors.NewDeviceError("Failed to adjust volume", ip)
				}
				return api.WriteSuccess(w, map[string]any{"volume": target})
			default:
				return apperrors.NewValidationError("Unknown volume action", map[string]any{"action": action})
			}
		}))
	})

	router.Method(http.MethodGet, "/api/group/volume/{ip}/{action}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		ip, err := speakerIP(r)
		if err != nil {
			return err
		}
		action, ok := ParseGroupAction(chi.URLParam(r, "action"))
		if !ok {
			return apperrors.NewValidationError("Unknown group volume action", map[string]any{"action": chi.URLParam(r, "action")})
		}

		results := groups.Apply(r.Context(), ip, action)
		if len(results) == 0 {
			return apperrors.NewGroupError("No group members adjusted", ip)
		}
		return api.WriteSuccess(w, map[string]any{"results": results})
	}))

	router.Method(http.MethodGet, "/api/zones/{ip}", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		ip, err := speakerIP(r)
		if err != nil {
			return err
		}
		state, ok := service.GetZoneGroupState(r.Context(), ip)
		if !ok {
			return apperrors.NewDeviceError("Could not get group state", ip)
		}
		return api.WriteXML(w, http.StatusOK, state)
	}))
}

// speakerIP validates the {ip} path parameter as an IPv4 or IPv6 address.
func speakerIP(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "ip")
	if net.ParseIP(raw) == nil {
		return "", apperrors.NewValidationError("Invalid speaker ip", map[string]any{"ip": raw})
	}
	return raw, nil
}
