package soap

import "fmt"

// Service identifies a Sonos UPnP service.
type Service string

const (
	ServiceAVTransport       Service = "AVTransport"
	ServiceRenderingControl  Service = "RenderingControl"
	ServiceZoneGroupTopology Service = "ZoneGroupTopology"
)

// Port is the fixed control port of every ZonePlayer.
const Port = 1400

var controlPaths = map[Service]string{
	ServiceAVTransport:       "/MediaRenderer/AVTransport/Control",
	ServiceRenderingControl:  "/MediaRenderer/RenderingControl/Control",
	ServiceZoneGroupTopology: "/ZoneGroupTopology/Control",
}

// URN returns the service type used in envelopes and SOAPACTION headers.
func (s Service) URN() string {
	return fmt.Sprintf("urn:schemas-upnp-org:service:%s:1", string(s))
}

// ControlPath returns the control endpoint path, or "" for unknown services.
func (s Service) ControlPath() string {
	return controlPaths[s]
}

// TransportAction is one of the four transport commands.
type TransportAction string

const (
	ActionPlay     TransportAction = "Play"
	ActionPause    TransportAction = "Pause"
	ActionNext     TransportAction = "Next"
	ActionPrevious TransportAction = "Previous"
)

// ParseTransportAction matches name exactly against the known commands.
func ParseTransportAction(name string) (TransportAction, bool) {
	switch TransportAction(name) {
	case ActionPlay, ActionPause, ActionNext, ActionPrevious:
		return TransportAction(name), true
	}
	return "", false
}

// Transport states reported by devices. Other values pass through verbatim.
const (
	StateStopped       = "STOPPED"
	StatePlaying       = "PLAYING"
	StatePaused        = "PAUSED_PLAYBACK"
	StateTransitioning = "TRANSITIONING"
)

// TransportInfo mirrors the GetTransportInfo response.
type TransportInfo struct {
	CurrentTransportState  string
	CurrentTransportStatus string
}

// PositionInfo mirrors the GetPositionInfo response.
type PositionInfo struct {
	Track         int
	TrackDuration string
	TrackMetaData string
	TrackURI      string
	RelTime       string
}
