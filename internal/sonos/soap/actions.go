package soap

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var instanceArg = Arg{Name: "InstanceID", Value: "0"}

var masterChannelArg = Arg{Name: "Channel", Value: "Master"}

// ClampVolume bounds v to the device range [0,100].
func ClampVolume(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

func (c *Client) field(ctx context.Context, ip string, service Service, action string, args []Arg, field string) (string, error) {
	payload, err := c.ExecuteAction(ctx, ip, service, action, args)
	if err != nil {
		return "", err
	}
	return FirstMatch(action, payload, FieldLookups(service, action, field)...)
}

// RenderingControl Actions
func (c *Client) GetVolume(ctx context.Context, ip string) (int, error) {
	value, err := c.field(ctx, ip, ServiceRenderingControl, "GetVolume",
		[]Arg{instanceArg, masterChannelArg}, "CurrentVolume")
	if err != nil {
		return 0, err
	}
	volume, err := strconv.Atoi(value)
	if err != nil {
		return 0, &ParseError{Action: "GetVolume", Err: err}
	}
	return ClampVolume(volume), nil
}

// SetVolume clamps level to [0,100] before sending it.
func (c *Client) SetVolume(ctx context.Context, ip string, level int) error {
	_, err := c.ExecuteAction(ctx, ip, ServiceRenderingControl, "SetVolume", []Arg{
		instanceArg,
		masterChannelArg,
		{Name: "DesiredVolume", Value: strconv.Itoa(ClampVolume(level))},
	})
	return err
}

func (c *Client) GetMute(ctx context.Context, ip string) (bool, error) {
	value, err := c.field(ctx, ip, ServiceRenderingControl, "GetMute",
		[]Arg{instanceArg, masterChannelArg}, "CurrentMute")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(value) {
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	}
	return false, &ParseError{Action: "GetMute", Err: fmt.Errorf("unexpected mute value %q", value)}
}

func (c *Client) SetMute(ctx context.Context, ip string, mute bool) error {
	desired := "0"
	if mute {
		desired = "1"
	}
	_, err := c.ExecuteAction(ctx, ip, ServiceRenderingControl, "SetMute", []Arg{
		instanceArg,
		masterChannelArg,
		{Name: "DesiredMute", Value: desired},
	})
	return err
}

// Transport Actions
func (c *Client) GetTransportInfo(ctx context.Context, ip string) (TransportInfo, error) {
	const action = "GetTransportInfo"
	payload, err := c.ExecuteAction(ctx, ip, ServiceAVTransport, action, []Arg{instanceArg})
	if err != nil {
		return TransportInfo{}, err
	}

	state, err := FirstMatch(action, payload, FieldLookups(ServiceAVTransport, action, "CurrentTransportState")...)
	if err != nil {
		return TransportInfo{}, err
	}
	status, _ := FirstMatch(action, payload, FieldLookups(ServiceAVTransport, action, "CurrentTransportStatus")...)

	return TransportInfo{CurrentTransportState: state, CurrentTransportStatus: status}, nil
}

// GetPositionInfo returns whichever position fields are present. An empty
// TrackMetaData is not an error.
func (c *Client) GetPositionInfo(ctx context.Context, ip string) (PositionInfo, error) {
	const action = "GetPositionInfo"
	payload, err := c.ExecuteAction(ctx, ip, ServiceAVTransport, action, []Arg{instanceArg})
	if err != nil {
		return PositionInfo{}, err
	}

	lookup := func(field string) (string, error) {
		value, err := FirstMatch(action, payload, FieldLookups(ServiceAVTransport, action, field)...)
		if errors.Is(err, ErrFieldMissing) {
			return "", nil
		}
		return value, err
	}

	info := PositionInfo{}
	metadata, err := lookup("TrackMetaData")
	if err != nil {
		return PositionInfo{}, err
	}
	info.TrackMetaData = metadata
	// the remaining fields cannot fail once the payload has parsed
	track, _ := lookup("Track")
	info.Track, _ = strconv.Atoi(track)
	info.TrackDuration, _ = lookup("TrackDuration")
	info.TrackURI, _ = lookup("TrackURI")
	info.RelTime, _ = lookup("RelTime")
	return info, nil
}

func (c *Client) Play(ctx context.Context, ip string) error {
	_, err := c.ExecuteAction(ctx, ip, ServiceAVTransport, "Play", []Arg{
		instanceArg,
		{Name: "Speed", Value: "1"},
	})
	return err
}

func (c *Client) Pause(ctx context.Context, ip string) error {
	_, err := c.ExecuteAction(ctx, ip, ServiceAVTransport, "Pause", []Arg{instanceArg})
	return err
}

func (c *Client) Next(ctx context.Context, ip string) error {
	_, err := c.ExecuteAction(ctx, ip, ServiceAVTransport, "Next", []Arg{instanceArg})
	return err
}

func (c *Client) Previous(ctx context.Context, ip string) error {
	_, err := c.ExecuteAction(ctx, ip, ServiceAVTransport, "Previous", []Arg{instanceArg})
	return err
}

// Transport dispatches one of the four transport commands.
func (c *Client) Transport(ctx context.Context, ip string, action TransportAction) error {
	switch action {
	case ActionPlay:
		return c.Play(ctx, ip)
	case ActionPause:
		return c.Pause(ctx, ip)
	case ActionNext:
		return c.Next(ctx, ip)
	case ActionPrevious:
		return c.Previous(ctx, ip)
	}
	return fmt.Errorf("unknown transport action: %s", action)
}

// ZoneGroupTopology Actions

// GetZoneGroupState returns the embedded topology document as raw XML text.
func (c *Client) GetZoneGroupState(ctx context.Context, ip string) (string, error) {
	return c.field(ctx, ip, ServiceZoneGroupTopology, "GetZoneGroupState", nil, "ZoneGroupState")
}
