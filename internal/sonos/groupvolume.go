package sonos

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/strefethen/sonos-control/internal/logging"
	"github.com/strefethen/sonos-control/internal/sonos/soap"
)

// VolumeStep is the change applied by relative volume actions.
const VolumeStep = 2

// GroupAction is an operation applied across a group's visible members.
type GroupAction string

const (
	GroupMean GroupAction = "mean"
	GroupUp   GroupAction = "up"
	GroupDown GroupAction = "down"
)

// ParseGroupAction matches name exactly against the known group actions.
func ParseGroupAction(name string) (GroupAction, bool) {
	switch GroupAction(name) {
	case GroupMean, GroupUp, GroupDown:
		return GroupAction(name), true
	}
	return "", false
}

// VolumeControls is the subset of Service the group coordinator needs.
type VolumeControls interface {
	GetVolume(ctx context.Context, ip string) (int, bool)
	SetVolume(ctx context.Context, ip string, level int) bool
	GetZoneGroupState(ctx context.Context, ip string) (string, bool)
}

// MemberVolume is the volume a member was successfully set to.
type MemberVolume struct {
	IP       string `json:"ip"`
	UUID     string `json:"uuid,omitempty"`
	ZoneName string `json:"zone_name,omitempty"`
	Volume   int    `json:"volume"`
}

// GroupVolumeCoordinator applies volume actions to the group of a speaker.
type GroupVolumeCoordinator struct {
	controls VolumeControls
	logger   logrus.FieldLogger
}

func NewGroupVolumeCoordinator(controls VolumeControls, logger logrus.FieldLogger) *GroupVolumeCoordinator {
	return &GroupVolumeCoordinator{
		controls: controls,
		logger:   logging.OrDiscard(logger),
	}
}

// Apply runs action across the visible members of the group containing ip
// and returns the members that were adjusted, in topology order. An empty
// result means nothing was adjusted.
func (coordinator *GroupVolumeCoordinator) Apply(ctx context.Context, ip string, action GroupAction) []MemberVolume {
	log := coordinator.logger.WithFields(logrus.Fields{"ip": ip, "group_action": action})
	results := []MemberVolume{}

	members, ok := coordinator.visibleMembers(ctx, ip, log)
	if !ok {
		return results
	}

	ips := make([]string, len(members))
	for i, member := range members {
		ips[i] = member.IP
	}

	readings := fetchVolumes(ctx, coordinator.controls, ips)
	targets := make([]int, len(members))
	apply := make([]bool, len(members))

	switch action {
	case GroupMean:
		sum, count := 0, 0
		for _, reading := range readings {
			if reading.ok {
				sum += reading.volume
				count++
			}
		}
		if count == 0 {
			log.Error("No member volume could be read")
			return results
		}
		mean := soap.ClampVolume(int(math.RoundToEven(float64(sum) / float64(count))))
		for i, reading := range readings {
			targets[i] = mean
			apply[i] = reading.ok
		}
	case GroupUp, GroupDown:
		delta := VolumeStep
		if action == GroupDown {
			delta = -VolumeStep
		}
		for i, reading := range readings {
			targets[i] = soap.ClampVolume(reading.volume + delta)
			apply[i] = reading.ok
		}
	default:
		log.Warn("Unknown group volume action")
		return results
	}

	done := setVolumes(ctx, coordinator.controls, ips, targets, apply)
	for i, member := range members {
		if !done[i] {
			continue
		}
		results = append(results, MemberVolume{
			IP:       member.IP,
			UUID:     member.UUID,
			ZoneName: member.ZoneName,
			Volume:   targets[i],
		})
	}

	log.WithField("adjusted", len(results)).Info("Group volume applied")
	return results
}

func (coordinator *GroupVolumeCoordinator) visibleMembers(ctx context.Context, ip string, log logrus.FieldLogger) ([]soap.ZoneMember, bool) {
	raw, ok := coordinator.controls.GetZoneGroupState(ctx, ip)
	if !ok {
		return nil, false
	}
	state, err := soap.ParseZoneGroupState(raw)
	if err != nil {
		log.WithError(err).Error("Failed to parse zone group state")
		return nil, false
	}
	group, ok := state.GroupForIP(ip)
	if !ok {
		log.Warn("Speaker not found in any group")
		return nil, false
	}

	members := make([]soap.ZoneMember, 0, len(group.Members))
	for _, member := range group.VisibleMembers() {
		if member.IP != "" {
			members = append(members, member)
		}
	}
	if len(members) == 0 {
		log.Warn("No group members found")
		return nil, false
	}
	return members, true
}
