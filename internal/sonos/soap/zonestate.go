package soap

import (
	"errors"
	"net/url"

	"github.com/beevik/etree"
)

// ZoneGroupState is the parsed topology document.
type ZoneGroupState struct {
	Groups []ZoneGroup
	// Members lists every ZoneGroupMember in document order.
	Members []ZoneMember
}

// ZoneGroup represents a Sonos group.
type ZoneGroup struct {
	ID          string
	Coordinator string
	Members     []ZoneMember
}

// ZoneMember represents a member device in a group.
type ZoneMember struct {
	UUID      string
	ZoneName  string
	RoomName  string
	Location  string
	Invisible string
	IP        string
}

// Visible is false for satellites and bonded speakers, which carry an
// Invisible attribute other than "0".
func (m ZoneMember) Visible() bool {
	return m.Invisible == "" || m.Invisible == "0"
}

// VisibleMembers returns the group's visible members in document order.
func (g ZoneGroup) VisibleMembers() []ZoneMember {
	visible := make([]ZoneMember, 0, len(g.Members))
	for _, member := range g.Members {
		if member.Visible() {
			visible = append(visible, member)
		}
	}
	return visible
}

// HasLocation reports whether any member, visible or not, has location.
func (g ZoneGroup) HasLocation(location string) bool {
	for _, member := range g.Members {
		if member.Location == location {
			return true
		}
	}
	return false
}

// GroupForIP returns the first group with a member hosted at ip.
func (s ZoneGroupState) GroupForIP(ip string) (ZoneGroup, bool) {
	for _, group := range s.Groups {
		for _, member := range group.Members {
			if member.IP == ip {
				return group, true
			}
		}
	}
	return ZoneGroup{}, false
}

// ParseZoneGroupState parses the raw document returned by GetZoneGroupState.
func ParseZoneGroupState(zoneXML string) (ZoneGroupState, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(zoneXML); err != nil {
		return ZoneGroupState{}, &ParseError{Action: "GetZoneGroupState", Err: err}
	}
	root := doc.Root()
	if root == nil {
		return ZoneGroupState{}, &ParseError{Action: "GetZoneGroupState", Err: errors.New("empty zone group state")}
	}

	state := ZoneGroupState{Groups: []ZoneGroup{}, Members: []ZoneMember{}}
	Walk(root, func(el *etree.Element) bool {
		switch el.Tag {
		case "ZoneGroup":
			group := ZoneGroup{
				ID:          el.SelectAttrValue("ID", ""),
				Coordinator: el.SelectAttrValue("Coordinator", ""),
				Members:     []ZoneMember{},
			}
			Walk(el, func(child *etree.Element) bool {
				if child.Tag == "ZoneGroupMember" {
					group.Members = append(group.Members, parseZoneMember(child))
				}
				return false
			})
			state.Groups = append(state.Groups, group)
		case "ZoneGroupMember":
			state.Members = append(state.Members, parseZoneMember(el))
		}
		return false
	})

	return state, nil
}

func parseZoneMember(el *etree.Element) ZoneMember {
	location := el.SelectAttrValue("Location", "")
	return ZoneMember{
		UUID:      el.SelectAttrValue("UUID", ""),
		ZoneName:  el.SelectAttrValue("ZoneName", ""),
		RoomName:  el.SelectAttrValue("RoomName", ""),
		Location:  location,
		Invisible: el.SelectAttrValue("Invisible", ""),
		IP:        HostOf(location),
	}
}

// HostOf returns the host of a location URL, or "" when it has none.
func HostOf(location string) string {
	parsed, err := url.Parse(location)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
