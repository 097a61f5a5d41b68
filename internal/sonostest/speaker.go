// Package sonostest provides in-memory Sonos speakers reachable through an
// http.RoundTripper, plus a loopback SSDP responder.
package sonostest

import (
	"fmt"
	"sync"

	"github.com/beevik/etree"
)

// Track is one entry of a fake speaker's queue.
type Track struct {
	Title   string
	Creator string
	Album   string
}

// Speaker is a fake ZonePlayer. Identity fields are read-only once the
// speaker is added to a Network; playback state is guarded by mu.
type Speaker struct {
	IP    string
	UUID  string
	Name  string
	Room  string
	Model string
	Zone  string

	// ZoneGroupState is returned verbatim by GetZoneGroupState; empty
	// makes the action fault.
	ZoneGroupState string

	mu        sync.Mutex
	volume    int
	muted     bool
	state     string
	tracks    []Track
	trackIdx  int
	faults    map[string]bool
	malformed map[string]bool
	status    map[string]int
	calls     map[string]int
}

// NewSpeaker returns a stopped speaker at ip with volume 0.
func NewSpeaker(ip, uuid, name string) *Speaker {
	return &Speaker{
		IP:        ip,
		UUID:      uuid,
		Name:      name,
		Room:      name,
		Model:     "Sonos One",
		state:     "STOPPED",
		faults:    map[string]bool{},
		malformed: map[string]bool{},
		status:    map[string]int{},
		calls:     map[string]int{},
	}
}

// Location is the speaker's device description URL.
func (s *Speaker) Location() string {
	return fmt.Sprintf("http://%s:1400/xml/device_description.xml", s.IP)
}

func (s *Speaker) SetVolume(v int) *Speaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
	return s
}

func (s *Speaker) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *Speaker) SetMuted(muted bool) *Speaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = muted
	return s
}

func (s *Speaker) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *Speaker) SetState(state string) *Speaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	return s
}

func (s *Speaker) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetQueue replaces the queue and moves to its first track.
func (s *Speaker) SetQueue(tracks ...Track) *Speaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = append([]Track(nil), tracks...)
	s.trackIdx = 0
	return s
}

// Fail makes every call of action (a SOAP action name or "Describe")
// answer with a UPnP fault.
func (s *Speaker) Fail(action string) *Speaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[action] = true
	return s
}

// Malform makes action answer 200 with an unparseable body.
func (s *Speaker) Malform(action string) *Speaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.malformed[action] = true
	return s
}

// Status makes action answer with the given HTTP status and an empty body.
func (s *Speaker) Status(action string, code int) *Speaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[action] = code
	return s
}

// Calls returns how many times action reached the speaker.
func (s *Speaker) Calls(action string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[action]
}

func (s *Speaker) currentTrack() (Track, int, bool) {
	if len(s.tracks) == 0 {
		return Track{}, 0, false
	}
	return s.tracks[s.trackIdx], s.trackIdx + 1, true
}

func (s *Speaker) descriptionXML() string {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	root := doc.CreateElement("root")
	root.CreateAttr("xmlns", "urn:schemas-upnp-org:device-1-0")
	device := root.CreateElement("device")
	device.CreateElement("deviceType").SetText("urn:schemas-upnp-org:device:ZonePlayer:1")
	addText(device, "friendlyName", s.Name)
	addText(device, "roomName", s.Room)
	addText(device, "modelName", s.Model)
	addText(device, "zoneName", s.Zone)
	addText(device, "UDN", "uuid:"+s.UUID)
	out, _ := doc.WriteToString()
	return out
}

func addText(parent *etree.Element, tag, value string) {
	if value != "" {
		parent.CreateElement(tag).SetText(value)
	}
}

// DIDL renders track as DIDL-Lite metadata.
func DIDL(track Track) string {
	doc := etree.NewDocument()
	root := doc.CreateElement("DIDL-Lite")
	root.CreateAttr("xmlns", "urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/")
	root.CreateAttr("xmlns:dc", "http://purl.org/dc/elements/1.1/")
	root.CreateAttr("xmlns:upnp", "urn:schemas-upnp-org:metadata-1-0/upnp/")
	item := root.CreateElement("item")
	item.CreateAttr("id", "-1")
	addText(item, "dc:title", track.Title)
	addText(item, "dc:creator", track.Creator)
	addText(item, "upnp:album", track.Album)
	item.CreateElement("upnp:class").SetText("object.item.audioItem.musicTrack")
	out, _ := doc.WriteToString()
	return out
}

// Group describes one ZoneGroup for ZoneGroupStateXML. Hidden members are
// written with Invisible="1".
type Group struct {
	ID          string
	Coordinator *Speaker
	Members     []*Speaker
	Hidden      []*Speaker
}

// ZoneGroupStateXML renders groups in the ZoneGroups document layout.
func ZoneGroupStateXML(groups ...Group) string {
	doc := etree.NewDocument()
	state := doc.CreateElement("ZoneGroupState")
	zoneGroups := state.CreateElement("ZoneGroups")
	for _, group := range groups {
		el := zoneGroups.CreateElement("ZoneGroup")
		el.CreateAttr("ID", group.ID)
		if group.Coordinator != nil {
			el.CreateAttr("Coordinator", group.Coordinator.UUID)
		}
		for _, member := range group.Members {
			addMember(el, member, "0")
		}
		for _, member := range group.Hidden {
			addMember(el, member, "1")
		}
	}
	out, _ := doc.WriteToString()
	return out
}

func addMember(group *etree.Element, speaker *Speaker, invisible string) {
	member := group.CreateElement("ZoneGroupMember")
	member.CreateAttr("UUID", speaker.UUID)
	member.CreateAttr("Location", speaker.Location())
	member.CreateAttr("ZoneName", speaker.Room)
	member.CreateAttr("RoomName", speaker.Room)
	member.CreateAttr("Invisible", invisible)
	member.CreateAttr("SoftwareVersion", "79.1-56030")
}
