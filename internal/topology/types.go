// Package topology assembles the device list and zone groups seen in one
// discovery pass.
package topology

// Device is a ZonePlayer found during a pass, unique by Location.
type Device struct {
	Location string   `json:"location"`
	IP       string   `json:"ip"`
	Name     string   `json:"name"`
	Room     string   `json:"room,omitempty"`
	Model    string   `json:"model"`
	Zone     string   `json:"zone,omitempty"`
	UDN      string   `json:"udn,omitempty"`
	Volume   int      `json:"volume"`
	Groups   []*Group `json:"groups"`
	Visible  bool     `json:"visible"`
}

// Group is a zone group. Devices that belong to it share the same pointer.
type Group struct {
	ID          string   `json:"id"`
	Coordinator string   `json:"coordinator"`
	Members     []Member `json:"members"`
}

// Member is a visible group member with the volume read during the pass.
type Member struct {
	UUID     string `json:"uuid"`
	ZoneName string `json:"zone_name"`
	RoomName string `json:"room_name"`
	Location string `json:"location"`
	Visible  bool   `json:"is_visible"`
	Volume   int    `json:"volume"`
}

// sortKey orders devices by room, falling back to name.
func (d *Device) sortKey() string {
	if d.Room != "" {
		return d.Room
	}
	return d.Name
}
