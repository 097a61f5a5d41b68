package soap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTrackMetadata(t *testing.T) {
	didl := `<DIDL-Lite xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:upnp="urn:schemas-upnp-org:metadata-1-0/upnp/">` +
		`<item id="-1"><dc:title>So What</dc:title><dc:creator>Miles Davis</dc:creator>` +
		`<upnp:album>Kind of Blue</upnp:album></item></DIDL-Lite>`

	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"full", didl, "So What - Miles Davis - Kind of Blue", true},
		{"title only", `<DIDL-Lite><item><title>Radio</title><album></album></item></DIDL-Lite>`, "Radio", true},
		{"creator and album", `<DIDL-Lite><item><creator>A</creator><album>B</album></item></DIDL-Lite>`, "A - B", true},
		{"empty parts", `<DIDL-Lite><item><title> </title></item></DIDL-Lite>`, "", false},
		{"not implemented", "NOT_IMPLEMENTED", "", false},
		{"blank", "  ", "", false},
		{"malformed", `<DIDL-Lite><item><title>Half`, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			metadata, ok := ParseTrackMetadata(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, metadata.String())
		})
	}
}
