package soap

import (
	"strings"

	"github.com/beevik/etree"
)

// TrackMetadata is the subset of DIDL-Lite item metadata shown to users.
type TrackMetadata struct {
	Title   string
	Creator string
	Album   string
}

// String joins the non-empty parts with " - ".
func (m TrackMetadata) String() string {
	parts := make([]string, 0, 3)
	for _, part := range []string{m.Title, m.Creator, m.Album} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " - ")
}

// ParseTrackMetadata reads title, creator and album from a DIDL-Lite
// document. It reports false for empty, NOT_IMPLEMENTED or malformed
// metadata and when all three parts are empty.
func ParseTrackMetadata(didlXML string) (TrackMetadata, bool) {
	if strings.TrimSpace(didlXML) == "" || didlXML == "NOT_IMPLEMENTED" {
		return TrackMetadata{}, false
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(didlXML); err != nil || doc.Root() == nil {
		return TrackMetadata{}, false
	}
	root := doc.Root()

	text := func(field string) string {
		value, _ := AnyNamespace(field)(root)
		return value
	}
	metadata := TrackMetadata{
		Title:   text("title"),
		Creator: text("creator"),
		Album:   text("album"),
	}
	if metadata.String() == "" {
		return TrackMetadata{}, false
	}
	return metadata, true
}
