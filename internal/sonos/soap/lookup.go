package soap

import (
	"strings"

	"github.com/beevik/etree"
)

// Lookup finds a field's text in a parsed response. It reports false when
// the field is absent or empty.
type Lookup func(root *etree.Element) (string, bool)

// ExactNamespace matches field as a child of the <action>Response element
// declared in the service namespace.
func ExactNamespace(serviceURN, responseTag, field string) Lookup {
	return func(root *etree.Element) (string, bool) {
		var found string
		Walk(root, func(el *etree.Element) bool {
			if el.Tag != responseTag || el.NamespaceURI() != serviceURN {
				return false
			}
			for _, child := range el.ChildElements() {
				if child.Tag != field {
					continue
				}
				if text := strings.TrimSpace(child.Text()); text != "" {
					found = text
					return true
				}
			}
			return false
		})
		return found, found != ""
	}
}

// AnyNamespace matches field by local name in whatever namespace it sits.
func AnyNamespace(field string) Lookup {
	return func(root *etree.Element) (string, bool) {
		return firstText(root, func(el *etree.Element) bool {
			return el.Tag == field
		})
	}
}

// LocalName matches an unqualified field element only. Every element it
// matches AnyNamespace matches too, so after AnyNamespace in a chain it
// never changes the result.
func LocalName(field string) Lookup {
	return func(root *etree.Element) (string, bool) {
		return firstText(root, func(el *etree.Element) bool {
			return el.Space == "" && el.Tag == field
		})
	}
}

// FieldLookups is the standard order used for action responses.
func FieldLookups(service Service, action, field string) []Lookup {
	return []Lookup{
		ExactNamespace(service.URN(), action+"Response", field),
		AnyNamespace(field),
		LocalName(field),
	}
}

// FirstMatch parses payload once and returns the first result of lookups.
// Malformed XML is a *ParseError; no match is ErrFieldMissing.
func FirstMatch(action string, payload []byte, lookups ...Lookup) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(payload); err != nil {
		return "", &ParseError{Action: action, Err: err}
	}
	root := doc.Root()
	if root == nil {
		return "", &ParseError{Action: action, Err: ErrFieldMissing}
	}
	for _, lookup := range lookups {
		if value, ok := lookup(root); ok {
			return value, nil
		}
	}
	return "", ErrFieldMissing
}

func firstText(root *etree.Element, match func(*etree.Element) bool) (string, bool) {
	var found string
	Walk(root, func(el *etree.Element) bool {
		if !match(el) {
			return false
		}
		found = strings.TrimSpace(el.Text())
		return found != ""
	})
	return found, found != ""
}

// Walk visits el and its descendants depth first in document order until
// visit returns true. It reports whether visit stopped the walk.
func Walk(el *etree.Element, visit func(*etree.Element) bool) bool {
	if visit(el) {
		return true
	}
	for _, child := range el.ChildElements() {
		if Walk(child, visit) {
			return true
		}
	}
	return false
}
