package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"

	"github.com/strefethen/sonos-control/internal/logging"
	"github.com/strefethen/sonos-control/internal/sonos/soap"
)

const (
	deviceNamespace = "urn:schemas-upnp-org:device-1-0"
	unknownValue    = "Unknown"

	// DescriptionPath is where ZonePlayers serve their device description.
	DescriptionPath = "/xml/device_description.xml"
)

// DeviceInfo is the identity a device advertises in its description.
type DeviceInfo struct {
	Name  string
	Room  string
	Model string
	Zone  string
	UDN   string
}

// DescriptionFetcher downloads and parses device descriptions.
type DescriptionFetcher struct {
	client  *http.Client
	timeout time.Duration
	logger  logrus.FieldLogger
}

// FetcherOption configures a DescriptionFetcher.
type FetcherOption func(*DescriptionFetcher)

// WithDescriptionClient replaces the HTTP client used for fetches.
func WithDescriptionClient(client *http.Client) FetcherOption {
	return func(f *DescriptionFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// NewDescriptionFetcher returns a fetcher bounding each request by timeout.
func NewDescriptionFetcher(timeout time.Duration, logger logrus.FieldLogger, opts ...FetcherOption) *DescriptionFetcher {
	f := &DescriptionFetcher{
		client:  &http.Client{},
		timeout: timeout,
		logger:  logging.OrDiscard(logger),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// DescriptionLocation builds the description URL for a device IP.
func DescriptionLocation(ip string) string {
	return fmt.Sprintf("http://%s:%d%s", ip, soap.Port, DescriptionPath)
}

// Fetch retrieves the description at location. Any failure is logged and
// reported as false.
func (f *DescriptionFetcher) Fetch(ctx context.Context, location string) (DeviceInfo, bool) {
	log := f.logger.WithField("location", location)

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		log.WithError(err).Error("Device description request invalid")
		return DeviceInfo{}, false
	}
	resp, err := f.client.Do(req)
	if err != nil {
		log.WithError(err).Error("Device description fetch failed")
		return DeviceInfo{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.WithField("status", resp.StatusCode).Error("Device description fetch failed")
		return DeviceInfo{}, false
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.WithError(err).Error("Device description read failed")
		return DeviceInfo{}, false
	}

	info, err := ParseDescription(body)
	if err != nil {
		log.WithError(err).Error("Device description parse failed")
		return DeviceInfo{}, false
	}
	return info, true
}

// ParseDescription extracts identity fields from the first device element.
// Fields are looked up in the device namespace first, then in any namespace.
func ParseDescription(payload []byte) (DeviceInfo, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(payload); err != nil {
		return DeviceInfo{}, err
	}
	root := doc.Root()
	if root == nil {
		return DeviceInfo{}, errors.New("empty device description")
	}

	device := findDevice(root)
	if device == nil {
		return DeviceInfo{}, errors.New("device description has no device element")
	}

	field := func(name string) string {
		for _, lookup := range []soap.Lookup{inDeviceNamespace(name), soap.AnyNamespace(name)} {
			if value, ok := lookup(device); ok {
				return value
			}
		}
		return ""
	}

	info := DeviceInfo{
		Name:  field("friendlyName"),
		Room:  field("roomName"),
		Model: field("modelName"),
		Zone:  field("zoneName"),
		UDN:   strings.TrimPrefix(field("UDN"), "uuid:"),
	}
	if info.Name == "" {
		info.Name = unknownValue
	}
	if info.Model == "" {
		info.Model = unknownValue
	}
	return info, nil
}

func findDevice(root *etree.Element) *etree.Element {
	var fallback *etree.Element
	var found *etree.Element
	soap.Walk(root, func(el *etree.Element) bool {
		if el.Tag != "device" {
			return false
		}
		if el.NamespaceURI() == deviceNamespace {
			found = el
			return true
		}
		if fallback == nil {
			fallback = el
		}
		return false
	})
	if found != nil {
		return found
	}
	return fallback
}

func inDeviceNamespace(name string) soap.Lookup {
	return func(device *etree.Element) (string, bool) {
		var value string
		soap.Walk(device, func(el *etree.Element) bool {
			if el.Tag != name || el.NamespaceURI() != deviceNamespace {
				return false
			}
			value = strings.TrimSpace(el.Text())
			return value != ""
		})
		return value, value != ""
	}
}
