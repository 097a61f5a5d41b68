package sonostest

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/beevik/etree"
)

// DescribeAction is the pseudo action name used for device description
// requests in Fail, Malform, Status and Calls.
const DescribeAction = "Describe"

// Network routes HTTP requests to fake speakers by host. Unknown hosts fail
// like a refused connection.
type Network struct {
	mu       sync.RWMutex
	speakers map[string]*Speaker
}

// NewNetwork returns a network holding speakers.
func NewNetwork(speakers ...*Speaker) *Network {
	n := &Network{speakers: map[string]*Speaker{}}
	for _, speaker := range speakers {
		n.Add(speaker)
	}
	return n
}

func (n *Network) Add(speaker *Speaker) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.speakers[speaker.IP] = speaker
}

// Client returns an *http.Client whose transport is the network.
func (n *Network) Client() *http.Client {
	return &http.Client{Transport: n}
}

// RoundTrip implements http.RoundTripper.
func (n *Network) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	n.mu.RLock()
	speaker, ok := n.speakers[req.URL.Hostname()]
	n.mu.RUnlock()
	if !ok {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: fmt.Errorf("connection refused to %s", req.URL.Host)}
	}

	if req.Method == http.MethodGet && req.URL.Path == "/xml/device_description.xml" {
		return speaker.describe(req), nil
	}
	if req.Method == http.MethodPost {
		return speaker.control(req), nil
	}
	return respond(req, http.StatusNotFound, ""), nil
}

func respond(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode:    status,
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{`text/xml; charset="utf-8"`}},
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

func (s *Speaker) describe(req *http.Request) *http.Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[DescribeAction]++

	if code, ok := s.status[DescribeAction]; ok {
		return respond(req, code, "")
	}
	if s.malformed[DescribeAction] {
		return respond(req, http.StatusOK, "<root><device><friendlyName>")
	}
	if s.faults[DescribeAction] {
		return respond(req, http.StatusInternalServerError, "")
	}
	return respond(req, http.StatusOK, s.descriptionXML())
}

func (s *Speaker) control(req *http.Request) *http.Response {
	soapAction := strings.Trim(req.Header.Get("SOAPACTION"), `"`)
	hash := strings.LastIndex(soapAction, "#")
	if hash < 0 {
		return respond(req, http.StatusBadRequest, "")
	}
	serviceURN, action := soapAction[:hash], soapAction[hash+1:]

	payload, _ := io.ReadAll(req.Body)
	args := parseArgs(payload, action)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[action]++

	if code, ok := s.status[action]; ok {
		return respond(req, code, "")
	}
	if s.malformed[action] {
		return respond(req, http.StatusOK, "<s:Envelope><s:Body><u:"+action+"Response>")
	}
	if s.faults[action] {
		return respond(req, http.StatusInternalServerError, faultEnvelope("701", "Transition not available"))
	}

	out, ok := s.apply(action, args)
	if !ok {
		return respond(req, http.StatusInternalServerError, faultEnvelope("401", "Invalid Action"))
	}
	return respond(req, http.StatusOK, responseEnvelope(serviceURN, action, out))
}

// apply runs action against the speaker state. Callers hold s.mu.
func (s *Speaker) apply(action string, args map[string]string) ([][2]string, bool) {
	switch action {
	case "GetVolume":
		return [][2]string{{"CurrentVolume", strconv.Itoa(s.volume)}}, true
	case "SetVolume":
		v, err := strconv.Atoi(args["DesiredVolume"])
		if err != nil || v < 0 || v > 100 {
			return nil, false
		}
		s.volume = v
		return nil, true
	case "GetMute":
		mute := "0"
		if s.muted {
			mute = "1"
		}
		return [][2]string{{"CurrentMute", mute}}, true
	case "SetMute":
		s.muted = args["DesiredMute"] == "1"
		return nil, true
	case "GetTransportInfo":
		return [][2]string{
			{"CurrentTransportState", s.state},
			{"CurrentTransportStatus", "OK"},
			{"CurrentSpeed", "1"},
		}, true
	case "GetPositionInfo":
		track, number, ok := s.currentTrack()
		metadata := ""
		if ok {
			metadata = DIDL(track)
		}
		return [][2]string{
			{"Track", strconv.Itoa(number)},
			{"TrackDuration", "0:03:30"},
			{"TrackMetaData", metadata},
			{"TrackURI", ""},
			{"RelTime", "0:00:00"},
		}, true
	case "Play":
		s.state = "PLAYING"
		return nil, true
	case "Pause":
		s.state = "PAUSED_PLAYBACK"
		return nil, true
	case "Next":
		if s.trackIdx+1 < len(s.tracks) {
			s.trackIdx++
		}
		return nil, true
	case "Previous":
		if s.trackIdx > 0 {
			s.trackIdx--
		}
		return nil, true
	case "GetZoneGroupState":
		if s.ZoneGroupState == "" {
			return nil, false
		}
		return [][2]string{{"ZoneGroupState", s.ZoneGroupState}}, true
	}
	return nil, false
}

func parseArgs(payload []byte, action string) map[string]string {
	args := map[string]string{}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(payload); err != nil {
		return args
	}
	call := findByTag(doc.Root(), action)
	if call == nil {
		return args
	}
	for _, child := range call.ChildElements() {
		args[child.Tag] = child.Text()
	}
	return args
}

func findByTag(el *etree.Element, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	if el.Tag == tag {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findByTag(child, tag); found != nil {
			return found
		}
	}
	return nil
}

func responseEnvelope(serviceURN, action string, fields [][2]string) string {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	envelope := doc.CreateElement("s:Envelope")
	envelope.CreateAttr("xmlns:s", "http://schemas.xmlsoap.org/soap/envelope/")
	envelope.CreateAttr("s:encodingStyle", "http://schemas.xmlsoap.org/soap/encoding/")
	resp := envelope.CreateElement("s:Body").CreateElement("u:" + action + "Response")
	resp.CreateAttr("xmlns:u", serviceURN)
	for _, field := range fields {
		resp.CreateElement(field[0]).SetText(field[1])
	}
	var buf bytes.Buffer
	_, _ = doc.WriteTo(&buf)
	return buf.String()
}

func faultEnvelope(code, description string) string {
	return `<?xml version="1.0"?>` +
		`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">` +
		`<s:Body><s:Fault><faultcode>s:Client</faultcode><faultstring>UPnPError</faultstring>` +
		`<detail><UPnPError xmlns="urn:schemas-upnp-org:control-1-0">` +
		`<errorCode>` + code + `</errorCode><errorDescription>` + description + `</errorDescription>` +
		`</UPnPError></detail></s:Fault></s:Body></s:Envelope>`
}
