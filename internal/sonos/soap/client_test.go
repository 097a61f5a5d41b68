package soap

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func stubClient(status int, body string, capture *http.Request, captured *string) *Client {
	return NewClient(time.Second, WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if capture != nil {
				*capture = *req
			}
			if captured != nil {
				payload, _ := io.ReadAll(req.Body)
				*captured = string(payload)
			}
			return &http.Response{
				StatusCode: status,
				Body:       io.NopCloser(strings.NewReader(body)),
				Header:     http.Header{},
				Request:    req,
			}, nil
		}),
	}))
}

func TestBuildEnvelopeOrdersArgumentsAndEscapes(t *testing.T) {
	body, err := buildEnvelope(ServiceRenderingControl.URN(), "SetVolume", []Arg{
		{Name: "InstanceID", Value: "0"},
		{Name: "Channel", Value: "Master"},
		{Name: "DesiredVolume", Value: "<7>"},
	})
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(body))
	root := doc.Root()
	require.Equal(t, "Envelope", root.Tag)
	require.Equal(t, envelopeNS, root.NamespaceURI())

	var call *etree.Element
	Walk(root, func(el *etree.Element) bool {
		if el.Tag == "SetVolume" {
			call = el
			return true
		}
		return false
	})
	require.NotNil(t, call)
	assert.Equal(t, "urn:schemas-upnp-org:service:RenderingControl:1", call.NamespaceURI())

	children := call.ChildElements()
	require.Len(t, children, 3)
	assert.Equal(t, "InstanceID", children[0].Tag)
	assert.Equal(t, "Channel", children[1].Tag)
	assert.Equal(t, "DesiredVolume", children[2].Tag)
	assert.Equal(t, "<7>", children[2].Text())
}

func TestExecuteActionSetsHeadersAndURL(t *testing.T) {
	var req http.Request
	client := stubClient(http.StatusOK, `<Envelope/>`, &req, nil)

	_, err := client.ExecuteAction(context.Background(), "10.0.0.2", ServiceZoneGroupTopology, "GetZoneGroupState", nil)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "http://10.0.0.2:1400/ZoneGroupTopology/Control", req.URL.String())
	assert.Equal(t, `text/xml; charset="utf-8"`, req.Header.Get("Content-Type"))
	assert.Equal(t, `"urn:schemas-upnp-org:service:ZoneGroupTopology:1#GetZoneGroupState"`, req.Header.Get("SOAPACTION"))
}

func TestExecuteActionFaultOnSuccessStatus(t *testing.T) {
	fault := `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><s:Fault>` +
		`<faultcode>s:Client</faultcode><detail><UPnPError><errorCode>701</errorCode>` +
		`<errorDescription>Transition not available</errorDescription></UPnPError></detail></s:Fault></s:Body></s:Envelope>`
	client := stubClient(http.StatusOK, fault, nil, nil)

	_, err := client.ExecuteAction(context.Background(), "10.0.0.2", ServiceAVTransport, "Play", nil)

	var rejected *SonosRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "701", rejected.Code)
	assert.Equal(t, "Transition not available", rejected.Description)
}

func TestExecuteActionNonOKStatus(t *testing.T) {
	client := stubClient(http.StatusServiceUnavailable, "", nil, nil)

	_, err := client.ExecuteAction(context.Background(), "10.0.0.2", ServiceAVTransport, "Pause", nil)

	var status *HTTPStatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusServiceUnavailable, status.StatusCode)
}

func TestExecuteActionUnknownService(t *testing.T) {
	client := stubClient(http.StatusOK, "", nil, nil)

	_, err := client.ExecuteAction(context.Background(), "10.0.0.2", Service("AlarmClock"), "ListAlarms", nil)
	require.Error(t, err)
}

func TestExecuteActionTimeout(t *testing.T) {
	client := NewClient(20*time.Millisecond, WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()
			return nil, req.Context().Err()
		}),
	}))

	_, err := client.ExecuteAction(context.Background(), "10.0.0.2", ServiceAVTransport, "GetTransportInfo", nil)

	var timeout *SonosTimeoutError
	require.ErrorAs(t, err, &timeout)
}

func TestExecuteActionUnreachable(t *testing.T) {
	client := NewClient(time.Second, WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		}),
	}))

	_, err := client.ExecuteAction(context.Background(), "10.0.0.2", ServiceAVTransport, "Play", nil)

	var unreachable *SonosUnreachableError
	require.ErrorAs(t, err, &unreachable)
}

func TestSetVolumeClampsBeforeSending(t *testing.T) {
	cases := []struct {
		in   int
		sent string
	}{
		{150, "<DesiredVolume>100</DesiredVolume>"},
		{-10, "<DesiredVolume>0</DesiredVolume>"},
		{42, "<DesiredVolume>42</DesiredVolume>"},
	}
	for _, tc := range cases {
		var body string
		client := stubClient(http.StatusOK, `<Envelope/>`, nil, &body)
		require.NoError(t, client.SetVolume(context.Background(), "10.0.0.2", tc.in))
		assert.Contains(t, body, tc.sent)
	}
}
