package soap

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/beevik/etree"
)

const (
	envelopeNS      = "http://schemas.xmlsoap.org/soap/envelope/"
	encodingStyleNS = "http://schemas.xmlsoap.org/soap/encoding/"
)

// Arg is a single action argument. Devices expect arguments in declaration
// order, so they are passed as a slice.
type Arg struct {
	Name  string
	Value string
}

// Client handles SOAP requests to Sonos devices.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled HTTP client, e.g. with one whose
// transport routes to in-memory devices.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient creates a SOAP client whose calls are each bounded by timeout.
// Uses connection pooling for better performance when making multiple requests.
func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		timeout: timeout,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: timeout}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExecuteAction sends a SOAP request and returns the raw response body.
// A fault element in the body fails the call whatever the status code.
func (c *Client) ExecuteAction(
	ctx context.Context,
	ip string,
	service Service,
	action string,
	args []Arg,
) ([]byte, error) {
	controlPath := service.ControlPath()
	if controlPath == "" {
		return nil, fmt.Errorf("unknown service: %s", service)
	}

	body, err := buildEnvelope(service.URN(), action, args)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("http://%s:%d%s", ip, Port, controlPath)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "text/xml; charset=\"utf-8\"")
	req.Header.Set("SOAPACTION", fmt.Sprintf("\"%s#%s\"", service.URN(), action))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &SonosTimeoutError{Action: action}
		}
		return nil, &SonosUnreachableError{Action: action, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, &SonosTimeoutError{Action: action}
		}
		return nil, &SonosUnreachableError{Action: action, Err: err}
	}

	if fault, code, desc := parseSoapFault(payload); fault {
		return nil, &SonosRejectedError{Action: action, Code: code, Description: desc}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPStatusError{Action: action, StatusCode: resp.StatusCode}
	}

	return payload, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func buildEnvelope(serviceURN, action string, args []Arg) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	envelope := doc.CreateElement("s:Envelope")
	envelope.CreateAttr("xmlns:s", envelopeNS)
	envelope.CreateAttr("s:encodingStyle", encodingStyleNS)

	call := envelope.CreateElement("s:Body").CreateElement("u:" + action)
	call.CreateAttr("xmlns:u", serviceURN)
	for _, arg := range args {
		call.CreateElement(arg.Name).SetText(arg.Value)
	}

	return doc.WriteToBytes()
}

// parseSoapFault reports whether payload carries a Fault element and, if so,
// its UPnP errorCode and errorDescription. The scan is token based so a
// truncated body still reveals a fault that precedes the damage.
func parseSoapFault(payload []byte) (bool, string, string) {
	decoder := xml.NewDecoder(bytes.NewReader(payload))
	var fault bool
	var code string
	var desc string

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "Fault":
				fault = true
			case "errorCode":
				var value string
				if err := decoder.DecodeElement(&value, &se); err == nil {
					code = strings.TrimSpace(value)
				}
			case "errorDescription":
				var value string
				if err := decoder.DecodeElement(&value, &se); err == nil {
					desc = strings.TrimSpace(value)
				}
			}
		}
	}

	return fault, code, desc
}
