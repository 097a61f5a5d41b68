package sonostest

import (
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
)

// SSDPResponder answers M-SEARCH datagrams on loopback with canned replies.
type SSDPResponder struct {
	conn    net.PacketConn
	replies []string

	mu       sync.Mutex
	requests []string
	done     chan struct{}
}

// SearchResponse renders an SSDP search reply advertising location.
func SearchResponse(location, usn string) string {
	return strings.Join([]string{
		"HTTP/1.1 200 OK",
		"CACHE-CONTROL: max-age = 1800",
		"EXT:",
		"LOCATION: " + location,
		"SERVER: Linux UPnP/1.0 Sonos/79.1-56030 (ZPS12)",
		"ST: urn:schemas-upnp-org:device:ZonePlayer:1",
		"USN: uuid:" + usn + "::urn:schemas-upnp-org:device:ZonePlayer:1",
		"",
		"",
	}, "\r\n")
}

// NewSSDPResponder starts a responder that is closed when the test ends.
func NewSSDPResponder(t testing.TB, replies ...string) *SSDPResponder {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen ssdp responder: %v", err)
	}
	r := &SSDPResponder{conn: conn, replies: replies, done: make(chan struct{})}
	go r.serve()
	t.Cleanup(func() {
		_ = conn.Close()
		<-r.done
	})
	return r
}

// Addr is the address searches should be sent to.
func (r *SSDPResponder) Addr() string {
	return r.conn.LocalAddr().String()
}

// Requests returns the search datagrams received so far.
func (r *SSDPResponder) Requests() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.requests...)
}

func (r *SSDPResponder) serve() {
	defer close(r.done)
	buf := make([]byte, 2048)
	for {
		n, addr, err := r.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		request := string(buf[:n])
		r.mu.Lock()
		r.requests = append(r.requests, request)
		r.mu.Unlock()
		if !strings.HasPrefix(request, "M-SEARCH") {
			continue
		}
		for _, reply := range r.replies {
			_, _ = r.conn.WriteTo([]byte(reply), addr)
		}
	}
}
