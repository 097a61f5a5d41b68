package discovery

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"

	"github.com/strefethen/sonos-control/internal/config"
	"github.com/strefethen/sonos-control/internal/logging"
)

const (
	ssdpAddr   = "239.255.255.250:1900"
	ssdpTarget = "urn:schemas-upnp-org:device:ZonePlayer:1"
)

// Response is one parsed SSDP search reply.
type Response struct {
	Location string
	USN      string
}

// SSDPDiscoverer sends a single M-SEARCH and collects unique locations.
type SSDPDiscoverer struct {
	Addr   string
	Target string
	MX     int
	// Window caps the whole collection loop; ReadTimeout caps each read.
	// Whichever ends first stops the loop.
	Window      time.Duration
	ReadTimeout time.Duration
	TTL         int
	ReadBuffer  int
	Logger      logrus.FieldLogger
}

// NewSSDPDiscoverer builds a discoverer from configuration.
func NewSSDPDiscoverer(cfg config.Config, logger logrus.FieldLogger) *SSDPDiscoverer {
	return &SSDPDiscoverer{
		Addr:        ssdpAddr,
		Target:      ssdpTarget,
		MX:          cfg.SSDPMX,
		Window:      cfg.SSDPListenWindow(),
		ReadTimeout: cfg.SSDPReadTimeout(),
		TTL:         cfg.SSDPMulticastTTL,
		ReadBuffer:  cfg.SSDPReadBuffer,
		Logger:      logger,
	}
}

// Name identifies the source in logs.
func (d *SSDPDiscoverer) Name() string { return "ssdp" }

// Locations implements LocationSource.
func (d *SSDPDiscoverer) Locations(ctx context.Context) []string {
	return d.Discover(ctx)
}

// Discover returns unique device description locations in arrival order.
// Failures are logged and yield whatever was collected, possibly nothing.
func (d *SSDPDiscoverer) Discover(ctx context.Context) []string {
	log := logging.OrDiscard(d.Logger).WithField("source", d.Name())
	locations := []string{}

	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		log.WithError(err).Error("SSDP listen failed")
		return locations
	}
	defer conn.Close()

	d.tune(conn, log)

	addr, err := net.ResolveUDPAddr("udp4", d.addr())
	if err != nil {
		log.WithError(err).Error("SSDP address invalid")
		return locations
	}
	if err := d.sendSearch(conn, addr); err != nil {
		log.WithError(err).Error("SSDP search send failed")
		return locations
	}

	// unblock a pending read when the caller gives up
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	seen := make(map[string]struct{})
	windowEnd := time.Now().Add(d.Window)
	buf := make([]byte, 2048)

	for ctx.Err() == nil {
		deadline := time.Now().Add(d.ReadTimeout)
		if windowEnd.Before(deadline) {
			deadline = windowEnd
		}
		if !time.Now().Before(deadline) {
			break
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			log.WithError(err).Error("SSDP read deadline failed")
			break
		}

		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			log.WithError(err).Warn("SSDP read failed")
			continue
		}

		resp, ok := parseResponse(buf[:n])
		if !ok || resp.Location == "" {
			continue
		}
		if _, dup := seen[resp.Location]; dup {
			continue
		}
		seen[resp.Location] = struct{}{}
		log.WithFields(logrus.Fields{
			"location": resp.Location,
			"usn":      resp.USN,
		}).Debug("SSDP device found")
		locations = append(locations, resp.Location)
	}

	log.WithField("count", len(locations)).Debug("SSDP discovery finished")
	return locations
}

func (d *SSDPDiscoverer) addr() string {
	if d.Addr == "" {
		return ssdpAddr
	}
	return d.Addr
}

// tune applies the multicast TTL and receive buffer; failures only warn.
func (d *SSDPDiscoverer) tune(conn net.PacketConn, log logrus.FieldLogger) {
	if d.TTL > 0 {
		if err := ipv4.NewPacketConn(conn).SetMulticastTTL(d.TTL); err != nil {
			log.WithError(err).Warn("SSDP multicast TTL not set")
		}
	}
	if udp, ok := conn.(*net.UDPConn); ok && d.ReadBuffer > 0 {
		if err := udp.SetReadBuffer(d.ReadBuffer); err != nil {
			log.WithError(err).Warn("SSDP read buffer not set")
		}
	}
}

func (d *SSDPDiscoverer) sendSearch(conn net.PacketConn, addr *net.UDPAddr) error {
	target := d.Target
	if target == "" {
		target = ssdpTarget
	}
	mx := d.MX
	if mx <= 0 {
		mx = 3
	}
	msg := strings.Join([]string{
		"M-SEARCH * HTTP/1.1",
		"HOST: " + ssdpAddr,
		"MAN: \"ssdp:discover\"",
		"ST: " + target,
		"MX: " + strconv.Itoa(mx),
		"",
		"",
	}, "\r\n")

	_, err := conn.WriteTo([]byte(msg), addr)
	return err
}

// parseResponse reads HTTP-style header lines with lower-cased keys. It
// rejects datagrams that are not valid UTF-8.
func parseResponse(raw []byte) (Response, bool) {
	if !utf8.Valid(raw) {
		return Response{}, false
	}
	scanner := bufio.NewScanner(strings.NewReader(string(raw)))
	headers := make(map[string]string)

	for scanner.Scan() {
		line := scanner.Text()
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		if key == "" || strings.Contains(key, " ") {
			continue
		}
		headers[key] = strings.TrimSpace(parts[1])
	}

	return Response{
		Location: headers["location"],
		USN:      headers["usn"],
	}, true
}
