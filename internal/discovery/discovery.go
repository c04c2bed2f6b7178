// Package discovery implements the optional UDP multicast Discovery
// Adapter: it listens for HELO/BYE beacons and turns them into Routing
// Table membership changes, per spec.md §4.6. No repo in this module's
// dependency pack touches UDP multicast, so this package is built directly
// on net.ListenMulticastUDP from the standard library — there is no
// ecosystem client for a bespoke beacon protocol like this one.
package discovery

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/dache/internal/hostconn"
	"github.com/hyp3rd/dache/internal/logging"
	"github.com/hyp3rd/dache/internal/routing"
	"github.com/hyp3rd/dache/internal/wireformat"
)

// maxBeaconSize bounds a single UDP read; beacons are short space-separated
// ASCII-range strings, never anywhere near this.
const maxBeaconSize = 2048

// TransportFactory builds the wire Transport for a newly discovered
// endpoint. The Cache Client supplies this so discovery never needs to know
// which concrete Transport implementation is in use.
type TransportFactory func(endpoint hostconn.Endpoint) hostconn.Transport

// Adapter runs the multicast listener loop on its own goroutine and
// mutates table as beacons arrive. Stop is idempotent and the adapter's
// loop observes it each iteration, mirroring the TryStop flag spec.md §4.6
// describes.
type Adapter struct {
	table             *routing.Table
	newTransport      TransportFactory
	reconnectInterval time.Duration
	logger            logging.Logger

	mu      sync.Mutex
	known   map[hostconn.Endpoint]*hostconn.Connection
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates an Adapter bound to table. Call Run to start listening.
func New(table *routing.Table, newTransport TransportFactory, reconnectInterval time.Duration, logger logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.Nop{}
	}

	return &Adapter{
		table:             table,
		newTransport:      newTransport,
		reconnectInterval: reconnectInterval,
		logger:            logger,
		known:             make(map[hostconn.Endpoint]*hostconn.Connection),
		stopCh:            make(chan struct{}),
		doneCh:            make(chan struct{}),
	}
}

// Run joins the multicast group at groupAddr:port and processes beacons
// until ctx is cancelled or Stop is called. It blocks; callers run it on
// its own goroutine.
func (a *Adapter) Run(ctx context.Context, groupAddr string, port int) error {
	addr := &net.UDPAddr{IP: net.ParseIP(groupAddr), Port: port}

	conn, err := net.ListenMulticastUDP("udp", nil, addr)
	if err != nil {
		return ewrap.Wrap(err, "join multicast group "+groupAddr+":"+strconv.Itoa(port))
	}

	defer func() { _ = conn.Close() }() //nolint:errcheck
	defer close(a.doneCh)

	go func() {
		select {
		case <-ctx.Done():
		case <-a.stopCh:
		}

		_ = conn.SetReadDeadline(time.Now()) //nolint:errcheck
		_ = conn.Close()                     //nolint:errcheck
	}()

	buf := make([]byte, maxBeaconSize)

	for {
		if a.isStopped() {
			return nil
		}

		n, _, readErr := conn.ReadFromUDP(buf)
		if readErr != nil {
			if a.isStopped() || ctx.Err() != nil {
				return nil
			}

			a.logger.Printf("warn: discovery read failed: %v", readErr)

			continue
		}

		a.handleBeacon(ctx, buf[:n])
	}
}

// Stop halts the listener loop. Idempotent; safe to call before Run
// returns or after it has already stopped.
func (a *Adapter) Stop() {
	a.mu.Lock()

	if a.stopped {
		a.mu.Unlock()

		return
	}

	a.stopped = true
	close(a.stopCh)
	a.mu.Unlock()
}

func (a *Adapter) isStopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.stopped
}

func (a *Adapter) handleBeacon(ctx context.Context, raw []byte) {
	text, err := wireformat.DecodeUTF16LE(raw)
	if err != nil {
		a.logger.Printf("warn: malformed discovery beacon: %v", err)

		return
	}

	fields := strings.Fields(text)
	if len(fields) != 3 { //nolint:mnd
		return
	}

	command, address, portStr := strings.ToUpper(fields[0]), fields[1], fields[2]

	port, err := strconv.Atoi(portStr)
	if err != nil {
		a.logger.Printf("warn: discovery beacon with non-numeric port %q", portStr)

		return
	}

	endpoint := hostconn.Endpoint{Address: address, Port: port}

	switch command {
	case "HELO":
		a.handleHelo(ctx, endpoint)
	case "BYE":
		a.handleBye(endpoint)
	default:
		a.logger.Printf("discovery: unknown beacon command %q", command)
	}
}

func (a *Adapter) handleHelo(ctx context.Context, endpoint hostconn.Endpoint) {
	a.mu.Lock()

	if _, exists := a.known[endpoint]; exists {
		a.mu.Unlock()

		return
	}

	conn := hostconn.New(endpoint, a.newTransport(endpoint), a.reconnectInterval, a.logger)
	a.known[endpoint] = conn
	a.mu.Unlock()

	a.table.AppendHost(conn)
	a.logger.Printf("discovery: new host %s joined the fleet", endpoint)

	go func() {
		err := conn.Connect(ctx)
		if err != nil {
			a.logger.Printf("warn: discovery: initial connect to %s failed: %v", endpoint, err)
		}
	}()
}

func (a *Adapter) handleBye(endpoint hostconn.Endpoint) {
	a.mu.Lock()
	conn, exists := a.known[endpoint]

	if exists {
		delete(a.known, endpoint)
	}

	a.mu.Unlock()

	if !exists {
		return
	}

	a.logger.Printf("discovery: host %s left the fleet", endpoint)
	a.table.RemoveHost(conn)
	_ = conn.Disconnect() //nolint:errcheck
}
