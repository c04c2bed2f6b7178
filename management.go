package dache

import (
	"context"
	"net"
	"time"

	fiber "github.com/gofiber/fiber/v3"
	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/dache/internal/hostconn"
	"github.com/hyp3rd/dache/internal/logging"
	"github.com/hyp3rd/dache/internal/routing"
	"github.com/hyp3rd/dache/internal/sentinel"
)

const (
	mgmtReadTimeout      = 5 * time.Second
	mgmtWriteTimeout     = 5 * time.Second
	mgmtShutdownDeadline = 2 * time.Second
)

// managementServer exposes a read-only view of the Routing Table over
// HTTP: fleet health, Bucket membership, and per-host reachability.
// Unlike the RPC surface, it never mutates the fleet — it is strictly an
// observability aid for operators.
type managementServer struct {
	table *routing.Table
	app   *fiber.App
	ln    net.Listener
}

func newManagementServer(table *routing.Table, logger logging.Logger) *managementServer {
	if logger == nil {
		logger = logging.Nop{}
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  mgmtReadTimeout,
		WriteTimeout: mgmtWriteTimeout,
	})

	s := &managementServer{table: table, app: app}
	s.mountRoutes()

	return s
}

func (s *managementServer) mountRoutes() {
	s.app.Get("/health", func(c fiber.Ctx) error { return c.SendString("ok") })
	s.app.Get("/buckets", func(c fiber.Ctx) error { return c.JSON(s.bucketsSnapshot()) })
	s.app.Get("/hosts", func(c fiber.Ctx) error { return c.JSON(s.hostsSnapshot()) })
}

type bucketView struct {
	Index        int      `json:"index"`
	TargetWidth  int      `json:"targetWidth"`
	Online       []string `json:"online"`
	Offline      []string `json:"offline"`
	OfflineIndex bool     `json:"offlineIndex"`
}

func (s *managementServer) bucketsSnapshot() []bucketView {
	buckets := s.table.Buckets()
	offline := s.table.OfflineIndexSet()
	out := make([]bucketView, 0, len(buckets))

	for i, b := range buckets {
		out = append(out, bucketView{
			Index:        i,
			TargetWidth:  b.Count(),
			Online:       endpointStrings(b.Online()),
			Offline:      endpointStrings(b.Offline()),
			OfflineIndex: offline[i],
		})
	}

	return out
}

type hostView struct {
	Endpoint  string `json:"endpoint"`
	State     string `json:"state"`
	BucketIdx int    `json:"bucketIndex"`
}

func (s *managementServer) hostsSnapshot() []hostView {
	var out []hostView

	for i, b := range s.table.Buckets() {
		for _, conn := range b.Online() {
			out = append(out, hostView{Endpoint: conn.Endpoint().String(), State: "connected", BucketIdx: i})
		}

		for _, conn := range b.Offline() {
			out = append(out, hostView{Endpoint: conn.Endpoint().String(), State: "disconnected", BucketIdx: i})
		}
	}

	return out
}

func endpointStrings(conns []*hostconn.Connection) []string {
	out := make([]string, len(conns))
	for i, c := range conns {
		out[i] = c.Endpoint().String()
	}

	return out
}

// Listen binds addr and serves until Shutdown is called.
func (s *managementServer) Listen(addr string) error {
	lc := net.ListenConfig{}

	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return ewrap.Wrap(err, "management http listen")
	}

	s.ln = ln

	return s.app.Listener(ln)
}

// Shutdown stops the server, waiting at most mgmtShutdownDeadline.
func (s *managementServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), mgmtShutdownDeadline)
	defer cancel()

	ch := make(chan error, 1)

	go func() { ch <- s.app.Shutdown() }()

	select {
	case <-ctx.Done():
		return sentinel.ErrMgmtHTTPShutdownTimeout
	case err := <-ch:
		return err
	}
}
