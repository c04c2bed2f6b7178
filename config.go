package dache

import (
	"time"

	"github.com/hyp3rd/dache/internal/hostconn"
	"github.com/hyp3rd/dache/internal/libs/serializer"
	"github.com/hyp3rd/dache/internal/logging"
	"github.com/hyp3rd/dache/internal/sentinel"
)

const (
	defaultHostReconnectInterval = 5 * time.Second
	defaultCommunicationTimeout  = 2 * time.Second
	defaultMessageBufferSize     = 4096
	defaultMaximumMessageSizeKB  = 64
)

// Config wraps every recognized option for a Client[T], mirroring the
// fleet/transport/discovery knobs spec.md §6 names. NewConfig returns one
// with the documented defaults; Option values layer on top of it the same
// way the rest of this codebase's configuration objects compose.
type Config struct {
	// HostRedundancyLayers is the number of extra replicas per Bucket;
	// Bucket width is 1+HostRedundancyLayers.
	HostRedundancyLayers int
	// CacheHosts is the initial fleet, used for Routing Table assembly at
	// construction time.
	CacheHosts []hostconn.Endpoint

	HostReconnectInterval time.Duration
	CommunicationTimeout  time.Duration
	MessageBufferSize     int
	MaximumMessageSizeKB  int

	// AutoDetectCacheHosts turns on the Discovery Adapter. UDPMulticastIP
	// and UDPMulticastPort are required when this is true.
	AutoDetectCacheHosts bool
	UDPMulticastIP       string
	UDPMulticastPort     int

	// NewTransport builds the wire Transport for a given endpoint. Defaults
	// to plain HTTP/JSON via hostconn.NewHTTPTransport against
	// http://<address>:<port> when left nil.
	NewTransport func(endpoint hostconn.Endpoint) hostconn.Transport

	// Logger receives operational log lines. Defaults to logging.Nop.
	Logger logging.Logger
	// SerializerName selects a serializer by name ("default", the JSON
	// codec, unless overridden; see internal/libs/serializer). Only the
	// built-in names "default", "msgpack" and "cbor" are accepted: New and
	// Validate resolve the name against a fresh built-in registry, so a
	// serializer registered on another Registry is not reachable here.
	SerializerName string

	// ManagementHTTPAddr, left non-empty, starts the read-only management
	// HTTP surface (see management.go) on this address.
	ManagementHTTPAddr string
}

// NewConfig returns a Config with the documented defaults applied. Options
// passed to New then layer on top of it.
func NewConfig() Config {
	return Config{
		HostRedundancyLayers:  0,
		HostReconnectInterval: defaultHostReconnectInterval,
		CommunicationTimeout:  defaultCommunicationTimeout,
		MessageBufferSize:     defaultMessageBufferSize,
		MaximumMessageSizeKB:  defaultMaximumMessageSizeKB,
		SerializerName:        "default",
		Logger:                logging.Nop{},
	}
}

// Option configures a Config before it is passed to New.
type Option func(*Config)

// WithHostRedundancyLayers sets the extra-replica count per Bucket.
func WithHostRedundancyLayers(layers int) Option {
	return func(c *Config) { c.HostRedundancyLayers = layers }
}

// WithCacheHosts sets the initial configured fleet.
func WithCacheHosts(hosts ...hostconn.Endpoint) Option {
	return func(c *Config) { c.CacheHosts = hosts }
}

// WithHostReconnectInterval overrides the per-host reconnect interval.
func WithHostReconnectInterval(d time.Duration) Option {
	return func(c *Config) { c.HostReconnectInterval = d }
}

// WithCommunicationTimeout overrides the per-RPC timeout passed to the
// default Transport.
func WithCommunicationTimeout(d time.Duration) Option {
	return func(c *Config) { c.CommunicationTimeout = d }
}

// WithAutoDetectCacheHosts enables the Discovery Adapter against the given
// multicast group and port.
func WithAutoDetectCacheHosts(multicastIP string, multicastPort int) Option {
	return func(c *Config) {
		c.AutoDetectCacheHosts = true
		c.UDPMulticastIP = multicastIP
		c.UDPMulticastPort = multicastPort
	}
}

// WithTransportFactory overrides how a Host Connection's Transport is
// constructed per endpoint.
func WithTransportFactory(factory func(hostconn.Endpoint) hostconn.Transport) Option {
	return func(c *Config) { c.NewTransport = factory }
}

// WithLogger sets the logger used throughout the Client and its
// subsystems.
func WithLogger(logger logging.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithSerializerName selects a registered serializer by name.
func WithSerializerName(name string) Option {
	return func(c *Config) { c.SerializerName = name }
}

// WithManagementHTTPAddr starts the read-only management HTTP surface on
// addr.
func WithManagementHTTPAddr(addr string) Option {
	return func(c *Config) { c.ManagementHTTPAddr = addr }
}

// ApplyOptions layers options on top of c in order.
func ApplyOptions(c *Config, options ...Option) {
	for _, option := range options {
		option(c)
	}
}

// Validate checks the precondition spec.md §6/§7 impose on a Config before
// a Client can be constructed from it: multicast settings are required
// when AutoDetectCacheHosts is on, and the configured serializer name must
// be registered.
func (c Config) Validate() error {
	if c.AutoDetectCacheHosts && (c.UDPMulticastIP == "" || c.UDPMulticastPort == 0) {
		return sentinel.ErrConfigInvalid
	}

	if c.SerializerName != "" {
		if _, err := serializer.New(c.SerializerName); err != nil {
			return sentinel.ErrConfigInvalid
		}
	}

	return nil
}
