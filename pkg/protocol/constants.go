package protocol

import "time"

// Directory and path constants used throughout alerthub.
const (
	// HomeDir is the user-level state directory (e.g., ~/.alerthub).
	HomeDir = ".alerthub"

	// ConfigFile is the default config file name inside HomeDir.
	ConfigFile = "config.yaml"

	// FaultDBFile is the fault journal database inside HomeDir.
	FaultDBFile = "faults.db"
)

// Sync defaults.
const (
	// DefaultCacheSize caps the number of resident events.
	DefaultCacheSize = 80

	// DefaultExportLimit is the snapshot size used for exports.
	DefaultExportLimit = 200

	// MaxMessageRunes bounds event messages at creation time.
	MaxMessageRunes = 300

	// DefaultPollInterval is the snapshot polling period.
	DefaultPollInterval = 4 * time.Second

	// DefaultReconnectDelay is the fixed wait before re-dialing the push channel.
	DefaultReconnectDelay = 1500 * time.Millisecond

	// DefaultHTTPTimeout bounds a single REST round-trip.
	DefaultHTTPTimeout = 10 * time.Second

	// DefaultBaseURL is the hub's REST endpoint.
	DefaultBaseURL = "http://127.0.0.1:5100"

	// DefaultPushPort is the hub's push channel port.
	DefaultPushPort = 8767

	// DefaultTCPPort is the hub's line-delimited JSON ingestion port.
	DefaultTCPPort = 5090
)

// Placeholders used when a create request leaves a field blank.
const (
	DefaultSource  = "panel-web"
	DefaultMessage = "Evento manual"
)
