package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DispatchConfig tunes the dispatch/retry/confirmation core.
type DispatchConfig struct {
	MaxSendRetries    int           `envconfig:"DISPATCH_MAX_SEND_RETRIES"    default:"3"`
	SendRetryDelay    time.Duration `envconfig:"DISPATCH_SEND_RETRY_DELAY"    default:"2s"`
	CarrierTimeout    time.Duration `envconfig:"DISPATCH_CARRIER_TIMEOUT"     default:"10m"`
	PendingQueueLimit int           `envconfig:"DISPATCH_PENDING_QUEUE_LIMIT" default:"5"`
	EventQueueDepth   int           `envconfig:"DISPATCH_EVENT_QUEUE_DEPTH"   default:"64"`
	// When true the modem owns message-reference numbering and the
	// allocator hands out a constant sentinel.
	MessageRefViaModem bool `envconfig:"DISPATCH_MSGREF_VIA_MODEM" default:"false"`
	// Which country code drives short-code classification: sim, network
	// or both (stricter classification wins).
	CountryPolicy string `envconfig:"DISPATCH_COUNTRY_POLICY" default:"sim"`
}

// RadioConfig selects and tunes the radio channel backend.
type RadioConfig struct {
	// "loopback" or "smpp".
	Backend string `envconfig:"RADIO_BACKEND" default:"loopback"`

	SMPPHost           string        `envconfig:"RADIO_SMPP_HOST"`
	SMPPPort           int           `envconfig:"RADIO_SMPP_PORT"            default:"2775"`
	SMPPSystemID       string        `envconfig:"RADIO_SMPP_SYSTEM_ID"`
	SMPPPassword       string        `envconfig:"RADIO_SMPP_PASSWORD"`
	SMPPSystemType     string        `envconfig:"RADIO_SMPP_SYSTEM_TYPE"`
	SMPPSourceAddr     string        `envconfig:"RADIO_SMPP_SOURCE_ADDR"     default:"smsdispatch"`
	SMPPEnquireLink    time.Duration `envconfig:"RADIO_SMPP_ENQUIRE_LINK"    default:"30s"`
	SMPPRequestTimeout time.Duration `envconfig:"RADIO_SMPP_REQUEST_TIMEOUT" default:"10s"`
	SMPPWindowSize     uint          `envconfig:"RADIO_SMPP_WINDOW_SIZE"     default:"10"`
}

// StoreConfig selects the message-store backend.
type StoreConfig struct {
	// "memory" or "postgres".
	Backend     string `envconfig:"STORE_BACKEND" default:"memory"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
}

// HTTPConfig holds the HTTP API listener settings.
type HTTPConfig struct {
	Addr         string        `envconfig:"HTTP_ADDR"          default:"0.0.0.0:8080"`
	ReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT"  default:"10s"`
	WriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"10s"`
	IdleTimeout  time.Duration `envconfig:"HTTP_IDLE_TIMEOUT"  default:"60s"`
}

// UsageConfig bounds per-caller send volume.
type UsageConfig struct {
	MessagesPerSecond float64 `envconfig:"USAGE_MESSAGES_PER_SECOND" default:"1"`
	Burst             int     `envconfig:"USAGE_BURST"               default:"30"`
}

// Config holds the overall application configuration.
type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	SubID    int    `envconfig:"SUB_ID"    default:"1"`
	Dispatch DispatchConfig
	Radio    RadioConfig
	Store    StoreConfig
	Usage    UsageConfig
	HTTP     HTTPConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found, skipping: %v", err)
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
