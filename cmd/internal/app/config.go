package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// HistoryCapacity bounds the per-user recency lists (seen message ids,
	// active conversation ids).
	HistoryCapacity int

	// NATSURL enables the NATS-backed bus; empty means the in-process hub.
	NATSURL string

	// Web-push (VAPID). Push dispatch is disabled when keys are unset.
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string
	PushSendTimeout time.Duration
	PushParallelism int

	// WebSocket gateway policy.
	WSOriginRequired bool
	WSAllowedOrigins []string
	WSSendQueueSize  int
	WSWriteTimeout   time.Duration
	WSReadIdle       time.Duration
	WSRateEvents     int
	WSRateWindow     time.Duration
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("RELAY_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("RELAY_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("RELAY_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("RELAY_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("RELAY_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("RELAY_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("RELAY_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("RELAY_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("RELAY_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("RELAY_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("RELAY_READINESS_REQUIRE_DB", false),

		HistoryCapacity: EnvInt("RELAY_HISTORY_CAPACITY", 10),

		NATSURL: EnvString("RELAY_NATS_URL", ""),

		VAPIDPublicKey:  EnvString("RELAY_VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: EnvString("RELAY_VAPID_PRIVATE_KEY", ""),
		VAPIDSubject:    EnvString("RELAY_VAPID_SUBJECT", ""),
		PushSendTimeout: EnvDuration("RELAY_PUSH_SEND_TIMEOUT", 5*time.Second),
		PushParallelism: EnvInt("RELAY_PUSH_PARALLELISM", 8),

		WSOriginRequired: EnvBool("RELAY_WS_ORIGIN_REQUIRED", true),
		WSAllowedOrigins: EnvCSV("RELAY_WS_ALLOWED_ORIGINS", "http://localhost,http://127.0.0.1"),
		WSSendQueueSize:  EnvInt("RELAY_WS_SEND_QUEUE", 256),
		WSWriteTimeout:   EnvDuration("RELAY_WS_WRITE_TIMEOUT", 5*time.Second),
		WSReadIdle:       EnvDuration("RELAY_WS_READ_IDLE_TIMEOUT", 2*time.Minute),
		WSRateEvents:     EnvInt("RELAY_WS_RATE_EVENTS", 120),
		WSRateWindow:     EnvDuration("RELAY_WS_RATE_WINDOW", 10*time.Second),
	}
}
