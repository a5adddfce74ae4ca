package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret    string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer    string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience  string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL       time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`
	CookieName   string        `mapstructure:"cookie_name" yaml:"cookie_name"`
	CookieSecure bool          `mapstructure:"cookie_secure" yaml:"cookie_secure"`

	// ClientURL is the browser origin allowed to call the API with credentials.
	ClientURL string `mapstructure:"client_url" yaml:"client_url"`

	// VerifyTimeout bounds credential verification during the live connection handshake.
	VerifyTimeout   time.Duration `mapstructure:"verify_timeout" yaml:"verify_timeout"`
	HandshakeRate   float64       `mapstructure:"handshake_rate" yaml:"handshake_rate"`
	HandshakeBurst  int           `mapstructure:"handshake_burst" yaml:"handshake_burst"`
	MaxMessageBytes int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	EventBuffer     int           `mapstructure:"event_buffer" yaml:"event_buffer"`

	S3Bucket          string `mapstructure:"s3_bucket" yaml:"s3_bucket"`
	S3Endpoint        string `mapstructure:"s3_endpoint" yaml:"s3_endpoint"`
	S3AccessKeyID     string `mapstructure:"s3_access_key_id" yaml:"s3_access_key_id"`
	S3SecretAccessKey string `mapstructure:"s3_secret_access_key" yaml:"s3_secret_access_key"`
	S3PublicBaseURL   string `mapstructure:"s3_public_base_url" yaml:"s3_public_base_url"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":3000",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabasePath:      "directchat.db",
		JWTSecret:         "change-me",
		JWTIssuer:         "directchat",
		JWTAudience:       "directchat",
		JWTTTL:            7 * 24 * time.Hour,
		CookieName:        "jwt",
		ClientURL:         "http://localhost:5173",
		VerifyTimeout:     5 * time.Second,
		HandshakeRate:     1,
		HandshakeBurst:    10,
		MaxMessageBytes:   10 << 20,
		EventBuffer:       32,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.VerifyTimeout != 0 {
		c.VerifyTimeout = other.VerifyTimeout
	}
	if other.ClientURL != "" {
		c.ClientURL = other.ClientURL
	}
}

// S3Enabled reports whether image uploads have somewhere to go.
func (c Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Endpoint != ""
}
