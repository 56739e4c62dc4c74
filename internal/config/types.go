package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Detection  DetectionConfig  `yaml:"detection" mapstructure:"detection"`
	Recognizer RecognizerConfig `yaml:"recognizer" mapstructure:"recognizer"`
	Filter     FilterConfig     `yaml:"filter" mapstructure:"filter"`
	Rules      RulesConfig      `yaml:"rules" mapstructure:"rules"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	WebSocket  WebSocketConfig  `yaml:"websocket" mapstructure:"websocket"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port           int           `yaml:"port" mapstructure:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MaxRequestSize int64         `yaml:"max_request_size" mapstructure:"max_request_size"`
	RateLimit      struct {
		Enabled bool    `yaml:"enabled" mapstructure:"enabled"`
		RPS     float64 `yaml:"rps" mapstructure:"rps"`
		Burst   int     `yaml:"burst" mapstructure:"burst"`
	} `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// DetectionConfig controls the regex-based detectors
type DetectionConfig struct {
	Enabled   bool     `yaml:"enabled" mapstructure:"enabled"`
	Detectors []string `yaml:"detectors" mapstructure:"detectors"`
}

// RecognizerConfig controls the ML entity recognizer
type RecognizerConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	ModelName     string        `yaml:"model_name" mapstructure:"model_name"`
	ModelURL      string        `yaml:"model_url" mapstructure:"model_url"`
	CacheDir      string        `yaml:"cache_dir" mapstructure:"cache_dir"`
	AutoDownload  bool          `yaml:"auto_download" mapstructure:"auto_download"`
	MaxLength     int           `yaml:"max_length" mapstructure:"max_length"`
	MaxChunkChars int           `yaml:"max_chunk_chars" mapstructure:"max_chunk_chars"`
	DetectTimeout time.Duration `yaml:"detect_timeout" mapstructure:"detect_timeout"`
	MinConfidence float64       `yaml:"min_confidence" mapstructure:"min_confidence"`
}

// FilterConfig controls the organization false-positive filter
type FilterConfig struct {
	ListsPath string `yaml:"lists_path" mapstructure:"lists_path"`
}

// RulesConfig controls custom rule storage
type RulesConfig struct {
	Backend         string        `yaml:"backend" mapstructure:"backend"` // memory or postgres
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// CacheConfig contains detection result cache configuration
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Addr     string        `yaml:"addr" mapstructure:"addr"`
	Password string        `yaml:"password" mapstructure:"password"`
	DB       int           `yaml:"db" mapstructure:"db"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
		Path     string `yaml:"path" mapstructure:"path"`
		MaxSize  int    `yaml:"max_size" mapstructure:"max_size"`
		MaxAge   int    `yaml:"max_age" mapstructure:"max_age"`
		Compress bool   `yaml:"compress" mapstructure:"compress"`
	} `yaml:"file" mapstructure:"file"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Path            string        `yaml:"path" mapstructure:"path"`
	MaxConnections  int           `yaml:"max_connections" mapstructure:"max_connections"`
	ReadBufferSize  int           `yaml:"read_buffer_size" mapstructure:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size" mapstructure:"write_buffer_size"`
	PingInterval    time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	PongTimeout     time.Duration `yaml:"pong_timeout" mapstructure:"pong_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxMessageSize  int64         `yaml:"max_message_size" mapstructure:"max_message_size"`
	AllowedOrigins  []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	Events          struct {
		BroadcastProgress    bool `yaml:"broadcast_progress" mapstructure:"broadcast_progress"`
		BroadcastDetections  bool `yaml:"broadcast_detections" mapstructure:"broadcast_detections"`
		BroadcastSystem      bool `yaml:"broadcast_system" mapstructure:"broadcast_system"`
		BroadcastConnections bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
	} `yaml:"events" mapstructure:"events"`
}

// ExportConfig contains annotation export configuration
type ExportConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   60 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxRequestSize: 10 << 20, // 10 MB documents
		},
		Detection: DetectionConfig{
			Enabled:   true,
			Detectors: []string{"all"},
		},
		Recognizer: RecognizerConfig{
			Enabled:       true,
			ModelName:     "bert-base-ner",
			CacheDir:      "models",
			AutoDownload:  false,
			MaxLength:     512,
			MaxChunkChars: 400,
			DetectTimeout: 30 * time.Second,
			MinConfidence: 0.7,
		},
		Rules: RulesConfig{
			Backend:         "memory",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Cache: CacheConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			TTL:     time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		WebSocket: WebSocketConfig{
			Enabled:         true,
			Path:            "/ws",
			MaxConnections:  100,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingInterval:    54 * time.Second,
			PongTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxMessageSize:  512,
			AllowedOrigins:  []string{"*"},
		},
		Export: ExportConfig{
			Enabled:   false,
			OutputDir: "exports",
		},
	}

	cfg.Server.RateLimit.Enabled = true
	cfg.Server.RateLimit.RPS = 10
	cfg.Server.RateLimit.Burst = 20

	cfg.Logging.File.Path = "logs/docveil.log"
	cfg.Logging.File.MaxSize = 100 // MB
	cfg.Logging.File.MaxAge = 30   // days
	cfg.Logging.File.Compress = true

	cfg.WebSocket.Events.BroadcastProgress = true
	cfg.WebSocket.Events.BroadcastDetections = true
	cfg.WebSocket.Events.BroadcastSystem = true
	cfg.WebSocket.Events.BroadcastConnections = true

	return cfg
}
