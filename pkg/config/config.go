// Package config loads the engine's configuration, the way the teacher's
// Config loaded ZenLive's: a nested struct with yaml tags, a DefaultConfig,
// and environment-variable overrides on top of a YAML file (gopkg.in/yaml.v3).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for a liveorigin server.
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	Origin  OriginConfig  `json:"origin" yaml:"origin"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// ServerConfig holds HTTP delivery configuration.
type ServerConfig struct {
	Address        string        `json:"address" yaml:"address"`
	ReadTimeout    time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout" yaml:"write_timeout"`
	EnableCORS     bool          `json:"enable_cors" yaml:"enable_cors"`
	AllowedOrigins []string      `json:"allowed_origins" yaml:"allowed_origins"`
}

// OriginConfig holds segmentation, playlist, and key-rotation defaults
// applied to every stream the origin serves, absent a per-stream override.
type OriginConfig struct {
	TargetDuration     float64           `json:"target_duration" yaml:"target_duration"`
	MaxDuration        float64           `json:"max_duration" yaml:"max_duration"`
	KeyframeAligned    bool              `json:"keyframe_aligned" yaml:"keyframe_aligned"`
	PlaylistKind       string            `json:"playlist_kind" yaml:"playlist_kind"` // sliding | dvr | event
	SlidingWindowSize  int               `json:"sliding_window_size" yaml:"sliding_window_size"`
	DVRWindowDuration  time.Duration     `json:"dvr_window_duration" yaml:"dvr_window_duration"`
	PartTargetDuration float64           `json:"part_target_duration" yaml:"part_target_duration"`
	KeyRotation        KeyRotationConfig `json:"key_rotation" yaml:"key_rotation"`
}

// KeyRotationConfig configures the LiveKeyManager for an origin.
type KeyRotationConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Policy  string `json:"policy" yaml:"policy"` // none | every_segment | every_n_segments | manual
	N       uint64 `json:"n" yaml:"n"`
}

// StorageConfig holds DVR-archival storage configuration.
type StorageConfig struct {
	Type string   `json:"type" yaml:"type"` // none | s3
	S3   S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3-compatible archival storage configuration.
type S3Config struct {
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	Region          string `json:"region" yaml:"region"`
	Bucket          string `json:"bucket" yaml:"bucket"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	KeyPrefix       string `json:"key_prefix" yaml:"key_prefix"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:        ":8088",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			EnableCORS:     true,
			AllowedOrigins: []string{"*"},
		},
		Origin: OriginConfig{
			TargetDuration:     6.0,
			MaxDuration:        9.0,
			KeyframeAligned:    true,
			PlaylistKind:       "sliding",
			SlidingWindowSize:  5,
			DVRWindowDuration:  2 * time.Hour,
			PartTargetDuration: 0,
			KeyRotation: KeyRotationConfig{
				Enabled: false,
				Policy:  "none",
			},
		},
		Storage: StorageConfig{
			Type: "none",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file, starting from DefaultConfig
// and overlaying both the file and environment variables.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("liveorigin/config: failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("liveorigin/config: failed to parse config file: %w", err)
	}

	cfg.loadFromEnv()
	return cfg, nil
}

// loadFromEnv overrides config from environment variables.
func (c *Config) loadFromEnv() {
	if addr := os.Getenv("LIVEORIGIN_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if bucket := os.Getenv("LIVEORIGIN_S3_BUCKET"); bucket != "" {
		c.Storage.S3.Bucket = bucket
	}
	if key := os.Getenv("LIVEORIGIN_S3_ACCESS_KEY_ID"); key != "" {
		c.Storage.S3.AccessKeyID = key
	}
	if secret := os.Getenv("LIVEORIGIN_S3_SECRET_ACCESS_KEY"); secret != "" {
		c.Storage.S3.SecretAccessKey = secret
	}
}
