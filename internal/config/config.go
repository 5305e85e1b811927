package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Camera      CameraConfig      `yaml:"camera"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Recording   RecordingConfig   `yaml:"recording"`
	Media       MediaConfig       `yaml:"media"`
	Database    DatabaseConfig    `yaml:"database"`
	NATS        NATSConfig        `yaml:"nats"`
	MinIO       MinIOConfig       `yaml:"minio"`
	Server      ServerConfig      `yaml:"server"`
	Heartbeat   HeartbeatConfig   `yaml:"heartbeat"`
	Announcer   AnnouncerConfig   `yaml:"announcer"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type CameraConfig struct {
	ID string `yaml:"id"`
	// Sources are tried in order before the local device.
	Sources []string `yaml:"sources"`
	// DeviceIndex is the local camera fallback; -1 disables it.
	DeviceIndex       int           `yaml:"device_index"`
	Width             int           `yaml:"width"`
	Height            int           `yaml:"height"`
	FPS               float64       `yaml:"fps"`
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	ReconnectBackoff  time.Duration `yaml:"reconnect_backoff"`
}

type RecognitionConfig struct {
	ModelsDir          string        `yaml:"models_dir"`
	ONNXLibrary        string        `yaml:"onnx_library"`
	DetectionThreshold float64       `yaml:"detection_threshold"`
	Tolerance          float64       `yaml:"tolerance"`
	Cooldown           time.Duration `yaml:"cooldown"`
	ProcessEvery       int           `yaml:"process_every"`
	MinFaceSize        int           `yaml:"min_face_size"`
}

type RecordingConfig struct {
	ArmFrames   int           `yaml:"arm_frames"`
	Grace       time.Duration `yaml:"grace"`
	MaxDuration time.Duration `yaml:"max_duration"`
	MinDuration time.Duration `yaml:"min_duration"`
	Codec       string        `yaml:"codec"`
	Transcode   bool          `yaml:"transcode"`
}

type MediaConfig struct {
	Root           string `yaml:"root"`
	ImagesDir      string `yaml:"images_dir"`
	VideosDir      string `yaml:"videos_dir"`
	KnownDir       string `yaml:"known_dir"`
	LiveDir        string `yaml:"live_dir"`
	LiveEvery      int    `yaml:"live_every"`
	JPEGQuality    int    `yaml:"jpeg_quality"`
	CleanupOrphans bool   `yaml:"cleanup_orphans"`
}

// ImagesPath returns the snapshot directory resolved against Root.
func (m MediaConfig) ImagesPath() string { return m.resolve(m.ImagesDir) }

// VideosPath returns the recording directory resolved against Root.
func (m MediaConfig) VideosPath() string { return m.resolve(m.VideosDir) }

func (m MediaConfig) KnownPath() string { return m.resolve(m.KnownDir) }

func (m MediaConfig) LivePath() string { return m.resolve(m.LiveDir) }

func (m MediaConfig) resolve(dir string) string {
	if filepath.IsAbs(dir) || m.Root == "" {
		return dir
	}
	return filepath.Join(m.Root, dir)
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
	// URL overrides the individual fields when set.
	URL string `yaml:"url"`
}

func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// NATSConfig is optional; an empty URL disables notices.
type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	APIKey      string `yaml:"api_key"`
	MetricsPort int    `yaml:"metrics_port"`
	PerPage     int    `yaml:"per_page"`
	MaxPerPage  int    `yaml:"max_per_page"`
}

type HeartbeatConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

type AnnouncerConfig struct {
	Greeting string `yaml:"greeting"`
	// Command, when set, is run with the greeting as its last argument (e.g. "espeak").
	Command string `yaml:"command"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{Camera: CameraConfig{DeviceIndex: -2}}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with every default applied and no file.
func Default() *Config {
	cfg := &Config{Camera: CameraConfig{DeviceIndex: -2}}
	setDefaults(cfg)
	return cfg
}

// Validate rejects values the recognition loop cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.Recognition.Tolerance <= 0 || c.Recognition.Tolerance > 2 {
		errs = append(errs, fmt.Errorf("recognition.tolerance must be in (0, 2], got %v", c.Recognition.Tolerance))
	}
	if c.Recognition.ProcessEvery < 1 {
		errs = append(errs, fmt.Errorf("recognition.process_every must be >= 1"))
	}
	if c.Recording.ArmFrames < 1 {
		errs = append(errs, fmt.Errorf("recording.arm_frames must be >= 1"))
	}
	if c.Recording.Grace <= 0 {
		errs = append(errs, fmt.Errorf("recording.grace must be positive"))
	}
	if c.Recording.MinDuration > c.Recording.MaxDuration {
		errs = append(errs, fmt.Errorf("recording.min_duration %s exceeds max_duration %s",
			c.Recording.MinDuration, c.Recording.MaxDuration))
	}
	if c.Media.JPEGQuality < 1 || c.Media.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("media.jpeg_quality must be in [1, 100]"))
	}
	if c.Heartbeat.StaleAfter < c.Heartbeat.Interval {
		errs = append(errs, fmt.Errorf("heartbeat.stale_after must not be shorter than heartbeat.interval"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Camera.ID == "" {
		cfg.Camera.ID = "phone_camera"
	}
	// -2 marks "not set in the file"; 0 is a valid device index.
	if cfg.Camera.DeviceIndex == -2 {
		cfg.Camera.DeviceIndex = 0
	}
	if cfg.Camera.Width == 0 {
		cfg.Camera.Width = 1280
	}
	if cfg.Camera.Height == 0 {
		cfg.Camera.Height = 720
	}
	if cfg.Camera.FPS == 0 {
		cfg.Camera.FPS = 30
	}
	if cfg.Camera.ReconnectAttempts == 0 {
		cfg.Camera.ReconnectAttempts = 5
	}
	if cfg.Camera.ReconnectBackoff == 0 {
		cfg.Camera.ReconnectBackoff = 2 * time.Second
	}
	if cfg.Recognition.ModelsDir == "" {
		cfg.Recognition.ModelsDir = "models"
	}
	if cfg.Recognition.DetectionThreshold == 0 {
		cfg.Recognition.DetectionThreshold = 0.5
	}
	if cfg.Recognition.Tolerance == 0 {
		cfg.Recognition.Tolerance = 0.6
	}
	if cfg.Recognition.Cooldown == 0 {
		cfg.Recognition.Cooldown = 10 * time.Second
	}
	if cfg.Recognition.ProcessEvery == 0 {
		cfg.Recognition.ProcessEvery = 3
	}
	if cfg.Recognition.MinFaceSize == 0 {
		cfg.Recognition.MinFaceSize = 40
	}
	if cfg.Recording.ArmFrames == 0 {
		cfg.Recording.ArmFrames = 3
	}
	if cfg.Recording.Grace == 0 {
		cfg.Recording.Grace = 2 * time.Second
	}
	if cfg.Recording.MaxDuration == 0 {
		cfg.Recording.MaxDuration = 30 * time.Second
	}
	if cfg.Recording.MinDuration == 0 {
		cfg.Recording.MinDuration = 2 * time.Second
	}
	if cfg.Recording.Codec == "" {
		cfg.Recording.Codec = "mp4v"
	}
	if cfg.Media.Root == "" {
		cfg.Media.Root = "data"
	}
	if cfg.Media.ImagesDir == "" {
		cfg.Media.ImagesDir = "unknown/images"
	}
	if cfg.Media.VideosDir == "" {
		cfg.Media.VideosDir = "unknown/videos"
	}
	if cfg.Media.KnownDir == "" {
		cfg.Media.KnownDir = "known"
	}
	if cfg.Media.LiveDir == "" {
		cfg.Media.LiveDir = "live_stream"
	}
	if cfg.Media.LiveEvery == 0 {
		cfg.Media.LiveEvery = 3
	}
	if cfg.Media.JPEGQuality == 0 {
		cfg.Media.JPEGQuality = 85
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "homewatch"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "homewatch"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9102
	}
	if cfg.Server.PerPage == 0 {
		cfg.Server.PerPage = 20
	}
	if cfg.Server.MaxPerPage == 0 {
		cfg.Server.MaxPerPage = 100
	}
	if cfg.Heartbeat.Interval == 0 {
		cfg.Heartbeat.Interval = 5 * time.Second
	}
	if cfg.Heartbeat.StaleAfter == 0 {
		cfg.Heartbeat.StaleAfter = 3 * cfg.Heartbeat.Interval
	}
	if cfg.Announcer.Greeting == "" {
		cfg.Announcer.Greeting = "Welcome home, %s!"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HW_CAMERA_ID"); v != "" {
		cfg.Camera.ID = v
	}
	if v := os.Getenv("HW_CAMERA_SOURCES"); v != "" {
		cfg.Camera.Sources = splitList(v)
	}
	if v := os.Getenv("HW_CAMERA_DEVICE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Camera.DeviceIndex = n
		}
	}
	if v := os.Getenv("HW_MODELS_DIR"); v != "" {
		cfg.Recognition.ModelsDir = v
	}
	if v := os.Getenv("HW_ONNX_LIBRARY"); v != "" {
		cfg.Recognition.ONNXLibrary = v
	}
	if v := os.Getenv("HW_TOLERANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Recognition.Tolerance = f
		}
	}
	if v := os.Getenv("HW_COOLDOWN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Recognition.Cooldown = d
		}
	}
	if v := os.Getenv("HW_MEDIA_ROOT"); v != "" {
		cfg.Media.Root = v
	}
	if v := os.Getenv("HW_DB_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("HW_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("HW_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("HW_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("HW_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("HW_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("HW_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("HW_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
		cfg.MinIO.Enabled = true
	}
	if v := os.Getenv("HW_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("HW_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("HW_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("HW_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("HW_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("HW_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
