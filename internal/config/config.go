package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// MQTTConfig holds the optional MQTT notifier settings. An empty Broker disables it.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Config is loaded once at startup and never changes afterwards.
type Config struct {
	Targets             []string          `yaml:"targets"`
	Colors              map[string]string `yaml:"colors"`
	ConfidenceThreshold float64           `yaml:"confidence_threshold"`
	ThrottleInterval    float64           `yaml:"throttle_interval"` // seconds
	Source              string            `yaml:"source"`
	SourceName          string            `yaml:"source_name"`
	OutputDir           string            `yaml:"output_dir"`
	JPEGQuality         int               `yaml:"jpeg_quality"`
	ModelPath           string            `yaml:"model_path"`
	ConfigPath          string            `yaml:"config_path"`
	LabelsPath          string            `yaml:"labels_path"`
	DBPath              string            `yaml:"db_path"`
	LogDirectory        string            `yaml:"log_dir"`
	Debug               bool              `yaml:"debug"`
	HTTPAddr            string            `yaml:"http_addr"`
	MQTT                MQTTConfig        `yaml:"mqtt"`
}

// Default returns the configuration used when neither the file nor the environment
// set a value.
func Default() *Config {
	return &Config{
		Targets:             []string{"bird"},
		Colors:              map[string]string{},
		ConfidenceThreshold: 0.5,
		ThrottleInterval:    1.0,
		SourceName:          "birdcam",
		OutputDir:           filepath.Join(".", "evidence"),
		JPEGQuality:         90,
		ModelPath:           filepath.Join(".", "models", "frozen_inference_graph.pb"),
		ConfigPath:          filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt"),
		DBPath:              filepath.Join(".", "data", "evidence.db"),
		LogDirectory:        filepath.Join(".", "logs"),
		MQTT: MQTTConfig{
			Topic:    "birdcam/events",
			ClientID: "birdcam",
		},
	}
}

// Load builds the configuration from defaults, an optional .env file, the YAML file at
// path (skipped when path is empty or missing) and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "failed to parse config file %s", path)
			}
		case os.IsNotExist(err):
		default:
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if targets := getEnvAsList("BIRDCAM_TARGETS"); len(targets) > 0 {
		c.Targets = targets
	}
	c.ConfidenceThreshold = getEnvAsFloat("BIRDCAM_CONFIDENCE", c.ConfidenceThreshold)
	c.ThrottleInterval = getEnvAsFloat("BIRDCAM_THROTTLE", c.ThrottleInterval)
	c.Source = getEnv("BIRDCAM_SOURCE", c.Source)
	c.SourceName = getEnv("BIRDCAM_SOURCE_NAME", c.SourceName)
	c.OutputDir = getEnv("BIRDCAM_OUTPUT_DIR", c.OutputDir)
	c.JPEGQuality = getEnvAsInt("BIRDCAM_JPEG_QUALITY", c.JPEGQuality)
	c.ModelPath = getEnv("MODEL_PATH", c.ModelPath)
	c.ConfigPath = getEnv("CONFIG_PATH", c.ConfigPath)
	c.LabelsPath = getEnv("BIRDCAM_LABELS_PATH", c.LabelsPath)
	c.DBPath = getEnv("BIRDCAM_DB_PATH", c.DBPath)
	c.LogDirectory = getEnv("BIRDCAM_LOG_DIR", c.LogDirectory)
	c.HTTPAddr = getEnv("BIRDCAM_HTTP_ADDR", c.HTTPAddr)
	c.MQTT.Broker = getEnv("BIRDCAM_MQTT_BROKER", c.MQTT.Broker)
	c.MQTT.Topic = getEnv("BIRDCAM_MQTT_TOPIC", c.MQTT.Topic)
	c.MQTT.Username = getEnv("BIRDCAM_MQTT_USERNAME", c.MQTT.Username)
	c.MQTT.Password = getEnv("BIRDCAM_MQTT_PASSWORD", c.MQTT.Password)
	if v := os.Getenv("BIRDCAM_DEBUG"); v != "" {
		c.Debug, _ = strconv.ParseBool(v)
	}
}

// Validate checks the invariants the ingestion loop relies on.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return errors.New("at least one target class is required")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold >= 1 {
		return errors.Errorf("confidence_threshold must be in [0,1), got %v", c.ConfidenceThreshold)
	}
	if c.ThrottleInterval <= 0 {
		return errors.Errorf("throttle_interval must be positive, got %v", c.ThrottleInterval)
	}
	if strings.TrimSpace(c.Source) == "" {
		return errors.New("source is required")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return errors.New("output_dir is required")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return errors.Errorf("jpeg_quality must be in [1,100], got %d", c.JPEGQuality)
	}
	return nil
}

// Throttle returns the throttle interval as a duration.
func (c *Config) Throttle() time.Duration {
	return time.Duration(c.ThrottleInterval * float64(time.Second))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
