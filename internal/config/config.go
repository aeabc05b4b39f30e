// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Source kinds.
const (
	SourceCamera    = "camera"
	SourceSimulated = "simulated"
	SourceReplay    = "replay"
)

// Config is the complete runtime configuration.
type Config struct {
	Addr     string `validate:"required"`
	DataDir  string `validate:"required"`
	WebDir   string
	LogLevel string `validate:"oneof=trace debug info warn warning error"`
	LogDir   string

	Source       string        `validate:"oneof=camera simulated replay"`
	CameraID     int           `validate:"gte=0"`
	ReplayPath   string        `validate:"required_if=Source replay"`
	DropRate     float64       `validate:"gte=0,lte=1"`
	TickInterval time.Duration `validate:"gte=10ms"`
	AutoStart    bool

	HolisticScript string
	HolisticPython string

	Classifier       string `validate:"oneof=demo onnx process http"`
	ModelPath        string `validate:"required_if=Classifier onnx"`
	ONNXLibrary      string
	ModelInput       string
	ModelOutput      string
	ModelClasses     int           `validate:"gte=0"`
	ModelCommand     []string      `validate:"required_if=Classifier process"`
	ModelURL         string        `validate:"required_if=Classifier http"`
	InferenceTimeout time.Duration `validate:"gte=0"`
	HealthInterval   time.Duration `validate:"gte=0"`
	MaxInferenceRate float64       `validate:"gte=0"`
	Seed             uint64
	LabelsPath       string

	Tray bool

	RedisAddress  string
	RedisPassword string
	RedisDB       int `validate:"gte=0"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	dataDir := ".signify"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".signify")
	}

	return &Config{
		Addr:             ":8080",
		DataDir:          dataDir,
		LogLevel:         "info",
		Source:           SourceCamera,
		TickInterval:     100 * time.Millisecond,
		Classifier:       "demo",
		InferenceTimeout: 5 * time.Second,
		HealthInterval:   10 * time.Second,
	}
}

// DBPath is the SQLite database location inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "signify.db")
}

// Load reads envFile when it exists, then builds the configuration from
// the process environment and validates it. An empty envFile means ".env".
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds and validates a configuration from lookup.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	c := Default()
	e := &envReader{lookup: lookup}

	e.str("SIGNIFY_ADDR", &c.Addr)
	e.str("SIGNIFY_DATA_DIR", &c.DataDir)
	e.str("SIGNIFY_WEB_DIR", &c.WebDir)
	e.str("SIGNIFY_LOG_LEVEL", &c.LogLevel)
	e.str("SIGNIFY_LOG_DIR", &c.LogDir)

	e.str("SIGNIFY_SOURCE", &c.Source)
	e.integer("SIGNIFY_CAMERA_ID", &c.CameraID)
	e.str("SIGNIFY_REPLAY_PATH", &c.ReplayPath)
	e.float("SIGNIFY_DROP_RATE", &c.DropRate)
	e.duration("SIGNIFY_TICK_INTERVAL", &c.TickInterval)
	e.boolean("SIGNIFY_AUTOSTART", &c.AutoStart)

	e.str("SIGNIFY_HOLISTIC_SCRIPT", &c.HolisticScript)
	e.str("SIGNIFY_HOLISTIC_PYTHON", &c.HolisticPython)

	e.str("SIGNIFY_CLASSIFIER", &c.Classifier)
	e.str("SIGNIFY_MODEL_PATH", &c.ModelPath)
	e.str("SIGNIFY_ONNX_LIBRARY", &c.ONNXLibrary)
	e.str("SIGNIFY_MODEL_INPUT", &c.ModelInput)
	e.str("SIGNIFY_MODEL_OUTPUT", &c.ModelOutput)
	e.integer("SIGNIFY_MODEL_CLASSES", &c.ModelClasses)
	e.fields("SIGNIFY_MODEL_COMMAND", &c.ModelCommand)
	e.str("SIGNIFY_MODEL_URL", &c.ModelURL)
	e.duration("SIGNIFY_INFERENCE_TIMEOUT", &c.InferenceTimeout)
	e.duration("SIGNIFY_HEALTH_INTERVAL", &c.HealthInterval)
	e.float("SIGNIFY_MAX_INFERENCE_RATE", &c.MaxInferenceRate)
	e.unsigned("SIGNIFY_SEED", &c.Seed)
	e.str("SIGNIFY_LABELS_PATH", &c.LabelsPath)

	e.boolean("SIGNIFY_TRAY", &c.Tray)

	e.str("REDIS_ADDRESS", &c.RedisAddress)
	e.str("REDIS_PASSWORD", &c.RedisPassword)
	e.integer("REDIS_DB", &c.RedisDB)

	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}

	c.Source = strings.ToLower(c.Source)
	c.Classifier = strings.ToLower(c.Classifier)
	c.LogLevel = strings.ToLower(c.LogLevel)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// envReader collects parse errors so every bad variable is reported at once.
type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) fail(key, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", key, value, err))
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) fields(key string, dst *[]string) {
	if v, ok := e.get(key); ok {
		*dst = strings.Fields(v)
	}
}

func (e *envReader) integer(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) unsigned(key string, dst *uint64) {
	if v, ok := e.get(key); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) float(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) boolean(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = d
	}
}
