package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type CaptureConfig struct {
	MicDevice string `yaml:"mic_device"`
	// RequestTimeout bounds capture command round-trips on the bus.
	RequestTimeout int `yaml:"request_timeout_ms"`
}

type SpeechConfig struct {
	Language       string `yaml:"language"`
	RequestTimeout int    `yaml:"request_timeout_ms"`
}

type AIConfig struct {
	Mode        string  `yaml:"mode"` // mock, ollama, exec
	Endpoint    string  `yaml:"endpoint"`
	Command     string  `yaml:"command"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type SessionConfig struct {
	// SpeakerLabel is the label applied to microphone speech when no
	// profile name is stored in settings.
	SpeakerLabel string `yaml:"speaker_label"`
	OthersLabel  string `yaml:"others_label"`
	// AudioModePreference is the startup default; a persisted setting
	// overrides it. One of auto|mic_only.
	AudioModePreference string `yaml:"audio_mode_preference"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Store       StoreConfig     `yaml:"store"`
	Capture     CaptureConfig   `yaml:"capture"`
	Speech      SpeechConfig    `yaml:"speech"`
	AI          AIConfig        `yaml:"ai"`
	Session     SessionConfig   `yaml:"session"`
}

func Default() Config {
	return Config{
		RuntimeName: "verbatimd",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8090,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9092",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Store: StoreConfig{
			Path: "./data/verbatim.db",
		},
		Capture: CaptureConfig{
			RequestTimeout: 5000,
		},
		Speech: SpeechConfig{
			Language:       "",
			RequestTimeout: 5000,
		},
		AI: AIConfig{
			Mode:        "ollama",
			Endpoint:    "http://localhost:11434",
			Model:       "llama3.2:latest",
			MaxTokens:   4096,
			Temperature: 0.7,
		},
		Session: SessionConfig{
			SpeakerLabel:        "Me",
			OthersLabel:         "Others",
			AudioModePreference: "auto",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "VERBATIM_RUNTIME_NAME")
	overrideString(&cfg.Environment, "VERBATIM_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "VERBATIM_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "VERBATIM_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "VERBATIM_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "VERBATIM_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "VERBATIM_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "VERBATIM_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "VERBATIM_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "VERBATIM_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "VERBATIM_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "VERBATIM_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "VERBATIM_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "VERBATIM_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "VERBATIM_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "VERBATIM_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Store.Path, "VERBATIM_STORE_PATH")
	overrideString(&cfg.Capture.MicDevice, "VERBATIM_CAPTURE_MIC_DEVICE")
	overrideInt(&cfg.Capture.RequestTimeout, "VERBATIM_CAPTURE_REQUEST_TIMEOUT_MS")
	overrideString(&cfg.Speech.Language, "VERBATIM_SPEECH_LANGUAGE")
	overrideInt(&cfg.Speech.RequestTimeout, "VERBATIM_SPEECH_REQUEST_TIMEOUT_MS")
	overrideString(&cfg.AI.Mode, "VERBATIM_AI_MODE")
	overrideString(&cfg.AI.Endpoint, "VERBATIM_AI_ENDPOINT")
	overrideString(&cfg.AI.Command, "VERBATIM_AI_COMMAND")
	overrideString(&cfg.AI.Model, "VERBATIM_AI_MODEL")
	overrideInt(&cfg.AI.MaxTokens, "VERBATIM_AI_MAX_TOKENS")
	overrideFloat(&cfg.AI.Temperature, "VERBATIM_AI_TEMPERATURE")
	overrideString(&cfg.Session.SpeakerLabel, "VERBATIM_SESSION_SPEAKER_LABEL")
	overrideString(&cfg.Session.OthersLabel, "VERBATIM_SESSION_OTHERS_LABEL")
	overrideString(&cfg.Session.AudioModePreference, "VERBATIM_SESSION_AUDIO_MODE")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	if cfg.Capture.RequestTimeout <= 0 {
		return errors.New("capture.request_timeout_ms must be positive")
	}
	if cfg.Speech.RequestTimeout <= 0 {
		return errors.New("speech.request_timeout_ms must be positive")
	}
	switch cfg.AI.Mode {
	case "mock", "ollama", "exec":
	default:
		return errors.New("ai.mode must be one of mock|ollama|exec")
	}
	if cfg.AI.Mode == "ollama" && cfg.AI.Endpoint == "" {
		return errors.New("ai.endpoint must be set when mode=ollama")
	}
	if cfg.AI.Mode == "exec" && cfg.AI.Command == "" {
		return errors.New("ai.command must be set when mode=exec")
	}
	if cfg.AI.MaxTokens < 0 {
		return errors.New("ai.max_tokens must be >= 0")
	}
	if cfg.Session.SpeakerLabel == "" {
		return errors.New("session.speaker_label must not be empty")
	}
	if cfg.Session.OthersLabel == "" {
		return errors.New("session.others_label must not be empty")
	}
	switch cfg.Session.AudioModePreference {
	case "auto", "mic_only":
	default:
		return errors.New("session.audio_mode_preference must be one of auto|mic_only")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	return nil
}
