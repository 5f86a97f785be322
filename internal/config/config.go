// Package config handles loading and validating the saathi configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the saathi daemon.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Transports  TransportsConfig  `mapstructure:"transports"`
	Assistant   AssistantConfig   `mapstructure:"assistant"`
	Languages   LanguagesConfig   `mapstructure:"languages"`
	Speech      SpeechConfig      `mapstructure:"speech"`
	Interpreter InterpreterConfig `mapstructure:"interpreter"`
	Translation TranslationConfig `mapstructure:"translation"`
	Dispatch    DispatchConfig    `mapstructure:"dispatch"`
	TTS         TTSConfig         `mapstructure:"tts"`
	Network     NetworkConfig     `mapstructure:"network"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
	MQTT MQTTConfig `mapstructure:"mqtt"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the HTTP/WebSocket transport.
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// MQTTConfig configures the MQTT transport.
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"` // control, utterance and state topics live under it
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	QoS         byte   `mapstructure:"qos"`
}

// AssistantConfig tunes the dialogue state machine.
type AssistantConfig struct {
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	CriticalIntents     []string      `mapstructure:"critical_intents"`
	ErrorDelay          time.Duration `mapstructure:"error_delay"`
	SpeakingFloor       time.Duration `mapstructure:"speaking_floor"`
	SpeakingPerChar     time.Duration `mapstructure:"speaking_per_char"`
	ProcessingTimeout   time.Duration `mapstructure:"processing_timeout"`
	PendingTTL          time.Duration `mapstructure:"pending_ttl"`           // 0 keeps a pending action until confirm or cancel
	CancelWithoutAction string        `mapstructure:"cancel_without_action"` // "silent" or "speak"
	VoiceConfirmation   bool          `mapstructure:"voice_confirmation"`    // treat yes/no utterances as confirm/cancel
	ReplyInUserLanguage bool          `mapstructure:"reply_in_user_language"`
}

// LanguagesConfig lists the languages the assistant accepts.
type LanguagesConfig struct {
	Baseline            string            `mapstructure:"baseline"`
	Profiles            []LanguageProfile `mapstructure:"profiles"`
	MinRelativeDistance float64           `mapstructure:"min_relative_distance"`
}

// LanguageProfile describes one supported language.
type LanguageProfile struct {
	Code            string `mapstructure:"code"`             // ISO-639-1
	Name            string `mapstructure:"name"`             // display name
	Locale          string `mapstructure:"locale"`           // BCP-47 tag for speech output
	TranslationCode string `mapstructure:"translation_code"` // code understood by the translation service
}

// SpeechConfig configures capture sessions.
type SpeechConfig struct {
	Timeout time.Duration `mapstructure:"timeout"` // how long a session waits for input
}

// InterpreterConfig selects and configures the classifier/transcriber backend.
type InterpreterConfig struct {
	Backend string       `mapstructure:"backend"` // "keyword", "openai" or "local"
	Prompt  string       `mapstructure:"prompt"`  // extra context appended to LLM prompts
	OpenAI  OpenAIConfig `mapstructure:"openai"`
	Local   LocalConfig  `mapstructure:"local"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	APIKey             string `mapstructure:"api_key"`
	BaseURL            string `mapstructure:"base_url"`
	TranscriptionModel string `mapstructure:"transcription_model"`
	CompletionModel    string `mapstructure:"completion_model"`
}

// LocalConfig holds self-hosted model settings.
type LocalConfig struct {
	WhisperEndpoint string `mapstructure:"whisper_endpoint"`
	WhisperType     string `mapstructure:"whisper_type"` // "openai" (default) or "asr" (ahmetoner/whisper-asr-webservice)
	LLMEndpoint     string `mapstructure:"llm_endpoint"`
	LLMModel        string `mapstructure:"llm_model"` // Ollama model name (e.g., "llama3.2:1b")
	VADFilter       bool   `mapstructure:"vad_filter"`
	Language        string `mapstructure:"language"` // ISO-639-1 default language (e.g., "en", "hi")
}

// TranslationConfig configures the translation service client.
type TranslationConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Endpoint string        `mapstructure:"endpoint"` // LibreTranslate-compatible base URL
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Cache    CacheConfig   `mapstructure:"cache"`
	Breaker  BreakerConfig `mapstructure:"breaker"`
}

// CacheConfig selects where translations are cached.
type CacheConfig struct {
	Backend string        `mapstructure:"backend"` // "memory", "redis" or "none"
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BreakerConfig tunes a circuit breaker guarding a remote dependency.
type BreakerConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

// DispatchConfig configures where actions are executed.
type DispatchConfig struct {
	Endpoint string        `mapstructure:"endpoint"` // empty selects the in-process loopback dispatcher
	Token    string        `mapstructure:"token"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Breaker  BreakerConfig `mapstructure:"breaker"`
}

// TTSConfig selects and configures the text-to-speech backend.
type TTSConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Backend string      `mapstructure:"backend"` // "piper"
	Piper   PiperConfig `mapstructure:"piper"`
}

// PiperConfig holds Piper TTS settings (Wyoming protocol).
//
// For a single Piper instance that serves all languages, set Endpoint.
// For per-language instances, set Endpoints which maps ISO-639-1 codes to
// individual Wyoming TCP endpoints. Endpoints takes precedence.
type PiperConfig struct {
	Endpoint  string            `mapstructure:"endpoint"`  // Default Wyoming TCP endpoint (host:port)
	Endpoints map[string]string `mapstructure:"endpoints"` // ISO-639-1 language code -> Wyoming TCP endpoint
	Voices    map[string]string `mapstructure:"voices"`    // ISO-639-1 language code -> Piper voice model name
}

// NetworkConfig holds outbound network settings.
type NetworkConfig struct {
	SocksProxy string `mapstructure:"socks_proxy"` // host:port; empty dials directly
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text, pretty
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./saathi.yaml, ./configs/saathi.yaml, /etc/saathi/saathi.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("saathi")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/saathi")
	}

	// Environment variables: SAATHI_SERVER_HEALTH_PORT, SAATHI_INTERPRETER_BACKEND, etc.
	v.SetEnvPrefix("SAATHI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${OPENAI_API_KEY}").
	cfg.Interpreter.OpenAI.APIKey = resolveEnvRef(cfg.Interpreter.OpenAI.APIKey)
	cfg.Translation.APIKey = resolveEnvRef(cfg.Translation.APIKey)
	cfg.Translation.Cache.Redis.Password = resolveEnvRef(cfg.Translation.Cache.Redis.Password)
	cfg.Dispatch.Token = resolveEnvRef(cfg.Dispatch.Token)
	cfg.Transports.MQTT.Password = resolveEnvRef(cfg.Transports.MQTT.Password)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("transports.grpc.enabled", false)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("transports.mqtt.enabled", false)
	v.SetDefault("transports.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("transports.mqtt.client_id", "saathi")
	v.SetDefault("transports.mqtt.topic_prefix", "saathi")
	v.SetDefault("transports.mqtt.qos", 1)

	v.SetDefault("assistant.confidence_threshold", 0.6)
	v.SetDefault("assistant.error_delay", "3s")
	v.SetDefault("assistant.speaking_floor", "2s")
	v.SetDefault("assistant.speaking_per_char", "50ms")
	v.SetDefault("assistant.processing_timeout", "20s")
	v.SetDefault("assistant.pending_ttl", "2m")
	v.SetDefault("assistant.cancel_without_action", "silent")
	v.SetDefault("assistant.voice_confirmation", true)
	v.SetDefault("assistant.reply_in_user_language", true)

	v.SetDefault("languages.baseline", "en")
	v.SetDefault("languages.min_relative_distance", 0.1)

	v.SetDefault("speech.timeout", "8s")

	v.SetDefault("interpreter.backend", "keyword")
	v.SetDefault("interpreter.openai.transcription_model", "whisper-1")
	v.SetDefault("interpreter.openai.completion_model", "gpt-4o-mini")
	v.SetDefault("interpreter.local.whisper_endpoint", "http://localhost:8000/v1/audio/transcriptions")
	v.SetDefault("interpreter.local.whisper_type", "openai")
	v.SetDefault("interpreter.local.llm_endpoint", "http://localhost:11434/api/generate")
	v.SetDefault("interpreter.local.llm_model", "llama3")
	v.SetDefault("interpreter.local.vad_filter", false)
	v.SetDefault("interpreter.local.language", "")

	v.SetDefault("translation.enabled", false)
	v.SetDefault("translation.endpoint", "http://localhost:5000")
	v.SetDefault("translation.timeout", "10s")
	v.SetDefault("translation.cache.backend", "memory")
	v.SetDefault("translation.cache.ttl", "24h")
	v.SetDefault("translation.cache.redis.addr", "localhost:6379")
	v.SetDefault("translation.breaker.max_requests", 3)
	v.SetDefault("translation.breaker.interval", "1m")
	v.SetDefault("translation.breaker.timeout", "30s")
	v.SetDefault("translation.breaker.min_requests", 3)
	v.SetDefault("translation.breaker.failure_ratio", 0.6)

	v.SetDefault("dispatch.endpoint", "")
	v.SetDefault("dispatch.timeout", "10s")
	v.SetDefault("dispatch.breaker.max_requests", 3)
	v.SetDefault("dispatch.breaker.interval", "1m")
	v.SetDefault("dispatch.breaker.timeout", "30s")
	v.SetDefault("dispatch.breaker.min_requests", 3)
	v.SetDefault("dispatch.breaker.failure_ratio", 0.6)

	v.SetDefault("tts.enabled", false)
	v.SetDefault("tts.backend", "piper")
	v.SetDefault("tts.piper.endpoint", "localhost:10200")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate rejects settings the daemon cannot run with.
func (c *Config) Validate() error {
	a := c.Assistant
	if a.ConfidenceThreshold < 0 || a.ConfidenceThreshold > 1 {
		return fmt.Errorf("assistant.confidence_threshold must be in [0,1], got %v", a.ConfidenceThreshold)
	}
	for _, d := range []struct {
		key string
		val time.Duration
	}{
		{"assistant.error_delay", a.ErrorDelay},
		{"assistant.speaking_floor", a.SpeakingFloor},
		{"assistant.processing_timeout", a.ProcessingTimeout},
		{"speech.timeout", c.Speech.Timeout},
	} {
		if d.val <= 0 {
			return fmt.Errorf("%s must be positive, got %v", d.key, d.val)
		}
	}
	if a.SpeakingPerChar < 0 {
		return fmt.Errorf("assistant.speaking_per_char must not be negative, got %v", a.SpeakingPerChar)
	}
	if a.PendingTTL < 0 {
		return fmt.Errorf("assistant.pending_ttl must not be negative, got %v", a.PendingTTL)
	}
	switch a.CancelWithoutAction {
	case "silent", "speak":
	default:
		return fmt.Errorf("assistant.cancel_without_action must be silent or speak, got %q", a.CancelWithoutAction)
	}
	switch c.Interpreter.Backend {
	case "keyword", "openai", "local":
	default:
		return fmt.Errorf("unknown interpreter backend %q", c.Interpreter.Backend)
	}
	switch c.Translation.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unknown translation cache backend %q", c.Translation.Cache.Backend)
	}
	if c.Languages.Baseline == "" {
		return fmt.Errorf("languages.baseline must be set")
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}
