package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saathi.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Assistant.ConfidenceThreshold != 0.6 {
		t.Errorf("threshold = %v", cfg.Assistant.ConfidenceThreshold)
	}
	if cfg.Assistant.ErrorDelay != 3*time.Second {
		t.Errorf("error delay = %v", cfg.Assistant.ErrorDelay)
	}
	if cfg.Assistant.PendingTTL != 2*time.Minute {
		t.Errorf("pending ttl = %v", cfg.Assistant.PendingTTL)
	}
	if cfg.Assistant.SpeakingPerChar != 50*time.Millisecond || cfg.Assistant.SpeakingFloor != 2*time.Second {
		t.Errorf("speaking timing = %v / %v", cfg.Assistant.SpeakingPerChar, cfg.Assistant.SpeakingFloor)
	}
	if cfg.Assistant.CancelWithoutAction != "silent" {
		t.Errorf("cancel policy = %q", cfg.Assistant.CancelWithoutAction)
	}
	if cfg.Interpreter.Backend != "keyword" {
		t.Errorf("backend = %q", cfg.Interpreter.Backend)
	}
	if cfg.Languages.Baseline != "en" {
		t.Errorf("baseline = %q", cfg.Languages.Baseline)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
	if cfg.Transports.MQTT.QoS != 1 {
		t.Errorf("qos = %d", cfg.Transports.MQTT.QoS)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saathi.yaml")
	yaml := `
assistant:
  confidence_threshold: 0.75
  critical_intents: [CALL_CONTACT, SEND_MESSAGE]
  cancel_without_action: speak
languages:
  baseline: en
  profiles:
    - code: hi
      name: Hindi
      locale: hi-IN
      translation_code: hi
dispatch:
  token: ${SAATHI_TEST_TOKEN}
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SAATHI_TEST_TOKEN", "s3cret")
	t.Setenv("SAATHI_INTERPRETER_BACKEND", "local")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Assistant.ConfidenceThreshold != 0.75 {
		t.Errorf("threshold = %v", cfg.Assistant.ConfidenceThreshold)
	}
	if strings.Join(cfg.Assistant.CriticalIntents, ",") != "CALL_CONTACT,SEND_MESSAGE" {
		t.Errorf("critical = %v", cfg.Assistant.CriticalIntents)
	}
	if len(cfg.Languages.Profiles) != 1 || cfg.Languages.Profiles[0].Locale != "hi-IN" {
		t.Errorf("profiles = %+v", cfg.Languages.Profiles)
	}
	if cfg.Dispatch.Token != "s3cret" {
		t.Errorf("token = %q", cfg.Dispatch.Token)
	}
	if cfg.Interpreter.Backend != "local" {
		t.Errorf("backend = %q", cfg.Interpreter.Backend)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Assistant: AssistantConfig{
				ConfidenceThreshold: 0.6,
				CancelWithoutAction: "silent",
				ErrorDelay:          3 * time.Second,
				SpeakingFloor:       2 * time.Second,
				SpeakingPerChar:     50 * time.Millisecond,
				ProcessingTimeout:   20 * time.Second,
			},
			Speech:      SpeechConfig{Timeout: 8 * time.Second},
			Interpreter: InterpreterConfig{Backend: "keyword"},
			Translation: TranslationConfig{Cache: CacheConfig{Backend: "memory"}},
			Languages:   LanguagesConfig{Baseline: "en"},
		}
	}
	ok := base()
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := map[string]func(*Config){
		"threshold":          func(c *Config) { c.Assistant.ConfidenceThreshold = 1.5 },
		"cancel policy":      func(c *Config) { c.Assistant.CancelWithoutAction = "loud" },
		"backend":            func(c *Config) { c.Interpreter.Backend = "magic" },
		"cache":              func(c *Config) { c.Translation.Cache.Backend = "disk" },
		"baseline":           func(c *Config) { c.Languages.Baseline = "" },
		"error delay":        func(c *Config) { c.Assistant.ErrorDelay = 0 },
		"speaking floor":     func(c *Config) { c.Assistant.SpeakingFloor = 0 },
		"speaking per char":  func(c *Config) { c.Assistant.SpeakingPerChar = -time.Millisecond },
		"processing timeout": func(c *Config) { c.Assistant.ProcessingTimeout = 0 },
		"pending ttl":        func(c *Config) { c.Assistant.PendingTTL = -time.Second },
		"speech timeout":     func(c *Config) { c.Speech.Timeout = 0 },
	}
	for name, mutate := range tests {
		c := base()
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestResolveEnvRef(t *testing.T) {
	t.Setenv("SAATHI_REF", "value")
	if got := resolveEnvRef("${SAATHI_REF}"); got != "value" {
		t.Errorf("got %q", got)
	}
	if got := resolveEnvRef("${SAATHI_MISSING_REF}"); got != "${SAATHI_MISSING_REF}" {
		t.Errorf("unset ref should be kept, got %q", got)
	}
	if got := resolveEnvRef("plain"); got != "plain" {
		t.Errorf("got %q", got)
	}
}

func TestNewHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, LoggingConfig{Level: "warn", Format: "json"}))
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("unexpected output %q", out)
	}

	buf.Reset()
	slog.New(newHandler(&buf, LoggingConfig{Format: "pretty"})).Info("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("pretty handler wrote %q", buf.String())
	}
}
