// Saathi is a voice assistant daemon for elderly and low-literacy users.
// It listens to utterances in Indian languages, translates them to a
// baseline language, classifies and extracts the requested action, asks
// for confirmation on critical actions, and dispatches them.
//
// Usage:
//
//	saathi [flags]
//	saathi --config /path/to/saathi.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"

	_ "github.com/nadzzz/saathi/docs"
	"github.com/nadzzz/saathi/internal/assistant"
	"github.com/nadzzz/saathi/internal/breaker"
	"github.com/nadzzz/saathi/internal/config"
	"github.com/nadzzz/saathi/internal/dispatch"
	"github.com/nadzzz/saathi/internal/entity"
	"github.com/nadzzz/saathi/internal/health"
	"github.com/nadzzz/saathi/internal/interpreter"
	"github.com/nadzzz/saathi/internal/interpreter/keyword"
	localinterp "github.com/nadzzz/saathi/internal/interpreter/local"
	openaiinterp "github.com/nadzzz/saathi/internal/interpreter/openai"
	"github.com/nadzzz/saathi/internal/langid"
	"github.com/nadzzz/saathi/internal/language"
	"github.com/nadzzz/saathi/internal/netproxy"
	"github.com/nadzzz/saathi/internal/speech"
	"github.com/nadzzz/saathi/internal/translate"
	"github.com/nadzzz/saathi/internal/transport"
	grpctransport "github.com/nadzzz/saathi/internal/transport/grpc"
	httptransport "github.com/nadzzz/saathi/internal/transport/http"
	mqtttransport "github.com/nadzzz/saathi/internal/transport/mqtt"
	"github.com/nadzzz/saathi/internal/tts"
	"github.com/nadzzz/saathi/internal/tts/piper"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.BoolP("version", "v", false, "print version and exit")
	configFile := flag.StringP("config", "c", "", "path to config file (e.g. configs/saathi.yaml)")
	envFile := flag.String("env", ".env", "dotenv file loaded before configuration")
	flag.Parse()

	if *showVersion {
		fmt.Printf("saathi %s\n", version)
		os.Exit(0)
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load env file", "path", *envFile, "error", err)
	}

	// Load configuration.
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging.
	config.SetupLogging(cfg.Logging)
	slog.Info("saathi starting", "version", version)

	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		slog.Error("saathi failed", "error", err)
		os.Exit(1)
	}
	slog.Info("saathi stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := slog.Default()

	httpClient, err := netproxy.NewClient(cfg.Network.SocksProxy, 0)
	if err != nil {
		return err
	}
	if cfg.Network.SocksProxy != "" {
		logger.Info("routing outbound traffic through socks proxy", "proxy", cfg.Network.SocksProxy)
	}

	profiles, err := language.FromConfig(cfg.Languages)
	if err != nil {
		return fmt.Errorf("languages: %w", err)
	}
	settings, err := assistant.SettingsFromConfig(cfg.Assistant)
	if err != nil {
		return err
	}

	// Initialize the interpreter backend.
	interp, transcriber := newInterpreter(cfg.Interpreter, httpClient)
	defer interp.Close()

	identifier, err := langid.NewLingua(profiles.Codes(), cfg.Languages.MinRelativeDistance)
	if err != nil {
		return fmt.Errorf("language identification: %w", err)
	}

	backend, closeCache, err := newTranslation(ctx, cfg.Translation, httpClient, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	feed := speech.NewFeed(transcriber, cfg.Speech.Timeout, logger)
	coordinator := language.NewCoordinator(feed, identifier, backend, profiles,
		language.WithBreaker(breaker.New("translation", cfg.Translation.Breaker, logger)),
		language.WithLogger(logger),
	)
	defer coordinator.Release()

	dispatcher := newDispatcher(cfg.Dispatch, settings, httpClient, logger)

	// Transports and the event fan-out.
	broadcaster := transport.NewBroadcaster(logger)
	transports := newTransports(cfg.Transports, logger)
	if len(transports) == 0 {
		return errors.New("no transports enabled, enable at least one in config")
	}
	for _, t := range transports {
		broadcaster.Add(t)
	}

	var synth tts.Synthesizer
	if cfg.TTS.Enabled {
		synth = piper.New(cfg.TTS.Piper, logger)
		logger.Info("using piper TTS", "endpoint", cfg.TTS.Piper.Endpoint)
	}
	speaker := tts.NewSpeaker(synth, coordinator, profiles.Baseline().Code, broadcaster.Publish, 0, logger)
	speaker.Start(ctx)
	defer speaker.Close()

	asst := assistant.New(coordinator, interp, entity.NewExtractor(time.Now), dispatcher, speaker, settings,
		assistant.WithLogger(logger),
	)
	control := transport.NewControl(asst, feed, logger)

	// Start health check server.
	healthServer := health.New(cfg.Server.HealthPort, func() string { return asst.Current().Kind.String() }, logger)
	go func() {
		if err := healthServer.ListenAndServe(ctx); err != nil {
			logger.Error("health server failed", "error", err)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := asst.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("assistant stopped", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		broadcaster.Run(ctx, asst.Subscribe(ctx))
	}()

	// Start all transports.
	for _, t := range transports {
		wg.Add(1)
		go func(t transport.Transport) {
			defer wg.Done()
			logger.Info("starting transport", "name", t.Name())
			if err := t.Listen(ctx, control); err != nil {
				logger.Error("transport failed", "name", t.Name(), "error", err)
			}
		}(t)
	}

	// Mark as ready once all transports are started.
	healthServer.SetReady(true)
	logger.Info("saathi ready",
		"transports", len(transports),
		"baseline", profiles.Baseline().Code,
		"languages", profiles.Codes(),
		"health_port", cfg.Server.HealthPort)

	// Block until shutdown signal.
	<-ctx.Done()
	logger.Info("shutdown signal received, draining...")
	healthServer.SetReady(false)

	// Close all transports gracefully.
	for _, t := range transports {
		if err := t.Close(); err != nil {
			logger.Error("transport close error", "name", t.Name(), "error", err)
		}
	}

	wg.Wait()
	return nil
}

// newInterpreter returns the classifier backend and the transcriber used
// for audio clips. The keyword backend has no transcriber.
func newInterpreter(cfg config.InterpreterConfig, httpClient *http.Client) (interpreter.Interpreter, interpreter.Transcriber) {
	switch cfg.Backend {
	case "openai":
		slog.Info("using OpenAI interpreter",
			"transcription_model", cfg.OpenAI.TranscriptionModel,
			"completion_model", cfg.OpenAI.CompletionModel)
		i := openaiinterp.New(cfg.OpenAI, cfg.Prompt, httpClient)
		return i, i
	case "local":
		slog.Info("using local interpreter",
			"whisper", cfg.Local.WhisperEndpoint,
			"llm", cfg.Local.LLMEndpoint)
		i := localinterp.New(cfg.Local, cfg.Prompt, httpClient)
		return i, i
	default:
		slog.Info("using keyword interpreter, audio input disabled")
		return keyword.New(), nil
	}
}

// newTranslation builds the translation backend with its cache. It
// returns a nil backend when translation is disabled.
func newTranslation(ctx context.Context, cfg config.TranslationConfig, httpClient *http.Client, logger *slog.Logger) (translate.Backend, func(), error) {
	noop := func() {}
	if !cfg.Enabled {
		logger.Info("translation disabled, utterances are used as spoken")
		return nil, noop, nil
	}

	client := *httpClient
	client.Timeout = cfg.Timeout
	var backend translate.Backend = translate.NewLibre(cfg.Endpoint, cfg.APIKey, &client, logger)

	var store translate.Store
	switch cfg.Cache.Backend {
	case "redis":
		rs, err := translate.NewRedisStore(ctx, &redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("translation cache: %w", err)
		}
		store = rs
	case "memory":
		store = translate.NewMemoryStore(time.Minute)
	default:
		logger.Info("using LibreTranslate", "endpoint", cfg.Endpoint, "cache", "none")
		return backend, noop, nil
	}

	logger.Info("using LibreTranslate", "endpoint", cfg.Endpoint, "cache", cfg.Cache.Backend, "ttl", cfg.Cache.TTL)
	closeStore := func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing translation cache", "error", err)
		}
	}
	return translate.NewCached(backend, store, cfg.Cache.TTL, logger), closeStore, nil
}

// newDispatcher returns the remote dispatcher when an endpoint is
// configured and the loopback dispatcher otherwise, behind the slot check.
func newDispatcher(cfg config.DispatchConfig, settings assistant.Settings, httpClient *http.Client, logger *slog.Logger) dispatch.Dispatcher {
	if cfg.Endpoint == "" {
		logger.Info("no dispatch endpoint configured, using loopback dispatcher")
		return dispatch.RequireSlots(dispatch.NewLoopback(settings.Critical, logger))
	}
	client := *httpClient
	client.Timeout = cfg.Timeout
	cb := breaker.New("dispatch", cfg.Breaker, logger)
	logger.Info("using remote dispatcher", "endpoint", cfg.Endpoint)
	return dispatch.RequireSlots(dispatch.NewRemote(cfg.Endpoint, cfg.Token, &client, cb, logger))
}

func newTransports(cfg config.TransportsConfig, logger *slog.Logger) []transport.Transport {
	var transports []transport.Transport
	if cfg.GRPC.Enabled {
		transports = append(transports, grpctransport.New(cfg.GRPC.Port, logger))
	}
	if cfg.HTTP.Enabled {
		transports = append(transports, httptransport.New(cfg.HTTP.Port, logger))
	}
	if cfg.MQTT.Enabled {
		transports = append(transports, mqtttransport.New(cfg.MQTT, logger))
	}
	return transports
}
