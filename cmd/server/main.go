package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/castlemilk/icdmapper/backend/internal/auth"
	"github.com/castlemilk/icdmapper/backend/internal/config"
	"github.com/castlemilk/icdmapper/backend/internal/extraction"
	"github.com/castlemilk/icdmapper/backend/internal/failurelog"
	"github.com/castlemilk/icdmapper/backend/internal/search"
	"github.com/castlemilk/icdmapper/backend/internal/service"
)

func main() {
	modelPath := flag.String("model_path", "./ner_model", "path to the trained NER model directory")
	credentialsPath := flag.String("ICD_credentials_path", "./WHO_ICD_logiin_credentials.json", "path to ICD credentials JSON")
	outputDir := flag.String("output", "./output", "directory for everything the server writes")
	enableFailureLog := flag.Bool("enable_failure_log", false, "append failed entity lookups to <output>/Processing.log")
	configPath := flag.String("config", "", "optional YAML service config")
	port := flag.Int("port", 3000, "listen port (PORT env overrides)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	// Explicit flags win over the YAML file.
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["model_path"] || *configPath == "" {
		cfg.Model.Path = *modelPath
	}
	if set["port"] {
		cfg.Server.Port = *port
	}
	if env := os.Getenv("PORT"); env != "" {
		p, err := strconv.Atoi(env)
		if err != nil {
			log.Fatalf("Invalid PORT %q: %v", env, err)
		}
		cfg.Server.Port = p
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	creds, err := config.LoadCredentials(*credentialsPath)
	if err != nil {
		log.Fatalf("Failed to load ICD credentials: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recognizer, err := extraction.Load(ctx, extraction.ModelConfig{
		Backend:    cfg.Model.Backend,
		Path:       cfg.Model.Path,
		OrtLibrary: cfg.Model.OrtLibrary,
		MaxSeqLen:  cfg.Model.MaxSeqLen,
		SidecarURL: cfg.Model.SidecarURL,
		Timeout:    cfg.Model.Timeout,
	})
	if err != nil {
		log.Fatalf("Failed to load NER model: %v", err)
	}
	defer recognizer.Close()
	logger.Info("model loaded", "model", recognizer.ModelID(), "backend", cfg.Model.Backend)

	var reporter search.FailureReporter = failurelog.Discard{}
	if *enableFailureLog {
		w, err := failurelog.Open(*outputDir, logger)
		if err != nil {
			log.Fatalf("Failed to open failure log: %v", err)
		}
		logger.Info("failure log enabled", "path", w.Path())
		reporter = w
	}

	tokens := auth.NewTokenProvider(auth.ClientCredentials{
		ClientID:      creds.ClientID,
		ClientSecret:  creds.ClientSecret,
		Scope:         creds.Scope,
		GrantType:     creds.GrantType,
		TokenEndpoint: creds.TokenEndpoint,
	}, auth.Options{
		Timeout:            cfg.Auth.Timeout,
		InsecureSkipVerify: cfg.Auth.InsecureSkipVerify,
	})

	lookup := search.NewClient(search.Config{
		URL:           cfg.Search.URL,
		ReleaseID:     cfg.Search.ReleaseID,
		Linearization: cfg.Search.Linearization,
		APIVersion:    cfg.Search.APIVersion,
		Language:      cfg.Search.Language,
		TopN:          cfg.Search.TopN,
		Timeout:       cfg.Search.Timeout,
		Parallelism:   cfg.Search.Parallelism,
		Normalizer:    search.NormalizerByName(cfg.Search.Normalizer),
	}, tokens,
		search.WithFailureReporter(reporter),
		search.WithLogger(logger),
	)

	mapper := service.NewMapperService(recognizer, lookup, logger)

	mux := http.NewServeMux()
	mapper.RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"User-Agent",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
		},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h2c.NewHandler(c.Handler(mux), &http2.Server{}),
		ReadTimeout:  cfg.Server.Timeouts.Read,
		WriteTimeout: cfg.Server.Timeouts.Write,
		IdleTimeout:  cfg.Server.Timeouts.Idle,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "err", err)
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
