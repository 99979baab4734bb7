package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"fomo/internal/config"
	"fomo/internal/ingest"
	"fomo/internal/logging"
	"fomo/internal/metrics"
	"fomo/internal/ports"
	"fomo/internal/providers/backend"
	"fomo/internal/providers/github"
	"fomo/internal/store"
	"fomo/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Backend    *backend.Client
	Store      *store.SQLite
	Metrics    *metrics.Metrics
	Registry   *prometheus.Registry
	Config     config.Config

	metricsServer *metrics.Server
}

// Build wires all dependencies for the current runtime and loads the meeting
// archive.
func Build(ctx context.Context, eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	return BuildWith(ctx, cfg, eventSink)
}

// BuildWith wires dependencies for an already loaded configuration.
func BuildWith(ctx context.Context, cfg config.Config, eventSink ports.EventSink) (Services, error) {
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mt := metrics.New(registry)

	archive, err := store.Open(cfg.Store.Path)
	if err != nil {
		return Services{}, fmt.Errorf("failed to open meeting archive at %s: %w", cfg.Store.Path, err)
	}

	client := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.RequestTimeout,
	})

	var tracker ports.IssueTracker
	if cfg.GitHubEnabled() {
		gh, err := github.NewTracker(github.Config{Token: cfg.GitHub.Token})
		if err != nil {
			_ = archive.Close()
			return Services{}, err
		}
		tracker = gh
	} else {
		log.Info().Msg("GitHub issue creation disabled; set GITHUB_TOKEN and FOMO_GITHUB_REPO to enable it")
	}

	manager := usecase.NewSessionManager(ports.SystemClock{}, usecase.WithMetrics(mt))
	controller := usecase.NewSessionController(
		manager,
		client,
		newStrategy(cfg, client, mt),
		archive,
		tracker,
		eventSink,
		mt,
		usecase.Config{
			TickInterval:  cfg.Session.TickInterval,
			AnalyzeOnStop: cfg.Session.AnalyzeOnStop,
			Issues: usecase.IssueConfig{
				Repository: cfg.GitHub.Repository,
				Labels:     cfg.GitHub.Labels,
				Assignees:  cfg.GitHub.Assignees,
			},
		},
	)

	if err := controller.LoadArchive(ctx); err != nil {
		_ = archive.Close()
		return Services{}, err
	}

	services := Services{
		Controller: controller,
		Backend:    client,
		Store:      archive,
		Metrics:    mt,
		Registry:   registry,
		Config:     cfg,
	}
	if cfg.Metrics.Addr != "" {
		services.metricsServer = metrics.NewServer(cfg.Metrics.Addr, registry)
		services.metricsServer.Start()
	}

	log.Info().
		Str("backend", cfg.Backend.BaseURL).
		Str("transport", cfg.Backend.Transport).
		Str("store", cfg.Store.Path).
		Str("configFile", cfg.File).
		Msg("services ready")
	return services, nil
}

func newStrategy(cfg config.Config, client *backend.Client, mt *metrics.Metrics) ports.UpdateStrategy {
	if cfg.Backend.Transport == config.TransportPoll {
		return ingest.NewPollStrategy(client, ingest.PollConfig{
			Interval:   cfg.Backend.PollInterval,
			MaxRetries: cfg.Backend.MaxRetries,
		}, mt)
	}
	return ingest.NewPushStrategy(ingest.PushConfig{
		URL:              cfg.Backend.WSURL,
		ReconnectBackoff: cfg.Backend.ReconnectBackoff,
		MaxRetries:       cfg.Backend.MaxRetries,
	}, mt)
}

// Close stops the active meeting, the metrics listener and the archive.
func (s Services) Close(ctx context.Context) error {
	var errs []error
	if s.Controller != nil {
		s.Controller.Shutdown(ctx)
	}
	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("archive: %w", err))
		}
	}
	return errors.Join(errs...)
}
