package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/service"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/internal/watcher"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/redis"
)

type serveOptions struct {
	port       int
	corpusPath string
	watch      bool
}

func newServeCmd(g *globalOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API over HTTP",
		Long: `Load the saved index (building it from the corpus when there is none)
and serve the JSON search API. With watching enabled the index is rebuilt
when corpus files change; with Kafka brokers configured rebuilds can also
be requested on the rebuild topic and search events are published.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = opts.port
			}
			if cmd.Flags().Changed("corpus") {
				cfg.Corpus.Source = "dir"
				cfg.Corpus.Path = opts.corpusPath
			}
			if cmd.Flags().Changed("watch") {
				cfg.Watch.Enabled = opts.watch
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			srv, err := newServer(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer srv.Close()
			ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
			if err != nil {
				return err
			}
			return srv.Serve(cmd.Context(), ln)
		},
	}

	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "HTTP port (overrides server.port)")
	cmd.Flags().StringVar(&opts.corpusPath, "corpus", "", "Corpus directory (overrides corpus.path)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Rebuild the index when corpus files change")

	return cmd
}

// server is the wired search service. Close releases what newServer opened.
type server struct {
	cfg       *config.Config
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	source    corpus.Source
	reloader  *service.Reloader
	collector *analytics.Collector
	limiter   *middleware.Limiter
	handler   http.Handler
	closers   []func()
	logger    *slog.Logger
}

func newServer(ctx context.Context, cfg *config.Config) (srv *server, err error) {
	s := &server{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		logger:   slog.Default().With("component", "server"),
	}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()
	s.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.metrics = metrics.New(s.registry)

	s.source, err = corpus.Open(ctx, *cfg)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() { s.source.Close() })

	analyzer, err := tokenizer.New(cfg.Analysis)
	if err != nil {
		return nil, err
	}

	aggregator := analytics.NewAggregator()
	var collectorOpts []analytics.CollectorOption
	if kafka.Enabled(cfg.Kafka) {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		s.closers = append(s.closers, func() { producer.Close() })
		collectorOpts = append(collectorOpts, analytics.WithPublisher(producer))
	}
	s.collector = analytics.NewCollector(aggregator, 10000, collectorOpts...)
	s.closers = append(s.closers, s.collector.Close)

	publisher := indexer.NewPublisher(s.metrics)
	s.reloader, err = service.NewReloader(*cfg, analyzer, publisher, s.source, s.metrics, service.WithCollector(s.collector))
	if err != nil {
		return nil, err
	}
	if _, err := s.reloader.LoadOrBuild(ctx); err != nil {
		return nil, err
	}

	queryCache, err := cache.FromConfig(*cfg, s.metrics)
	if err != nil {
		return nil, err
	}
	searchOpts := []searcher.Option{searcher.WithMetrics(s.metrics)}
	if queryCache != nil {
		searchOpts = append(searchOpts, searcher.WithCache(queryCache))
	}
	srch, err := searcher.New(*cfg, analyzer, searchOpts...)
	if err != nil {
		return nil, err
	}

	checker := health.NewChecker(5 * time.Second)
	checker.Register("index", s.indexHealth)
	if cfg.Cache.Backend == "redis" {
		rc := pkgredis.NewClient(cfg.Redis)
		s.closers = append(s.closers, func() { rc.Close() })
		checker.RegisterOptional("redis", func(ctx context.Context) health.ComponentHealth {
			if err := rc.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	mux := http.NewServeMux()
	handler.New(srch, publisher,
		handler.WithRebuilder(s.reloader),
		handler.WithCollector(s.collector),
	).Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	if cfg.Server.RateLimit > 0 {
		s.limiter = middleware.NewLimiter(cfg.Server.RateLimit, time.Minute)
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	chain = middleware.RateLimit(s.limiter)(chain)
	chain = middleware.Metrics(s.metrics)(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins))(chain)
	chain = middleware.RequestID(chain)
	s.handler = chain
	return s, nil
}

func (s *server) indexHealth(context.Context) health.ComponentHealth {
	snap := s.reloader.Publisher().Current()
	if snap.Generation == 0 {
		return health.ComponentHealth{Status: health.StatusDown, Message: "no index published"}
	}
	msg := fmt.Sprintf("generation %d, %d documents", snap.Generation, snap.Index.DocCount())
	if _, err := s.reloader.LastAttempt(); err != nil {
		return health.ComponentHealth{Status: health.StatusDegraded, Message: msg + "; last rebuild failed: " + err.Error()}
	}
	return health.ComponentHealth{Status: health.StatusUp, Message: msg}
}

// rebuild adapts the reloader to watcher.Trigger.
func (s *server) rebuild(ctx context.Context, reason string) error {
	_, err := s.reloader.Rebuild(ctx, reason)
	return err
}

// Serve runs the API on ln and the configured background workers until ctx
// is cancelled, then shuts down gracefully.
func (s *server) Serve(ctx context.Context, ln net.Listener) error {
	s.collector.Start(ctx)
	if s.limiter != nil {
		go s.limiter.RunPruner(ctx, 5*time.Minute)
	}

	if s.cfg.Metrics.Enabled {
		stopMetrics, err := metrics.StartServer(s.cfg.Metrics.Port, s.registry)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			stopMetrics(shutdownCtx)
		}()
	}

	if s.cfg.Watch.Enabled {
		if dir, ok := s.source.(*corpus.DirSource); ok {
			w := watcher.NewCorpusWatcher(dir.Path, s.cfg.Watch.Debounce, s.rebuild)
			go func() {
				if err := w.Run(ctx); err != nil {
					s.logger.Error("corpus watcher stopped", "error", err)
				}
			}()
		} else {
			s.logger.Warn("watching is only supported for directory corpora", "source", s.source.Describe())
		}
	}

	if kafka.Enabled(s.cfg.Kafka) {
		consumer := kafka.NewConsumer(s.cfg.Kafka, s.cfg.Kafka.Topics.IndexRebuild, watcher.RebuildHandler(s.rebuild))
		go func() {
			if err := consumer.Run(ctx); err != nil {
				s.logger.Error("rebuild consumer stopped", "error", err)
			}
		}()
	}

	httpServer := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
	go func() {
		<-ctx.Done()
		s.logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown error", "error", err)
		}
	}()

	s.logger.Info("search service listening",
		"addr", ln.Addr().String(),
		"documents", s.reloader.Publisher().Index().DocCount(),
		"source", s.source.Describe(),
	)
	if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("search service stopped")
	return nil
}

// Close releases resources in reverse order of acquisition.
func (s *server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
