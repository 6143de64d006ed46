package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/nsqio/go-nsq"
	"golang.org/x/sync/errgroup"

	"tradehub/services/pipeline/internal/adapter/gemini"
	wstore "tradehub/services/pipeline/internal/adapter/weaviate"
	"tradehub/services/pipeline/internal/bus"
	"tradehub/services/pipeline/internal/config"
	"tradehub/services/pipeline/internal/embedding"
	"tradehub/services/pipeline/internal/gateway"
	"tradehub/services/pipeline/internal/media"
	"tradehub/services/pipeline/internal/middleware"
	"tradehub/services/pipeline/internal/retrieval"
	"tradehub/services/pipeline/internal/retry"
	"tradehub/services/pipeline/internal/status"
	"tradehub/services/pipeline/internal/worker"
)

type subscription struct {
	topic   string
	channel string
	handler nsq.Handler
}

// App wires the consumers, the websocket gateway and the HTTP surface.
// Consumers are connected in Run so construction stays side-effect free.
type App struct {
	Handler http.Handler

	cfg  *config.Config
	subs []subscription
}

func New(ctx context.Context, cfg *config.Config, deps *Dependencies) (*App, error) {
	ai, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel, cfg.GenerativeModel)
	if err != nil {
		return nil, fmt.Errorf("gemini client error: %w", err)
	}

	vecStore := wstore.NewStore(deps.Weaviate)
	retryPolicy := retry.Policy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
		Multiplier:  cfg.RetryMultiplier,
	}

	pipeline := embedding.NewPipeline(ai, vecStore, embedding.Config{
		EmbedBatchSize:  cfg.EmbedBatchSize,
		InterBatchDelay: cfg.InterBatchDelay,
		UpsertBatchSize: cfg.UpsertBatchSize,
		Retry:           retryPolicy,
	})

	statuses := status.NewPostgresRepo(deps.DB)
	events := worker.NewEventPublisher(bus.NewNSQPublisher(deps.Producer))
	fetcher := media.NewFetcher(cfg.MediaScratchDir)

	contentConsumer := worker.NewContentConsumer(pipeline, ai, fetcher, statuses, events, worker.ContentConsumerConfig{
		ChunkSize:          cfg.ChunkSize,
		ChunkOverlap:       cfg.ChunkOverlap,
		Separators:         cfg.Separators(),
		MediaSizeCeilingMB: float64(cfg.MediaSizeCeilingMB),
		Retry:              retryPolicy,
	})

	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}

	retrievalService := retrieval.NewService(ai, ai, vecStore, retrieval.Config{
		TopK:              cfg.SearchTopK,
		ContextLimit:      cfg.ContextLimit,
		PrimaryThreshold:  cfg.PrimaryThreshold,
		FallbackThreshold: cfg.FallbackThreshold,
		Retry:             retryPolicy,
	}, queryLogger)

	searchConsumer := worker.NewSearchConsumer(retrievalService, events)

	gw := gateway.New()

	mux := http.NewServeMux()
	mux.Handle("GET /ws/content", middleware.CorrelationID(http.HandlerFunc(gw.HandleContent)))
	mux.Handle("GET /ws/search", middleware.CorrelationID(http.HandlerFunc(gw.HandleSearch)))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler: mux,
		cfg:     cfg,
		subs: []subscription{
			{config.TopicContentEmbed, config.ChannelWorker, contentConsumer},
			{config.TopicSearch, config.ChannelWorker, searchConsumer},
			{config.TopicContentStatus, config.ChannelGateway, gateway.NewBridge(gw.ContentRegistry())},
			{config.TopicSearchStatus, config.ChannelGateway, gateway.NewBridge(gw.SearchRegistry())},
		},
	}, nil
}

// Run connects the NSQ consumers and serves HTTP until ctx is cancelled,
// then drains the consumers before shutting the server down.
func (a *App) Run(ctx context.Context) error {
	var consumers []*nsq.Consumer
	for _, sub := range a.subs {
		c, err := bus.StartConsumer(sub.topic, sub.channel, a.cfg.NSQLookupd, sub.handler)
		if err != nil {
			stopAll(consumers)
			return err
		}
		consumers = append(consumers, c)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler: a.Handler,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server starting", "port", a.cfg.ServerPort)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down...")
		stopAll(consumers)
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func stopAll(consumers []*nsq.Consumer) {
	for _, c := range consumers {
		c.Stop()
	}
	for _, c := range consumers {
		<-c.StopChan
	}
}
