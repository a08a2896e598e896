package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	cfgpkg "github.com/local/lawcorpus/internal/config"
	"github.com/local/lawcorpus/internal/ingest"
	"github.com/local/lawcorpus/internal/limiter"
	logpkg "github.com/local/lawcorpus/internal/logger"
	"github.com/local/lawcorpus/internal/metrics"
	"github.com/local/lawcorpus/internal/queue"
	"github.com/local/lawcorpus/internal/statuscheck"
	"github.com/local/lawcorpus/internal/storage"
	"github.com/local/lawcorpus/internal/store"
	"github.com/local/lawcorpus/internal/vast"
	"github.com/local/lawcorpus/internal/web"
	"github.com/local/lawcorpus/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := cfgpkg.FromEnv()

	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	metrics.Init()

	rq, err := queue.NewRedisQueue(cfg.Queue.RedisURL, cfg.Queue.Stream, cfg.Queue.Group, cfg.Queue.PollInterval)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rq.Close()

	rs, err := store.NewRedisStatus(cfg.Queue.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init redis status store")
	}
	defer rs.Close()

	ss, err := store.NewSampleStore(cfg.Queue.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init sample store")
	}
	defer ss.Close()

	deps := ingest.Dependencies{Queue: rq, Status: rs, Samples: ss}
	if lim, err := limiter.New(limiter.Options{RedisURL: cfg.Queue.RedisURL}); err == nil {
		defer lim.CloseClient()
		deps.Limiter = lim
	} else {
		log.Warn().Err(err).Msg("fetch limiter disabled")
	}
	if cfg.Storage.Bucket != "" {
		s3c, err := storage.NewS3Client(context.Background(), storage.Options{
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init s3 client")
		}
		deps.Storage = s3c
	}

	svc := ingest.New(cfg, deps)
	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	mux.Handle("/metrics", metrics.Handler())

	checker := statuscheck.New(statuscheck.Options{
		Redis:      rq,
		S3Bucket:   cfg.Storage.Bucket,
		VastAPIKey: cfg.Vast.APIKey,
		CorpusDir:  cfg.Corpus.Dir,
	})
	dash := web.New(cfg.Web, checker)
	dash.RegisterRoutes(mux)

	// Page workers run in-process unless split out to their own deployment.
	runWorker := os.Getenv("RUN_WORKER")
	if runWorker == "" || runWorker == "1" || runWorker == "true" {
		wk := worker.New(worker.Config{
			Concurrency:        cfg.Worker.Concurrency,
			PageTimeout:        cfg.Worker.PageTimeout,
			MaxAttempts:        cfg.Worker.JobMaxAttempts,
			RetryBaseDelay:     cfg.Worker.RetryBaseDelay,
			RetryJitter:        cfg.Worker.RetryJitter,
			RetryBackoffFactor: cfg.Worker.RetryBackoffFactor,
			MinSampleLen:       cfg.Corpus.MinSampleLen,
		}, rq)
		wk.Start()
		defer wk.Stop(context.Background())
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()
	go pollQueueDepths(rootCtx, rq)
	if cfg.Vast.APIKey != "" && cfg.Vast.InstanceID != 0 {
		go watchVastInstance(rootCtx, cfg.Vast)
	}

	addr := cfg.Web.Addr
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	} else if _, p, err := net.SplitHostPort(addr); err == nil && p != "" {
		// Workers and the dashboard reach the ingest service over loopback
		// via PORT; keep it in sync with a non-default listen address.
		os.Setenv("PORT", p)
	}
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Info().Msgf("HTTP server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	rootCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("shutdown complete")
}

func pollQueueDepths(ctx context.Context, rq *queue.RedisQueue) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stream, delayed, dlq, err := rq.Depths(ctx)
			if err != nil {
				continue
			}
			metrics.SetQueueDepth("stream", stream)
			metrics.SetQueueDepth("delayed", delayed)
			metrics.SetQueueDepth("dlq", dlq)
		}
	}
}

// watchVastInstance waits for the rendering GPU box to come up, then keeps
// polling so a stopped instance shows up in the logs.
func watchVastInstance(ctx context.Context, cfg cfgpkg.VastConfig) {
	client := vast.NewClient(cfg.APIKey)
	inst, err := client.WaitRunning(ctx, cfg.InstanceID, cfg.PollInterval)
	if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Int64("instance", cfg.InstanceID).Msg("vast instance wait failed")
		}
		return
	}
	log.Info().Int64("instance", inst.ID).Str("gpu", inst.GPUName).Str("host", inst.SSHHost).Msg("vast instance running")

	ticker := time.NewTicker(cfg.PollInterval * 6)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur, err := client.Get(ctx, cfg.InstanceID)
			if err != nil {
				log.Warn().Err(err).Int64("instance", cfg.InstanceID).Msg("vast poll failed")
				continue
			}
			if !cur.Running() {
				log.Warn().Int64("instance", cur.ID).Str("status", cur.ActualStatus).Msg("vast instance not running")
			}
		}
	}
}
