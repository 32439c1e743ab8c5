package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"arcsat.dev/satellite/api"
	"arcsat.dev/satellite/config"
	"arcsat.dev/satellite/img2vec"
	"arcsat.dev/satellite/internal/sync2"
	"arcsat.dev/satellite/jobstore"
	"arcsat.dev/satellite/lrrclient"
	"arcsat.dev/satellite/pipeline"
	"arcsat.dev/satellite/scanengine"
	"arcsat.dev/satellite/similarity"
	"arcsat.dev/satellite/vectorstore"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the Satellite HTTP server and background passes",
		RunE:  runServer,
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	jobs, err := jobstore.Open(cfg.DBPath, log)
	if err != nil {
		return err
	}
	defer func() { _ = jobs.Close() }()

	var vectors *vectorstore.Store
	if cfg.PostgresDSN != "" {
		vectors, err = vectorstore.Open(cfg.PostgresDSN, log)
		if err != nil {
			return err
		}
		defer func() { _ = vectors.Close() }()
	}

	lrr := lrrclient.New(cfg.LRRHost, cfg.LRRAPIKey)
	vec := img2vec.New(cfg.Img2VecHost)
	locks := pipeline.NewLockTable()
	runner := pipeline.NewRunner(locks, log)

	server := api.NewServer(&api.Server{
		Jobs: jobs, Vectors: vectors, LRR: lrr, Img2Vec: vec, Runner: runner, Log: log,
		ContentsDir: cfg.ContentsDir, DoNotDownloadFile: cfg.DoNotDownloadFile,
		SimilarityThreshold:  cfg.SimilarityThreshold,
		MetadataSleepSeconds: cfg.MetadataPluginSleepSeconds,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	scanCycle := sync2.NewCycle(cfg.ScanInterval)
	go scanCycle.Start(ctx, func(err error) { log.Error("scan cycle error", zap.Error(err)) }, func(ctx context.Context) error {
		return scanengine.Scan(ctx, jobs, cfg.ContentsDir, log)
	})
	defer scanCycle.Close()

	if vectors != nil {
		embeddingCycle := sync2.NewCycle(cfg.EmbeddingInterval)
		go embeddingCycle.Start(ctx, func(err error) { log.Error("subarchive cycle error", zap.Error(err)) }, func(ctx context.Context) error {
			return similarity.ComputeSubarchives(ctx, vectors, lrr, cfg.SimilarityThreshold, log)
		})
		defer embeddingCycle.Close()
	}

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: server}
	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Info("satellite listening", zap.String("addr", cfg.ListenAddr))
	err = httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
