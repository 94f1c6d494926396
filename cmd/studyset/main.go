package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/conorfennell/studyset/internal/config"
	"github.com/conorfennell/studyset/internal/genai"
	"github.com/conorfennell/studyset/internal/identity"
	"github.com/conorfennell/studyset/internal/storage"
	"github.com/conorfennell/studyset/internal/sync"
	"github.com/conorfennell/studyset/internal/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "studyset:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	// 1. Parse flags and load configuration
	flags := pflag.NewFlagSet("studyset", pflag.ContinueOnError)
	syncOnce := flags.Bool("sync", false, "ingest new material from all sources, then exit")
	issueToken := flags.String("issue-token", "", "print a bearer token for this user id, then exit")
	config.RegisterFlags(flags)

	cfg, err := config.Load(flags, args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	auth := identity.NewAuthenticator(cfg.Auth.Secret, cfg.Auth.DevUID)
	if *issueToken != "" {
		token, err := auth.IssueToken(identity.Identity{UID: *issueToken}, cfg.Auth.TokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}
	if cfg.Auth.DevUID != "" {
		logger.Warn("unauthenticated requests act as the development user", "uid", cfg.Auth.DevUID)
	}

	// 2. Open the database
	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database opened", "path", cfg.Database.Path)

	if cfg.AI.APIKey == "" {
		logger.Warn("no AI api key configured; generation and grading will fail")
	}
	gen := genai.New(genai.Config{
		BaseURL:            cfg.AI.BaseURL,
		APIKey:             cfg.AI.APIKey,
		ChatModel:          cfg.AI.ChatModel,
		TranscriptionModel: cfg.AI.TranscriptionModel,
	}, logger)

	syncOpts := sync.Options{
		ReposDir:     cfg.Sync.ReposDir,
		Extensions:   cfg.Sync.Extensions,
		MaxFileBytes: cfg.AI.MaxUploadBytes,
		Logger:       logger,
	}
	if *syncOnce {
		report, err := sync.RunSync(ctx, db, gen, syncOpts)
		if err != nil {
			return err
		}
		fmt.Printf("Synced %d sources: %d files, %d created, %d skipped, %d failed.\n",
			report.Sources, report.Files, report.Created, report.Skipped, report.Failed)
		return nil
	}

	// 3. Serve until interrupted
	srv := web.NewServer(db, gen, auth, web.Options{
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		MaxUploadBytes:    cfg.AI.MaxUploadBytes,
		GeneratePerMinute: cfg.Limits.GeneratePerMinute,
		GenerateBurst:     cfg.Limits.GenerateBurst,
		SessionTTL:        cfg.Server.SessionTTL,
		LocalRoot:         cfg.Sync.LocalRoot,
		Sync:              syncOpts,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
