package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"writebox/internal/chat"
	"writebox/internal/config"
	"writebox/internal/editor"
	"writebox/internal/library"
	"writebox/internal/server"
	"writebox/internal/transcription"
	"writebox/internal/util"
	"writebox/internal/vault"
	"writebox/pkg/ai"
	"writebox/pkg/history"
	"writebox/pkg/storage"
	"writebox/pkg/store"
)

const (
	chatArchiveKey  = "writebox:chat:archives"
	actionResultKey = "writebox:transcription:results"
	logCapacity     = 50
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	st, err := openStore(cfg)
	if err != nil {
		util.Fatal("failed to open store", "err", err)
	}

	blobs, err := openBlobStore(cfg)
	if err != nil {
		util.Fatal("failed to open blob storage", "err", err)
	}

	archiveLog, resultLog := openHistoryLogs(cfg, logger)

	analysisModel := cfg.Gemini.AnalysisModel
	if analysisModel == "" {
		analysisModel = cfg.Gemini.Model
	}
	editorGen := ai.NewClient(cfg.Gemini.EditorKey, cfg.Gemini.Model)
	chatGen := ai.NewClient(cfg.Gemini.ChatKey, cfg.Gemini.Model)
	transcriptionGen := ai.NewClient(cfg.Gemini.TranscriptionKey, cfg.Gemini.Model)
	analysisGen := ai.NewClient(cfg.Gemini.FileAnalysisKey, analysisModel)

	ed := editor.New(editor.Config{
		Store:     st,
		Generator: editorGen,
		Notify: func(status editor.Status) {
			logger.Debug("editor status", "message", status.Message, "ok", status.OK)
		},
	})
	if found, err := ed.LoadMostRecent(context.Background()); err != nil {
		logger.Warn("could not load the most recent document", "err", err)
	} else if found {
		logger.Info("resumed last document", "id", ed.Document().ID)
	}

	hub := transcription.NewHub()
	httpServer := server.New(server.Config{
		Editor:  ed,
		Library: library.New(st, ed, nil),
		Chat:    chat.New(st, chatGen, archiveLog),
		Vault: vault.New(vault.Config{
			Store:     st,
			Blobs:     blobs,
			Generator: analysisGen,
			MaxBytes:  cfg.MaxUploadBytes,
		}),
		Recorder: transcription.New(transcription.Config{
			Store:     st,
			Generator: transcriptionGen,
			Sources:   hub.Factory(),
			Results:   resultLog,
			Logger:    logger,
		}),
		Hub: hub,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("writebox server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func openStore(cfg config.FileConfig) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("databaseURL not set, using the in-memory store")
		return store.NewMemoryStore(), nil
	}
	return store.NewGormStore(cfg.DatabaseURL)
}

func openBlobStore(cfg config.FileConfig) (storage.BlobStore, error) {
	if cfg.Storage.Backend == "minio" {
		return storage.NewMinioStore(
			cfg.Storage.MinioEndpoint,
			cfg.Storage.MinioAccessKey,
			cfg.Storage.MinioSecretKey,
			cfg.Storage.MinioBucket,
			cfg.Storage.MinioUseSSL,
		)
	}
	return storage.NewFileStore(cfg.Storage.Path)
}

// openHistoryLogs wires the capped Redis logs. Without Redis the app still
// runs; archives and action results are simply not kept.
func openHistoryLogs(cfg config.FileConfig, logger *slog.Logger) (*history.Log, *history.Log) {
	if cfg.RedisAddr == "" {
		logger.Warn("redisAddr not set, chat archives and action results will not be kept")
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	archive, err := history.NewLog(client, chatArchiveKey, logCapacity)
	if err != nil {
		util.Fatal("failed to init archive log", "err", err)
	}
	results, err := history.NewLog(client, actionResultKey, logCapacity)
	if err != nil {
		util.Fatal("failed to init result log", "err", err)
	}
	return archive, results
}
