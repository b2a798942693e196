package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tripboard/api/internal/app"
	"tripboard/api/internal/archive"
	"tripboard/api/internal/config"
	"tripboard/api/internal/email"
	"tripboard/api/internal/feed"
	"tripboard/api/internal/gate"
	"tripboard/api/internal/reconcile"
	"tripboard/api/internal/search"
	"tripboard/api/internal/store"
	"tripboard/api/internal/trip"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewMemory())

	archiveService, err := archive.New(cfg.ArchiveDir)
	if err != nil {
		log.Fatalf("archive init failed: %v", err)
	}

	emailService := email.NewService(email.Config{
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		Username:   cfg.SMTPUsername,
		Password:   cfg.SMTPPassword,
		From:       cfg.SMTPFrom,
		FromName:   cfg.SMTPFromName,
		Recipients: email.SplitRecipients(cfg.SMTPRecipients),
	})

	// Postgres mirrors the original trip_data table and is preferred
	// when configured; Redis is the default backend.
	var (
		dataStore store.Store
		runFeed   func(context.Context, feed.Handler)
	)
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		log.Printf("Using Postgres document store")
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		if err := store.EnsureSchema(ctx, db); err != nil {
			log.Fatalf("schema setup failed: %v", err)
		}
		pg := store.NewPostgresStore(db)
		defer pg.Close()
		dataStore = pg
		runFeed = func(ctx context.Context, handler feed.Handler) {
			feed.NewPostgresSubscriber(cfg.DatabaseURL, cfg.DocumentKey, pg, handler).Run(ctx)
		}
	} else {
		log.Printf("Using Redis document store")
		rs, err := store.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer rs.Close()
		dataStore = rs
		runFeed = func(ctx context.Context, handler feed.Handler) {
			feed.NewRedisSubscriber(rs.Client(), cfg.DocumentKey, handler).Run(ctx)
		}
	}

	core := reconcile.New(dataStore, reconcile.Options{
		Key:           cfg.DocumentKey,
		Debounce:      cfg.Debounce,
		EchoWindow:    cfg.EchoWindow,
		WriteCooldown: cfg.WriteCooldown,
		WriteTimeout:  cfg.WriteTimeout,
		OnChange: func(doc trip.Document) {
			searchService.Update(search.Records(doc))
		},
		OnPersist: func(raw []byte) {
			if err := archiveService.Record(raw); err != nil {
				log.Printf("archive: record revision: %v", err)
			}
		},
	})
	if _, err := core.Load(ctx); err != nil {
		log.Printf("WARNING: store unreachable at startup, serving defaults: %v", err)
	}
	searchService.Update(search.Records(core.Document()))

	feedCtx, cancelFeed := context.WithCancel(ctx)
	defer cancelFeed()
	go runFeed(feedCtx, core.OnExternalCandidate)

	service := app.NewService(app.Deps{
		Core:          core,
		Gate:          gate.New(cfg.Passphrase, cfg.PassphraseHash),
		Search:        searchService,
		Archive:       archiveService,
		Email:         emailService,
		Store:         dataStore,
		SessionSecret: []byte(cfg.SessionSecret),
		SessionTTL:    cfg.SessionTTL,
	})
	go service.RunFlightRefresher(feedCtx, 5*time.Minute)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Tripboard API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	cancelFeed()
	if err := core.Close(shutdownCtx); err != nil {
		log.Printf("final save failed: %v", err)
	}
}
