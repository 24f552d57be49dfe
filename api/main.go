package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/GEMDevEng/GradientLab/api/archive"
	"github.com/GEMDevEng/GradientLab/api/cloud"
	"github.com/GEMDevEng/GradientLab/api/config"
	"github.com/GEMDevEng/GradientLab/api/handler"
	"github.com/GEMDevEng/GradientLab/api/hub"
	"github.com/GEMDevEng/GradientLab/api/lifecycle"
	"github.com/GEMDevEng/GradientLab/api/monitor"
	"github.com/GEMDevEng/GradientLab/api/notify"
	"github.com/GEMDevEng/GradientLab/api/ops"
	"github.com/GEMDevEng/GradientLab/api/store"
)

func main() {
	cfg := config.Load()

	db, err := store.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	if err := store.Migrate(db); err != nil {
		log.Fatalf("migration: %v", err)
	}

	creds, err := cfg.Credentials()
	if err != nil {
		log.Fatalf("credentials: %v", err)
	}
	registry := cloud.NewRegistry(creds)

	// Parse allowed origins: always include localhost, plus configured extras.
	allowedOrigins := []string{"http://localhost:5173", "http://localhost:3000"}
	if cfg.Origins != "" {
		for _, o := range strings.Split(cfg.Origins, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}

	ws := hub.New(allowedOrigins, []byte(cfg.JWTSecret))
	ws.InitialData = func(ctx context.Context, userID string) (interface{}, error) {
		vms, err := db.ListVMsByOwner(ctx, userID)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"vms": vms}, nil
	}

	ctrl := &lifecycle.Controller{Store: db, Providers: registry, WS: ws}

	var channel ops.Channel
	sshChannel, err := ops.NewSSHChannel(cfg.SSHUser, cfg.SSHKeyPath)
	if err != nil {
		log.Printf("WARNING: ssh channel unavailable (%v) -- recovery and taps disabled", err)
		channel = ops.Unavailable{}
	} else {
		channel = sshChannel
	}

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.SMTPHost != "" && cfg.AlertTo != "" {
		port, err := strconv.Atoi(cfg.SMTPPort)
		if err != nil {
			log.Fatalf("smtp port: %v", err)
		}
		notifier = &notify.SMTPNotifier{
			Host:     cfg.SMTPHost,
			Port:     port,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.SMTPUser,
			To:       cfg.AlertTo,
		}
		log.Println("smtp alerts enabled to " + cfg.AlertTo)
	}

	mon := &monitor.Monitor{
		Store:    db,
		Ops:      channel,
		Notifier: notifier,
		WS:       ws,
		Interval: cfg.MonitorInterval,
	}
	monCtx, monCancel := context.WithCancel(context.Background())
	defer monCancel()
	go mon.Run(monCtx)

	taps := &monitor.TapRunner{Store: db, Ops: channel, WS: ws, Schedule: cfg.TapSchedule}
	if err := taps.Start(); err != nil {
		log.Fatalf("tap scheduler: %v", err)
	}

	var snapshotter *archive.Snapshotter
	if cfg.ArchiveEndpoint != "" {
		objects, err := archive.NewClient(archive.Config{
			Endpoint:  cfg.ArchiveEndpoint,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
			Bucket:    cfg.ArchiveBucket,
			UseSSL:    true,
		})
		if err != nil {
			log.Printf("WARNING: archive storage unavailable (%v)", err)
		} else {
			snapshotter = &archive.Snapshotter{Store: db, Objects: objects, Schedule: cfg.ArchiveSchedule}
			if err := snapshotter.Start(); err != nil {
				log.Fatalf("archive scheduler: %v", err)
			}
		}
	}

	h := handler.New(db, ctrl, ws, cfg)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"version": Version})
		})

		r.Group(func(r chi.Router) {
			r.Use(handler.JWTAuth(cfg.JWTSecret))

			r.Get("/stats", h.GetStats)
			r.Get("/providers", h.ListProviders)
			r.Get("/providers/{name}/regions", h.ListRegions)

			r.Get("/vms", h.ListVMs)
			r.Post("/vms", h.CreateVM)
			r.Route("/vms/{id}", func(r chi.Router) {
				r.Use(handler.ValidateID)
				r.Get("/", h.GetVM)
				r.Delete("/", h.DeleteVM)
				r.Post("/start", h.StartVM)
				r.Post("/stop", h.StopVM)
				r.Get("/nodes", h.ListVMNodes)
			})

			r.Get("/nodes", h.ListNodes)
			r.Route("/nodes/{id}", func(r chi.Router) {
				r.Use(handler.ValidateID)
				r.Get("/", h.GetNode)
				r.Post("/status", h.PublishNodeStatus)
				r.Get("/rewards", h.ListNodeRewards)
				r.Get("/referrals", h.ListNodeReferrals)
			})

			r.Post("/rewards", h.SubmitReward)
			r.Post("/referrals", h.CreateReferral)
		})
	})

	r.Get("/ws", ws.HandleConnect)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("gradientlab %s listening on :%s", Version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	monCancel()
	taps.Stop()
	if snapshotter != nil {
		snapshotter.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
