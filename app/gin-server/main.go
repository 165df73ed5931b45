package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/hireloop/hireloop/config"
	"github.com/hireloop/hireloop/internal/api/handlers"
	"github.com/hireloop/hireloop/internal/api/middleware"
	"github.com/hireloop/hireloop/internal/api/routes"
	"github.com/hireloop/hireloop/internal/archive"
	"github.com/hireloop/hireloop/internal/broadcast"
	"github.com/hireloop/hireloop/internal/cache"
	"github.com/hireloop/hireloop/internal/logger"
	"github.com/hireloop/hireloop/internal/models"
	"github.com/hireloop/hireloop/internal/pool"
	"github.com/hireloop/hireloop/internal/providers/compute"
	"github.com/hireloop/hireloop/internal/providers/room"
	mongorepo "github.com/hireloop/hireloop/internal/repositories/mongo"
	pgrepo "github.com/hireloop/hireloop/internal/repositories/postgres"
	"github.com/hireloop/hireloop/internal/services"
	"github.com/hireloop/hireloop/internal/workers"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	app, err := config.LoadApp()
	if err != nil {
		log.WithError(err).Fatal("config error")
	}

	if err := config.InitPostgres(); err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	if err := config.PostgresDB.AutoMigrate(&models.Session{}, &models.InterviewTemplate{}); err != nil {
		log.WithError(err).Fatal("PostgreSQL migrate error")
	}

	if err := config.InitMongo(); err != nil {
		log.WithError(err).Fatal("MongoDB init error")
	}
	if err := config.EnsureMongoIndexes(); err != nil {
		log.WithError(err).Fatal("MongoDB index error")
	}

	if err := config.InitRedis(); err != nil {
		log.WithError(err).Fatal("Redis init error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories
	sessionRepo := pgrepo.NewSessionRepo(config.PostgresDB)
	templateRepo := pgrepo.NewTemplateRepo(config.PostgresDB)
	fragmentRepo := mongorepo.NewFragmentRepo(config.MongoDatabase())

	// Collaborators
	rooms := room.NewHTTPProvider(app.RoomBaseURL, app.RoomAPIKey)
	launcher := compute.NewHTTPLauncher(app.LauncherBaseURL, app.LauncherToken)

	var sink archive.Sink
	if app.ArchiveBucket != "" {
		gcsSink, err := archive.NewGCSSink(ctx, app.ArchiveBucket)
		if err != nil {
			log.WithError(err).Fatal("GCS sink init error")
		}
		defer gcsSink.Close()
		sink = gcsSink
	}

	// Core components
	hub := broadcast.NewHub(logger.Component(log, "broadcast"))
	workerPool := pool.New(app.Pool, launcher, logger.Component(log, "pool"))

	templateSvc := services.NewTemplateService(templateRepo, cache.NewRedisCache(config.RedisClient))
	sessionSvc := services.NewSessionService(services.SessionServiceDeps{
		Sessions:  sessionRepo,
		Templates: templateSvc,
		Fragments: fragmentRepo,
		Pool:      workerPool,
		Rooms:     rooms,
		Hub:       hub,
		Sink:      sink,
		Log:       logger.Component(log, "session"),
	})
	transcriptSvc := services.NewTranscriptService(sessionSvc, fragmentRepo, hub,
		app.FragmentRetention, logger.Component(log, "transcript"))

	ingest := &workers.IngestPool{
		Redis:       config.RedisClient,
		Sessions:    sessionSvc,
		Transcripts: transcriptSvc,
		Logger:      log,
	}
	if err := ingest.Start(ctx); err != nil {
		log.WithError(err).Fatal("ingest pool start error")
	}

	// HTTP surface
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	routes.RegisterRoutes(r, routes.Deps{
		Session:     handlers.NewSessionHandler(sessionSvc),
		Template:    handlers.NewTemplateHandler(templateSvc),
		Worker:      handlers.NewWorkerHandler(sessionSvc, transcriptSvc),
		WS:          handlers.NewWSHandler(sessionSvc, logger.Component(log, "ws")),
		WorkerToken: app.WorkerToken,
	})

	srv := &http.Server{
		Addr:    ":" + app.Port,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		workerPool.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("server error")
	}
	log.Info("shutdown complete")
}
