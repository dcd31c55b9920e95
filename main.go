package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"routeengine/internal/cache"
	intconfig "routeengine/internal/config"
	router "routeengine/internal/http"
	"routeengine/internal/http/handlers"
	"routeengine/internal/graph"
	"routeengine/internal/importer"
	"routeengine/internal/repositories"
	"routeengine/internal/routing"
	"routeengine/internal/services"

	"github.com/gin-gonic/gin"
)

func main() {
	env := intconfig.LoadEnv()
	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

	engine, err := intconfig.LoadEngine(env.EngineConfigPath)
	if err != nil {
		log.Fatalf("invalid engine config: %v", err)
	}

	db, err := intconfig.OpenDB(env)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}

	var store repositories.CanonicalStore
	if db == nil {
		store = repositories.NewMemoryStore()
		log.Println("using in-memory canonical store")
	} else {
		defer db.Close()
		sqlStore := repositories.SQLStore{DB: db, Dialect: env.StoreDriver}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := sqlStore.EnsureSchema(ctx)
		cancel()
		if err != nil {
			log.Fatalf("failed to prepare schema: %v", err)
		}
		store = sqlStore
	}

	holder := &graph.Holder{}
	results := cache.New(cache.Options{TTL: engine.Cache.TTL, Size: engine.Cache.Size})

	fr := &handlers.FastestRoute{
		Graph: services.GraphService{
			Store:        store,
			Holder:       holder,
			Cache:        results,
			Options:      graph.Options{AverageSpeedKmh: engine.AverageSpeedKmh},
			BuildTimeout: engine.BuildTimeout,
		},
		Search: services.SearchService{
			Holder: holder,
			Finder: routing.NewFinder(routing.Options{
				MaxTransfers:  engine.MaxTransfers,
				LabelsPerStop: engine.LabelsPerStop,
				TimeFilter:    engine.TimeFilter,
			}),
			Cache:   results,
			Timeout: engine.SearchTimeout,
		},
		Import: services.ImportService{Importer: importer.New(store)},
		Status: services.StatusService{Holder: holder, Cache: results},
		Cache:  services.CacheService{Cache: results},
		Stops:  services.StopService{Holder: holder},
		Engine: engine,
	}

	if env.WarmBuild {
		warm := fr.Graph
		warm.RequestID = "startup"
		if _, err := warm.Rebuild(context.Background()); err != nil {
			log.Printf("warning: startup graph build skipped: %v", err)
		}
	}

	r := router.NewRouter(env, fr)

	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("route engine listening on http://localhost%s", env.AppAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server shutdown failed: %v", err)
	}

	log.Println("server stopped cleanly.")
}
