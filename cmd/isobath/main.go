package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/banshee-data/isobath/internal/api"
	"github.com/banshee-data/isobath/internal/bathy"
	"github.com/banshee-data/isobath/internal/config"
	"github.com/banshee-data/isobath/internal/db"
	"github.com/banshee-data/isobath/internal/monitoring"
	"github.com/banshee-data/isobath/internal/postgis"
	"github.com/banshee-data/isobath/internal/survey"
	"github.com/banshee-data/isobath/internal/version"
)

// envPostgresDSN overrides an empty -postgres-dsn.
const envPostgresDSN = "ISOBATH_PG_DSN"

var (
	listen      = flag.String("listen", ":8080", "Listen address")
	dbPath      = flag.String("db", "isobath.db", "SQLite database path")
	configPath  = flag.String("config", "", "Contour config JSON (built-in defaults when empty)")
	postgresDSN = flag.String("postgres-dsn", "", "PostGIS DSN; samples and contours are then read from and written to spatial_features (env "+envPostgresDSN+")")
	envFile     = flag.String("env-file", ".env", "Optional dotenv file loaded before resolving the environment")
	debugLogs   = flag.Bool("debug", false, "Enable engine diagnostic and trace logs")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		fsMigrate := flag.NewFlagSet("migrate", flag.ExitOnError)
		path := fsMigrate.String("db", "isobath.db", "SQLite database path")
		_ = fsMigrate.Parse(os.Args[2:])
		if err := db.RunMigrateCommand(fsMigrate.Args(), *path, os.Stdin, os.Stdout); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	if err := loadEnvFile(*envFile); err != nil {
		log.Fatalf("failed to load env file: %v", err)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logw := monitoring.Writer()
	if *debugLogs {
		bathy.SetLogWriters(logw, logw, logw)
	} else {
		bathy.SetLogWriters(logw, nil, nil)
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiCfg := api.Config{
		Samples:  database,
		Contours: database,
		Catalog:  database,
		Backend:  "sqlite",
	}
	if dsn := resolveDSN(*postgresDSN); dsn != "" {
		pg, err := postgis.Open(ctx, dsn)
		if err != nil {
			log.Fatalf("Failed to connect to PostGIS: %v", err)
		}
		defer pg.Close()
		apiCfg = api.Config{Samples: pg, Contours: pg, Backend: "postgis"}
		log.Printf("using PostGIS store, survey catalog disabled")
	}
	apiCfg.Service = survey.NewService(apiCfg.Samples, apiCfg.Contours, cfg)

	var wg sync.WaitGroup

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(apiCfg).ServeMux()
		if err := database.AttachAdminRoutes(mux); err != nil {
			log.Printf("failed to attach admin routes: %v", err)
		}

		server := &http.Server{
			Addr:              *listen,
			Handler:           api.LoggingMiddleware(mux),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Printf("%s listening on %s", version.String(), *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		// Regeneration can take a while on large grids.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// loadEnvFile loads a dotenv file. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// loadConfig reads a contour config file, or returns the defaults.
func loadConfig(path string) (*config.ContourConfig, error) {
	if path == "" {
		return config.DefaultContourConfig(), nil
	}
	return config.LoadContourConfig(path)
}

// resolveDSN prefers the flag, then the environment.
func resolveDSN(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(envPostgresDSN)
}
