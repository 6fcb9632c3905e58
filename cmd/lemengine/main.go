package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hamlet-sim/lem-engine/internal/api"
	"github.com/hamlet-sim/lem-engine/internal/archive"
	"github.com/hamlet-sim/lem-engine/internal/config"
	"github.com/hamlet-sim/lem-engine/internal/feed"
	"github.com/hamlet-sim/lem-engine/internal/marketcfg"
	"github.com/hamlet-sim/lem-engine/internal/runner"
	"github.com/hamlet-sim/lem-engine/internal/store"
	"github.com/hamlet-sim/lem-engine/internal/timetable"
)

func main() {
	cfg := config.Load()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("lem-engine starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	// Market configuration
	markets, err := marketcfg.LoadDir(cfg.MarketConfigDir)
	if err != nil {
		log.Fatalf("market configuration failed: %v", err)
	}
	log.Printf("loaded %d market configurations from %s", len(markets), cfg.MarketConfigDir)

	// MongoDB
	db, err := store.New(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close(context.Background())

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	// Build each market's timetable over the configured simulation window
	// and persist it (spec.md §4.1/§6: the timetable is itself a queryable
	// table, not just an in-memory schedule).
	simEnd := cfg.SimStart.Add(cfg.SimDuration)
	runMarkets := make([]runner.Market, 0, len(markets))
	for _, m := range markets {
		rows, err := timetable.Build(m, cfg.SimStart, simEnd)
		if err != nil {
			log.Fatalf("timetable build failed for %s/%s/%s: %v", m.Region, m.Market, m.Name, err)
		}
		if err := db.PutTimetable(ctx, rows); err != nil {
			log.Fatalf("timetable persist failed for %s/%s/%s: %v", m.Region, m.Market, m.Name, err)
		}
		log.Printf("market %s/%s/%s: %d timetable rows over [%s, %s)", m.Region, m.Market, m.Name, len(rows), cfg.SimStart, simEnd)
		runMarkets = append(runMarkets, runner.Market{
			Region: m.Region, MarketKind: m.Market, Name: m.Name, Rows: rows,
		})
	}

	// Live feed
	feedMgr := feed.NewManager(cfg.SendBufferSize)

	// Market runner (inter-market parallel, intra-market sequential)
	go func() {
		if err := runner.Run(ctx, db, feedMgr, runMarkets); err != nil {
			log.Printf("runner: stopped: %v", err)
		}
	}()

	// Transaction retention pruner
	go store.RunRetention(ctx, db, cfg.RetentionDays)

	// Transaction archiver (opt-in)
	if cfg.ArchiveDir != "" {
		uploader, err := archive.NewS3Uploader(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Prefix)
		if err != nil {
			log.Fatalf("s3 uploader init failed: %v", err)
		}
		archiver := archive.New(db.DB(), cfg.ArchiveDir, cfg.ArchiveMaxGB, cfg.ArchiveIntervalHours, cfg.ArchiveAfterHours, uploader)
		go archiver.Run(ctx)
	}

	// HTTP/WebSocket server
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", feed.Handler(feedMgr))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","clients":%d,"markets":%d}`, feedMgr.ClientCount(), len(runMarkets))
	})

	apiServer := api.NewServer(db, feedMgr)
	apiServer.Register(mux)

	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("HTTP server listening on http://%s", addr)
	log.Printf("live feed: ws://%s/feed", addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}

	log.Println("lem-engine stopped")
}
