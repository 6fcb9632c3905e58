// Package config loads process-level configuration for the lemengine host:
// database connection, read-API bind address, archive/retention settings,
// and the PRNG seed fallback for the order-book shuffle. Per-market
// clearing/timing/pricing configuration is not here — it is loaded from
// YAML by internal/marketcfg (spec.md §6) — this package only covers the
// flags and environment variables the host process itself needs, following
// ndrandal/feed-simulator's internal/config.Load flag+env-fallback shape.
package config

import (
	"flag"
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all lemengine process configuration.
type Config struct {
	// Read API server
	APIPort int
	APIHost string

	// Database
	MongoURI string

	// Table retention
	RetentionDays int

	// Simulation
	Seed             int64
	SnapshotInterval time.Duration

	// Market configuration directory: YAML files decoded by marketcfg.Load.
	MarketConfigDir string

	// Simulation window the timetable builder expands over (spec.md §4.1).
	SimStart    time.Time
	SimDuration time.Duration

	// Live feed (websocket) send buffer
	SendBufferSize int

	// Transaction archiver (opt-in: only active when ArchiveDir is set; S3
	// mirroring additionally requires S3Bucket)
	S3Bucket             string
	S3Region             string
	S3Prefix             string
	ArchiveDir           string
	ArchiveMaxGB         int
	ArchiveIntervalHours int
	ArchiveAfterHours    int
}

// Load parses flags, falling back to environment variables, then defaults,
// matching the teacher's envStr/envInt/envInt64 helper pattern verbatim.
func Load() *Config {
	c := &Config{}

	flag.IntVar(&c.APIPort, "port", envInt("LEM_PORT", 8200), "Read API server port")
	flag.StringVar(&c.APIHost, "host", envStr("LEM_HOST", "0.0.0.0"), "Listen host")

	flag.StringVar(&c.MongoURI, "mongo-uri", envStr("MONGO_URI", "mongodb://localhost:27017/lemengine"), "MongoDB connection URI")
	flag.IntVar(&c.RetentionDays, "retention", envInt("RETENTION_DAYS", 30), "Result-table retention in days (0 = keep forever)")

	flag.StringVar(&c.MarketConfigDir, "market-config-dir", envStr("MARKET_CONFIG_DIR", "./markets"), "Directory of per-market YAML configuration files")

	flag.StringVar(&c.S3Bucket, "s3-bucket", envStr("S3_BUCKET", ""), "S3 bucket for transaction archival (empty = disabled)")
	flag.StringVar(&c.S3Region, "s3-region", envStr("S3_REGION", "us-east-1"), "AWS region for S3")
	flag.StringVar(&c.S3Prefix, "s3-prefix", envStr("S3_PREFIX", "lemengine"), "S3 key prefix for archived transactions")
	flag.StringVar(&c.ArchiveDir, "archive-dir", envStr("ARCHIVE_DIR", ""), "Local directory for gzipped transaction archives (empty = disabled)")
	flag.IntVar(&c.ArchiveMaxGB, "archive-max-gb", envInt("ARCHIVE_MAX_GB", 10), "Maximum total size of local archives in GB")
	flag.IntVar(&c.ArchiveIntervalHours, "archive-interval", envInt("ARCHIVE_INTERVAL_HOURS", 6), "Hours between archive runs")
	flag.IntVar(&c.ArchiveAfterHours, "archive-after", envInt("ARCHIVE_AFTER_HOURS", 24), "Archive transactions older than this many hours")

	flag.Int64Var(&c.Seed, "seed", envInt64("LEM_SEED", 0), "Fallback PRNG seed when a step has no deterministic (region,market,name,timestep) derivation available (0 = time-derived)")
	flag.IntVar(&c.SendBufferSize, "send-buffer", envInt("SEND_BUFFER", 4096), "Per-client live-feed send buffer size")

	simStart := flag.String("sim-start", envStr("SIM_START", ""), "Simulation window start, RFC3339 (empty = now, truncated to the hour)")
	simDurationHours := flag.Int("sim-duration-hours", envInt("SIM_DURATION_HOURS", 24), "Simulation window length in hours")

	flag.Parse()

	c.SnapshotInterval = 30 * time.Second
	c.SimDuration = time.Duration(*simDurationHours) * time.Hour

	if *simStart != "" {
		t, err := time.Parse(time.RFC3339, *simStart)
		if err != nil {
			log.Fatalf("config: invalid -sim-start %q: %v", *simStart, err)
		}
		c.SimStart = t
	} else {
		c.SimStart = time.Now().UTC().Truncate(time.Hour)
	}

	return c
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
