// Package store is the market database façade of spec §6: it persists the
// five per-step result tables plus the timetable and retailer book, keyed
// by (region, market, name, timestep), and exposes the read queries the API
// layer needs. It is grounded on the teacher's MongoDB persistence layer
// (ndrandal/feed-simulator's internal/persist package) — same driver
// (go.mongodb.org/mongo-driver/v2), same connect/migrate/close shape —
// generalized from a single "trades" collection to the engine's five
// tables plus supporting collections.
package store

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Store wraps the MongoDB client and database holding the engine's tables.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB and returns a Store. The URI should include the
// database name (e.g. mongodb://localhost:27017/lemengine); if absent,
// "lemengine" is used.
func New(ctx context.Context, uri string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	dbName := "lemengine"
	if u, err := url.Parse(uri); err == nil {
		if name := strings.TrimPrefix(u.Path, "/"); name != "" {
			dbName = name
		}
	}

	log.Printf("store: connected to MongoDB (db=%s)", dbName)
	return &Store{client: client, db: client.Database(dbName)}, nil
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) { s.client.Disconnect(ctx) }

// DB returns the underlying mongo.Database, for packages (e.g. archive) that
// need to build their own queries or change streams.
func (s *Store) DB() *mongo.Database { return s.db }

// Client returns the underlying mongo.Client, needed for multi-collection
// transactions around a step's five-table commit (spec §4.11 step 5).
func (s *Store) Client() *mongo.Client { return s.client }

// Migrate creates indexes for all collections.
func (s *Store) Migrate(ctx context.Context) error {
	return EnsureIndexes(ctx, s.db)
}

const (
	collClearedBids     = "cleared_bids"
	collClearedOffers   = "cleared_offers"
	collUnclearedBids   = "uncleared_bids"
	collUnclearedOffers = "uncleared_offers"
	collTransactions    = "transactions"
	collQuotes          = "quotes"
	collRetailers       = "retailers"
	collTimetable       = "timetable"
)
