package store

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// RunRetention periodically deletes committed step tables older than
// retentionDays. Blocks until ctx is cancelled. Pass retentionDays <= 0 to
// disable (spec treats the market database as the host's responsibility;
// retention policy is ambient infrastructure, not part of the clearing
// contract itself).
func RunRetention(ctx context.Context, s *Store, retentionDays int) {
	if retentionDays <= 0 {
		log.Println("store: retention disabled (keep forever)")
		return
	}

	interval := time.Hour
	log.Printf("store: retention pruning rows older than %d days every %v", retentionDays, interval)

	prune(ctx, s, retentionDays)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune(ctx, s, retentionDays)
		}
	}
}

func prune(ctx context.Context, s *Store, retentionDays int) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	filter := bson.M{"timestep": bson.M{"$lt": cutoff}}

	for _, coll := range []string{collClearedBids, collClearedOffers, collUnclearedBids, collUnclearedOffers, collTransactions, collQuotes} {
		result, err := s.db.Collection(coll).DeleteMany(ctx, filter)
		if err != nil {
			log.Printf("store: retention prune error on %s: %v", coll, err)
			continue
		}
		if result.DeletedCount > 0 {
			log.Printf("store: retention pruned %d rows from %s older than %s", result.DeletedCount, coll, cutoff.Format(time.DateOnly))
		}
	}
}
