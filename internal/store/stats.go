package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ClearedVolumeBucket is one time bucket of an aggregated cleared-volume
// series, the LEM analogue of the teacher's OHLCV candle query
// (ndrandal/feed-simulator's internal/persist.QueryCandles) — here bucketed
// by settlement interval rather than trade price, since clearing produces
// volume/price pairs, not a continuous tick stream.
type ClearedVolumeBucket struct {
	Bucket       time.Time `bson:"_id"`
	EnergyTraded uint64    `bson:"energy_traded"`
	TradeCount   int64     `bson:"trade_count"`
}

var bucketSeconds = map[string]int64{
	"15m": 900,
	"1h":  3600,
	"1d":  86400,
}

// QueryClearedVolume aggregates market transactions for one market instance
// into fixed-width time buckets, for dashboards built atop the API layer.
func (s *Store) QueryClearedVolume(ctx context.Context, region, market, name, interval string, limit int) ([]ClearedVolumeBucket, error) {
	secs, ok := bucketSeconds[interval]
	if !ok {
		return nil, fmt.Errorf("store: unsupported interval %q", interval)
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	millisPerBucket := secs * 1000

	bucketExpr := bson.M{
		"$toDate": bson.M{
			"$subtract": bson.A{
				bson.M{"$toLong": "$timestep"},
				bson.M{"$mod": bson.A{bson.M{"$toLong": "$timestep"}, millisPerBucket}},
			},
		},
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"region": region, "market": market, "name": name, "type_transaction": "market",
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bucketExpr},
			{Key: "energy_traded", Value: bson.M{"$sum": "$energy_in"}},
			{Key: "trade_count", Value: bson.M{"$sum": 1}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: -1}}}},
		{{Key: "$limit", Value: int64(limit)}},
	}

	cursor, err := s.db.Collection(collTransactions).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("store: query cleared volume: %w", err)
	}
	defer cursor.Close(ctx)

	var buckets []ClearedVolumeBucket
	if err := cursor.All(ctx, &buckets); err != nil {
		return nil, fmt.Errorf("store: decode cleared volume: %w", err)
	}
	return buckets, nil
}
