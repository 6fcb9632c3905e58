package store

import (
	"context"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// stepDimensions is the compound key every collection is indexed on: the
// five local tables are keyed by (timestep, region, market, name), as spec
// §3 states for the cleared/uncleared/transaction entities.
func stepDimensions() bson.D {
	return bson.D{
		{Key: "region", Value: 1},
		{Key: "market", Value: 1},
		{Key: "name", Value: 1},
		{Key: "timestep", Value: 1},
	}
}

// EnsureIndexes creates idempotent indexes on all collections.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	type idx struct {
		collection string
		model      mongo.IndexModel
	}

	indexes := []idx{
		{collTimetable, mongo.IndexModel{
			Keys: bson.D{
				{Key: "region", Value: 1}, {Key: "market", Value: 1}, {Key: "name", Value: 1},
				{Key: "timestamp", Value: 1}, {Key: "timestep", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		}},
		{collQuotes, mongo.IndexModel{
			Keys: bson.D{
				{Key: "region", Value: 1}, {Key: "market", Value: 1}, {Key: "name", Value: 1},
				{Key: "timestep", Value: 1},
			},
		}},
		{collRetailers, mongo.IndexModel{
			Keys: bson.D{
				{Key: "region", Value: 1}, {Key: "market", Value: 1}, {Key: "name", Value: 1},
				{Key: "timestamp", Value: 1}, {Key: "retailer", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		}},
		{collClearedBids, mongo.IndexModel{Keys: stepDimensions()}},
		{collClearedOffers, mongo.IndexModel{Keys: stepDimensions()}},
		{collUnclearedBids, mongo.IndexModel{Keys: stepDimensions()}},
		{collUnclearedOffers, mongo.IndexModel{Keys: stepDimensions()}},
		{collTransactions, mongo.IndexModel{
			Keys: append(stepDimensions(), bson.E{Key: "type_transaction", Value: 1}),
		}},
	}

	for _, i := range indexes {
		if _, err := db.Collection(i.collection).Indexes().CreateOne(ctx, i.model); err != nil {
			return fmt.Errorf("store: create index on %s: %w", i.collection, err)
		}
	}

	log.Println("store: MongoDB indexes ensured")
	return nil
}
