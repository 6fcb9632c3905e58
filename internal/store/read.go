package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hamlet-sim/lem-engine/internal/clearing"
	"github.com/hamlet-sim/lem-engine/internal/timetable"
)

// MarketRef identifies one market instance, the dimension triple every
// collection is partitioned by (spec §3).
type MarketRef struct {
	Region string `bson:"region" json:"region"`
	Market string `bson:"market" json:"market"`
	Name   string `bson:"name"   json:"name"`
}

// ListMarkets returns the distinct (region, market, name) triples that have
// a built timetable, for the read API's market-discovery endpoint.
func (s *Store) ListMarkets(ctx context.Context) ([]MarketRef, error) {
	pipeline := []bson.M{
		{"$group": bson.M{"_id": bson.M{"region": "$region", "market": "$market", "name": "$name"}}},
		{"$sort": bson.M{"_id.region": 1, "_id.market": 1, "_id.name": 1}},
		{"$project": bson.M{"_id": 0, "region": "$_id.region", "market": "$_id.market", "name": "$_id.name"}},
	}
	cursor, err := s.db.Collection(collTimetable).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("store: list markets: %w", err)
	}
	defer cursor.Close(ctx)

	var refs []MarketRef
	if err := cursor.All(ctx, &refs); err != nil {
		return nil, fmt.Errorf("store: decode markets: %w", err)
	}
	return refs, nil
}

// Range narrows a query to a market instance and an optional [From, To)
// timestep window (spec §3's timestep dimension), plus a result-size limit.
type Range struct {
	Region string
	Market string
	Name   string
	From   *time.Time
	To     *time.Time
	Limit  int
}

func (r Range) filter() bson.M {
	f := bson.M{"region": r.Region, "market": r.Market, "name": r.Name}
	if r.From != nil || r.To != nil {
		ts := bson.M{}
		if r.From != nil {
			ts["$gte"] = *r.From
		}
		if r.To != nil {
			ts["$lt"] = *r.To
		}
		f["timestep"] = ts
	}
	return f
}

func (r Range) limit() int64 {
	if r.Limit <= 0 || r.Limit > 1000 {
		return 100
	}
	return int64(r.Limit)
}

// ListTimetable returns the built timetable rows for a market instance
// within r's window, ascending by (timestamp, timestep).
func (s *Store) ListTimetable(ctx context.Context, r Range) ([]timetable.Row, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "timestep", Value: 1}}).SetLimit(r.limit())
	cursor, err := s.db.Collection(collTimetable).Find(ctx, r.filter(), opts)
	if err != nil {
		return nil, fmt.Errorf("store: list timetable: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []timetableDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("store: decode timetable: %w", err)
	}
	rows := make([]timetable.Row, len(docs))
	for i, d := range docs {
		rows[i] = fromTimetableDoc(d)
	}
	return rows, nil
}

// ListClearedBids returns cleared-bid rows for a market instance's window.
func (s *Store) ListClearedBids(ctx context.Context, r Range) ([]clearing.ClearedBid, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestep", Value: 1}}).SetLimit(r.limit())
	cursor, err := s.db.Collection(collClearedBids).Find(ctx, r.filter(), opts)
	if err != nil {
		return nil, fmt.Errorf("store: list cleared bids: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []clearedBidDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("store: decode cleared bids: %w", err)
	}
	out := make([]clearing.ClearedBid, len(docs))
	for i, d := range docs {
		out[i] = clearing.ClearedBid{IDAgentIn: d.IDAgentIn, TradeOrdinal: d.TradeOrdinal, EnergyIn: d.EnergyIn, PricePUIn: d.PricePUIn, PriceIn: d.PriceIn}
	}
	return out, nil
}

// ListClearedOffers returns cleared-offer rows for a market instance's window.
func (s *Store) ListClearedOffers(ctx context.Context, r Range) ([]clearing.ClearedOffer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestep", Value: 1}}).SetLimit(r.limit())
	cursor, err := s.db.Collection(collClearedOffers).Find(ctx, r.filter(), opts)
	if err != nil {
		return nil, fmt.Errorf("store: list cleared offers: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []clearedOfferDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("store: decode cleared offers: %w", err)
	}
	out := make([]clearing.ClearedOffer, len(docs))
	for i, d := range docs {
		out[i] = clearing.ClearedOffer{IDAgentOut: d.IDAgentOut, TradeOrdinal: d.TradeOrdinal, EnergyOut: d.EnergyOut, PricePUOut: d.PricePUOut, PriceOut: d.PriceOut}
	}
	return out, nil
}

// ListTransactions returns transaction rows for a market instance's window,
// optionally narrowed to a single type_transaction (spec §3/§4.7-§4.9).
func (s *Store) ListTransactions(ctx context.Context, r Range, txType clearing.TransactionType) ([]clearing.Transaction, error) {
	filter := r.filter()
	if txType != "" {
		filter["type_transaction"] = txType
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestep", Value: 1}}).SetLimit(r.limit())
	cursor, err := s.db.Collection(collTransactions).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("store: list transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []transactionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("store: decode transactions: %w", err)
	}
	out := make([]clearing.Transaction, len(docs))
	for i, d := range docs {
		out[i] = clearing.Transaction{
			IDAgent: d.IDAgent, Ordinal: d.Ordinal, Type: d.Type,
			EnergyIn: d.EnergyIn, EnergyOut: d.EnergyOut,
			PricePUIn: d.PricePUIn, PricePUOut: d.PricePUOut,
			PriceIn: d.PriceIn, PriceOut: d.PriceOut, Quality: d.Quality,
		}
	}
	return out, nil
}

// CountMarkets returns the number of distinct market instances known to
// the timetable collection, for the stats endpoint.
func (s *Store) CountMarkets(ctx context.Context) (int, error) {
	refs, err := s.ListMarkets(ctx)
	if err != nil {
		return 0, err
	}
	return len(refs), nil
}

// CountTransactions returns the total transaction row count, for the stats
// endpoint.
func (s *Store) CountTransactions(ctx context.Context) (int64, error) {
	n, err := s.db.Collection(collTransactions).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("store: count transactions: %w", err)
	}
	return n, nil
}
