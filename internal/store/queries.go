package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hamlet-sim/lem-engine/internal/clearing"
	"github.com/hamlet-sim/lem-engine/internal/quote"
	"github.com/hamlet-sim/lem-engine/internal/timetable"
)

// StepKey identifies one timetable row's dimensions, the filter every
// collection in this package is queried or cleared by (spec §3: "Dimensions
// on every row").
type StepKey struct {
	Region   string
	Market   string
	Name     string
	Timestep time.Time
}

func (k StepKey) filter() bson.M {
	return bson.M{"region": k.Region, "market": k.Market, "name": k.Name, "timestep": k.Timestep}
}

// PutTimetable idempotently upserts a market's built timetable.
func (s *Store) PutTimetable(ctx context.Context, rows []timetable.Row) error {
	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		doc := toTimetableDoc(r)
		filter := bson.M{
			"region": doc.Region, "market": doc.Market, "name": doc.Name,
			"timestamp": doc.Timestamp, "timestep": doc.Timestep,
		}
		_, err := s.db.Collection(collTimetable).ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("store: put timetable row: %w", err)
		}
	}
	return nil
}

// GetBidsOffers fetches the agent quote book for one (region, market, name,
// timestep), the database façade operation spec §6 names
// `get_bids_offers`.
func (s *Store) GetBidsOffers(ctx context.Context, key StepKey) ([]quote.Quote, error) {
	cursor, err := s.db.Collection(collQuotes).Find(ctx, key.filter())
	if err != nil {
		return nil, fmt.Errorf("store: get bids/offers: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []quoteDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("store: decode bids/offers: %w", err)
	}
	quotes := make([]quote.Quote, len(docs))
	for i, d := range docs {
		quotes[i] = fromQuoteDoc(d)
	}
	return quotes, nil
}

// GetRetailers fetches the retailer rows for one timestep, keyed by
// retailer name (spec §4.2, §5: multiple retailers per market).
func (s *Store) GetRetailers(ctx context.Context, key StepKey) (map[string]quote.RetailerRow, error) {
	cursor, err := s.db.Collection(collRetailers).Find(ctx, bson.M{
		"region": key.Region, "market": key.Market, "name": key.Name, "timestamp": key.Timestep,
	})
	if err != nil {
		return nil, fmt.Errorf("store: get retailers: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []retailerDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("store: decode retailers: %w", err)
	}
	out := make(map[string]quote.RetailerRow, len(docs))
	for _, d := range docs {
		out[d.Retailer] = fromRetailerDoc(d)
	}
	return out, nil
}

// CommitResult clears any prior partial content for key across the five
// tables, then writes result, inside one transaction — the "five-table
// write is the final step" discipline of spec §5, ensuring partial commits
// are impossible. Retrying a failed commit does not double-write, because
// each attempt first clears the key's rows. The UUID generated per attempt
// (idempotencyKey) is only the transaction callback's return value; it is
// not stored or returned to the caller.
func (s *Store) CommitResult(ctx context.Context, key StepKey, result clearing.Result) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("store: start session: %w", err)
	}
	defer session.EndSession(ctx)

	idempotencyKey := uuid.New().String()

	_, err = session.WithTransaction(ctx, func(sc context.Context) (any, error) {
		filter := key.filter()
		for _, coll := range []string{collClearedBids, collClearedOffers, collUnclearedBids, collUnclearedOffers, collTransactions} {
			if _, err := s.db.Collection(coll).DeleteMany(sc, filter); err != nil {
				return nil, fmt.Errorf("clear %s: %w", coll, err)
			}
		}

		now := time.Now()
		d := dims{Region: key.Region, Market: key.Market, Name: key.Name, Timestep: key.Timestep, Timestamp: now}

		if docs := clearedBidDocs(d, result.ClearedBids); len(docs) > 0 {
			if _, err := s.db.Collection(collClearedBids).InsertMany(sc, docs); err != nil {
				return nil, fmt.Errorf("insert cleared bids: %w", err)
			}
		}
		if docs := clearedOfferDocs(d, result.ClearedOffers); len(docs) > 0 {
			if _, err := s.db.Collection(collClearedOffers).InsertMany(sc, docs); err != nil {
				return nil, fmt.Errorf("insert cleared offers: %w", err)
			}
		}
		if docs := unclearedBidDocs(d, result.UnclearedBids); len(docs) > 0 {
			if _, err := s.db.Collection(collUnclearedBids).InsertMany(sc, docs); err != nil {
				return nil, fmt.Errorf("insert uncleared bids: %w", err)
			}
		}
		if docs := unclearedOfferDocs(d, result.UnclearedOffers); len(docs) > 0 {
			if _, err := s.db.Collection(collUnclearedOffers).InsertMany(sc, docs); err != nil {
				return nil, fmt.Errorf("insert uncleared offers: %w", err)
			}
		}
		if docs := transactionDocs(d, result.Transactions); len(docs) > 0 {
			if _, err := s.db.Collection(collTransactions).InsertMany(sc, docs); err != nil {
				return nil, fmt.Errorf("insert transactions: %w", err)
			}
		}
		return idempotencyKey, nil
	})
	if err != nil {
		return fmt.Errorf("store: commit result: %w", err)
	}
	return nil
}

func clearedBidDocs(d dims, rows []clearing.ClearedBid) []any {
	docs := make([]any, len(rows))
	for i, r := range rows {
		docs[i] = clearedBidDoc{dims: d, IDAgentIn: r.IDAgentIn, TradeOrdinal: r.TradeOrdinal, EnergyIn: r.EnergyIn, PricePUIn: r.PricePUIn, PriceIn: r.PriceIn}
	}
	return docs
}

func clearedOfferDocs(d dims, rows []clearing.ClearedOffer) []any {
	docs := make([]any, len(rows))
	for i, r := range rows {
		docs[i] = clearedOfferDoc{dims: d, IDAgentOut: r.IDAgentOut, TradeOrdinal: r.TradeOrdinal, EnergyOut: r.EnergyOut, PricePUOut: r.PricePUOut, PriceOut: r.PriceOut}
	}
	return docs
}

func unclearedBidDocs(d dims, rows []clearing.UnclearedBid) []any {
	docs := make([]any, len(rows))
	for i, r := range rows {
		docs[i] = unclearedBidDoc{dims: d, IDAgentIn: r.IDAgentIn, EnergyIn: r.EnergyIn}
	}
	return docs
}

func unclearedOfferDocs(d dims, rows []clearing.UnclearedOffer) []any {
	docs := make([]any, len(rows))
	for i, r := range rows {
		docs[i] = unclearedOfferDoc{dims: d, IDAgentOut: r.IDAgentOut, EnergyOut: r.EnergyOut}
	}
	return docs
}

func transactionDocs(d dims, rows []clearing.Transaction) []any {
	docs := make([]any, len(rows))
	for i, r := range rows {
		docs[i] = transactionDoc{
			dims: d, IDAgent: r.IDAgent, Ordinal: r.Ordinal, Type: r.Type,
			EnergyIn: r.EnergyIn, EnergyOut: r.EnergyOut,
			PricePUIn: r.PricePUIn, PricePUOut: r.PricePUOut,
			PriceIn: r.PriceIn, PriceOut: r.PriceOut, Quality: r.Quality,
		}
	}
	return docs
}
