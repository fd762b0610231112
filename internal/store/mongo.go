package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/chidi150c/spotarb/internal/market"
)

// Mongo is the production TradeStore, backed by four collections:
// trades, balance_current, balance_history, market_pairs — grounded on
// original_source/models.py's MongoDB wrapper and
// original_source/balance.py's fetch_and_update_balance/balance_history
// writes.
type Mongo struct {
	trades        *mongo.Collection
	balanceCurr   *mongo.Collection
	balanceHist   *mongo.Collection
	marketPairs   *mongo.Collection
}

// Dial connects to uri and returns a Mongo store scoped to database
// dbName. The caller owns the *mongo.Client's lifecycle: calling the
// returned func disconnects it.
func Dial(ctx context.Context, uri, dbName string) (*Mongo, func(context.Context) error, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("store: connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, fmt.Errorf("store: pinging mongo: %w", err)
	}
	db := client.Database(dbName)
	m := &Mongo{
		trades:      db.Collection("trades"),
		balanceCurr: db.Collection("balance_current"),
		balanceHist: db.Collection("balance_history"),
		marketPairs: db.Collection("market_pairs"),
	}
	return m, client.Disconnect, nil
}

func (m *Mongo) InsertTrade(ctx context.Context, rec TradeRecord) error {
	_, err := m.trades.InsertOne(ctx, rec)
	if err != nil {
		return fmt.Errorf("store: insert trade %s: %w", rec.ID, err)
	}
	return nil
}

type balanceCurrentDoc struct {
	Venue    string                            `bson:"_id"`
	Balances map[market.Asset]decimal.Decimal  `bson:"balances"`
}

func (m *Mongo) WriteBalance(ctx context.Context, venue string, balances map[market.Asset]decimal.Decimal) error {
	opts := options.Replace().SetUpsert(true)
	_, err := m.balanceCurr.ReplaceOne(ctx, bson.M{"_id": venue}, balanceCurrentDoc{Venue: venue, Balances: balances}, opts)
	if err != nil {
		return fmt.Errorf("store: write balance_current for %q: %w", venue, err)
	}
	return nil
}

func (m *Mongo) ReadBalance(ctx context.Context, venue string) (map[market.Asset]decimal.Decimal, error) {
	var doc balanceCurrentDoc
	err := m.balanceCurr.FindOne(ctx, bson.M{"_id": venue}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return map[market.Asset]decimal.Decimal{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read balance_current for %q: %w", venue, err)
	}
	return doc.Balances, nil
}

func (m *Mongo) AppendBalanceHistory(ctx context.Context, entry BalanceHistoryEntry) error {
	_, err := m.balanceHist.InsertOne(ctx, entry)
	if err != nil {
		return fmt.Errorf("store: append balance_history: %w", err)
	}
	return nil
}

type marketPairMongoDoc struct {
	Key      string    `bson:"_id"`
	FirstRun time.Time `bson:"first_run"`
	LastRun  time.Time `bson:"last_run"`
}

func (m *Mongo) UpsertMarketPair(ctx context.Context, key string, now time.Time) error {
	_, err := m.marketPairs.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{
			"$setOnInsert": bson.M{"first_run": now},
			"$set":         bson.M{"last_run": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("store: upsert market_pairs for %q: %w", key, err)
	}
	return nil
}

var _ TradeStore = (*Mongo)(nil)
