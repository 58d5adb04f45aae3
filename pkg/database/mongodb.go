package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names
const (
	PromoCodesCollection      = "promo_codes"
	OrdersCollection          = "orders"
	PromoCodeUsagesCollection = "promo_code_usages"
	PromoCodeStatsCollection  = "promo_code_stats"
)

// MongoDB wraps the MongoDB client and database
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// Connect establishes a connection to MongoDB
func Connect(ctx context.Context, uri, dbName string) (*MongoDB, error) {
	clientOptions := options.Client().ApplyURI(uri)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	mongoDB := &MongoDB{
		Client:   client,
		Database: client.Database(dbName),
	}

	if err := mongoDB.CreateIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return mongoDB, nil
}

// CreateIndexes creates all necessary indexes for the application
func (m *MongoDB) CreateIndexes(ctx context.Context) error {
	indexes := []struct {
		collection string
		model      mongo.IndexModel
	}{
		{
			collection: PromoCodesCollection,
			model: mongo.IndexModel{
				Keys:    bson.D{{Key: "code", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("promo_code_unique"),
			},
		},
		{
			collection: OrdersCollection,
			model: mongo.IndexModel{
				Keys:    bson.D{{Key: "user_id", Value: 1}},
				Options: options.Index().SetName("order_user_id_index"),
			},
		},
		// (order_id, promo_code_id) is the dedup key for redelivered events
		{
			collection: PromoCodeUsagesCollection,
			model: mongo.IndexModel{
				Keys: bson.D{
					{Key: "order_id", Value: 1},
					{Key: "promo_code_id", Value: 1},
				},
				Options: options.Index().SetUnique(true).SetName("usage_order_promo_unique"),
			},
		},
		{
			collection: PromoCodeUsagesCollection,
			model: mongo.IndexModel{
				Keys: bson.D{
					{Key: "user_id", Value: 1},
					{Key: "promo_code_id", Value: 1},
				},
				Options: options.Index().SetName("usage_user_promo_index"),
			},
		},
	}

	for _, idx := range indexes {
		if _, err := m.Database.Collection(idx.collection).Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("failed to create index %s: %w", *idx.model.Options.Name, err)
		}
	}

	return nil
}

// Disconnect closes the MongoDB connection
func (m *MongoDB) Disconnect(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}
