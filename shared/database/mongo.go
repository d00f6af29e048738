package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	MovementsCollection    = "movements"
	DirectDebitsCollection = "direct_debits"
)

// OpenMongo connects to uri, pings the primary and ensures the indexes the
// movement repositories rely on.
func OpenMongo(ctx context.Context, uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(dbName)
	if err := ensureIndexes(connectCtx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	logger.Info().Str("database", dbName).Msg("mongo ready")
	return client, db, nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	for _, name := range []string{MovementsCollection, DirectDebitsCollection} {
		_, err := db.Collection(name).Indexes().CreateMany(ctx, []mongo.IndexModel{
			{Keys: bson.D{{Key: "guid", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "clientGuid", Value: 1}}},
		})
		if err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", name, err)
		}
	}
	return nil
}
