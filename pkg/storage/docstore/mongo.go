package docstore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type mongoClient struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func newMongoClient(cfg Config) (Client, error) {
	if cfg.URI == "" {
		return nil, errors.New("docstore: mongo uri is required")
	}
	if cfg.Database == "" || cfg.Collection == "" {
		return nil, errors.New("docstore: mongo database and collection are required")
	}

	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.Timeout > 0 {
		opts = opts.SetTimeout(cfg.Timeout)
	}

	cl, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	return &mongoClient{
		client: cl,
		coll:   cl.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

func (m *mongoClient) Upsert(ctx context.Context, rec Record) error {
	_, err := m.coll.ReplaceOne(ctx, bson.M{"_id": rec.ID}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert record %q: %w", rec.ID, err)
	}
	return nil
}

func (m *mongoClient) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
