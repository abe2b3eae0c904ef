package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type Config struct {
	URI string
	DB  string
}

func New(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	const op = "mongo.New"

	ctxConn, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctxConn, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := client.Ping(ctxConn, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return client, client.Database(cfg.DB), nil
}
