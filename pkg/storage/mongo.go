package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/eupendra/simple-price-alert/pkg/scraper"
)

type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// MongoStore inserts one document per observation.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func ConnectMongo(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetWriteConcern(writeconcern.W1()).
		SetMaxPoolSize(4).
		SetRetryWrites(true)

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

func (m *MongoStore) Append(ctx context.Context, set scraper.ObservationSet) error {
	if set.Len() == 0 {
		return nil
	}

	docs := make([]interface{}, 0, set.Len())
	for _, o := range set.Items() {
		doc, err := observationDoc(o)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}

	if _, err := m.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return fmt.Errorf("mongo insert: %w", err)
	}
	return nil
}

func (m *MongoStore) CountRun(ctx context.Context, runID string) (int64, error) {
	return m.coll.CountDocuments(ctx, bson.M{"run_id": runID})
}

func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func observationDoc(o scraper.Observation) (bson.M, error) {
	alert, err := primitive.ParseDecimal128(o.Product.AlertPrice.String())
	if err != nil {
		return nil, fmt.Errorf("alert price %s: %w", o.Product.AlertPrice, err)
	}

	doc := bson.M{
		"run_id":      o.RunID.String(),
		"product":     o.Product.Name,
		"url":         o.Product.URL,
		"alert_price": alert,
		"price":       nil,
		"timestamp":   o.Timestamp,
		"alert":       o.AlertTriggered,
	}
	if o.Price.Valid {
		price, err := primitive.ParseDecimal128(o.Price.Amount.String())
		if err != nil {
			return nil, fmt.Errorf("price %s: %w", o.Price.Amount, err)
		}
		doc["price"] = price
	}
	return doc, nil
}
