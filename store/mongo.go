package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"audio-classification/models"
	"audio-classification/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoRegistry keeps the registry in two collections of one database.
type MongoRegistry struct {
	client      *mongo.Client
	models      *mongo.Collection
	predictions *mongo.Collection
}

// NewMongoRegistry connects to uri. An empty dbName falls back to
// MODEL_REGISTRY_DB, then "audio_classification".
func NewMongoRegistry(ctx context.Context, uri, dbName string) (*MongoRegistry, error) {
	if dbName == "" {
		dbName = utils.GetEnv("MODEL_REGISTRY_DB", "audio_classification")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error connecting to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("error pinging MongoDB: %w", err)
	}

	db := client.Database(dbName)
	r := &MongoRegistry{
		client:      client,
		models:      db.Collection("models"),
		predictions: db.Collection("predictions"),
	}

	_, err = r.predictions.Indexes().CreateOne(connectCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "timestamp", Value: -1}},
	})
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("error creating predictions index: %w", err)
	}
	return r, nil
}

func (r *MongoRegistry) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return err
	}
	return nil
}

func (r *MongoRegistry) Record(ctx context.Context, info models.ModelInfo) error {
	_, err := r.models.ReplaceOne(ctx, bson.M{"_id": info.Version}, info, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("error storing model %s: %w", info.Version, err)
	}
	return nil
}

func (r *MongoRegistry) Get(ctx context.Context, version string) (models.ModelInfo, bool, error) {
	var info models.ModelInfo
	err := r.models.FindOne(ctx, bson.M{"_id": version}).Decode(&info)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.ModelInfo{}, false, nil
		}
		return models.ModelInfo{}, false, fmt.Errorf("failed to retrieve model: %w", err)
	}
	return info, true, nil
}

func (r *MongoRegistry) List(ctx context.Context, limit int) ([]models.ModelInfo, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(clampLimit(limit)))
	cursor, err := r.models.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying models: %w", err)
	}
	var infos []models.ModelInfo
	if err := cursor.All(ctx, &infos); err != nil {
		return nil, fmt.Errorf("error decoding models: %w", err)
	}
	return infos, nil
}

func (r *MongoRegistry) RecordPrediction(ctx context.Context, rec *models.PredictionRecord) error {
	if _, err := r.predictions.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("error storing prediction: %w", err)
	}
	return nil
}

func (r *MongoRegistry) Predictions(ctx context.Context, limit int) ([]models.PredictionRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(clampLimit(limit)))
	cursor, err := r.predictions.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying predictions: %w", err)
	}
	var records []models.PredictionRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("error decoding predictions: %w", err)
	}
	return records, nil
}
