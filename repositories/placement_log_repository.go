package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fadeclub/fadeclub_backend/config"
	"github.com/fadeclub/fadeclub_backend/models"
)

type MongoPlacementLogRepository struct {
	collection *mongo.Collection
}

func NewPlacementLogRepository(client *mongo.Client) *MongoPlacementLogRepository {
	return &MongoPlacementLogRepository{
		collection: config.GetCollection(client, "placement_logs"),
	}
}

func (r *MongoPlacementLogRepository) Append(ctx context.Context, entry *models.PlacementLogEntry) error {
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	entry.CreatedAt = time.Now()
	_, err := r.collection.InsertOne(ctx, entry)
	return err
}

func (r *MongoPlacementLogRepository) FindByMember(ctx context.Context, memberID primitive.ObjectID) ([]models.PlacementLogEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"memberId": memberID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []models.PlacementLogEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
