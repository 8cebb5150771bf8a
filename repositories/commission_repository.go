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

type MongoCommissionRepository struct {
	collection *mongo.Collection
}

func NewCommissionRepository(client *mongo.Client) *MongoCommissionRepository {
	return &MongoCommissionRepository{
		collection: config.GetCollection(client, "commissions"),
	}
}

func (r *MongoCommissionRepository) Insert(ctx context.Context, event *models.CommissionEvent) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Status == "" {
		event.Status = models.CommissionPending
	}
	if event.IdempotencyKey == "" {
		event.IdempotencyKey = models.CommissionIdempotencyKey(
			event.EventID, event.BeneficiaryID, event.Kind, event.Level, event.SourceID)
	}
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt

	_, err := r.collection.InsertOne(ctx, event)
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrDuplicateCommission
	}
	return err
}

func (r *MongoCommissionRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.CommissionEvent, error) {
	var event models.CommissionEvent
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&event)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrMissingDependency
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *MongoCommissionRepository) FindByBeneficiary(ctx context.Context, beneficiaryID primitive.ObjectID, status string) ([]models.CommissionEvent, error) {
	filter := bson.M{"beneficiaryId": beneficiaryID}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []models.CommissionEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *MongoCommissionRepository) List(ctx context.Context, status string, limit int64) ([]models.CommissionEvent, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []models.CommissionEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// SummarizeByBeneficiary aggregates count and total per status for one
// beneficiary, the shape the dashboard earnings widget consumes.
func (r *MongoCommissionRepository) SummarizeByBeneficiary(ctx context.Context, beneficiaryID primitive.ObjectID) ([]models.CommissionSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"beneficiaryId": beneficiaryID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
			"total": bson.M{"$sum": "$amount"},
		}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var summaries []models.CommissionSummary
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

// UpdateStatus applies a payout transition. The filter repeats the current
// status so a concurrent transition loses cleanly instead of double-applying.
func (r *MongoCommissionRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, to string) (*models.CommissionEvent, error) {
	event, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(event.Status, to) {
		return nil, models.ErrInvalidStatusChange
	}

	now := time.Now()
	set := bson.M{"status": to, "updatedAt": now}
	unset := bson.M{}
	if to == models.CommissionPaid {
		set["paidAt"] = now
	} else {
		unset["paidAt"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "status": event.Status}, update)
	if err != nil {
		return nil, err
	}
	if result.ModifiedCount == 0 {
		return nil, models.ErrInvalidStatusChange
	}
	return r.FindByID(ctx, id)
}
