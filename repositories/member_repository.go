package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fadeclub/fadeclub_backend/config"
	"github.com/fadeclub/fadeclub_backend/models"
)

type MongoMemberRepository struct {
	collection *mongo.Collection
}

func NewMemberRepository(client *mongo.Client) *MongoMemberRepository {
	return &MongoMemberRepository{
		collection: config.GetCollection(client, "users"),
	}
}

func (r *MongoMemberRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Member, error) {
	var member models.Member
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&member)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *MongoMemberRepository) FindByEmail(ctx context.Context, email string) (*models.Member, error) {
	var member models.Member
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&member)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *MongoMemberRepository) FindByReferralCode(ctx context.Context, code string) (*models.Member, error) {
	var member models.Member
	err := r.collection.FindOne(ctx, bson.M{"referralCode": code}).Decode(&member)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *MongoMemberRepository) Insert(ctx context.Context, member *models.Member) error {
	if member.ID.IsZero() {
		member.ID = primitive.NewObjectID()
	}
	member.CreatedAt = time.Now()
	member.UpdatedAt = member.CreatedAt
	_, err := r.collection.InsertOne(ctx, member)
	return err
}

func (r *MongoMemberRepository) AddReferral(ctx context.Context, sponsorID, memberID primitive.ObjectID) error {
	_, err := r.collection.UpdateByID(ctx, sponsorID, bson.M{
		"$addToSet": bson.M{"referrals": memberID},
		"$set":      bson.M{"updatedAt": time.Now()},
	})
	return err
}

func (r *MongoMemberRepository) SetActive(ctx context.Context, id primitive.ObjectID, active bool) error {
	_, err := r.collection.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"isActive": active, "updatedAt": time.Now()},
	})
	return err
}

func (r *MongoMemberRepository) RecordRenewal(ctx context.Context, id primitive.ObjectID, paidThrough time.Time, amount float64) error {
	update := bson.M{
		"isActive":    true,
		"paidThrough": paidThrough,
		"updatedAt":   time.Now(),
	}
	if amount > 0 {
		update["subscriptionAmount"] = amount
	}
	_, err := r.collection.UpdateByID(ctx, id, bson.M{"$set": update})
	return err
}

// ExpireLapsed deactivates members whose paid-through date has passed. Used
// by the background sweep; never touches matrix nodes.
func (r *MongoMemberRepository) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.collection.UpdateMany(ctx, bson.M{
		"isActive":    true,
		"paidThrough": bson.M{"$ne": nil, "$lt": now},
	}, bson.M{
		"$set": bson.M{"isActive": false, "updatedAt": now},
	})
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}
