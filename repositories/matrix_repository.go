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

type MongoMatrixRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewMatrixRepository(client *mongo.Client) *MongoMatrixRepository {
	return &MongoMatrixRepository{
		client:     client,
		collection: config.GetCollection(client, "matrix_nodes"),
	}
}

func slotField(slot int) string {
	switch slot {
	case models.SlotLeft:
		return "leftId"
	case models.SlotMiddle:
		return "middleId"
	case models.SlotRight:
		return "rightId"
	}
	return ""
}

func (r *MongoMatrixRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.MatrixNode, error) {
	var node models.MatrixNode
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&node)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrNodeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func (r *MongoMatrixRepository) FindByOwner(ctx context.Context, ownerID primitive.ObjectID) (*models.MatrixNode, error) {
	var node models.MatrixNode
	err := r.collection.FindOne(ctx, bson.M{"ownerId": ownerID}).Decode(&node)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrNodeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func (r *MongoMatrixRepository) FindRoot(ctx context.Context) (*models.MatrixNode, error) {
	var node models.MatrixNode
	err := r.collection.FindOne(ctx, bson.M{"parentId": nil}).Decode(&node)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrNodeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func (r *MongoMatrixRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.MatrixNode, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var nodes []*models.MatrixNode
	if err := cursor.All(ctx, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (r *MongoMatrixRepository) FindAll(ctx context.Context) ([]*models.MatrixNode, error) {
	opts := options.Find().SetSort(bson.D{{Key: "positionIndex", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var nodes []*models.MatrixNode
	if err := cursor.All(ctx, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (r *MongoMatrixRepository) CountNodes(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

func (r *MongoMatrixRepository) CountBelow(ctx context.Context, position int64) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"positionIndex": bson.M{"$lt": position}})
}

// CreateRoot inserts the level-1 node at position 1. The unique index on
// positionIndex turns a concurrent second root into a duplicate-key error.
func (r *MongoMatrixRepository) CreateRoot(ctx context.Context, node *models.MatrixNode) error {
	if node.ID.IsZero() {
		node.ID = primitive.NewObjectID()
	}
	node.ParentID = nil
	node.Slot = 0
	node.Level = 1
	node.PositionIndex = 1
	node.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, node)
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrSlotTaken
	}
	return err
}

// AttachNode runs the slot claim, position allocation and node insert inside
// one session transaction. The claim is conditional on the slot still being
// empty so two placements racing on the same BFS result cannot both win.
func (r *MongoMatrixRepository) AttachNode(ctx context.Context, node *models.MatrixNode, parentID primitive.ObjectID, slot int) error {
	field := slotField(slot)
	if field == "" {
		return models.ErrSlotTaken
	}
	if node.ID.IsZero() {
		node.ID = primitive.NewObjectID()
	}

	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		claim, err := r.collection.UpdateOne(sc,
			bson.M{"_id": parentID, field: nil},
			bson.M{"$set": bson.M{field: node.ID}},
		)
		if err != nil {
			return nil, err
		}
		if claim.ModifiedCount == 0 {
			return nil, models.ErrSlotTaken
		}

		// Highest position so far; gapless because the insert below commits
		// in the same transaction.
		opts := options.FindOne().SetSort(bson.D{{Key: "positionIndex", Value: -1}})
		var last models.MatrixNode
		if err := r.collection.FindOne(sc, bson.M{}, opts).Decode(&last); err != nil {
			return nil, err
		}

		node.ParentID = &parentID
		node.Slot = slot
		node.PositionIndex = last.PositionIndex + 1
		node.CreatedAt = time.Now()

		if _, err := r.collection.InsertOne(sc, node); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, models.ErrAlreadyPlaced
			}
			return nil, err
		}
		return nil, nil
	})
	return err
}
