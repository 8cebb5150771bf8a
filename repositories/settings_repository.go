package repositories

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fadeclub/fadeclub_backend/config"
	"github.com/fadeclub/fadeclub_backend/models"
)

const settingsCacheKey = "fadeclub:settings:commissions"

// MongoSettingsRepository serves the commission configuration from Mongo with
// a Redis read-through cache. Update deletes the cache key, so the next
// engine invocation sees fresh rates without a deploy.
type MongoSettingsRepository struct {
	collection *mongo.Collection
	redis      *redis.Client
}

func NewSettingsRepository(client *mongo.Client, redisClient *redis.Client) *MongoSettingsRepository {
	return &MongoSettingsRepository{
		collection: config.GetCollection(client, "settings"),
		redis:      redisClient,
	}
}

func (r *MongoSettingsRepository) Get(ctx context.Context) (*models.CommissionSettings, error) {
	if r.redis != nil {
		cached, err := r.redis.Get(ctx, settingsCacheKey).Result()
		if err == nil {
			var settings models.CommissionSettings
			if err := json.Unmarshal([]byte(cached), &settings); err == nil {
				return &settings, nil
			}
		}
	}

	var settings models.CommissionSettings
	err := r.collection.FindOne(ctx, bson.M{}).Decode(&settings)
	if err == mongo.ErrNoDocuments {
		// First boot: seed defaults so the engines always have rates.
		settings = models.DefaultCommissionSettings()
		settings.UpdatedAt = time.Now()
		if _, err := r.collection.InsertOne(ctx, &settings); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	r.cache(ctx, &settings)
	return &settings, nil
}

func (r *MongoSettingsRepository) Update(ctx context.Context, settings *models.CommissionSettings) error {
	settings.UpdatedAt = time.Now()
	opts := options.Replace().SetUpsert(true)
	filter := bson.M{}
	if !settings.ID.IsZero() {
		filter = bson.M{"_id": settings.ID}
	}
	if _, err := r.collection.ReplaceOne(ctx, filter, settings, opts); err != nil {
		return err
	}
	if r.redis != nil {
		if err := r.redis.Del(ctx, settingsCacheKey).Err(); err != nil {
			log.Printf("Warning: failed to invalidate settings cache: %v", err)
		}
	}
	return nil
}

func (r *MongoSettingsRepository) cache(ctx context.Context, settings *models.CommissionSettings) {
	if r.redis == nil {
		return
	}
	payload, err := json.Marshal(settings)
	if err != nil {
		return
	}
	if err := r.redis.Set(ctx, settingsCacheKey, payload, 5*time.Minute).Err(); err != nil {
		log.Printf("Warning: failed to cache settings: %v", err)
	}
}
