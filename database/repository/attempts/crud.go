package attemptsRepo

import (
	"context"
	"errors"
	"time"

	"cardpresent/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *mongoAttemptRepo) SaveAttempt(ctx context.Context, attempt models.PaymentAttempt) error {
	if attempt.ID == "" {
		return errors.New("payment attempt id is required")
	}
	if attempt.UpdatedAt.IsZero() {
		attempt.UpdatedAt = time.Now()
	}
	_, err := r.coll.ReplaceOne(ctx, bson.M{"id": attempt.ID}, attempt, options.Replace().SetUpsert(true))
	return err
}

func (r *mongoAttemptRepo) GetByID(ctx context.Context, id string) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&attempt)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// GetByOrderID returns the attempts for an order, newest first.
func (r *mongoAttemptRepo) GetByOrderID(ctx context.Context, siteID, orderID string) ([]models.PaymentAttempt, error) {
	filter := bson.M{"orderId": orderID}
	if siteID != "" {
		filter["siteId"] = siteID
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	attempts := []models.PaymentAttempt{}
	if err := cursor.All(ctx, &attempts); err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *mongoAttemptRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "siteId", Value: 1}, {Key: "orderId", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	return err
}
