package attemptsRepo

import (
	"context"
	"errors"

	"cardpresent/database"
	"cardpresent/models"

	"go.mongodb.org/mongo-driver/mongo"
)

// ErrAttemptNotFound is returned when no attempt matches the lookup.
var ErrAttemptNotFound = errors.New("payment attempt not found")

type PaymentAttemptRepository interface {
	// SaveAttempt upserts the attempt by id.
	SaveAttempt(ctx context.Context, attempt models.PaymentAttempt) error
	GetByID(ctx context.Context, id string) (*models.PaymentAttempt, error)
	GetByOrderID(ctx context.Context, siteID, orderID string) ([]models.PaymentAttempt, error)
	EnsureIndexes(ctx context.Context) error
}

type mongoAttemptRepo struct {
	coll *mongo.Collection
}

// NewMongoAttemptRepo returns a PaymentAttemptRepository backed by the global MongoDB client.
func NewMongoAttemptRepo() PaymentAttemptRepository {
	return NewMongoAttemptRepoWithCollection(database.Database().Collection("payment_attempts"))
}

func NewMongoAttemptRepoWithCollection(coll *mongo.Collection) PaymentAttemptRepository {
	return &mongoAttemptRepo{coll: coll}
}
