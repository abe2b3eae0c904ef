package mongorepo

import (
	"context"
	"fmt"

	"github.com/kirinyoku/cinetix/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const deliveriesCollection = "webhook_deliveries"

// DeliveryRepo is the append-only log of received payment notifications.
type DeliveryRepo struct {
	col *mongo.Collection
}

func NewDeliveryRepo(db *mongo.Database) *DeliveryRepo {
	return &DeliveryRepo{col: db.Collection(deliveriesCollection)}
}

func (r *DeliveryRepo) EnsureIndexes(ctx context.Context) error {
	const op = "mongorepo.DeliveryRepo.EnsureIndexes"

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "received_at", Value: -1}}},
		{Keys: bson.D{{Key: "data_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *DeliveryRepo) Record(ctx context.Context, d domain.WebhookDelivery) error {
	const op = "mongorepo.DeliveryRepo.Record"

	if _, err := r.col.InsertOne(ctx, d); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ListByOrder returns the newest deliveries that resolved to orderID.
func (r *DeliveryRepo) ListByOrder(ctx context.Context, orderID string, limit int64) ([]domain.WebhookDelivery, error) {
	const op = "mongorepo.DeliveryRepo.ListByOrder"

	opts := options.Find().
		SetSort(bson.D{{Key: "received_at", Value: -1}}).
		SetLimit(limit)

	cur, err := r.col.Find(ctx, bson.M{"order_id": orderID}, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer cur.Close(ctx)

	out := []domain.WebhookDelivery{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}
