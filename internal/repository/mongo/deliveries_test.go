package mongorepo

import (
	"context"
	"testing"
	"time"

	"github.com/kirinyoku/cinetix/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestDeliveryRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("record", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		repo := NewDeliveryRepo(mt.DB)
		err := repo.Record(context.Background(), domain.WebhookDelivery{
			RequestID:  "req-1",
			Type:       "payment",
			DataID:     "PAY456",
			Outcome:    "processed",
			OrderID:    "O1",
			ReceivedAt: time.Now(),
		})
		assert.NoError(t, err)
	})

	mt.Run("record failure", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key"}))

		repo := NewDeliveryRepo(mt.DB)
		err := repo.Record(context.Background(), domain.WebhookDelivery{RequestID: "req-1"})
		assert.Error(t, err)
	})

	mt.Run("list by order", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + deliveriesCollection
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, ns, mtest.FirstBatch,
				bson.D{{Key: "request_id", Value: "req-2"}, {Key: "order_id", Value: "O1"}, {Key: "outcome", Value: "duplicate"}},
				bson.D{{Key: "request_id", Value: "req-1"}, {Key: "order_id", Value: "O1"}, {Key: "outcome", Value: "processed"}},
			),
			mtest.CreateCursorResponse(0, ns, mtest.NextBatch),
		)

		repo := NewDeliveryRepo(mt.DB)
		got, err := repo.ListByOrder(context.Background(), "O1", 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "req-2", got[0].RequestID)
		assert.Equal(t, "processed", got[1].Outcome)
	})
}
