package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoTicketRepository_Delete(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("removes existing", func(mt *mtest.T) {
		repo := NewMongoTicketRepository(mt.DB, "tickets")
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		ok, err := repo.Delete(context.Background(), "dev-1")
		require.NoError(mt, err)
		assert.True(mt, ok)
	})

	mt.Run("missing is not an error", func(mt *mtest.T) {
		repo := NewMongoTicketRepository(mt.DB, "tickets")
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		ok, err := repo.Delete(context.Background(), "dev-404")
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("server error surfaces", func(mt *mtest.T) {
		repo := NewMongoTicketRepository(mt.DB, "tickets")
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Name:    "BadValue",
			Message: "bad filter",
		}))

		ok, err := repo.Delete(context.Background(), "dev-1")
		require.Error(mt, err)
		assert.False(mt, ok)
	})
}
