package database_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockfolio/portfolio-tracker/internal/database"
	"github.com/stockfolio/portfolio-tracker/internal/database/databasetest"
	"github.com/stockfolio/portfolio-tracker/internal/models"
)

// seedUserAndStock inserts the rows a position needs to reference
func seedUserAndStock(t *testing.T, testDB *databasetest.TestDB, username, symbol string) (int, int) {
	t.Helper()

	user := &models.User{Username: username, Email: username + "@example.com", PasswordHash: "h"}
	require.NoError(t, testDB.CreateUser(user))

	stock := &models.Stock{Symbol: symbol, CompanyName: symbol + " Inc."}
	createStock(t, testDB, stock)

	return user.ID, stock.ID
}

func createPosition(t *testing.T, testDB *databasetest.TestDB, p *models.Position) {
	t.Helper()

	uow, err := testDB.Begin()
	require.NoError(t, err)
	defer uow.Rollback()

	require.NoError(t, uow.CreatePosition(p))
	require.NoError(t, uow.Commit())
}

func TestPositionsRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := databasetest.Setup(t)
	defer testDB.Cleanup(t)

	t.Run("CreatePosition creates new position", func(t *testing.T) {
		testDB.TruncateAll(t)
		userID, stockID := seedUserAndStock(t, testDB, "alice", "AAPL")

		position := &models.Position{
			UserID:          userID,
			StockID:         stockID,
			Quantity:        decimal.NewFromInt(10),
			AverageBuyPrice: decimal.NewFromFloat(150.00),
		}
		createPosition(t, testDB, position)

		assert.NotZero(t, position.ID)
		assert.False(t, position.CreatedAt.IsZero())
		assert.False(t, position.UpdatedAt.IsZero())
	})

	t.Run("GetPosition retrieves one user stock pair", func(t *testing.T) {
		testDB.TruncateAll(t)
		userID, stockID := seedUserAndStock(t, testDB, "bob", "MSFT")

		position := &models.Position{
			UserID:          userID,
			StockID:         stockID,
			Quantity:        decimal.NewFromInt(5),
			AverageBuyPrice: decimal.NewFromFloat(370.00),
		}
		createPosition(t, testDB, position)

		retrieved, err := testDB.GetPosition(userID, stockID)
		require.NoError(t, err)
		assert.Equal(t, position.ID, retrieved.ID)
		assert.True(t, decimal.NewFromInt(5).Equal(retrieved.Quantity))
		assert.True(t, decimal.NewFromFloat(370.00).Equal(retrieved.AverageBuyPrice))
	})

	t.Run("GetPosition returns ErrNotFound when absent", func(t *testing.T) {
		testDB.TruncateAll(t)
		userID, stockID := seedUserAndStock(t, testDB, "carol", "TSLA")

		_, err := testDB.GetPosition(userID, stockID)
		require.Error(t, err)
		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("CreatePosition enforces one position per user and stock", func(t *testing.T) {
		testDB.TruncateAll(t)
		userID, stockID := seedUserAndStock(t, testDB, "dave", "NVDA")

		createPosition(t, testDB, &models.Position{
			UserID: userID, StockID: stockID,
			Quantity: decimal.NewFromInt(1), AverageBuyPrice: decimal.NewFromFloat(400),
		})

		uow, err := testDB.Begin()
		require.NoError(t, err)
		defer uow.Rollback()

		err = uow.CreatePosition(&models.Position{
			UserID: userID, StockID: stockID,
			Quantity: decimal.NewFromInt(2), AverageBuyPrice: decimal.NewFromFloat(410),
		})
		require.Error(t, err)
	})

	t.Run("UpdatePosition writes quantity and average", func(t *testing.T) {
		testDB.TruncateAll(t)
		userID, stockID := seedUserAndStock(t, testDB, "erin", "AMD")

		position := &models.Position{
			UserID: userID, StockID: stockID,
			Quantity: decimal.NewFromInt(10), AverageBuyPrice: decimal.NewFromFloat(100),
		}
		createPosition(t, testDB, position)

		uow, err := testDB.Begin()
		require.NoError(t, err)
		defer uow.Rollback()

		position.Quantity = decimal.NewFromInt(20)
		position.AverageBuyPrice = decimal.NewFromFloat(150)
		require.NoError(t, uow.UpdatePosition(position))
		require.NoError(t, uow.Commit())

		retrieved, err := testDB.GetPosition(userID, stockID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(20).Equal(retrieved.Quantity))
		assert.True(t, decimal.NewFromFloat(150).Equal(retrieved.AverageBuyPrice))
	})

	t.Run("DeletePosition removes position", func(t *testing.T) {
		testDB.TruncateAll(t)
		userID, stockID := seedUserAndStock(t, testDB, "frank", "META")

		position := &models.Position{
			UserID: userID, StockID: stockID,
			Quantity: decimal.NewFromInt(3), AverageBuyPrice: decimal.NewFromFloat(500),
		}
		createPosition(t, testDB, position)

		uow, err := testDB.Begin()
		require.NoError(t, err)
		defer uow.Rollback()

		require.NoError(t, uow.DeletePosition(position.ID))
		require.NoError(t, uow.Commit())

		_, err = testDB.GetPosition(userID, stockID)
		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("GetPositionsByUser returns only that user's positions", func(t *testing.T) {
		testDB.TruncateAll(t)
		user1, stock1 := seedUserAndStock(t, testDB, "gina", "IBM")
		user2, stock2 := seedUserAndStock(t, testDB, "hank", "ORCL")

		createPosition(t, testDB, &models.Position{
			UserID: user1, StockID: stock1,
			Quantity: decimal.NewFromInt(1), AverageBuyPrice: decimal.NewFromFloat(180),
		})
		createPosition(t, testDB, &models.Position{
			UserID: user2, StockID: stock2,
			Quantity: decimal.NewFromInt(2), AverageBuyPrice: decimal.NewFromFloat(120),
		})

		positions, err := testDB.GetPositionsByUser(user1)
		require.NoError(t, err)
		require.Len(t, positions, 1)
		assert.Equal(t, stock1, positions[0].StockID)
	})
}
