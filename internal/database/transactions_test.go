package database_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockfolio/portfolio-tracker/internal/database/databasetest"
	"github.com/stockfolio/portfolio-tracker/internal/models"
)

func recordTransaction(t *testing.T, testDB *databasetest.TestDB, tr *models.Transaction) {
	t.Helper()

	uow, err := testDB.Begin()
	require.NoError(t, err)
	defer uow.Rollback()

	require.NoError(t, uow.CreateTransaction(tr))
	require.NoError(t, uow.Commit())
}

func TestTransactionsRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := databasetest.Setup(t)
	defer testDB.Cleanup(t)

	t.Run("CreateTransaction assigns id and timestamp", func(t *testing.T) {
		testDB.TruncateAll(t)
		userID, stockID := seedUserAndStock(t, testDB, "alice", "AAPL")

		tr := &models.Transaction{
			UserID:   userID,
			StockID:  stockID,
			Type:     models.TransactionTypeBuy,
			Quantity: decimal.NewFromInt(10),
			Price:    decimal.NewFromFloat(150.00),
		}
		recordTransaction(t, testDB, tr)

		assert.NotZero(t, tr.ID)
		assert.False(t, tr.Timestamp.IsZero())
	})

	t.Run("CreateTransaction rejects invalid type", func(t *testing.T) {
		testDB.TruncateAll(t)
		userID, stockID := seedUserAndStock(t, testDB, "bob", "MSFT")

		uow, err := testDB.Begin()
		require.NoError(t, err)
		defer uow.Rollback()

		err = uow.CreateTransaction(&models.Transaction{
			UserID: userID, StockID: stockID, Type: "SHORT",
			Quantity: decimal.NewFromInt(1), Price: decimal.NewFromFloat(1),
		})
		require.Error(t, err)
	})

	t.Run("GetBuyTransactions returns only buys oldest first", func(t *testing.T) {
		testDB.TruncateAll(t)
		userID, stockID := seedUserAndStock(t, testDB, "carol", "TSLA")

		now := time.Now()
		recordTransaction(t, testDB, &models.Transaction{
			UserID: userID, StockID: stockID, Type: models.TransactionTypeBuy,
			Quantity: decimal.NewFromInt(10), Price: decimal.NewFromFloat(200), Timestamp: now.Add(-2 * time.Hour),
		})
		recordTransaction(t, testDB, &models.Transaction{
			UserID: userID, StockID: stockID, Type: models.TransactionTypeSell,
			Quantity: decimal.NewFromInt(5), Price: decimal.NewFromFloat(220), Timestamp: now.Add(-time.Hour),
		})
		recordTransaction(t, testDB, &models.Transaction{
			UserID: userID, StockID: stockID, Type: models.TransactionTypeBuy,
			Quantity: decimal.NewFromInt(10), Price: decimal.NewFromFloat(240), Timestamp: now,
		})

		uow, err := testDB.Begin()
		require.NoError(t, err)
		defer uow.Rollback()

		buys, err := uow.GetBuyTransactions(userID, stockID)
		require.NoError(t, err)
		require.Len(t, buys, 2)
		assert.True(t, decimal.NewFromFloat(200).Equal(buys[0].Price))
		assert.True(t, decimal.NewFromFloat(240).Equal(buys[1].Price))
	})

	t.Run("GetTransactionsByUser pages newest first with symbol", func(t *testing.T) {
		testDB.TruncateAll(t)
		userID, stockID := seedUserAndStock(t, testDB, "dave", "NVDA")

		now := time.Now()
		for i := 0; i < 5; i++ {
			recordTransaction(t, testDB, &models.Transaction{
				UserID: userID, StockID: stockID, Type: models.TransactionTypeBuy,
				Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(int64(100 + i)),
				Timestamp: now.Add(time.Duration(i) * time.Minute),
			})
		}

		page, err := testDB.GetTransactionsByUser(userID, 2, 0)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "NVDA", page[0].Symbol)
		assert.True(t, decimal.NewFromInt(104).Equal(page[0].Price))
		assert.True(t, decimal.NewFromInt(103).Equal(page[1].Price))

		next, err := testDB.GetTransactionsByUser(userID, 2, 2)
		require.NoError(t, err)
		require.Len(t, next, 2)
		assert.True(t, decimal.NewFromInt(102).Equal(next[0].Price))

		count, err := testDB.CountTransactionsByUser(userID)
		require.NoError(t, err)
		assert.Equal(t, 5, count)
	})

	t.Run("GetRecentTransactions spans all users", func(t *testing.T) {
		testDB.TruncateAll(t)
		user1, stock1 := seedUserAndStock(t, testDB, "erin", "IBM")
		user2, stock2 := seedUserAndStock(t, testDB, "frank", "ORCL")

		now := time.Now()
		recordTransaction(t, testDB, &models.Transaction{
			UserID: user1, StockID: stock1, Type: models.TransactionTypeBuy,
			Quantity: decimal.NewFromInt(1), Price: decimal.NewFromFloat(180), Timestamp: now.Add(-time.Minute),
		})
		recordTransaction(t, testDB, &models.Transaction{
			UserID: user2, StockID: stock2, Type: models.TransactionTypeSell,
			Quantity: decimal.NewFromInt(2), Price: decimal.NewFromFloat(120), Timestamp: now,
		})

		recent, err := testDB.GetRecentTransactions(10)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "ORCL", recent[0].Symbol)
		assert.Equal(t, "IBM", recent[1].Symbol)
	})
}
