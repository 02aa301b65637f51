package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/stockfolio/portfolio-tracker/internal/models"
)

// averageAfterBuy folds one buy into an existing weighted-average cost basis:
// (old_qty*old_avg + buy_qty*buy_price) / (old_qty + buy_qty)
func averageAfterBuy(oldQty, oldAvg, buyQty, buyPrice decimal.Decimal) decimal.Decimal {
	totalQty := oldQty.Add(buyQty)
	if totalQty.IsZero() {
		return decimal.Zero
	}
	totalCost := oldQty.Mul(oldAvg).Add(buyQty.Mul(buyPrice))
	return totalCost.Div(totalQty)
}

// weightedAverage computes the quantity-weighted mean price over buy
// transactions. Returns zero when no shares were bought.
func weightedAverage(buys []*models.Transaction) decimal.Decimal {
	totalShares := decimal.Zero
	totalCost := decimal.Zero

	for _, b := range buys {
		totalCost = totalCost.Add(b.Price.Mul(b.Quantity))
		totalShares = totalShares.Add(b.Quantity)
	}

	if totalShares.IsZero() {
		return decimal.Zero
	}
	return totalCost.Div(totalShares)
}
