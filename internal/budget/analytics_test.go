package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketbook/internal/core"
)

func TestSpendingByCategory(t *testing.T) {
	in := fixture()
	txns := []core.Transaction{
		tx("1", core.CategoryFood, 2, -8000),
		tx("2", core.CategoryFood, 3, 1500),
		tx("3", core.CategoryHousing, 1, -145000),
		tx("4", core.CategoryIncome, 5, 310000),
		tx("5", "", 5, -999),
	}
	got := SpendingByCategory(march, txns, in.Categories, in.Groups)
	require.Len(t, got, 2)
	assert.Equal(t, CategorySpending{CategoryID: core.CategoryHousing, Name: "Housing", Spent: cents(145000)}, got[0])
	assert.Equal(t, CategorySpending{CategoryID: core.CategoryFood, Name: "Food", Spent: cents(8000)}, got[1])
}

func TestMonthlyTrend(t *testing.T) {
	in := fixture()
	feb := tx("1", core.CategoryFood, 10, -4000)
	feb.Date = core.NewDate(2025, 2, 10)
	txns := []core.Transaction{
		feb,
		tx("2", core.CategoryIncome, 1, 300000),
		tx("3", core.CategoryFood, 2, -5000),
	}
	points := MonthlyTrend(core.Month{Year: 2025, Month: time.January}, march, txns, in.Groups)
	require.Len(t, points, 3)
	assert.Equal(t, int64(0), points[0].Spending.Cents)
	assert.Equal(t, int64(4000), points[1].Spending.Cents)
	assert.Equal(t, int64(300000), points[2].Income.Cents)
	assert.Equal(t, int64(295000), points[2].Net.Cents)
}

func TestTopMerchants(t *testing.T) {
	a := tx("1", core.CategoryFood, 2, -500)
	a.Description = "STARBUCKS #1234 BOISE"
	b := tx("2", core.CategoryFood, 9, -700)
	b.Description = "Starbucks #9876 Boise"
	c := tx("3", core.CategoryPersonal, 3, -900)
	c.Description = "NETFLIX.COM"
	d := tx("4", core.CategoryFood, 4, 300)
	d.Description = "STARBUCKS REFUND"

	got := TopMerchants(march, []core.Transaction{a, b, c, d}, 1)
	require.Len(t, got, 1)
	assert.Equal(t, Merchant{Name: "STARBUCKS # BOISE", Spent: cents(1200), Count: 2}, got[0])
}
