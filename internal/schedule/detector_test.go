package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketbook/internal/core"
)

func bill(id, desc string, y, m, d int, cents int64) core.Transaction {
	return core.Transaction{
		ID:          id,
		Date:        core.NewDate(y, m, d),
		Description: desc,
		Amount:      core.Money{Cents: cents},
		CategoryID:  core.CategoryUtilities,
	}
}

func TestDetectMonthlyBill(t *testing.T) {
	txns := []core.Transaction{
		bill("1", "IDAHO POWER CO 20250115 AUTOPAY", 2025, 1, 15, -4500),
		bill("2", "IDAHO POWER CO 20250215 AUTOPAY", 2025, 2, 15, -4500),
		bill("3", "IDAHO POWER CO 20250315 AUTOPAY", 2025, 3, 15, -4600),
	}
	bills := Detect(txns)
	require.Len(t, bills, 1)

	b := bills[0]
	assert.Equal(t, "IDAHO POWER CO", b.Key)
	assert.Equal(t, "Idaho Power Co", b.Name)
	assert.Equal(t, core.CategoryUtilities, b.CategoryID)
	assert.Equal(t, 15, b.AverageDay)
	assert.Equal(t, int64(4533), b.AverageAmount.Cents)
	assert.InDelta(t, 45.33, b.AverageAmount.Dollars(), 0.005)
	assert.Equal(t, 3, b.Months)
	require.Len(t, b.Recent, 3)
	assert.Equal(t, "3", b.Recent[0].TransactionID)
}

func TestDetectKeepsOnePaymentPerMonth(t *testing.T) {
	txns := []core.Transaction{
		bill("1", "VERIZON WIRELESS PAYMENT", 2025, 2, 3, -9000),
		bill("2", "VERIZON WIRELESS PAYMENT", 2025, 2, 20, -1000),
		bill("3", "VERIZON WIRELESS PAYMENT", 2025, 3, 4, -9000),
	}
	bills := Detect(txns)
	require.Len(t, bills, 1)
	// Feb keeps the latest payment (the 20th), March the 4th.
	assert.Equal(t, 2, bills[0].Months)
	assert.Equal(t, int64(5000), bills[0].AverageAmount.Cents)
	assert.Equal(t, 12, bills[0].AverageDay)
}

func TestDetectSkipsSingleMonthPayees(t *testing.T) {
	txns := []core.Transaction{
		bill("1", "CITY OF MERIDIAN WATER", 2025, 3, 1, -6000),
		bill("2", "CITY OF MERIDIAN WATER", 2025, 3, 28, -6000),
		bill("3", "SPARKLIGHT", 2025, 3, 9, -7000),
	}
	assert.Empty(t, Detect(txns))
}

func TestDetectSortsByDay(t *testing.T) {
	txns := []core.Transaction{
		bill("1", "SPARKLIGHT 1234567", 2025, 2, 20, -7000),
		bill("2", "SPARKLIGHT 7654321", 2025, 3, 20, -7000),
		bill("3", "DOVENMUEHLE MTG", 2025, 2, 1, -150000),
		bill("4", "DOVENMUEHLE MTG", 2025, 3, 2, -150000),
		{ID: "5", Date: core.NewDate(2025, 3, 5), Description: "MYSTERY 1", Amount: core.Money{Cents: -100}},
		{ID: "6", Date: core.NewDate(2025, 2, 5), Description: "MYSTERY 1", Amount: core.Money{Cents: -100}},
	}
	bills := Detect(txns)
	require.Len(t, bills, 2)
	assert.Equal(t, "Dovenmuehle Mtg", bills[0].Name)
	assert.Equal(t, 2, bills[0].AverageDay)
	assert.Equal(t, "Sparklight", bills[1].Name)
}

func TestPayeeKeyAndWindow(t *testing.T) {
	assert.Equal(t, "WEB AUTHORIZED PMT", PayeeKey("web  authorized pmt  STATE FARM 0042"))
	assert.Equal(t, "", PayeeKey("12345"))

	from, to := Window(core.Month{Year: 2025, Month: time.March})
	assert.Equal(t, "2024-12-01", from.String())
	assert.Equal(t, "2025-03-31", to.String())
}
