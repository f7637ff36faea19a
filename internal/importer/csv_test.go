package importer

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketbook/internal/core"
)

const sample = `Posted Date,Description,Amount,Balance
03/15/2025,STARBUCKS #1234 BOISE ID,-5.75,100.00
2025-03-16,"ACME PAYROLL DIRECT DEP","$2,400.00",2500.00
3/17/2025,WINCO FOODS,(42.10),2457.90
,MISSING DATE,-1.00,
03/18/2025,AMAZON MKTPL*AB12,-19.99,2437.91
03/19/2025,BROKEN AMOUNT,abc,0
`

func TestParse(t *testing.T) {
	f, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, Columns{Date: 0, Description: 1, Amount: 2}, f.Columns)
	require.Len(t, f.Rows, 4)
	require.Len(t, f.Errors, 2)
	assert.Contains(t, f.Errors[0].Error(), "line 5")
	assert.Contains(t, f.Errors[1].Error(), "line 7")

	first := f.Rows[0]
	assert.Equal(t, 2, first.Line)
	assert.Equal(t, "2025-03-15", first.Date.String())
	assert.Equal(t, int64(-575), first.Amount.Cents)
	assert.Equal(t, "2025-03-15_STARBUCKS #1234 BOISE ID_-5.75", first.ExternalID)
	assert.False(t, first.Ignored)

	assert.Equal(t, int64(240000), f.Rows[1].Amount.Cents)
	assert.Equal(t, int64(-4210), f.Rows[2].Amount.Cents)
	assert.True(t, f.Rows[3].Ignored)
	assert.Len(t, f.Hash, 64)
}

func TestParseIsDeterministic(t *testing.T) {
	a, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	b, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, a.Hash, b.Hash)
	for i := range a.Rows {
		assert.Equal(t, a.Rows[i].ExternalID, b.Rows[i].ExternalID)
	}
}

func TestParseHeaderErrors(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoHeader)

	_, err = Parse(strings.NewReader("when,what\n2025-01-01,x\n"))
	assert.True(t, errors.Is(err, ErrColumnsMissing))
}

func TestDetectColumns(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		want   Columns
	}{
		{"chase", []string{"Transaction Date", "Post Date", "Description", "Category", "Type", "Amount"}, Columns{0, 2, 5}},
		{"payee", []string{"Amount", "Payee", "Date"}, Columns{2, 1, 0}},
		{"debit", []string{"Date", "Merchant Name", "Debit"}, Columns{0, 1, 2}},
		{"memo", []string{"Date", "Memo", "Sum"}, Columns{0, 1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectColumns(tt.header)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStripsByteOrderMark(t *testing.T) {
	f, err := Parse(strings.NewReader("\ufeffDate,Name,Amount\n2025-01-02,Coffee,-3.00\n"))
	require.NoError(t, err)
	require.Len(t, f.Rows, 1)
}

func TestDedupKeyTruncatesDescription(t *testing.T) {
	d := core.NewDate(2025, 1, 9)
	key := DedupKey(d, "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789", core.Money{Cents: 1000})
	assert.Equal(t, "2025-01-09_ABCDEFGHIJKLMNOPQRSTUVWXYZ0123_10.00", key)

	at := time.UnixMilli(1700000000000)
	assert.Equal(t, "2025-01-09_Farmers market_-12.00_1700000000000",
		ManualKey(d, "Farmers market", core.Money{Cents: -1200}, at))
}

func TestShouldIgnore(t *testing.T) {
	assert.True(t, ShouldIgnore("Amazon.com*2K4"))
	assert.True(t, ShouldIgnore("MOBILE BANKING TRANSFER TO SAV"))
	assert.True(t, ShouldIgnore("Monthly Maintenance Fee"))
	assert.False(t, ShouldIgnore("WINCO FOODS"))
}
