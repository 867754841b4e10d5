package csv

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/txdetect/pkg/api"
)

func writeAll(t *testing.T, path string, txs ...*api.DetectedTransaction) {
	t.Helper()
	w, err := New(Config{FilePath: path}, nil)
	require.NoError(t, err)

	in := make(chan *api.DetectedTransaction, len(txs))
	for _, tx := range txs {
		in <- tx
	}
	close(in)
	require.NoError(t, w.Write(context.Background(), in))
}

func readRecords(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriter_AppendsWithSingleHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "confirmed.csv")
	at := time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)

	writeAll(t, path, &api.DetectedTransaction{
		ID:            "tx-1",
		Source:        api.SourceSms,
		SourceApp:     "AD-HDFCBK",
		Kind:          api.KindExpense,
		Amount:        decimal.RequireFromString("1250"),
		Merchant:      "Big Bazaar, Andheri",
		AccountNumber: "4321",
		BankName:      "HDFC Bank",
		ReferenceID:   "123ABC456",
		Timestamp:     at,
	})
	writeAll(t, path, &api.DetectedTransaction{
		ID:        "tx-2",
		Source:    api.SourceNotification,
		SourceApp: "PhonePe",
		Kind:      api.KindExpense,
		Amount:    decimal.NewFromInt(500),
		Merchant:  "Ramesh Stores",
		Timestamp: at.Add(time.Hour),
	})

	records := readRecords(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, Headers, records[0])
	assert.Equal(t, []string{
		"tx-1", "2024-01-05T10:30:00Z", "sms", "AD-HDFCBK", "expense", "1250.00",
		"Big Bazaar, Andheri", "", "4321", "HDFC Bank", "123ABC456",
	}, records[1])
	assert.Equal(t, "tx-2", records[2][0])
	assert.Equal(t, "500.00", records[2][5])
}

func TestNew_BadPath(t *testing.T) {
	_, err := New(Config{FilePath: filepath.Join(t.TempDir(), "missing", "x.csv")}, nil)
	assert.Error(t, err)
}
