package json

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/txdetect/pkg/api"
)

func write(t *testing.T, w *Writer, txs ...*api.DetectedTransaction) {
	t.Helper()
	in := make(chan *api.DetectedTransaction, len(txs))
	for _, tx := range txs {
		in <- tx
	}
	close(in)
	require.NoError(t, w.Write(context.Background(), in))
}

func TestWriter_AppendsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "confirmed.json")
	at := time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)

	w, err := New(Config{FilePath: path}, nil)
	require.NoError(t, err)
	write(t, w, &api.DetectedTransaction{ID: "a", Source: api.SourceSms, Amount: decimal.RequireFromString("1250.50"), Timestamp: at})
	assert.Equal(t, 1, w.TransactionCount())

	w, err = New(Config{FilePath: path}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, w.TransactionCount(), "existing file is loaded")
	write(t, w, &api.DetectedTransaction{ID: "b", Source: api.SourceNotification, Amount: decimal.NewFromInt(500), Timestamp: at})

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got []api.DetectedTransaction
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "1250.5", got[0].Amount.String())
	assert.Equal(t, "b", got[1].ID)
	assert.True(t, got[1].Timestamp.Equal(at))
}

func TestNew_CorruptFileIsTolerated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "confirmed.json")
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0o600))

	w, err := New(Config{FilePath: path}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, w.TransactionCount())
}
