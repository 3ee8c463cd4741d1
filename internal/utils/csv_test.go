package utils

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"binanceMarginBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRecordsToCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "klines.csv")
	records := []domain.KlineRecord{
		{OpenTime: 1704067200000, Open: "42000.01", Close: "42100.50", Volume: "12.5", SymbolTag: "BTCUSDT"},
		{OpenTime: 1704067200000, Open: "2300.1", Close: "2299.9", Volume: "88", SymbolTag: "ETHUSDT"},
	}

	require.NoError(t, WriteRecordsToCSV(records, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"open_time", "open_time_utc", "symbol", "open", "close", "volume"}, rows[0])
	assert.Equal(t, []string{"1704067200000", "2024-01-01T00:00:00Z", "BTCUSDT", "42000.01", "42100.50", "12.5"}, rows[1])
	assert.Equal(t, "ETHUSDT", rows[2][2])
}
