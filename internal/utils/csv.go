package utils

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"binanceMarginBot/internal/domain"
)

// WriteRecordsToCSV writes kline records to filename, creating its directory if needed.
func WriteRecordsToCSV(records []domain.KlineRecord, filename string) error {
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory '%s': %w", dir, err)
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	// Write header
	writer.Write([]string{"open_time", "open_time_utc", "symbol", "open", "close", "volume"})

	for _, r := range records {
		writer.Write([]string{
			strconv.FormatInt(r.OpenTime, 10),
			time.UnixMilli(r.OpenTime).UTC().Format(time.RFC3339),
			r.SymbolTag,
			r.Open,
			r.Close,
			r.Volume,
		})
	}
	writer.Flush()
	return writer.Error()
}
