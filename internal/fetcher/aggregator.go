package fetcher

import (
	"context"
	"fmt"
	"strconv"

	"binanceMarginBot/internal/domain"
	"binanceMarginBot/internal/ports"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Kline array positions in the exchange payload.
const (
	fieldOpenTime = 0
	fieldOpen     = 1
	fieldClose    = 4
	fieldVolume   = 5
	minFields     = 6
)

// Aggregator turns raw kline payloads into KlineRecords.
type Aggregator struct {
	logger ports.Logger
}

// NewAggregator creates a new payload aggregator.
func NewAggregator(logger ports.Logger) (*Aggregator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for Aggregator")
	}
	return &Aggregator{logger: logger}, nil
}

// Accept extracts records from one successful payload.
// With a target only the entry whose open time equals it is kept; malformed entries are skipped.
func (a *Aggregator) Accept(ctx context.Context, symbolTag string, payload []byte, target *int64) []domain.KlineRecord {
	root := gjson.ParseBytes(payload)
	if !root.IsArray() {
		a.logger.Warn(ctx, "Kline payload is not an array", map[string]interface{}{"symbol": symbolTag})
		return nil
	}

	entries := root.Array()
	records := make([]domain.KlineRecord, 0, len(entries))
	skipped := 0
	for _, entry := range entries {
		rec, err := parseEntry(entry)
		if err != nil {
			skipped++
			continue
		}
		if target != nil && rec.OpenTime != *target {
			continue
		}
		rec.SymbolTag = symbolTag
		records = append(records, rec)
	}

	if skipped > 0 {
		a.logger.Warn(ctx, "Skipped malformed kline entries", map[string]interface{}{
			"symbol":  symbolTag,
			"skipped": skipped,
			"total":   len(entries),
		})
	}
	return records
}

func parseEntry(entry gjson.Result) (domain.KlineRecord, error) {
	if !entry.IsArray() {
		return domain.KlineRecord{}, fmt.Errorf("%w: entry is not an array", ports.ErrMalformedPayload)
	}
	fields := entry.Array()
	if len(fields) < minFields {
		return domain.KlineRecord{}, fmt.Errorf("%w: entry has %d fields", ports.ErrMalformedPayload, len(fields))
	}

	if fields[fieldOpenTime].Type != gjson.Number {
		return domain.KlineRecord{}, fmt.Errorf("%w: open time is not a number", ports.ErrMalformedPayload)
	}
	openTime, err := strconv.ParseInt(fields[fieldOpenTime].Raw, 10, 64)
	if err != nil {
		return domain.KlineRecord{}, fmt.Errorf("%w: open time: %w", ports.ErrMalformedPayload, err)
	}

	open, err := decimalField(fields[fieldOpen])
	if err != nil {
		return domain.KlineRecord{}, err
	}
	closePrice, err := decimalField(fields[fieldClose])
	if err != nil {
		return domain.KlineRecord{}, err
	}
	volume, err := decimalField(fields[fieldVolume])
	if err != nil {
		return domain.KlineRecord{}, err
	}

	return domain.KlineRecord{
		OpenTime: openTime,
		Open:     open,
		Close:    closePrice,
		Volume:   volume,
	}, nil
}

// decimalField accepts a decimal string or bare number and returns it unchanged.
func decimalField(r gjson.Result) (string, error) {
	if r.Type != gjson.String && r.Type != gjson.Number {
		return "", fmt.Errorf("%w: expected decimal, got %s", ports.ErrMalformedPayload, r.Type)
	}
	s := r.String()
	if _, err := decimal.NewFromString(s); err != nil {
		return "", fmt.Errorf("%w: %q is not a decimal: %w", ports.ErrMalformedPayload, s, err)
	}
	return s, nil
}
