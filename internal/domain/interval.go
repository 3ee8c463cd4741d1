package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var validIntervals = map[string]bool{
	"1m": true, "3m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "2h": true, "4h": true, "6h": true, "8h": true, "12h": true,
	"1d": true, "3d": true, "1w": true,
}

// ParseInterval converts a Binance kline interval (e.g. "5m", "1h") to a duration.
func ParseInterval(interval string) (time.Duration, error) {
	interval = strings.TrimSpace(interval)
	if !validIntervals[interval] {
		return 0, fmt.Errorf("unsupported kline interval %q", interval)
	}
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid kline interval %q: %w", interval, err)
	}
	switch interval[len(interval)-1] {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default: // 'w'
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	}
}

const week = 7 * 24 * time.Hour

// Weekly candles open on Monday 00:00 UTC; the Unix epoch fell on a Thursday.
var weekAnchorMs = time.Date(1970, 1, 5, 0, 0, 0, 0, time.UTC).UnixMilli()

// anchor returns the epoch-ms origin candles of this interval are aligned to.
func anchor(interval time.Duration) int64 {
	if interval%week == 0 {
		return weekAnchorMs
	}
	return 0
}

// openTimeAt returns the open time (epoch ms) of the candle containing now.
func openTimeAt(now time.Time, step, origin int64) int64 {
	offset := now.UnixMilli() - origin
	floor := offset / step * step
	if offset < 0 && offset%step != 0 {
		floor -= step
	}
	return origin + floor
}

// LastClosedOpenTime returns the open time (epoch ms) of the most recent candle
// that is fully closed at now.
func LastClosedOpenTime(now time.Time, interval time.Duration) int64 {
	step := interval.Milliseconds()
	if step <= 0 {
		return 0
	}
	return openTimeAt(now, step, anchor(interval)) - step
}

// NextBoundary returns the start of the next interval after now.
func NextBoundary(now time.Time, interval time.Duration) time.Time {
	step := interval.Milliseconds()
	if step <= 0 {
		return now
	}
	return time.UnixMilli(openTimeAt(now, step, anchor(interval)) + step)
}
