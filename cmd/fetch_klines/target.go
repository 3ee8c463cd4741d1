package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"binanceMarginBot/internal/domain"
)

// parseTarget turns the -target flag into a candle open time in epoch ms.
// serverNow is only called for "last".
func parseTarget(value string, step time.Duration, serverNow func() time.Time) (*int64, error) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return nil, nil
	case strings.EqualFold(value, "last"):
		v := domain.LastClosedOpenTime(serverNow(), step)
		return &v, nil
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return &ms, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("target %q is neither epoch ms, RFC3339 nor 'last'", value)
	}
	ms := t.UnixMilli()
	return &ms, nil
}
