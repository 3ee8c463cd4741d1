package binanceclient

import (
	"encoding/json"
	"net/http"

	"binanceMarginBot/internal/domain"

	"github.com/adshao/go-binance/v2/common"
	"github.com/tidwall/gjson"
)

// Binance error codes with a known meaning for market-data requests.
// Anything outside these tables is unclassified and treated as terminal, unless it came
// with a 5xx status.
var (
	rateLimitCodes = map[int64]bool{
		-1003: true, // Too many requests
	}
	rejectedCodes = map[int64]bool{
		-1100: true, // Illegal characters found in a parameter
		-1101: true, // Too many parameters
		-1102: true, // Mandatory parameter missing or malformed
		-1104: true, // Not all sent parameters were read
		-1105: true, // Parameter was empty
		-1106: true, // Parameter sent when not required
		-1111: true, // Precision over the maximum defined
		-1112: true, // No orders on book for symbol
		-1120: true, // Invalid interval
		-1121: true, // Invalid symbol
	}
	transientCodes = map[int64]bool{
		-1000: true, // Unknown error while processing the request
		-1001: true, // Internal error; unable to process
		-1006: true, // Unexpected response from the message bus
		-1007: true, // Timeout waiting for response from backend server
		-1008: true, // Server is currently overloaded
		-1015: true, // Too many new orders
		-1016: true, // Service shutting down
	}
)

// ClassifyCode maps a Binance error code to an ErrorKind.
func ClassifyCode(code int64) domain.ErrorKind {
	switch {
	case rateLimitCodes[code]:
		return domain.ErrorKindRateLimited
	case rejectedCodes[code]:
		return domain.ErrorKindRejected
	case transientCodes[code]:
		return domain.ErrorKindServer
	default:
		return domain.ErrorKindUnclassified
	}
}

// ClassifyResponse maps an HTTP status and body to an ErrorKind and, when the body
// carries one, the exchange error code. A usable 200 yields ErrorKindNone.
func ClassifyResponse(status int, body []byte) (domain.ErrorKind, int64) {
	switch status {
	case http.StatusOK:
		if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsArray() {
			return domain.ErrorKindMalformed, 0
		}
		return domain.ErrorKindNone, 0
	case http.StatusTooManyRequests, http.StatusTeapot: // 418 is Binance's IP ban after ignoring 429s
		return domain.ErrorKindRateLimited, decodeCode(body)
	case http.StatusServiceUnavailable:
		return domain.ErrorKindUnavailable, decodeCode(body)
	}

	if code := decodeCode(body); code != 0 {
		kind := ClassifyCode(code)
		if kind == domain.ErrorKindUnclassified && status >= http.StatusInternalServerError {
			kind = domain.ErrorKindServer
		}
		return kind, code
	}
	return domain.ErrorKindHTTPStatus, 0
}

func decodeCode(body []byte) int64 {
	if len(body) == 0 {
		return 0
	}
	var apiErr common.APIError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return 0
	}
	return apiErr.Code
}
