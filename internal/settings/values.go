package settings

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// DailyBonusCredits returns the configured daily bonus, never negative.
func DailyBonusCredits() int64 {
	n := Int(DailyBonusCreditsKey, DefaultDailyBonusCredits)
	if n < 0 {
		return 0
	}
	return int64(n)
}

// TransactionsMaxLimit returns the configured page size cap.
func TransactionsMaxLimit() int {
	n := Int(TransactionsMaxLimitKey, DefaultTransactionsMaxLimit)
	if n <= 0 {
		return DefaultTransactionsMaxLimit
	}
	return n
}

// PurchasesEnabled reports whether webhook purchases are accepted.
func PurchasesEnabled() bool {
	return Bool(PurchasesEnabledKey, DefaultPurchasesEnabled)
}

// Int returns the integer value of key, or def when unset or unparsable.
func Int(key string, def int) int {
	raw, ok := DBConfigValue(key)
	if !ok {
		return def
	}
	if parsed, okParse := parseDBConfigInt(raw); okParse {
		return parsed
	}
	return def
}

// Bool returns the boolean value of key, or def when unset or unparsable.
func Bool(key string, def bool) bool {
	raw, ok := DBConfigValue(key)
	if !ok {
		return def
	}
	raw = bytesTrimSpace(raw)
	var b bool
	if errUnmarshal := json.Unmarshal(raw, &b); errUnmarshal == nil {
		return b
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		if parsed, errParse := strconv.ParseBool(strings.TrimSpace(s)); errParse == nil {
			return parsed
		}
	}
	return def
}

func parseDBConfigInt(raw json.RawMessage) (int, bool) {
	raw = bytesTrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	var n int
	if errUnmarshal := json.Unmarshal(raw, &n); errUnmarshal == nil {
		return n, true
	}
	var f float64
	if errUnmarshal := json.Unmarshal(raw, &f); errUnmarshal == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		if f != math.Trunc(f) {
			return 0, false
		}
		return int(f), true
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		parsed, errParse := strconv.Atoi(strings.TrimSpace(s))
		if errParse == nil {
			return parsed, true
		}
	}
	var wrapper struct {
		Value json.RawMessage `json:"value"`
	}
	if errUnmarshal := json.Unmarshal(raw, &wrapper); errUnmarshal == nil && len(wrapper.Value) > 0 {
		return parseDBConfigInt(wrapper.Value)
	}
	return 0, false
}

func bytesTrimSpace(input []byte) []byte {
	if len(input) == 0 {
		return nil
	}
	start := 0
	end := len(input)
	for start < end {
		if input[start] > ' ' {
			break
		}
		start++
	}
	for end > start {
		if input[end-1] > ' ' {
			break
		}
		end--
	}
	return input[start:end]
}
