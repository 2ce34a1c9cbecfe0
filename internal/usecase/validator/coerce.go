package validator

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// coerceFloat rewrites a numeric value (or a string holding one) as a plain
// float literal. ok is false when raw is left untouched.
func coerceFloat(raw json.RawMessage) (json.RawMessage, bool) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return raw, false
	}

	if text[0] == '"' {
		var s string
		if err := json.Unmarshal([]byte(text), &s); err != nil {
			return raw, false
		}
		text = strings.TrimSpace(s)
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return raw, false
	}

	formatted := json.RawMessage(formatFloat(f))
	return formatted, string(formatted) != string(raw)
}

// formatFloat renders f the way a shortest-repr float printer does: always a
// fractional part or an exponent, exponent form outside [1e-4, 1e16).
func formatFloat(f float64) string {
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
