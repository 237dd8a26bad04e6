package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// IntParam reads an integer parameter. Config decoders hand numbers over as
// int, int64 or float64, so all three are accepted.
func IntParam(params map[string]any, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%s: expected integer, got %v", key, n)
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("%s: expected integer, got %T", key, v)
}

// FloatParam reads a numeric parameter.
func FloatParam(params map[string]any, key string, def float64) (float64, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("%s: expected number, got %T", key, v)
}

// DecimalParam reads a money amount given as a number or string.
func DecimalParam(params map[string]any, key string, def decimal.Decimal) (decimal.Decimal, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return def, fmt.Errorf("%s: %w", key, err)
		}
		return d, nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case float64:
		return decimal.NewFromFloat(n), nil
	}
	return def, fmt.Errorf("%s: expected amount, got %T", key, v)
}

// BoolParam reads a boolean parameter.
func BoolParam(params map[string]any, key string, def bool) (bool, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return def, fmt.Errorf("%s: expected bool, got %T", key, v)
	}
	return b, nil
}
