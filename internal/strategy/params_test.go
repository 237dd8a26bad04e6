package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestIntParam(t *testing.T) {
	params := map[string]any{"a": 3, "b": int64(4), "c": 5.0, "d": 5.5, "e": "x"}

	for key, want := range map[string]int{"a": 3, "b": 4, "c": 5, "missing": 7} {
		got, err := IntParam(params, key, 7)
		if err != nil || got != want {
			t.Errorf("IntParam(%s) = %d, %v; want %d", key, got, err, want)
		}
	}
	for _, key := range []string{"d", "e"} {
		if _, err := IntParam(params, key, 0); err == nil {
			t.Errorf("IntParam(%s) expected error", key)
		}
	}
}

func TestFloatParam(t *testing.T) {
	got, err := FloatParam(map[string]any{"t": 1}, "t", 0)
	if err != nil || got != 1 {
		t.Errorf("FloatParam = %f, %v", got, err)
	}
	if _, err := FloatParam(map[string]any{"t": true}, "t", 0); err == nil {
		t.Error("expected error for bool")
	}
}

func TestDecimalParam(t *testing.T) {
	def := decimal.NewFromInt(1)
	for _, v := range []any{"500000", 500000, 500000.0} {
		got, err := DecimalParam(map[string]any{"n": v}, "n", def)
		if err != nil || !got.Equal(decimal.NewFromInt(500000)) {
			t.Errorf("DecimalParam(%v) = %s, %v", v, got, err)
		}
	}
	if _, err := DecimalParam(map[string]any{"n": "abc"}, "n", def); err == nil {
		t.Error("expected error for malformed amount")
	}
}

func TestBoolParam(t *testing.T) {
	got, err := BoolParam(map[string]any{"b": true}, "b", false)
	if err != nil || !got {
		t.Errorf("BoolParam = %v, %v", got, err)
	}
	if _, err := BoolParam(map[string]any{"b": "yes"}, "b", false); err == nil {
		t.Error("expected error for string")
	}
}
