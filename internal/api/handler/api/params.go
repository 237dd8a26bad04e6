package api

import (
	"fmt"
	"strconv"

	"github.com/newthinker/aitrader/internal/collector/upbit"
	"github.com/newthinker/aitrader/internal/core"
)

// parseMarket accepts KRW-BTC, BTC/KRW, btc or BTCKRW.
func parseMarket(raw, quote string) (string, error) {
	market := upbit.NormalizeMarket(raw, quote)
	if err := upbit.ValidateMarket(market); err != nil {
		return "", core.WrapError(core.ErrInvalidInstrument, err)
	}
	return market, nil
}

func parseCount(raw string, def, limit int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > limit {
		return 0, core.Errorf(core.ErrConfigInvalid, "count must be in 1..%d, got %q", limit, raw)
	}
	return n, nil
}

func errMissing(field string) error {
	return fmt.Errorf("%s is required", field)
}
