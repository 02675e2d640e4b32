package models

import (
	"fmt"
	"strings"
)

// MarketType identifies the exchange universe a symbol trades in.
type MarketType string

const (
	MarketUS MarketType = "US"
	MarketHK MarketType = "HK"
	MarketCN MarketType = "CN"
	MarketTW MarketType = "TW"
)

// AllMarkets lists every market the system knows about.
func AllMarkets() []MarketType {
	return []MarketType{MarketUS, MarketHK, MarketCN, MarketTW}
}

// Valid reports whether m is one of the known markets.
func (m MarketType) Valid() bool {
	switch m {
	case MarketUS, MarketHK, MarketCN, MarketTW:
		return true
	}
	return false
}

// AssetType classifies the kind of instrument behind a symbol.
type AssetType string

const (
	AssetEquity AssetType = "EQUITY"
	AssetIndex  AssetType = "INDEX"
	AssetETF    AssetType = "ETF"
)

// TimeFrame is a bar aggregation period.
type TimeFrame string

const (
	TimeFrameMinute TimeFrame = "1m"
	TimeFrameHour   TimeFrame = "60m"
	TimeFrameDaily  TimeFrame = "1d"
	TimeFrameWeekly TimeFrame = "1wk"
)

func (t TimeFrame) Valid() bool {
	switch t {
	case TimeFrameMinute, TimeFrameHour, TimeFrameDaily, TimeFrameWeekly:
		return true
	}
	return false
}

// Quality is the trust level of a data point.
type Quality string

const (
	QualityRealtime Quality = "REALTIME"
	QualityEOD      Quality = "EOD"
	QualityDelayed  Quality = "DELAYED"
	QualityMissing  Quality = "MISSING"
)

// SymbolKey uniquely identifies a tradable instrument. Its canonical textual
// form "MARKET:CODE" is the sole interchange format between planner output,
// tool arguments and provider routing.
type SymbolKey struct {
	Market    MarketType `json:"market"`
	Code      string     `json:"code"`
	AssetType AssetType  `json:"asset_type"`
}

// NewSymbolKey builds an equity SymbolKey.
func NewSymbolKey(market MarketType, code string) SymbolKey {
	return SymbolKey{Market: market, Code: code, AssetType: AssetEquity}
}

// String renders the canonical form. Equality and hashing of symbol keys are
// defined on this string.
func (k SymbolKey) String() string {
	return fmt.Sprintf("%s:%s", k.Market, k.Code)
}

// ParseSymbolKey parses the canonical "MARKET:CODE" form.
func ParseSymbolKey(s string) (SymbolKey, error) {
	market, code, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return SymbolKey{}, fmt.Errorf("symbol key %q must use the MARKET:CODE form, e.g. US:AAPL", s)
	}
	m := MarketType(strings.ToUpper(market))
	if !m.Valid() {
		return SymbolKey{}, fmt.Errorf("unsupported market %q in symbol key %q", market, s)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return SymbolKey{}, fmt.Errorf("symbol key %q has an empty code", s)
	}
	return NewSymbolKey(m, strings.ToUpper(code)), nil
}
