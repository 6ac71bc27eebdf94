package uoa

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	ColumnSymbol  = "Symbol"
	ColumnType    = "Type"
	ColumnStrike  = "Strike"
	ColumnExpDate = "Exp Date"
	ColumnLast    = "Last"
	ColumnBid     = "Bid"
	ColumnAsk     = "Ask"
	ColumnVolume  = "Volume"
)

var ErrMissingColumn = errors.New("missing column")

// one contract covers 100 shares
var contractSize = decimal.NewFromInt(100)

// DefaultPremiumThreshold is the smallest per-trade premium that counts as unusual.
var DefaultPremiumThreshold = decimal.NewFromInt(1_000_000)

func parseNumber(cell string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(cell), ",", "")
	return decimal.NewFromString(cleaned)
}

// Premium is last × 100 × volume.
func Premium(last, volume string) (decimal.Decimal, error) {
	l, err := parseNumber(last)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("last %q: %w", last, err)
	}
	v, err := parseNumber(volume)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("volume %q: %w", volume, err)
	}
	return l.Mul(contractSize).Mul(v), nil
}

// PremiumQuery selects rows for PremiumBySymbol. Empty fields do not filter.
type PremiumQuery struct {
	// Min drops rows whose premium is not strictly greater.
	Min     decimal.Decimal
	Symbols []string
	// Type is Call or Put.
	Type string
}

type SymbolPremium struct {
	Symbol  string
	Premium decimal.Decimal
	Trades  int
}

// PremiumBySymbol sums the premium of the matching rows per symbol, largest first.
// Rows whose numbers cannot be parsed are counted in `skipped`.
func PremiumBySymbol(ds Dataset, q PremiumQuery) (out []SymbolPremium, skipped int, err error) {
	idx := map[string]int{}
	for _, name := range []string{ColumnSymbol, ColumnLast, ColumnVolume} {
		i := ds.Column(name)
		if i < 0 {
			return nil, 0, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
		idx[name] = i
	}
	typeIdx := ds.Column(ColumnType)
	if q.Type != "" && typeIdx < 0 {
		return nil, 0, fmt.Errorf("%w: %s", ErrMissingColumn, ColumnType)
	}

	totals := map[string]*SymbolPremium{}
	for _, row := range ds.Rows {
		symbol := row[idx[ColumnSymbol]]
		if len(q.Symbols) > 0 && !slices.Contains(q.Symbols, symbol) {
			continue
		}
		if q.Type != "" && !strings.EqualFold(row[typeIdx], q.Type) {
			continue
		}

		premium, err := Premium(row[idx[ColumnLast]], row[idx[ColumnVolume]])
		if err != nil {
			skipped++
			continue
		}
		if !premium.GreaterThan(q.Min) {
			continue
		}

		total, ok := totals[symbol]
		if !ok {
			total = &SymbolPremium{Symbol: symbol}
			totals[symbol] = total
		}
		total.Premium = total.Premium.Add(premium)
		total.Trades++
	}

	out = make([]SymbolPremium, 0, len(totals))
	for _, total := range totals {
		out = append(out, *total)
	}
	slices.SortFunc(out, func(a, b SymbolPremium) int {
		if c := b.Premium.Cmp(a.Premium); c != 0 {
			return c
		}
		return strings.Compare(a.Symbol, b.Symbol)
	})
	return out, skipped, nil
}
