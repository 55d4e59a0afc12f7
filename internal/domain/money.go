package domain

import "github.com/shopspring/decimal"

// BasisPointsScale is the denominator for every rate expressed in basis points.
const BasisPointsScale = 10000

var bpScale = decimal.NewFromInt(BasisPointsScale)

// ApplyRate returns amount × rateBP / 10000 rounded half-up to a whole minor unit.
func ApplyRate(amount, rateBP int64) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(rateBP)).
		Div(bpScale).
		Round(0).
		IntPart()
}

// ApplyRatio returns amount × ratio rounded half-up to a whole minor unit.
func ApplyRatio(amount int64, ratio decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(ratio).Round(0).IntPart()
}

// ProRata returns amount × part / whole rounded half-up. A zero whole yields zero.
func ProRata(amount, part, whole int64) int64 {
	if whole == 0 {
		return 0
	}
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(part)).
		Div(decimal.NewFromInt(whole)).
		Round(0).
		IntPart()
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
