package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMulPercentRoundsToTwoPlaces(t *testing.T) {
	base := FromFloat(100.00, "CNY")
	chain := base.MulPercent(decimal.NewFromInt(10))
	require.Equal(t, "10.00 CNY", chain.String())

	levelOne := chain.MulPercent(decimal.NewFromInt(50))
	require.Equal(t, "5.00 CNY", levelOne.String())
}

func TestAddRejectsMixedCurrencies(t *testing.T) {
	cny := FromFloat(10, "CNY")
	usd := FromFloat(10, "USD")

	_, err := cny.Add(usd)
	require.ErrorIs(t, err, ErrCurrencyMismatch)

	sum, err := cny.Add(FromFloat(2.50, "CNY"))
	require.NoError(t, err)
	require.Equal(t, "12.50 CNY", sum.String())
}

func TestSubAndNeg(t *testing.T) {
	total := FromFloat(7.25, "CNY")
	off, err := total.Sub(FromFloat(10, "CNY"))
	require.NoError(t, err)
	require.True(t, off.IsNegative())
	require.Equal(t, "2.75 CNY", off.Neg().String())
}

func TestMulRatioHandlesFractionalShares(t *testing.T) {
	pool := FromFloat(1000, "CNY")
	share := pool.MulRatio(decimal.NewFromFloat(1.0 / 3.0))
	require.Equal(t, "333.33 CNY", share.String())
}

func TestFromString(t *testing.T) {
	m, err := FromString("99.90", "CNY")
	require.NoError(t, err)
	require.Equal(t, "99.90 CNY", m.String())

	_, err = FromString("not-a-number", "CNY")
	require.Error(t, err)
}
