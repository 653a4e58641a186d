package pricing

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neoswaps/internal/fixed"
)

func mustParse(t *testing.T, s string) *uint256.Int {
	t.Helper()
	v, err := fixed.Parse(s)
	require.NoError(t, err)
	return v
}

func priceSum(t *testing.T, reserves []*uint256.Int, liquidity *uint256.Int) uint64 {
	t.Helper()
	sum := new(uint256.Int)
	for _, r := range reserves {
		p, err := SpotPrice(r, liquidity)
		require.NoError(t, err)
		sum.Add(sum, p)
	}
	return sum.Uint64()
}

func TestReservesFromSpotPrices(t *testing.T) {
	amount := fixed.Units(100)
	prices := []*uint256.Int{mustParse(t, "0.1"), mustParse(t, "0.3"), mustParse(t, "0.6")}
	require.NoError(t, ValidateSpotPrices(prices, StandardBand))

	liquidity, reserves, err := ReservesFromSpotPrices(amount, prices)
	require.NoError(t, err)
	require.Len(t, reserves, 3)
	assert.InDelta(t, amount.Uint64(), reserves[0].Uint64(), 5)
	assert.True(t, reserves[1].Lt(reserves[0]))
	assert.True(t, reserves[2].Lt(reserves[1]))

	for i, r := range reserves {
		p, err := SpotPrice(r, liquidity)
		require.NoError(t, err)
		assert.InDelta(t, prices[i].Uint64(), p.Uint64(), 10, "asset %d", i)
	}
	assert.InDelta(t, fixed.One, priceSum(t, reserves, liquidity), float64(SpotPriceSumTolerance))
}

func TestValidateSpotPrices(t *testing.T) {
	cases := []struct {
		name   string
		prices []string
		band   Band
		err    error
	}{
		{name: "ok", prices: []string{"0.5", "0.5"}, band: StandardBand},
		{name: "sum below one", prices: []string{"0.5", "0.4"}, band: StandardBand, err: ErrInvalidSpotPrices},
		{name: "sum above one", prices: []string{"0.6", "0.5"}, band: StandardBand, err: ErrInvalidSpotPrices},
		{name: "below min", prices: []string{"0.001", "0.999"}, band: StandardBand, err: ErrSpotPriceBelowMin},
		{name: "combo allows lower", prices: []string{"0.001", "0.999"}, band: ComboBand},
		{name: "combo below min", prices: []string{"0.00001", "0.99999"}, band: ComboBand, err: ErrSpotPriceBelowMin},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prices := make([]*uint256.Int, len(tc.prices))
			for i, s := range tc.prices {
				prices[i] = mustParse(t, s)
			}
			err := ValidateSpotPrices(prices, tc.band)
			if tc.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestBuyMovesPrices(t *testing.T) {
	half := mustParse(t, "0.5")
	liquidity, reserves, err := ReservesFromSpotPrices(fixed.Units(100), []*uint256.Int{half, half})
	require.NoError(t, err)

	x := fixed.Units(10)
	out, err := BuyAmountOut(x, reserves[0], liquidity)
	require.NoError(t, err)
	assert.True(t, out.Gt(x), "amount out %s", fixed.Format(out))

	after := []*uint256.Int{
		new(uint256.Int).Sub(new(uint256.Int).Add(reserves[0], x), out),
		new(uint256.Int).Add(reserves[1], x),
	}
	p0, err := SpotPrice(after[0], liquidity)
	require.NoError(t, err)
	p1, err := SpotPrice(after[1], liquidity)
	require.NoError(t, err)
	assert.True(t, p0.Gt(half))
	assert.True(t, p1.Lt(half))
	assert.InDelta(t, fixed.One, priceSum(t, after, liquidity), float64(SpotPriceSumTolerance))
}

func TestBuyThenSellDoesNotProfit(t *testing.T) {
	prices := []*uint256.Int{mustParse(t, "0.2"), mustParse(t, "0.3"), mustParse(t, "0.5")}
	liquidity, reserves, err := ReservesFromSpotPrices(fixed.Units(50), prices)
	require.NoError(t, err)

	x := fixed.Units(5)
	out, err := BuyAmountOut(x, reserves[1], liquidity)
	require.NoError(t, err)

	r1 := new(uint256.Int).Sub(new(uint256.Int).Add(reserves[1], x), out)
	back, err := SellAmountOut(out, r1, liquidity)
	require.NoError(t, err)
	assert.False(t, back.Gt(x))
	assert.InDelta(t, x.Uint64(), back.Uint64(), 100)
}

func TestSellSmallAmountFails(t *testing.T) {
	half := mustParse(t, "0.5")
	liquidity, reserves, err := ReservesFromSpotPrices(fixed.Units(100), []*uint256.Int{half, half})
	require.NoError(t, err)

	_, err = SellAmountOut(uint256.NewInt(1), reserves[0], liquidity)
	require.ErrorIs(t, err, ErrMinAmountNotMet)
}

func TestAmountLimit(t *testing.T) {
	liquidity := fixed.Units(2)
	require.NoError(t, CheckAmount(fixed.Units(20), liquidity))
	require.ErrorIs(t, CheckAmount(new(uint256.Int).AddUint64(fixed.Units(20), 1), liquidity), ErrMaxAmountExceeded)

	_, err := BuyAmountOut(fixed.Units(21), fixed.Units(1), liquidity)
	require.ErrorIs(t, err, ErrMaxAmountExceeded)
	_, err = SpotPrice(fixed.Units(1), new(uint256.Int))
	require.ErrorIs(t, err, ErrZeroLiquidity)
}

func TestComboFormulasReduceToStandard(t *testing.T) {
	prices := []*uint256.Int{mustParse(t, "0.25"), mustParse(t, "0.25"), mustParse(t, "0.5")}
	liquidity, reserves, err := ReservesFromSpotPrices(fixed.Units(80), prices)
	require.NoError(t, err)
	x := fixed.Units(7)

	single, err := BuyAmountOut(x, reserves[2], liquidity)
	require.NoError(t, err)
	combo, err := ComboBuyAmountOut(x, reserves[2:], liquidity)
	require.NoError(t, err)
	assert.InDelta(t, single.Uint64(), combo.Uint64(), 2)

	sold, err := SellAmountOut(x, reserves[0], liquidity)
	require.NoError(t, err)
	comboSold, err := ComboSellAmountOut(x, new(uint256.Int), reserves[:1], nil, reserves[1:], liquidity)
	require.NoError(t, err)
	assert.InDelta(t, sold.Uint64(), comboSold.Uint64(), 2_000)
}

func TestComboSellWithKeep(t *testing.T) {
	prices := []*uint256.Int{mustParse(t, "0.25"), mustParse(t, "0.25"), mustParse(t, "0.5")}
	liquidity, reserves, err := ReservesFromSpotPrices(fixed.Units(80), prices)
	require.NoError(t, err)

	a, k := fixed.Units(6), fixed.Units(2)
	y, err := ComboSellAmountOut(a, k, reserves[:1], reserves[1:2], reserves[2:], liquidity)
	require.NoError(t, err)
	assert.False(t, y.IsZero())
	assert.True(t, y.Lt(a))

	after := []*uint256.Int{
		new(uint256.Int).Sub(new(uint256.Int).Add(reserves[0], a), y),
		new(uint256.Int).Sub(new(uint256.Int).Add(reserves[1], k), y),
		new(uint256.Int).Sub(reserves[2], y),
	}
	assert.InDelta(t, fixed.One, priceSum(t, after, liquidity), float64(SpotPriceSumTolerance))
}
