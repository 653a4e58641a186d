package pricing

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"neoswaps/internal/fixed"
)

var (
	ErrInvalidSpotPrices = errors.New("spot prices must sum to one")
	ErrSpotPriceBelowMin = errors.New("spot price below minimum")
	ErrSpotPriceAboveMax = errors.New("spot price above maximum")
)

// Band is an inclusive spot price range.
type Band struct {
	Min uint64
	Max uint64
}

var (
	// StandardBand limits prices in single-market pools.
	StandardBand = Band{Min: MinSpotPrice, Max: MaxSpotPrice}
	// ComboBand limits prices in combinatorial pools.
	ComboBand = Band{Min: ComboMinSpotPrice, Max: ComboMaxSpotPrice}
)

// Contains reports whether price lies within the band.
func (b Band) Contains(price *uint256.Int) bool {
	return !price.Lt(uint256.NewInt(b.Min)) && !price.Gt(uint256.NewInt(b.Max))
}

// ValidateSpotPrices checks a deployment price vector: every price inside the
// band and the vector summing to exactly one.
func ValidateSpotPrices(prices []*uint256.Int, band Band) error {
	sum := new(uint256.Int)
	for _, p := range prices {
		if p.Lt(uint256.NewInt(band.Min)) {
			return ErrSpotPriceBelowMin
		}
		if p.Gt(uint256.NewInt(band.Max)) {
			return ErrSpotPriceAboveMax
		}
		sum.Add(sum, p)
	}
	if !sum.Eq(fixed.Base()) {
		return ErrInvalidSpotPrices
	}
	return nil
}

// ReservesFromSpotPrices inverts the price function for a deployment of
// amount complete sets. It returns the liquidity parameter
// b = amount / -ln(min p) and reserves r_i = -b*ln(p_i). The cheapest asset
// receives the whole amount; no reserve exceeds it.
func ReservesFromSpotPrices(amount *uint256.Int, prices []*uint256.Int) (*uint256.Int, []*uint256.Int, error) {
	if len(prices) == 0 {
		return nil, nil, ErrInvalidSpotPrices
	}
	minPrice := prices[0]
	for _, p := range prices[1:] {
		if p.Lt(minPrice) {
			minPrice = p
		}
	}
	lnMin, err := negLn(minPrice)
	if err != nil {
		return nil, nil, err
	}
	if lnMin.Sign() <= 0 {
		return nil, nil, ErrInvalidSpotPrices
	}
	b := fixed.Float(amount)
	b.Quo(b, lnMin)
	liquidity, err := fixed.FromFloat(b)
	if err != nil {
		return nil, nil, err
	}
	if liquidity.IsZero() {
		return nil, nil, ErrZeroLiquidity
	}

	bf := fixed.Float(liquidity)
	reserves := make([]*uint256.Int, len(prices))
	for i, p := range prices {
		ln, err := negLn(p)
		if err != nil {
			return nil, nil, err
		}
		r, err := fixed.FromFloat(ln.Mul(ln, bf))
		if err != nil {
			return nil, nil, err
		}
		reserves[i] = new(uint256.Int).Set(fixed.Min(r, amount))
	}
	return liquidity, reserves, nil
}

func negLn(p *uint256.Int) (*big.Float, error) {
	ln, err := fixed.Ln(fixed.Float(p))
	if err != nil {
		return nil, ErrInvalidSpotPrices
	}
	return ln.Neg(ln), nil
}
