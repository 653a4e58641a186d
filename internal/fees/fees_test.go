package fees

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neoswaps/internal/fixed"
	"neoswaps/internal/ledger"
	"neoswaps/internal/liquidity"
	"neoswaps/internal/model"
	"neoswaps/internal/pool"
)

var (
	trader  = common.HexToAddress("0x01")
	lp      = common.HexToAddress("0x02")
	creator = common.HexToAddress("0x03")
	usd     = model.Currency(0)
)

func setup(t *testing.T, creatorRate *uint256.Int) (*Distributor, *ledger.Memory, *pool.Pool) {
	t.Helper()
	l := ledger.NewMemory()
	l.Mint(usd, trader, fixed.Units(1_000))
	markets := ledger.NewMarkets(model.Market{ID: 1, OutcomeCount: 2, Status: model.MarketActive, BaseAsset: usd, Creator: creator})
	external := ledger.NewCreatorFees(l, markets)
	if creatorRate != nil {
		external.SetRate(1, creatorRate)
	}
	tree := liquidity.New(4)
	_, err := tree.Join(lp, fixed.Units(10))
	require.NoError(t, err)
	p := &pool.Pool{
		ID:         1,
		Type:       model.Standard(1),
		Account:    pool.AccountFor(1),
		Collateral: usd,
		SwapFee:    fixed.Cent(),
		Tree:       tree,
	}
	return NewDistributor(l, external), l, p
}

func TestDistributeSplitsFees(t *testing.T) {
	d, l, p := setup(t, fixed.Frac(2, 100))

	res, err := d.Distribute(p, trader, fixed.Units(100))
	require.NoError(t, err)
	assert.Equal(t, fixed.Units(1), res.SwapFees)
	assert.Equal(t, fixed.Units(2), res.ExternalFees)
	assert.Equal(t, fixed.Units(97), res.Remaining)

	assert.Equal(t, fixed.Units(1), l.FreeBalance(usd, p.Account))
	assert.Equal(t, fixed.Units(2), l.FreeBalance(usd, creator))
	assert.Equal(t, fixed.Units(997), l.FreeBalance(usd, trader))

	owed, err := p.Tree.PendingFees(lp)
	require.NoError(t, err)
	assert.Equal(t, fixed.Units(1), owed)
}

func TestDistributeWithoutExternalFees(t *testing.T) {
	d, _, p := setup(t, nil)

	res, err := d.Distribute(p, trader, fixed.Units(50))
	require.NoError(t, err)
	assert.True(t, res.ExternalFees.IsZero())
	assert.Equal(t, fixed.Frac(495, 10), res.Remaining)
}

func TestDistributeRejectsExcessiveFees(t *testing.T) {
	d, _, p := setup(t, fixed.Base())

	_, err := d.Distribute(p, trader, fixed.Units(10))
	require.ErrorIs(t, err, ErrFeesExceedAmount)
}
