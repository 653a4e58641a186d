package liquidity

import (
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neoswaps/internal/model"
)

func account(i int) model.AccountID {
	return common.BigToAddress(uint256.NewInt(uint64(i + 1)).ToBig())
}

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func TestJoinKinds(t *testing.T) {
	tree := New(2)

	kind, err := tree.Join(account(0), u(100))
	require.NoError(t, err)
	assert.Equal(t, JoinLeaf, kind)

	kind, err = tree.Join(account(0), u(50))
	require.NoError(t, err)
	assert.Equal(t, JoinInPlace, kind)

	kind, err = tree.Join(account(1), u(10))
	require.NoError(t, err)
	assert.Equal(t, JoinLeaf, kind)

	require.NoError(t, tree.Exit(account(1), u(10)))
	_, err = tree.SharesOf(account(1))
	require.ErrorIs(t, err, ErrNotFound)

	kind, err = tree.Join(account(2), u(7))
	require.NoError(t, err)
	assert.Equal(t, JoinReassigned, kind)
	assert.Equal(t, u(157), tree.TotalShares())
	assert.Equal(t, 2, tree.Len())
}

func TestTreeFull(t *testing.T) {
	tree := New(1)
	for i := 0; i < 3; i++ {
		_, err := tree.Join(account(i), u(1))
		require.NoError(t, err)
	}
	_, err := tree.Join(account(3), u(1))
	require.ErrorIs(t, err, ErrTreeFull)

	require.NoError(t, tree.Exit(account(1), u(1)))
	_, err = tree.Join(account(3), u(1))
	require.NoError(t, err)
}

func TestExitErrors(t *testing.T) {
	tree := New(3)
	_, err := tree.Join(account(0), u(10))
	require.NoError(t, err)

	require.ErrorIs(t, tree.Exit(account(0), u(11)), ErrInsufficientStake)
	require.ErrorIs(t, tree.Exit(account(1), u(1)), ErrNotFound)
	require.ErrorIs(t, tree.Exit(account(0), u(0)), ErrZeroAmount)

	require.NoError(t, tree.DepositFees(u(5)))
	require.ErrorIs(t, tree.Exit(account(0), u(10)), ErrUnwithdrawnFees)
	require.NoError(t, tree.Exit(account(0), u(4)), "partial exit keeps fees on the node")

	fees, err := tree.WithdrawFees(account(0))
	require.NoError(t, err)
	assert.Equal(t, u(5), fees)
	require.NoError(t, tree.Exit(account(0), u(6)))
	assert.True(t, tree.TotalShares().IsZero())
}

func TestTotalSharesMatchesSumOfStakes(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tree := New(4)
	stakes := make(map[model.AccountID]uint64)

	for step := 0; step < 2000; step++ {
		who := account(rng.Intn(40))
		if rng.Intn(3) > 0 {
			amount := uint64(rng.Intn(1000) + 1)
			if _, err := tree.Join(who, u(amount)); err != nil {
				require.ErrorIs(t, err, ErrTreeFull)
				continue
			}
			stakes[who] += amount
			continue
		}
		held := stakes[who]
		if held == 0 {
			continue
		}
		amount := uint64(rng.Int63n(int64(held))) + 1
		require.NoError(t, tree.Exit(who, u(amount)))
		stakes[who] = held - amount
		if stakes[who] == 0 {
			delete(stakes, who)
		}
	}

	var sum uint64
	for who, stake := range stakes {
		got, err := tree.SharesOf(who)
		require.NoError(t, err)
		assert.Equal(t, u(stake), got)
		sum += stake
	}
	assert.Equal(t, u(sum), tree.TotalShares())
	assert.Equal(t, len(stakes), tree.Len())
}

func TestFeesSumIndependentOfWithdrawOrder(t *testing.T) {
	build := func() *Tree {
		tree := New(4)
		for i := 0; i < 20; i++ {
			_, err := tree.Join(account(i), u(uint64(1_000_000*(i+1))))
			require.NoError(t, err)
		}
		require.NoError(t, tree.DepositFees(u(987_654_321)))
		return tree
	}

	withdrawAll := func(tree *Tree, order []int) (uint64, map[int]uint64) {
		var total uint64
		per := make(map[int]uint64)
		for _, i := range order {
			fees, err := tree.WithdrawFees(account(i))
			require.NoError(t, err)
			per[i] = fees.Uint64()
			total += fees.Uint64()
		}
		return total, per
	}

	forward := make([]int, 20)
	for i := range forward {
		forward[i] = i
	}
	backward := make([]int, 20)
	for i := range backward {
		backward[i] = 19 - i
	}

	totalA, perA := withdrawAll(build(), forward)
	totalB, perB := withdrawAll(build(), backward)

	assert.Equal(t, perA, perB)
	assert.Equal(t, totalA, totalB)
	assert.LessOrEqual(t, totalA, uint64(987_654_321))
	assert.GreaterOrEqual(t, totalA, uint64(987_654_321-60), "rounding loss is bounded by three units per node")

	// Stake of account 19 is 20x the stake of account 0.
	assert.InDelta(t, float64(perA[0])*20, float64(perA[19]), 200)
}

func TestFeesAreNotSharedWithLaterJoiners(t *testing.T) {
	tree := New(3)
	_, err := tree.Join(account(0), u(100))
	require.NoError(t, err)
	require.NoError(t, tree.DepositFees(u(1000)))

	_, err = tree.Join(account(1), u(100))
	require.NoError(t, err)
	require.NoError(t, tree.DepositFees(u(500)))

	fees0, err := tree.WithdrawFees(account(0))
	require.NoError(t, err)
	fees1, err := tree.WithdrawFees(account(1))
	require.NoError(t, err)
	assert.Equal(t, u(1250), fees0)
	assert.Equal(t, u(250), fees1)

	again, err := tree.WithdrawFees(account(0))
	require.NoError(t, err)
	assert.True(t, again.IsZero())
}

func TestDepositFeesOnEmptyTree(t *testing.T) {
	tree := New(2)
	require.ErrorIs(t, tree.DepositFees(u(1)), ErrNoStake)
	require.NoError(t, tree.DepositFees(u(0)))
}

func TestRestore(t *testing.T) {
	tree := New(3)
	for i := 0; i < 5; i++ {
		_, err := tree.Join(account(i), u(uint64(10*(i+1))))
		require.NoError(t, err)
	}
	require.NoError(t, tree.DepositFees(u(150)))
	_, err := tree.WithdrawFees(account(2))
	require.NoError(t, err)
	require.NoError(t, tree.Exit(account(2), u(30)))

	restored, err := Restore(tree.MaxDepth(), tree.Nodes(), tree.Abandoned())
	require.NoError(t, err)
	assert.Equal(t, tree.TotalShares(), restored.TotalShares())
	assert.Equal(t, tree.Accounts(), restored.Accounts())

	for _, who := range tree.Accounts() {
		want, err := tree.PendingFees(who)
		require.NoError(t, err)
		got, err := restored.PendingFees(who)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	nodes := tree.Nodes()
	nodes[1].Account = nodes[0].Account
	_, err = Restore(tree.MaxDepth(), nodes, nil)
	require.ErrorIs(t, err, ErrCorrupted)
}
