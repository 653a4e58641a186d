package ledger

import (
	"fmt"

	"github.com/holiman/uint256"

	"neoswaps/internal/fixed"
	"neoswaps/internal/model"
)

type balanceKey struct {
	asset model.Asset
	who   model.AccountID
}

type journalEntry struct {
	key  balanceKey
	prev *uint256.Int
}

// Memory is a journaled in-memory Ledger. It is not safe for concurrent use.
type Memory struct {
	balances map[balanceKey]*uint256.Int
	minimums map[model.Asset]*uint256.Int
	journal  []journalEntry
}

var (
	_ Ledger  = (*Memory)(nil)
	_ Journal = (*Memory)(nil)
)

// NewMemory returns an empty ledger.
func NewMemory() *Memory {
	return &Memory{
		balances: make(map[balanceKey]*uint256.Int),
		minimums: make(map[model.Asset]*uint256.Int),
	}
}

// SetMinimumBalance configures the existential balance of asset.
func (m *Memory) SetMinimumBalance(asset model.Asset, amount *uint256.Int) {
	m.minimums[asset] = new(uint256.Int).Set(amount)
}

// Mint credits amount to who outside of any journal, for seeding state.
func (m *Memory) Mint(asset model.Asset, who model.AccountID, amount *uint256.Int) {
	key := balanceKey{asset, who}
	m.balances[key] = new(uint256.Int).Add(m.get(key), amount)
}

// Balances returns every non-zero balance of who.
func (m *Memory) Balances(who model.AccountID) map[model.Asset]*uint256.Int {
	out := make(map[model.Asset]*uint256.Int)
	for k, v := range m.balances {
		if k.who == who && !v.IsZero() {
			out[k.asset] = new(uint256.Int).Set(v)
		}
	}
	return out
}

func (m *Memory) Transfer(asset model.Asset, from, to model.AccountID, amount *uint256.Int) error {
	if from == to || amount.IsZero() {
		return nil
	}
	if err := m.Withdraw(asset, from, amount); err != nil {
		return err
	}
	return m.Deposit(asset, to, amount)
}

func (m *Memory) Deposit(asset model.Asset, who model.AccountID, amount *uint256.Int) error {
	key := balanceKey{asset, who}
	sum, err := fixed.Add(m.get(key), amount)
	if err != nil {
		return fmt.Errorf("deposit %s: %w", asset, err)
	}
	m.set(key, sum)
	return nil
}

func (m *Memory) Withdraw(asset model.Asset, who model.AccountID, amount *uint256.Int) error {
	key := balanceKey{asset, who}
	diff, err := fixed.Sub(m.get(key), amount)
	if err != nil {
		return fmt.Errorf("%w: %s of %s, have %s, need %s", ErrInsufficientBalance, asset, who.Hex(),
			fixed.Format(m.get(key)), fixed.Format(amount))
	}
	m.set(key, diff)
	return nil
}

func (m *Memory) FreeBalance(asset model.Asset, who model.AccountID) *uint256.Int {
	return new(uint256.Int).Set(m.get(balanceKey{asset, who}))
}

func (m *Memory) MinimumBalance(asset model.Asset) *uint256.Int {
	if v, ok := m.minimums[asset]; ok {
		return new(uint256.Int).Set(v)
	}
	return new(uint256.Int)
}

func (m *Memory) EnsureCanWithdraw(asset model.Asset, who model.AccountID, amount *uint256.Int) error {
	if m.get(balanceKey{asset, who}).Lt(amount) {
		return fmt.Errorf("%w: %s of %s", ErrInsufficientBalance, asset, who.Hex())
	}
	return nil
}

// Snapshot returns an id that RevertToSnapshot can roll back to.
func (m *Memory) Snapshot() int { return len(m.journal) }

// RevertToSnapshot undoes every write made after the snapshot was taken.
func (m *Memory) RevertToSnapshot(id int) {
	for i := len(m.journal) - 1; i >= id; i-- {
		e := m.journal[i]
		if e.prev == nil {
			delete(m.balances, e.key)
		} else {
			m.balances[e.key] = e.prev
		}
	}
	m.journal = m.journal[:id]
}

// Finalise drops the journal; earlier snapshots can no longer be reverted.
func (m *Memory) Finalise() { m.journal = m.journal[:0] }

func (m *Memory) get(key balanceKey) *uint256.Int {
	if v, ok := m.balances[key]; ok {
		return v
	}
	return new(uint256.Int)
}

func (m *Memory) set(key balanceKey, v *uint256.Int) {
	m.journal = append(m.journal, journalEntry{key: key, prev: m.balances[key]})
	m.balances[key] = v
}
