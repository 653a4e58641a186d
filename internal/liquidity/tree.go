// Package liquidity implements the liquidity tree: a bounded-depth complete
// binary tree that tracks the pool shares of every LP together with the trading
// fees each LP may withdraw.
//
// Fees deposited into the tree are recorded as a lazy amount on the root and
// pushed down towards a node, split by subtree stake, only when that node is
// read or mutated. Every operation therefore touches one root-to-node path.
package liquidity

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"neoswaps/internal/fixed"
	"neoswaps/internal/model"
)

var (
	ErrTreeFull          = errors.New("liquidity tree is full")
	ErrNotFound          = errors.New("account not found in liquidity tree")
	ErrInsufficientStake = errors.New("insufficient stake in liquidity tree")
	ErrUnwithdrawnFees   = errors.New("account has unwithdrawn fees")
	ErrZeroAmount        = errors.New("amount is zero")
	ErrNoStake           = errors.New("liquidity tree has no stake")
	ErrCorrupted         = errors.New("liquidity tree is corrupted")
)

// JoinKind reports how a join was placed in the tree. It is diagnostic only.
type JoinKind uint8

const (
	JoinInPlace JoinKind = iota
	JoinReassigned
	JoinLeaf
)

func (k JoinKind) String() string {
	switch k {
	case JoinInPlace:
		return "in_place"
	case JoinReassigned:
		return "reassigned"
	default:
		return "leaf"
	}
}

// Node is one slot of the tree. An unoccupied node has been abandoned by a
// full exit and may be reassigned by a later join.
type Node struct {
	Account         model.AccountID
	Occupied        bool
	Stake           uint256.Int
	Fees            uint256.Int
	DescendantStake uint256.Int
	LazyFees        uint256.Int
}

func (n *Node) totalStake() *uint256.Int {
	return new(uint256.Int).Add(&n.Stake, &n.DescendantStake)
}

// Tree is the liquidity tree of one pool. It is not safe for concurrent use.
type Tree struct {
	nodes     []Node
	accounts  map[model.AccountID]uint32
	abandoned []uint32
	maxDepth  uint32
}

// New returns an empty tree that can hold up to 2^(maxDepth+1)-1 LPs.
func New(maxDepth uint32) *Tree {
	return &Tree{
		accounts: make(map[model.AccountID]uint32),
		maxDepth: maxDepth,
	}
}

// Restore rebuilds a tree from its persisted nodes and abandoned list.
func Restore(maxDepth uint32, nodes []Node, abandoned []uint32) (*Tree, error) {
	t := New(maxDepth)
	if uint64(len(nodes)) > t.MaxNodes() {
		return nil, fmt.Errorf("%w: %d nodes exceed depth %d", ErrCorrupted, len(nodes), maxDepth)
	}
	t.nodes = append([]Node(nil), nodes...)
	for i := range t.nodes {
		n := &t.nodes[i]
		if !n.Occupied {
			continue
		}
		if _, dup := t.accounts[n.Account]; dup {
			return nil, fmt.Errorf("%w: duplicate account %s", ErrCorrupted, n.Account.Hex())
		}
		t.accounts[n.Account] = uint32(i)
	}
	for _, idx := range abandoned {
		if int(idx) >= len(t.nodes) || t.nodes[idx].Occupied {
			return nil, fmt.Errorf("%w: bad abandoned index %d", ErrCorrupted, idx)
		}
	}
	t.abandoned = append([]uint32(nil), abandoned...)
	return t, nil
}

// Nodes returns a copy of the node slice for persistence.
func (t *Tree) Nodes() []Node {
	return append([]Node(nil), t.nodes...)
}

// Abandoned returns a copy of the abandoned node indices.
func (t *Tree) Abandoned() []uint32 {
	return append([]uint32(nil), t.abandoned...)
}

// MaxDepth returns the configured depth limit.
func (t *Tree) MaxDepth() uint32 { return t.maxDepth }

// MaxNodes returns the hard cap on concurrent LPs.
func (t *Tree) MaxNodes() uint64 {
	return (uint64(1) << (t.maxDepth + 1)) - 1
}

// Len returns the number of LPs currently holding shares.
func (t *Tree) Len() int { return len(t.accounts) }

// Accounts lists the current LPs in node order.
func (t *Tree) Accounts() []model.AccountID {
	out := make([]model.AccountID, 0, len(t.accounts))
	for i := range t.nodes {
		if t.nodes[i].Occupied {
			out = append(out, t.nodes[i].Account)
		}
	}
	return out
}

// TotalShares returns the aggregate stake of all LPs.
func (t *Tree) TotalShares() *uint256.Int {
	if len(t.nodes) == 0 {
		return new(uint256.Int)
	}
	return t.nodes[0].totalStake()
}

// SharesOf returns the stake of who.
func (t *Tree) SharesOf(who model.AccountID) (*uint256.Int, error) {
	idx, ok := t.accounts[who]
	if !ok {
		return nil, ErrNotFound
	}
	return new(uint256.Int).Set(&t.nodes[idx].Stake), nil
}

// Join adds amount to the stake of who, allocating a node if needed.
func (t *Tree) Join(who model.AccountID, amount *uint256.Int) (JoinKind, error) {
	if amount.IsZero() {
		return 0, ErrZeroAmount
	}

	if idx, ok := t.accounts[who]; ok {
		if err := t.propagateFeesToNode(idx); err != nil {
			return 0, err
		}
		if err := t.addStake(idx, amount); err != nil {
			return 0, err
		}
		return JoinInPlace, nil
	}

	if n := len(t.abandoned); n > 0 {
		idx := t.abandoned[n-1]
		if err := t.propagateFeesToNode(idx); err != nil {
			return 0, err
		}
		t.abandoned = t.abandoned[:n-1]
		node := &t.nodes[idx]
		node.Account = who
		node.Occupied = true
		node.Fees.Clear()
		t.accounts[who] = idx
		if err := t.addStake(idx, amount); err != nil {
			return 0, err
		}
		return JoinReassigned, nil
	}

	idx := uint32(len(t.nodes))
	if uint64(idx) >= t.MaxNodes() {
		return 0, ErrTreeFull
	}
	if idx > 0 {
		// The parent must not hold lazy fees when the new subtree appears.
		if err := t.propagateFeesToNode(parent(idx)); err != nil {
			return 0, err
		}
	}
	t.nodes = append(t.nodes, Node{Account: who, Occupied: true})
	t.accounts[who] = idx
	if err := t.addStake(idx, amount); err != nil {
		return 0, err
	}
	return JoinLeaf, nil
}

// Exit removes amount from the stake of who. A node whose stake drops to zero
// is abandoned; its fees must have been withdrawn first.
func (t *Tree) Exit(who model.AccountID, amount *uint256.Int) error {
	if amount.IsZero() {
		return ErrZeroAmount
	}
	idx, ok := t.accounts[who]
	if !ok {
		return ErrNotFound
	}
	if err := t.propagateFeesToNode(idx); err != nil {
		return err
	}
	node := &t.nodes[idx]
	if node.Stake.Lt(amount) {
		return ErrInsufficientStake
	}
	full := node.Stake.Eq(amount)
	if full && !node.Fees.IsZero() {
		return ErrUnwithdrawnFees
	}

	node.Stake.Sub(&node.Stake, amount)
	for i := idx; i > 0; {
		i = parent(i)
		p := &t.nodes[i]
		if p.DescendantStake.Lt(amount) {
			return fmt.Errorf("%w: descendant stake underflow at node %d", ErrCorrupted, i)
		}
		p.DescendantStake.Sub(&p.DescendantStake, amount)
	}

	if full {
		node.Occupied = false
		node.Account = model.AccountID{}
		delete(t.accounts, who)
		t.abandoned = append(t.abandoned, idx)
	}
	return nil
}

// DepositFees records amount as owed to all current LPs pro rata.
func (t *Tree) DepositFees(amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if t.TotalShares().IsZero() {
		return ErrNoStake
	}
	root := &t.nodes[0]
	sum, err := fixed.Add(&root.LazyFees, amount)
	if err != nil {
		return err
	}
	root.LazyFees.Set(sum)
	return nil
}

// WithdrawFees materialises and zeroes the fees owed to who.
func (t *Tree) WithdrawFees(who model.AccountID) (*uint256.Int, error) {
	idx, ok := t.accounts[who]
	if !ok {
		return nil, ErrNotFound
	}
	if err := t.propagateFeesToNode(idx); err != nil {
		return nil, err
	}
	node := &t.nodes[idx]
	amount := new(uint256.Int).Set(&node.Fees)
	node.Fees.Clear()
	return amount, nil
}

// PendingFees materialises and returns the fees owed to who without paying them.
func (t *Tree) PendingFees(who model.AccountID) (*uint256.Int, error) {
	idx, ok := t.accounts[who]
	if !ok {
		return nil, ErrNotFound
	}
	if err := t.propagateFeesToNode(idx); err != nil {
		return nil, err
	}
	return new(uint256.Int).Set(&t.nodes[idx].Fees), nil
}

func (t *Tree) addStake(idx uint32, amount *uint256.Int) error {
	node := &t.nodes[idx]
	stake, err := fixed.Add(&node.Stake, amount)
	if err != nil {
		return err
	}
	node.Stake.Set(stake)
	for i := idx; i > 0; {
		i = parent(i)
		p := &t.nodes[i]
		desc, err := fixed.Add(&p.DescendantStake, amount)
		if err != nil {
			return err
		}
		p.DescendantStake.Set(desc)
	}
	return nil
}

// propagateFeesToNode pushes lazy fees down every node from the root to idx.
func (t *Tree) propagateFeesToNode(idx uint32) error {
	for _, i := range t.path(idx) {
		if err := t.propagateFees(i); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) propagateFees(idx uint32) error {
	node := &t.nodes[idx]
	if node.LazyFees.IsZero() {
		return nil
	}
	total := node.totalStake()
	if total.IsZero() {
		node.LazyFees.Clear()
		return nil
	}
	if !node.Stake.IsZero() {
		share, err := fixed.MulDiv(&node.LazyFees, &node.Stake, total)
		if err != nil {
			return err
		}
		node.Fees.Add(&node.Fees, share)
	}
	for _, c := range t.children(idx) {
		child := &t.nodes[c]
		share, err := fixed.MulDiv(&node.LazyFees, child.totalStake(), total)
		if err != nil {
			return err
		}
		child.LazyFees.Add(&child.LazyFees, share)
	}
	node.LazyFees.Clear()
	return nil
}

// path returns the indices from the root down to idx, inclusive.
func (t *Tree) path(idx uint32) []uint32 {
	depth := 0
	for i := idx; i > 0; i = parent(i) {
		depth++
	}
	out := make([]uint32, depth+1)
	for i, d := idx, depth; ; i = parent(i) {
		out[d] = i
		if d == 0 {
			break
		}
		d--
	}
	return out
}

func (t *Tree) children(idx uint32) []uint32 {
	out := make([]uint32, 0, 2)
	for _, c := range [2]uint64{2*uint64(idx) + 1, 2*uint64(idx) + 2} {
		if c < uint64(len(t.nodes)) {
			out = append(out, uint32(c))
		}
	}
	return out
}

func parent(idx uint32) uint32 { return (idx - 1) / 2 }
