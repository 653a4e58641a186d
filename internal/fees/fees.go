// Package fees splits gross trade amounts into LP swap fees, external fees
// and the net remainder.
package fees

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"neoswaps/internal/fixed"
	"neoswaps/internal/ledger"
	"neoswaps/internal/model"
	"neoswaps/internal/pool"
)

// ErrFeesExceedAmount signals a fee configuration that charges more than the
// gross amount.
var ErrFeesExceedAmount = errors.New("fees exceed gross amount")

// Result is the outcome of one distribution.
type Result struct {
	Remaining    *uint256.Int
	SwapFees     *uint256.Int
	ExternalFees *uint256.Int
}

// Distributor charges pool swap fees and external fees.
type Distributor struct {
	ledger   ledger.Ledger
	external ledger.ExternalFees
}

func NewDistributor(l ledger.Ledger, external ledger.ExternalFees) *Distributor {
	return &Distributor{ledger: l, external: external}
}

// Distribute moves the swap fee on amount from payer to the pool account and
// credits it to the LPs, then lets every market of the pool take its external
// fee from the same gross amount.
func (d *Distributor) Distribute(p *pool.Pool, payer model.AccountID, amount *uint256.Int) (Result, error) {
	swapFees, err := fixed.Mul(amount, p.SwapFee)
	if err != nil {
		return Result{}, err
	}
	if !swapFees.IsZero() {
		if err := d.ledger.Transfer(p.Collateral, payer, p.Account, swapFees); err != nil {
			return Result{}, fmt.Errorf("swap fee: %w", err)
		}
		if err := p.Tree.DepositFees(swapFees); err != nil {
			return Result{}, fmt.Errorf("swap fee: %w", err)
		}
	}

	external := new(uint256.Int)
	if d.external != nil {
		for _, market := range p.Type.Markets {
			fee, err := d.external.Distribute(market, p.Collateral, payer, amount)
			if err != nil {
				return Result{}, fmt.Errorf("external fee of market %d: %w", market, err)
			}
			if external, err = fixed.Add(external, fee); err != nil {
				return Result{}, err
			}
		}
	}

	total, err := fixed.Add(swapFees, external)
	if err != nil {
		return Result{}, err
	}
	remaining, err := fixed.Sub(amount, total)
	if err != nil {
		return Result{}, fmt.Errorf("%w: gross %s, fees %s", ErrFeesExceedAmount, fixed.Format(amount), fixed.Format(total))
	}
	return Result{Remaining: remaining, SwapFees: swapFees, ExternalFees: external}, nil
}
