package tokens

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"dexther/core/state"
)

// Fungible is a reference balance ledger with ERC-20 allowance semantics.
// All reads and writes go through the caller supplied KV so that a failing
// swap discards token movements together with the rest of the transition.
type Fungible struct {
	address common.Address
	symbol  string
}

// NewFungible binds a fungible ledger to its token address.
func NewFungible(address common.Address, symbol string) *Fungible {
	return &Fungible{address: address, symbol: strings.ToUpper(strings.TrimSpace(symbol))}
}

func (f *Fungible) Address() common.Address { return f.address }

func (f *Fungible) Symbol() string { return f.symbol }

// TotalSupply returns the number of units minted so far.
func (f *Fungible) TotalSupply(kv state.KV) (*big.Int, error) {
	return readAmount(kv, supplyKey(f.address))
}

// Mint credits amount new units to to.
func (f *Fungible) Mint(kv state.KV, to common.Address, amount *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	if err := credit(kv, supplyKey(f.address), amount); err != nil {
		return err
	}
	return credit(kv, balanceKey(f.address, to), amount)
}

func (f *Fungible) BalanceOf(kv state.KV, owner common.Address) (*big.Int, error) {
	return readAmount(kv, balanceKey(f.address, owner))
}

// Approve sets the amount spender may move on behalf of owner, replacing any
// previous allowance. A zero amount revokes it.
func (f *Fungible) Approve(kv state.KV, owner, spender common.Address, amount *big.Int) error {
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount == nil {
		amount = new(big.Int)
	}
	if amount.Sign() < 0 || amount.Cmp(MaxAmount) > 0 {
		return ErrInvalidAmount
	}
	return writeAmount(kv, allowanceKey(f.address, owner, spender), amount)
}

func (f *Fungible) Allowance(kv state.KV, owner, spender common.Address) (*big.Int, error) {
	return readAmount(kv, allowanceKey(f.address, owner, spender))
}

// Transfer moves amount from the caller's own balance.
func (f *Fungible) Transfer(kv state.KV, from, to common.Address, amount *big.Int) error {
	return f.TransferFrom(kv, from, from, to, amount)
}

// TransferFrom moves amount from from to to. When operator differs from from
// the operator's allowance is consumed.
func (f *Fungible) TransferFrom(kv state.KV, operator, from, to common.Address, amount *big.Int) error {
	if from == (common.Address{}) || to == (common.Address{}) {
		return ErrZeroAddress
	}
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	if operator != from {
		allowed, err := f.Allowance(kv, from, operator)
		if err != nil {
			return err
		}
		if allowed.Cmp(amount) < 0 {
			return ErrInsufficientAllowance
		}
		if allowed.Cmp(MaxAmount) != 0 {
			if err := writeAmount(kv, allowanceKey(f.address, from, operator), new(big.Int).Sub(allowed, amount)); err != nil {
				return err
			}
		}
	}
	if err := debit(kv, balanceKey(f.address, from), amount); err != nil {
		return err
	}
	return credit(kv, balanceKey(f.address, to), amount)
}
