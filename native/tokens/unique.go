package tokens

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"dexther/core/state"
)

// Unique is a reference non-fungible ledger with ERC-721 ownership,
// per-token approval and operator semantics.
type Unique struct {
	address common.Address
	symbol  string
}

func NewUnique(address common.Address, symbol string) *Unique {
	return &Unique{address: address, symbol: strings.ToUpper(strings.TrimSpace(symbol))}
}

func (u *Unique) Address() common.Address { return u.address }

func (u *Unique) Symbol() string { return u.symbol }

// Mint assigns a fresh token id to to.
func (u *Unique) Mint(kv state.KV, to common.Address, id *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if id == nil || id.Sign() < 0 || id.Cmp(MaxAmount) > 0 {
		return ErrInvalidAmount
	}
	ok, err := kv.KVGet(ownerKey(u.address, id), nil)
	if err != nil {
		return err
	}
	if ok {
		return ErrAlreadyMinted
	}
	if err := kv.KVPut(ownerKey(u.address, id), to); err != nil {
		return err
	}
	return credit(kv, balanceKey(u.address, to), big.NewInt(1))
}

// OwnerOf returns the current owner of id.
func (u *Unique) OwnerOf(kv state.KV, id *big.Int) (common.Address, error) {
	var owner common.Address
	ok, err := kv.KVGet(ownerKey(u.address, id), &owner)
	if err != nil {
		return common.Address{}, err
	}
	if !ok {
		return common.Address{}, ErrNonexistentToken
	}
	return owner, nil
}

// BalanceOf returns how many tokens owner holds.
func (u *Unique) BalanceOf(kv state.KV, owner common.Address) (*big.Int, error) {
	return readAmount(kv, balanceKey(u.address, owner))
}

// Approve grants spender the right to move id. The caller must own the token
// or be an approved operator of the owner. The zero address clears approval.
func (u *Unique) Approve(kv state.KV, caller, spender common.Address, id *big.Int) error {
	owner, err := u.OwnerOf(kv, id)
	if err != nil {
		return err
	}
	if caller != owner {
		approved, err := u.IsApprovedForAll(kv, owner, caller)
		if err != nil {
			return err
		}
		if !approved {
			return ErrNotOwner
		}
	}
	if spender == (common.Address{}) {
		return kv.KVDelete(approvalKey(u.address, id))
	}
	return kv.KVPut(approvalKey(u.address, id), spender)
}

func (u *Unique) GetApproved(kv state.KV, id *big.Int) (common.Address, error) {
	if _, err := u.OwnerOf(kv, id); err != nil {
		return common.Address{}, err
	}
	var spender common.Address
	if _, err := kv.KVGet(approvalKey(u.address, id), &spender); err != nil {
		return common.Address{}, err
	}
	return spender, nil
}

func (u *Unique) SetApprovalForAll(kv state.KV, owner, operator common.Address, approved bool) error {
	return setOperator(kv, u.address, owner, operator, approved)
}

func (u *Unique) IsApprovedForAll(kv state.KV, owner, operator common.Address) (bool, error) {
	return isOperator(kv, u.address, owner, operator)
}

// TransferFrom moves id from from to to. operator must be the owner, the
// token's approved spender or an approved operator of the owner.
func (u *Unique) TransferFrom(kv state.KV, operator, from, to common.Address, id *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	owner, err := u.OwnerOf(kv, id)
	if err != nil {
		return err
	}
	if owner != from {
		return ErrNotOwner
	}
	if operator != owner {
		spender, err := u.GetApproved(kv, id)
		if err != nil {
			return err
		}
		if spender != operator {
			approved, err := u.IsApprovedForAll(kv, owner, operator)
			if err != nil {
				return err
			}
			if !approved {
				return ErrNotApproved
			}
		}
	}
	if err := kv.KVDelete(approvalKey(u.address, id)); err != nil {
		return err
	}
	if err := kv.KVPut(ownerKey(u.address, id), to); err != nil {
		return err
	}
	if err := debit(kv, balanceKey(u.address, from), big.NewInt(1)); err != nil {
		return err
	}
	return credit(kv, balanceKey(u.address, to), big.NewInt(1))
}

func setOperator(kv state.KV, token, owner, operator common.Address, approved bool) error {
	if owner == (common.Address{}) || operator == (common.Address{}) {
		return ErrZeroAddress
	}
	key := operatorKey(token, owner, operator)
	if !approved {
		return kv.KVDelete(key)
	}
	return kv.KVPut(key, true)
}

func isOperator(kv state.KV, token, owner, operator common.Address) (bool, error) {
	var approved bool
	if _, err := kv.KVGet(operatorKey(token, owner, operator), &approved); err != nil {
		return false, err
	}
	return approved, nil
}
