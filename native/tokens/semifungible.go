package tokens

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"dexther/core/state"
)

// SemiFungible is a reference multi-token ledger with ERC-1155 per-id
// balances and operator approval. Recipients are plain accounts, so no
// receiver acceptance hook is invoked.
type SemiFungible struct {
	address common.Address
	symbol  string
}

func NewSemiFungible(address common.Address, symbol string) *SemiFungible {
	return &SemiFungible{address: address, symbol: strings.ToUpper(strings.TrimSpace(symbol))}
}

func (s *SemiFungible) Address() common.Address { return s.address }

func (s *SemiFungible) Symbol() string { return s.symbol }

// Mint credits amount units of id to to.
func (s *SemiFungible) Mint(kv state.KV, to common.Address, id, amount *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if id == nil || id.Sign() < 0 || id.Cmp(MaxAmount) > 0 || !validAmount(amount) {
		return ErrInvalidAmount
	}
	return credit(kv, idBalanceKey(s.address, id, to), amount)
}

func (s *SemiFungible) BalanceOf(kv state.KV, owner common.Address, id *big.Int) (*big.Int, error) {
	return readAmount(kv, idBalanceKey(s.address, id, owner))
}

func (s *SemiFungible) SetApprovalForAll(kv state.KV, owner, operator common.Address, approved bool) error {
	return setOperator(kv, s.address, owner, operator, approved)
}

func (s *SemiFungible) IsApprovedForAll(kv state.KV, owner, operator common.Address) (bool, error) {
	return isOperator(kv, s.address, owner, operator)
}

// SafeTransferFrom moves amount units of id. operator must be from or one of
// from's approved operators.
func (s *SemiFungible) SafeTransferFrom(kv state.KV, operator, from, to common.Address, id, amount *big.Int) error {
	if from == (common.Address{}) || to == (common.Address{}) {
		return ErrZeroAddress
	}
	if id == nil || !validAmount(amount) {
		return ErrInvalidAmount
	}
	if operator != from {
		approved, err := s.IsApprovedForAll(kv, from, operator)
		if err != nil {
			return err
		}
		if !approved {
			return ErrNotApproved
		}
	}
	if err := debit(kv, idBalanceKey(s.address, id, from), amount); err != nil {
		return err
	}
	return credit(kv, idBalanceKey(s.address, id, to), amount)
}
