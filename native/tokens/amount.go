package tokens

import (
	"math/big"

	"github.com/holiman/uint256"

	"dexther/core/state"
)

// MaxAmount is the largest representable token quantity. An allowance of
// MaxAmount is never decremented.
var MaxAmount = new(uint256.Int).SetAllOne().ToBig()

func validAmount(v *big.Int) bool {
	if v == nil || v.Sign() <= 0 {
		return false
	}
	_, overflow := uint256.FromBig(v)
	return !overflow
}

func addChecked(a, b *big.Int) (*big.Int, error) {
	x, overflow := uint256.FromBig(a)
	if overflow {
		return nil, ErrInvalidAmount
	}
	y, overflow := uint256.FromBig(b)
	if overflow {
		return nil, ErrInvalidAmount
	}
	sum, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrInvalidAmount
	}
	return sum.ToBig(), nil
}

func readAmount(kv state.KV, key []byte) (*big.Int, error) {
	out := new(big.Int)
	if _, err := kv.KVGet(key, out); err != nil {
		return nil, err
	}
	return out, nil
}

func writeAmount(kv state.KV, key []byte, v *big.Int) error {
	if v == nil || v.Sign() == 0 {
		return kv.KVDelete(key)
	}
	return kv.KVPut(key, v)
}

// credit adds amount to the balance stored at key.
func credit(kv state.KV, key []byte, amount *big.Int) error {
	current, err := readAmount(kv, key)
	if err != nil {
		return err
	}
	next, err := addChecked(current, amount)
	if err != nil {
		return err
	}
	return writeAmount(kv, key, next)
}

// debit removes amount from the balance stored at key.
func debit(kv state.KV, key []byte, amount *big.Int) error {
	current, err := readAmount(kv, key)
	if err != nil {
		return err
	}
	if current.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	return writeAmount(kv, key, new(big.Int).Sub(current, amount))
}
