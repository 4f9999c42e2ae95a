package tokens

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	balancePrefix   = []byte("tokens/balance/")
	allowancePrefix = []byte("tokens/allowance/")
	ownerPrefix     = []byte("tokens/owner/")
	approvalPrefix  = []byte("tokens/approved/")
	operatorPrefix  = []byte("tokens/operator/")
	supplyPrefix    = []byte("tokens/supply/")
)

func joinKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, p := range parts {
		size += len(p) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for i, p := range parts {
		if i > 0 {
			buf = append(buf, '/')
		}
		buf = append(buf, p...)
	}
	return buf
}

func idBytes(id *big.Int) []byte {
	if id == nil {
		return []byte{0}
	}
	return common.BigToHash(id).Bytes()
}

func balanceKey(token, owner common.Address) []byte {
	return joinKey(balancePrefix, token.Bytes(), owner.Bytes())
}

func idBalanceKey(token common.Address, id *big.Int, owner common.Address) []byte {
	return joinKey(balancePrefix, token.Bytes(), idBytes(id), owner.Bytes())
}

func allowanceKey(token, owner, spender common.Address) []byte {
	return joinKey(allowancePrefix, token.Bytes(), owner.Bytes(), spender.Bytes())
}

func ownerKey(token common.Address, id *big.Int) []byte {
	return joinKey(ownerPrefix, token.Bytes(), idBytes(id))
}

func approvalKey(token common.Address, id *big.Int) []byte {
	return joinKey(approvalPrefix, token.Bytes(), idBytes(id))
}

func operatorKey(token, owner, operator common.Address) []byte {
	return joinKey(operatorPrefix, token.Bytes(), owner.Bytes(), operator.Bytes())
}

func supplyKey(token common.Address) []byte {
	return joinKey(supplyPrefix, token.Bytes())
}
