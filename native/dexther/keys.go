package dexther

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

var (
	domainKey   = []byte("dexther/domain")
	adminKey    = []byte("dexther/admin")
	feeKey      = []byte("dexther/fee")
	treasuryKey = []byte("dexther/treasury")
	pausedKey   = []byte("dexther/paused")
	offerSeqKey = []byte("dexther/offer/seq")
	noncePrefix = []byte("dexther/nonce/")
	offerPrefix = []byte("dexther/offer/record/")
)

func nonceKey(party common.Address, nonce uint64) []byte {
	buf := make([]byte, len(noncePrefix)+common.AddressLength+8)
	copy(buf, noncePrefix)
	copy(buf[len(noncePrefix):], party.Bytes())
	binary.BigEndian.PutUint64(buf[len(noncePrefix)+common.AddressLength:], nonce)
	return buf
}

func offerKey(id common.Hash) []byte {
	buf := make([]byte, len(offerPrefix)+common.HashLength)
	copy(buf, offerPrefix)
	copy(buf[len(offerPrefix):], id.Bytes())
	return buf
}
