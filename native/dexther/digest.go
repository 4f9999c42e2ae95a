package dexther

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	dcrypto "dexther/crypto"
)

// Domain constants bound into every signature.
const (
	DomainName    = "Dexther"
	DomainVersion = "1"

	// SwapTypeString is the canonical layout of a signed swap. Changing the
	// field order or any field type is a protocol break and must change the
	// string.
	SwapTypeString = "Swap(address initiator,address[] initiatorTokens,uint256[] initiatorTokenIds,uint256[] initiatorTokenAmounts,uint256 initiatorNonce,address counterparty,address[] counterpartyTokens,uint256[] counterpartyTokenIds,uint256[] counterpartyTokenAmounts,uint256 counterpartyNonce)"
)

var (
	// EIP712DomainTypeHash = keccak256("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)")
	EIP712DomainTypeHash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)",
	))

	// SwapTypeHash = keccak256(SwapTypeString)
	SwapTypeHash = crypto.Keccak256Hash([]byte(SwapTypeString))
)

var (
	domainArguments abi.Arguments
	swapArguments   abi.Arguments
)

func init() {
	bytes32Type := mustType("bytes32")
	addressType := mustType("address")
	uint256Type := mustType("uint256")
	addressSliceType := mustType("address[]")
	uint256SliceType := mustType("uint256[]")

	domainArguments = abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: bytes32Type}, // nameHash
		{Type: bytes32Type}, // versionHash
		{Type: uint256Type}, // chainId
		{Type: addressType}, // verifyingContract
	}

	swapArguments = abi.Arguments{
		{Type: bytes32Type},      // typeHash
		{Type: addressType},      // initiator
		{Type: addressSliceType}, // initiatorTokens
		{Type: uint256SliceType}, // initiatorTokenIds
		{Type: uint256SliceType}, // initiatorTokenAmounts
		{Type: uint256Type},      // initiatorNonce
		{Type: addressType},      // counterparty
		{Type: addressSliceType}, // counterpartyTokens
		{Type: uint256SliceType}, // counterpartyTokenIds
		{Type: uint256SliceType}, // counterpartyTokenAmounts
		{Type: uint256Type},      // counterpartyNonce
	}
}

func mustType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(fmt.Sprintf("dexther: abi type %s: %v", name, err))
	}
	return t
}

// Domain identifies the deployment signatures are bound to.
type Domain struct {
	ChainID           *big.Int
	VerifyingContract common.Address
}

// NewDomain constructs a domain for the given chain and verifying contract.
func NewDomain(chainID *big.Int, verifyingContract common.Address) Domain {
	return Domain{ChainID: cloneBigInt(chainID), VerifyingContract: verifyingContract}
}

// Separator computes the EIP-712 domain separator.
func (d Domain) Separator() common.Hash {
	encoded, err := domainArguments.Pack(
		EIP712DomainTypeHash,
		crypto.Keccak256Hash([]byte(DomainName)),
		crypto.Keccak256Hash([]byte(DomainVersion)),
		cloneBigInt(d.ChainID),
		d.VerifyingContract,
	)
	if err != nil {
		panic("dexther: encode domain separator: " + err.Error())
	}
	return crypto.Keccak256Hash(encoded)
}

// ComputeDigest builds the digest each party signs:
// keccak256(0x19 0x01 ‖ domainSeparator ‖ keccak256(abi.encode(typeHash, …))).
// Asset order is significant. Inputs are not validated: abi packing reduces
// quantities modulo 2^256, so callers must run SwapOrder.Validate first or
// an out-of-range amount digests like its reduced value.
func ComputeDigest(domainSeparator, typeHash common.Hash, initiator, counterparty SwapIntent) common.Hash {
	iTokens, iIDs, iAmounts := splitAssets(initiator.Assets)
	cTokens, cIDs, cAmounts := splitAssets(counterparty.Assets)

	encoded, err := swapArguments.Pack(
		typeHash,
		initiator.Party,
		iTokens,
		iIDs,
		iAmounts,
		new(big.Int).SetUint64(initiator.Nonce),
		counterparty.Party,
		cTokens,
		cIDs,
		cAmounts,
		new(big.Int).SetUint64(counterparty.Nonce),
	)
	if err != nil {
		panic("dexther: encode swap struct: " + err.Error())
	}
	structHash := crypto.Keccak256Hash(encoded)

	data := make([]byte, 0, 2+common.HashLength*2)
	data = append(data, 0x19, 0x01)
	data = append(data, domainSeparator.Bytes()...)
	data = append(data, structHash.Bytes()...)
	return crypto.Keccak256Hash(data)
}

// Recover returns the address that signed digest.
func Recover(digest common.Hash, sig []byte) (common.Address, error) {
	signer, err := dcrypto.RecoverAddress(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return signer, nil
}

// Sign signs the order digest for the given domain with key.
func Sign(key *dcrypto.PrivateKey, domain Domain, order SwapOrder) ([]byte, error) {
	return key.SignDigest(ComputeDigest(domain.Separator(), SwapTypeHash, order.Initiator, order.Counterparty))
}

func splitAssets(assets []Asset) ([]common.Address, []*big.Int, []*big.Int) {
	tokens := make([]common.Address, len(assets))
	ids := make([]*big.Int, len(assets))
	amounts := make([]*big.Int, len(assets))
	for i, a := range assets {
		tokens[i] = a.Token
		ids[i] = cloneBigInt(a.ID)
		amounts[i] = cloneBigInt(a.Amount)
	}
	return tokens, ids, amounts
}
