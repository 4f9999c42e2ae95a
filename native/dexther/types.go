package dexther

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MaxFeeBps is the upper bound for the settlement fee.
const MaxFeeBps = 10_000

// AssetKind tags the transfer capability an asset is moved with.
type AssetKind uint8

const (
	AssetKindFungible AssetKind = iota + 1
	AssetKindUnique
	AssetKindSemiFungible
)

func (k AssetKind) String() string {
	switch k {
	case AssetKindFungible:
		return "fungible"
	case AssetKindUnique:
		return "unique"
	case AssetKindSemiFungible:
		return "semi-fungible"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k names a supported asset kind.
func (k AssetKind) Valid() bool {
	return k >= AssetKindFungible && k <= AssetKindSemiFungible
}

// ParseAssetKind accepts the canonical names plus the ERC standard aliases.
func ParseAssetKind(s string) (AssetKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fungible", "erc20":
		return AssetKindFungible, nil
	case "unique", "erc721", "nft":
		return AssetKindUnique, nil
	case "semi-fungible", "semifungible", "erc1155":
		return AssetKindSemiFungible, nil
	default:
		return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidAsset, s)
	}
}

func (k AssetKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %d", ErrInvalidAsset, uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *AssetKind) UnmarshalText(text []byte) error {
	parsed, err := ParseAssetKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Asset is one entry of a party's offered list.
type Asset struct {
	Kind   AssetKind
	Token  common.Address
	ID     *big.Int
	Amount *big.Int
}

// Copy returns a deep copy with nil quantities normalised to zero.
func (a Asset) Copy() Asset {
	return Asset{Kind: a.Kind, Token: a.Token, ID: cloneBigInt(a.ID), Amount: cloneBigInt(a.Amount)}
}

// Validate checks the structural rules of a single asset: a known kind, a
// token address, 256-bit quantities, a positive amount for balance assets
// and an amount of 0 or 1 for unique ones.
func (a Asset) Validate() error {
	if !a.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidAsset, uint8(a.Kind))
	}
	if a.Token == (common.Address{}) {
		return fmt.Errorf("%w: zero token address", ErrInvalidAsset)
	}
	if !fits256(a.ID) {
		return fmt.Errorf("%w: token id out of range", ErrInvalidAsset)
	}
	if !fits256(a.Amount) {
		return fmt.Errorf("%w: amount out of range", ErrInvalidAsset)
	}
	switch a.Kind {
	case AssetKindUnique:
		if a.Amount != nil && a.Amount.Cmp(big.NewInt(1)) > 0 {
			return fmt.Errorf("%w: unique asset amount must be 0 or 1", ErrInvalidAsset)
		}
	default:
		if a.Amount == nil || a.Amount.Sign() == 0 {
			return fmt.Errorf("%w: amount must be positive", ErrInvalidAsset)
		}
	}
	return nil
}

// SwapIntent is one party's side of a swap.
type SwapIntent struct {
	Party  common.Address
	Assets []Asset
	Nonce  uint64
}

// Copy returns a deep copy of the intent.
func (i SwapIntent) Copy() SwapIntent {
	return SwapIntent{Party: i.Party, Assets: copyAssets(i.Assets), Nonce: i.Nonce}
}

// SwapOrder composes the two intents that are signed by their parties.
type SwapOrder struct {
	Initiator    SwapIntent
	Counterparty SwapIntent
}

// Validate checks that the order is structurally settleable.
func (o SwapOrder) Validate() error {
	if o.Initiator.Party == (common.Address{}) || o.Counterparty.Party == (common.Address{}) {
		return fmt.Errorf("%w: missing party", ErrInvalidOrder)
	}
	if o.Initiator.Party == o.Counterparty.Party {
		return fmt.Errorf("%w: initiator and counterparty must differ", ErrInvalidOrder)
	}
	if len(o.Initiator.Assets) == 0 && len(o.Counterparty.Assets) == 0 {
		return fmt.Errorf("%w: no assets to move", ErrInvalidOrder)
	}
	for i, asset := range o.Initiator.Assets {
		if err := asset.Validate(); err != nil {
			return fmt.Errorf("initiator asset %d: %w", i, err)
		}
	}
	for i, asset := range o.Counterparty.Assets {
		if err := asset.Validate(); err != nil {
			return fmt.Errorf("counterparty asset %d: %w", i, err)
		}
	}
	return nil
}

// FeeCharge records a fee deducted from a fungible transfer.
type FeeCharge struct {
	Token  common.Address
	Payer  common.Address
	Amount *big.Int
}

// Receipt describes a committed settlement.
type Receipt struct {
	Digest             common.Hash
	Relayer            common.Address
	Initiator          common.Address
	Counterparty       common.Address
	InitiatorNonce     uint64
	CounterpartyNonce  uint64
	InitiatorAssets    []Asset
	CounterpartyAssets []Asset
	Fees               []FeeCharge
	Treasury           common.Address
	FeeBps             uint32
	SettledAt          int64
}

func fits256(v *big.Int) bool {
	if v == nil {
		return true
	}
	if v.Sign() < 0 {
		return false
	}
	_, overflow := uint256.FromBig(v)
	return !overflow
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func copyAssets(in []Asset) []Asset {
	if len(in) == 0 {
		return nil
	}
	out := make([]Asset, len(in))
	for i, a := range in {
		out[i] = a.Copy()
	}
	return out
}
