package dexther

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// ParseQuantity parses a decimal or 0x-prefixed hex quantity that must fit
// in 256 bits. An empty string is zero.
func ParseQuantity(s string) (*big.Int, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return new(big.Int), nil
	}
	v, ok := math.ParseBig256(trimmed)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: bad quantity %q", ErrInvalidAsset, s)
	}
	return v, nil
}

// ParseAddress parses a hex account address.
func ParseAddress(s string) (common.Address, error) {
	trimmed := strings.TrimSpace(s)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%w: bad address %q", ErrInvalidOrder, s)
	}
	return common.HexToAddress(trimmed), nil
}

type assetJSON struct {
	Kind   AssetKind `json:"kind"`
	Token  string    `json:"token"`
	ID     string    `json:"id"`
	Amount string    `json:"amount"`
}

func (a Asset) MarshalJSON() ([]byte, error) {
	return json.Marshal(assetJSON{
		Kind:   a.Kind,
		Token:  a.Token.Hex(),
		ID:     cloneBigInt(a.ID).String(),
		Amount: cloneBigInt(a.Amount).String(),
	})
}

func (a *Asset) UnmarshalJSON(data []byte) error {
	var payload assetJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	token, err := ParseAddress(payload.Token)
	if err != nil {
		return err
	}
	id, err := ParseQuantity(payload.ID)
	if err != nil {
		return err
	}
	amount, err := ParseQuantity(payload.Amount)
	if err != nil {
		return err
	}
	*a = Asset{Kind: payload.Kind, Token: token, ID: id, Amount: amount}
	return nil
}

// intentJSON is the wire form of a SwapIntent. The asset list travels as
// parallel arrays mirroring the signed struct layout.
type intentJSON struct {
	Party        string      `json:"party"`
	Kinds        []AssetKind `json:"kinds"`
	Tokens       []string    `json:"tokens"`
	TokenIDs     []string    `json:"tokenIds"`
	TokenAmounts []string    `json:"tokenAmounts"`
	Nonce        uint64      `json:"nonce"`
}

func (i SwapIntent) MarshalJSON() ([]byte, error) {
	payload := intentJSON{
		Party:        i.Party.Hex(),
		Kinds:        make([]AssetKind, len(i.Assets)),
		Tokens:       make([]string, len(i.Assets)),
		TokenIDs:     make([]string, len(i.Assets)),
		TokenAmounts: make([]string, len(i.Assets)),
		Nonce:        i.Nonce,
	}
	for idx, a := range i.Assets {
		payload.Kinds[idx] = a.Kind
		payload.Tokens[idx] = a.Token.Hex()
		payload.TokenIDs[idx] = cloneBigInt(a.ID).String()
		payload.TokenAmounts[idx] = cloneBigInt(a.Amount).String()
	}
	return json.Marshal(payload)
}

func (i *SwapIntent) UnmarshalJSON(data []byte) error {
	var payload intentJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	n := len(payload.Tokens)
	if len(payload.Kinds) != n || len(payload.TokenIDs) != n || len(payload.TokenAmounts) != n {
		return fmt.Errorf("%w: kinds=%d tokens=%d ids=%d amounts=%d", ErrLengthMismatch,
			len(payload.Kinds), n, len(payload.TokenIDs), len(payload.TokenAmounts))
	}
	party, err := ParseAddress(payload.Party)
	if err != nil {
		return err
	}
	out := SwapIntent{Party: party, Nonce: payload.Nonce}
	if n > 0 {
		out.Assets = make([]Asset, n)
	}
	for idx := 0; idx < n; idx++ {
		token, err := ParseAddress(payload.Tokens[idx])
		if err != nil {
			return err
		}
		id, err := ParseQuantity(payload.TokenIDs[idx])
		if err != nil {
			return err
		}
		amount, err := ParseQuantity(payload.TokenAmounts[idx])
		if err != nil {
			return err
		}
		out.Assets[idx] = Asset{Kind: payload.Kinds[idx], Token: token, ID: id, Amount: amount}
	}
	*i = out
	return nil
}

type orderJSON struct {
	Initiator    SwapIntent `json:"initiator"`
	Counterparty SwapIntent `json:"counterparty"`
}

func (o SwapOrder) MarshalJSON() ([]byte, error) {
	return json.Marshal(orderJSON(o))
}

func (o *SwapOrder) UnmarshalJSON(data []byte) error {
	var payload orderJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	*o = SwapOrder(payload)
	return nil
}

type feeChargeJSON struct {
	Token  string `json:"token"`
	Payer  string `json:"payer"`
	Amount string `json:"amount"`
}

func (f FeeCharge) MarshalJSON() ([]byte, error) {
	return json.Marshal(feeChargeJSON{Token: f.Token.Hex(), Payer: f.Payer.Hex(), Amount: cloneBigInt(f.Amount).String()})
}

func (f *FeeCharge) UnmarshalJSON(data []byte) error {
	var payload feeChargeJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	token, err := ParseAddress(payload.Token)
	if err != nil {
		return err
	}
	payer, err := ParseAddress(payload.Payer)
	if err != nil {
		return err
	}
	amount, err := ParseQuantity(payload.Amount)
	if err != nil {
		return err
	}
	*f = FeeCharge{Token: token, Payer: payer, Amount: amount}
	return nil
}

func (s *OfferStatus) UnmarshalText(text []byte) error {
	for candidate := OfferStatusOpen; candidate <= OfferStatusExpired; candidate++ {
		if candidate.String() == strings.ToLower(strings.TrimSpace(string(text))) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("dexther: unknown offer status %q", text)
}

type receiptJSON struct {
	Digest             common.Hash    `json:"digest"`
	Relayer            common.Address `json:"relayer"`
	Initiator          common.Address `json:"initiator"`
	Counterparty       common.Address `json:"counterparty"`
	InitiatorNonce     uint64         `json:"initiatorNonce"`
	CounterpartyNonce  uint64         `json:"counterpartyNonce"`
	InitiatorAssets    []Asset        `json:"initiatorAssets"`
	CounterpartyAssets []Asset        `json:"counterpartyAssets"`
	Fees               []FeeCharge    `json:"fees"`
	Treasury           common.Address `json:"treasury"`
	FeeBps             uint32         `json:"feeBps"`
	SettledAt          int64          `json:"settledAt"`
}

func (r Receipt) MarshalJSON() ([]byte, error) {
	return json.Marshal(receiptJSON(r))
}

func (r *Receipt) UnmarshalJSON(data []byte) error {
	var payload receiptJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	*r = Receipt(payload)
	return nil
}

type offerJSON struct {
	ID             common.Hash      `json:"id"`
	Creator        common.Address   `json:"creator"`
	Assets         []Asset          `json:"assets"`
	AcceptedTokens []common.Address `json:"acceptedTokens,omitempty"`
	RestrictedTo   common.Address   `json:"restrictedTo"`
	Deadline       int64            `json:"deadline"`
	Swapper        common.Address   `json:"swapper"`
	CounterAssets  []Asset          `json:"counterAssets,omitempty"`
	Fees           []FeeCharge      `json:"fees,omitempty"`
	Status         OfferStatus      `json:"status"`
	CreatedAt      int64            `json:"createdAt"`
	UpdatedAt      int64            `json:"updatedAt"`
}

func (o Offer) MarshalJSON() ([]byte, error) {
	return json.Marshal(offerJSON(o))
}

func (o *Offer) UnmarshalJSON(data []byte) error {
	var payload offerJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	*o = Offer(payload)
	return nil
}
