// Package assets hosts the reference ledgers dextherd settles against and
// exposes them to the settlement registry.
package assets

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"dexther/core/state"
	"dexther/native/dexther"
	"dexther/native/tokens"
)

var (
	ErrUnknownToken   = errors.New("assets: unknown token")
	ErrDuplicateToken = errors.New("assets: duplicate token")
	ErrUnsupported    = errors.New("assets: operation not supported for asset kind")
)

// Spec declares one ledger.
type Spec struct {
	Kind    dexther.AssetKind
	Address common.Address
	Symbol  string
}

// Listing describes a hosted ledger.
type Listing struct {
	Token  common.Address    `json:"token"`
	Kind   dexther.AssetKind `json:"kind"`
	Symbol string            `json:"symbol"`
}

// Approval describes an approve request. For fungible ledgers Amount is the
// allowance. For unique ledgers ID names the token unless All is set, in
// which case the spender becomes an operator (or stops being one when Revoke
// is set). Semi-fungible ledgers only support operator approval.
type Approval struct {
	ID     *big.Int
	Amount *big.Int
	All    bool
	Revoke bool
}

// Book is the set of ledgers a deployment hosts.
type Book struct {
	fungible map[common.Address]*tokens.Fungible
	unique   map[common.Address]*tokens.Unique
	semi     map[common.Address]*tokens.SemiFungible
	listings []Listing
}

// NewBook builds a ledger per spec.
func NewBook(specs []Spec) (*Book, error) {
	b := &Book{
		fungible: make(map[common.Address]*tokens.Fungible),
		unique:   make(map[common.Address]*tokens.Unique),
		semi:     make(map[common.Address]*tokens.SemiFungible),
	}
	seen := make(map[common.Address]struct{}, len(specs))
	for _, spec := range specs {
		if spec.Address == (common.Address{}) {
			return nil, fmt.Errorf("assets: %s: zero address", spec.Symbol)
		}
		if _, dup := seen[spec.Address]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateToken, spec.Address.Hex())
		}
		seen[spec.Address] = struct{}{}
		symbol := strings.TrimSpace(spec.Symbol)
		switch spec.Kind {
		case dexther.AssetKindFungible:
			b.fungible[spec.Address] = tokens.NewFungible(spec.Address, symbol)
		case dexther.AssetKindUnique:
			b.unique[spec.Address] = tokens.NewUnique(spec.Address, symbol)
		case dexther.AssetKindSemiFungible:
			b.semi[spec.Address] = tokens.NewSemiFungible(spec.Address, symbol)
		default:
			return nil, fmt.Errorf("assets: %s: unsupported kind %d", spec.Address.Hex(), spec.Kind)
		}
		b.listings = append(b.listings, Listing{Token: spec.Address, Kind: spec.Kind, Symbol: symbol})
	}
	sort.Slice(b.listings, func(i, j int) bool {
		return b.listings[i].Token.Cmp(b.listings[j].Token) < 0
	})
	return b, nil
}

// Register makes every ledger available to the settlement engine.
func (b *Book) Register(reg *dexther.Registry) error {
	for _, listing := range b.listings {
		var err error
		switch listing.Kind {
		case dexther.AssetKindFungible:
			err = reg.RegisterFungible(b.fungible[listing.Token])
		case dexther.AssetKindUnique:
			err = reg.RegisterUnique(b.unique[listing.Token])
		case dexther.AssetKindSemiFungible:
			err = reg.RegisterSemiFungible(b.semi[listing.Token])
		}
		if err != nil {
			return fmt.Errorf("register %s: %w", listing.Token.Hex(), err)
		}
	}
	return nil
}

// Listings returns the hosted ledgers ordered by address.
func (b *Book) Listings() []Listing {
	return append([]Listing(nil), b.listings...)
}

// Lookup reports the kind of token.
func (b *Book) Lookup(token common.Address) (Listing, bool) {
	for _, listing := range b.listings {
		if listing.Token == token {
			return listing, true
		}
	}
	return Listing{}, false
}

// Balance returns owner's holding. id is ignored for fungible ledgers; for
// unique ledgers a non-nil id yields 1 if owner holds that token and 0
// otherwise, while a nil id yields the number of tokens held.
func (b *Book) Balance(kv state.KV, token, owner common.Address, id *big.Int) (*big.Int, error) {
	if f, ok := b.fungible[token]; ok {
		return f.BalanceOf(kv, owner)
	}
	if u, ok := b.unique[token]; ok {
		if id == nil {
			return u.BalanceOf(kv, owner)
		}
		holder, err := u.OwnerOf(kv, id)
		if errors.Is(err, tokens.ErrNonexistentToken) {
			return new(big.Int), nil
		}
		if err != nil {
			return nil, err
		}
		if holder == owner {
			return big.NewInt(1), nil
		}
		return new(big.Int), nil
	}
	if s, ok := b.semi[token]; ok {
		if id == nil {
			id = new(big.Int)
		}
		return s.BalanceOf(kv, owner, id)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
}

// Approve grants spender rights over owner's holding in token.
func (b *Book) Approve(kv state.KV, token, owner, spender common.Address, req Approval) error {
	if f, ok := b.fungible[token]; ok {
		if req.All {
			return fmt.Errorf("%w: operator approval on fungible ledger", ErrUnsupported)
		}
		amount := req.Amount
		if req.Revoke || amount == nil {
			amount = new(big.Int)
		}
		return f.Approve(kv, owner, spender, amount)
	}
	if u, ok := b.unique[token]; ok {
		if req.All {
			return u.SetApprovalForAll(kv, owner, spender, !req.Revoke)
		}
		if req.ID == nil {
			return fmt.Errorf("%w: token id required", ErrUnsupported)
		}
		if req.Revoke {
			spender = common.Address{}
		}
		return u.Approve(kv, owner, spender, req.ID)
	}
	if s, ok := b.semi[token]; ok {
		return s.SetApprovalForAll(kv, owner, spender, !req.Revoke)
	}
	return fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
}

// Mint issues new units of token to recipient.
func (b *Book) Mint(kv state.KV, token, to common.Address, id, amount *big.Int) error {
	if id == nil {
		id = new(big.Int)
	}
	if f, ok := b.fungible[token]; ok {
		return f.Mint(kv, to, amount)
	}
	if u, ok := b.unique[token]; ok {
		return u.Mint(kv, to, id)
	}
	if s, ok := b.semi[token]; ok {
		return s.Mint(kv, to, id, amount)
	}
	return fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
}
