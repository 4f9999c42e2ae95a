package dexther

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"dexther/core/state"
)

// FungibleAsset moves interchangeable balances.
type FungibleAsset interface {
	Address() common.Address
	TransferFrom(kv state.KV, operator, from, to common.Address, amount *big.Int) error
}

// UniqueAsset moves ownership of a single token id.
type UniqueAsset interface {
	Address() common.Address
	TransferFrom(kv state.KV, operator, from, to common.Address, id *big.Int) error
}

// SemiFungibleAsset moves per-id balances.
type SemiFungibleAsset interface {
	Address() common.Address
	SafeTransferFrom(kv state.KV, operator, from, to common.Address, id, amount *big.Int) error
}

// RegisteredAsset describes a registry entry.
type RegisteredAsset struct {
	Token common.Address `json:"token"`
	Kind  AssetKind      `json:"kind"`
}

// Registry maps token addresses to their transfer capability. A token is
// registered under exactly one kind.
type Registry struct {
	mu       sync.RWMutex
	kinds    map[common.Address]AssetKind
	fungible map[common.Address]FungibleAsset
	unique   map[common.Address]UniqueAsset
	semi     map[common.Address]SemiFungibleAsset
}

func NewRegistry() *Registry {
	return &Registry{
		kinds:    make(map[common.Address]AssetKind),
		fungible: make(map[common.Address]FungibleAsset),
		unique:   make(map[common.Address]UniqueAsset),
		semi:     make(map[common.Address]SemiFungibleAsset),
	}
}

func (r *Registry) claim(token common.Address, kind AssetKind) error {
	if token == (common.Address{}) {
		return ErrZeroAddress
	}
	if existing, ok := r.kinds[token]; ok {
		return fmt.Errorf("%w: %s as %s", ErrAssetRegistered, token.Hex(), existing)
	}
	r.kinds[token] = kind
	return nil
}

func (r *Registry) RegisterFungible(asset FungibleAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.claim(asset.Address(), AssetKindFungible); err != nil {
		return err
	}
	r.fungible[asset.Address()] = asset
	return nil
}

func (r *Registry) RegisterUnique(asset UniqueAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.claim(asset.Address(), AssetKindUnique); err != nil {
		return err
	}
	r.unique[asset.Address()] = asset
	return nil
}

func (r *Registry) RegisterSemiFungible(asset SemiFungibleAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.claim(asset.Address(), AssetKindSemiFungible); err != nil {
		return err
	}
	r.semi[asset.Address()] = asset
	return nil
}

// Kind returns the kind a token is registered under.
func (r *Registry) Kind(token common.Address) (AssetKind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kind, ok := r.kinds[token]
	return kind, ok
}

// Assets lists the registry ordered by token address.
func (r *Registry) Assets() []RegisteredAsset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RegisteredAsset, 0, len(r.kinds))
	for token, kind := range r.kinds {
		out = append(out, RegisteredAsset{Token: token, Kind: kind})
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Token[:], out[j].Token[:]) < 0 })
	return out
}

// transfer dispatches a single asset movement on its kind tag. The asset's
// tag must match the kind the token was registered under.
func (r *Registry) transfer(kv state.KV, operator, from, to common.Address, asset Asset, amount *big.Int) error {
	r.mu.RLock()
	kind, ok := r.kinds[asset.Token]
	fungible := r.fungible[asset.Token]
	unique := r.unique[asset.Token]
	semi := r.semi[asset.Token]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, asset.Token.Hex())
	}
	if kind != asset.Kind {
		return fmt.Errorf("%w: %s is registered as %s, not %s", ErrUnknownAsset, asset.Token.Hex(), kind, asset.Kind)
	}

	var err error
	switch kind {
	case AssetKindFungible:
		err = fungible.TransferFrom(kv, operator, from, to, amount)
	case AssetKindUnique:
		err = unique.TransferFrom(kv, operator, from, to, cloneBigInt(asset.ID))
	case AssetKindSemiFungible:
		err = semi.SafeTransferFrom(kv, operator, from, to, cloneBigInt(asset.ID), amount)
	}
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrTransferFailed, asset.Kind, asset.Token.Hex(), err)
	}
	return nil
}
