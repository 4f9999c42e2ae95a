package dexther

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"dexther/core/state"
)

// OfferStatus enumerates the lifecycle of an escrowed offer.
type OfferStatus uint8

const (
	OfferStatusOpen OfferStatus = iota + 1
	OfferStatusSwapped
	OfferStatusFinalized
	OfferStatusCancelled
	OfferStatusExpired
)

func (s OfferStatus) String() string {
	switch s {
	case OfferStatusOpen:
		return "open"
	case OfferStatusSwapped:
		return "swapped"
	case OfferStatusFinalized:
		return "finalized"
	case OfferStatusCancelled:
		return "cancelled"
	case OfferStatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

func (s OfferStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Offer is a standing proposal whose assets are held by the engine vault
// until the creator finalizes, cancels or the deadline passes.
type Offer struct {
	ID             common.Hash
	Creator        common.Address
	Assets         []Asset
	AcceptedTokens []common.Address
	RestrictedTo   common.Address
	Deadline       int64
	Swapper        common.Address
	CounterAssets  []Asset
	Fees           []FeeCharge
	Status         OfferStatus
	CreatedAt      int64
	UpdatedAt      int64
}

// Copy returns a deep copy of the offer.
func (o *Offer) Copy() *Offer {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Assets = copyAssets(o.Assets)
	clone.CounterAssets = copyAssets(o.CounterAssets)
	clone.AcceptedTokens = append([]common.Address(nil), o.AcceptedTokens...)
	if len(o.Fees) > 0 {
		clone.Fees = make([]FeeCharge, len(o.Fees))
		for i, f := range o.Fees {
			clone.Fees[i] = FeeCharge{Token: f.Token, Payer: f.Payer, Amount: cloneBigInt(f.Amount)}
		}
	}
	return &clone
}

func (o *Offer) expired(now int64) bool {
	return o.Deadline > 0 && now > o.Deadline
}

func (o *Offer) accepts(token common.Address) bool {
	if len(o.AcceptedTokens) == 0 {
		return true
	}
	for _, accepted := range o.AcceptedTokens {
		if accepted == token {
			return true
		}
	}
	return false
}

// storedOffer is the RLP layout of an offer. Timestamps are stored unsigned.
type storedOffer struct {
	ID             common.Hash
	Creator        common.Address
	Assets         []Asset
	AcceptedTokens []common.Address
	RestrictedTo   common.Address
	Deadline       uint64
	Swapper        common.Address
	CounterAssets  []Asset
	Fees           []FeeCharge
	Status         uint8
	CreatedAt      uint64
	UpdatedAt      uint64
}

func toStored(o *Offer) *storedOffer {
	return &storedOffer{
		ID:             o.ID,
		Creator:        o.Creator,
		Assets:         o.Assets,
		AcceptedTokens: o.AcceptedTokens,
		RestrictedTo:   o.RestrictedTo,
		Deadline:       uint64(o.Deadline),
		Swapper:        o.Swapper,
		CounterAssets:  o.CounterAssets,
		Fees:           o.Fees,
		Status:         uint8(o.Status),
		CreatedAt:      uint64(o.CreatedAt),
		UpdatedAt:      uint64(o.UpdatedAt),
	}
}

func (s *storedOffer) toOffer() *Offer {
	return &Offer{
		ID:             s.ID,
		Creator:        s.Creator,
		Assets:         s.Assets,
		AcceptedTokens: s.AcceptedTokens,
		RestrictedTo:   s.RestrictedTo,
		Deadline:       int64(s.Deadline),
		Swapper:        s.Swapper,
		CounterAssets:  s.CounterAssets,
		Fees:           s.Fees,
		Status:         OfferStatus(s.Status),
		CreatedAt:      int64(s.CreatedAt),
		UpdatedAt:      int64(s.UpdatedAt),
	}
}

func loadOffer(kv state.KV, id common.Hash) (*Offer, error) {
	var stored storedOffer
	ok, err := kv.KVGet(offerKey(id), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrOfferNotFound
	}
	return stored.toOffer(), nil
}

func storeOffer(kv state.KV, o *Offer) error {
	return kv.KVPut(offerKey(o.ID), toStored(o))
}

func (e *Engine) offerID(creator common.Address, seq uint64) common.Hash {
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], seq)
	return crypto.Keccak256Hash(e.Vault().Bytes(), creator.Bytes(), seqBytes[:])
}

func validateAssetList(assets []Asset, label string) error {
	if len(assets) == 0 {
		return fmt.Errorf("%w: %s must offer at least one asset", ErrInvalidOrder, label)
	}
	for i, asset := range assets {
		if err := asset.Validate(); err != nil {
			return fmt.Errorf("%s asset %d: %w", label, i, err)
		}
	}
	return nil
}

// CreateOffer escrows assets from creator into the vault and opens an offer.
// acceptedTokens, when non-empty, limits the tokens a swapper may put up.
// restrictedTo, when non-zero, is the only address allowed to take the
// offer. A zero deadline never expires.
func (e *Engine) CreateOffer(creator common.Address, assets []Asset, acceptedTokens []common.Address, restrictedTo common.Address, deadline int64) (*Offer, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if creator == (common.Address{}) {
		return nil, fmt.Errorf("offer creator: %w", ErrZeroAddress)
	}
	if err := validateAssetList(assets, "offer"); err != nil {
		return nil, err
	}
	if restrictedTo == creator {
		return nil, fmt.Errorf("%w: offer cannot be restricted to its creator", ErrInvalidOrder)
	}
	now := e.now()
	if deadline < 0 || (deadline > 0 && deadline <= now) {
		return nil, fmt.Errorf("%w: deadline must be in the future", ErrInvalidOrder)
	}

	offer := &Offer{
		Creator:        creator,
		Assets:         copyAssets(assets),
		AcceptedTokens: append([]common.Address(nil), acceptedTokens...),
		RestrictedTo:   restrictedTo,
		Deadline:       deadline,
		Status:         OfferStatusOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := e.state.Update(func(kv state.KV) error {
		if err := e.guard(kv); err != nil {
			return err
		}
		var seq uint64
		if _, err := kv.KVGet(offerSeqKey, &seq); err != nil {
			return err
		}
		offer.ID = e.offerID(creator, seq)
		if err := kv.KVPut(offerSeqKey, seq+1); err != nil {
			return err
		}
		if _, err := e.moveAssets(kv, creator, e.Vault(), offer.Assets, noFee); err != nil {
			return err
		}
		return storeOffer(kv, offer)
	})
	if err != nil {
		return nil, err
	}
	e.emit(newOfferEvent(EventTypeOfferCreated, offer))
	return offer.Copy(), nil
}

// GetOffer returns the stored offer.
func (e *Engine) GetOffer(id common.Hash) (*Offer, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	var offer *Offer
	err := e.state.View(func(kv state.KV) error {
		var err error
		offer, err = loadOffer(kv, id)
		return err
	})
	return offer, err
}

// transitionOffer loads an offer, applies fn and stores the result inside one
// state transition. The event is emitted after commit.
func (e *Engine) transitionOffer(id common.Hash, eventType string, guarded bool, fn func(kv state.KV, offer *Offer, now int64) error) (*Offer, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	var offer *Offer
	now := e.now()
	err := e.state.Update(func(kv state.KV) error {
		if guarded {
			if err := e.guard(kv); err != nil {
				return err
			}
		}
		var err error
		offer, err = loadOffer(kv, id)
		if err != nil {
			return err
		}
		if err := fn(kv, offer, now); err != nil {
			return err
		}
		offer.UpdatedAt = now
		return storeOffer(kv, offer)
	})
	if err != nil {
		return nil, err
	}
	e.emit(newOfferEvent(eventType, offer))
	return offer.Copy(), nil
}

// Swap takes an open offer by escrowing counterAssets from caller.
func (e *Engine) Swap(caller common.Address, id common.Hash, counterAssets []Asset) (*Offer, error) {
	if err := validateAssetList(counterAssets, "counter"); err != nil {
		return nil, err
	}
	counter := copyAssets(counterAssets)
	return e.transitionOffer(id, EventTypeOfferSwapped, true, func(kv state.KV, offer *Offer, now int64) error {
		if offer.Status != OfferStatusOpen {
			return fmt.Errorf("%w: offer is %s", ErrOfferStatus, offer.Status)
		}
		if offer.expired(now) {
			return ErrOfferExpired
		}
		if caller == offer.Creator {
			return fmt.Errorf("%w: creator cannot take own offer", ErrInvalidOrder)
		}
		if offer.RestrictedTo != (common.Address{}) && caller != offer.RestrictedTo {
			return ErrOfferRestricted
		}
		for _, asset := range counter {
			if !offer.accepts(asset.Token) {
				return fmt.Errorf("%w: %s", ErrTokenNotAccepted, asset.Token.Hex())
			}
		}
		if _, err := e.moveAssets(kv, caller, e.Vault(), counter, noFee); err != nil {
			return err
		}
		offer.Swapper = caller
		offer.CounterAssets = counter
		offer.Status = OfferStatusSwapped
		return nil
	})
}

// Finalize accepts the swapper's counter assets: the creator's escrow goes to
// the swapper and the counter escrow goes to the creator, both less fees.
func (e *Engine) Finalize(caller common.Address, id common.Hash) (*Offer, error) {
	return e.transitionOffer(id, EventTypeOfferFinalized, true, func(kv state.KV, offer *Offer, now int64) error {
		if caller != offer.Creator {
			return ErrNotOfferCreator
		}
		if offer.Status != OfferStatusSwapped {
			return fmt.Errorf("%w: offer is %s", ErrOfferStatus, offer.Status)
		}
		if offer.expired(now) {
			return ErrOfferExpired
		}
		cfg, err := loadFeeConfig(kv)
		if err != nil {
			return err
		}
		toSwapper, err := e.moveAssets(kv, e.Vault(), offer.Swapper, offer.Assets, cfg)
		if err != nil {
			return err
		}
		toCreator, err := e.moveAssets(kv, e.Vault(), offer.Creator, offer.CounterAssets, cfg)
		if err != nil {
			return err
		}
		offer.Fees = append(toSwapper, toCreator...)
		offer.Status = OfferStatusFinalized
		return nil
	})
}

// Decline rejects the swapper's counter assets, returns them and reopens the
// offer.
func (e *Engine) Decline(caller common.Address, id common.Hash) (*Offer, error) {
	return e.transitionOffer(id, EventTypeOfferDeclined, false, func(kv state.KV, offer *Offer, _ int64) error {
		if caller != offer.Creator {
			return ErrNotOfferCreator
		}
		if offer.Status != OfferStatusSwapped {
			return fmt.Errorf("%w: offer is %s", ErrOfferStatus, offer.Status)
		}
		if _, err := e.moveAssets(kv, e.Vault(), offer.Swapper, offer.CounterAssets, noFee); err != nil {
			return err
		}
		offer.Swapper = common.Address{}
		offer.CounterAssets = nil
		offer.Status = OfferStatusOpen
		return nil
	})
}

// Cancel withdraws an open offer and returns the creator's escrow.
func (e *Engine) Cancel(caller common.Address, id common.Hash) (*Offer, error) {
	return e.transitionOffer(id, EventTypeOfferCancelled, false, func(kv state.KV, offer *Offer, _ int64) error {
		if caller != offer.Creator {
			return ErrNotOfferCreator
		}
		if offer.Status != OfferStatusOpen {
			return fmt.Errorf("%w: offer is %s", ErrOfferStatus, offer.Status)
		}
		if _, err := e.moveAssets(kv, e.Vault(), offer.Creator, offer.Assets, noFee); err != nil {
			return err
		}
		offer.Status = OfferStatusCancelled
		return nil
	})
}

// Expire returns every escrowed asset of an offer whose deadline has passed.
// Anyone may call it.
func (e *Engine) Expire(id common.Hash) (*Offer, error) {
	return e.transitionOffer(id, EventTypeOfferExpired, false, func(kv state.KV, offer *Offer, now int64) error {
		if offer.Status != OfferStatusOpen && offer.Status != OfferStatusSwapped {
			return fmt.Errorf("%w: offer is %s", ErrOfferStatus, offer.Status)
		}
		if !offer.expired(now) {
			return fmt.Errorf("%w: deadline not reached", ErrOfferStatus)
		}
		if _, err := e.moveAssets(kv, e.Vault(), offer.Creator, offer.Assets, noFee); err != nil {
			return err
		}
		if offer.Status == OfferStatusSwapped {
			if _, err := e.moveAssets(kv, e.Vault(), offer.Swapper, offer.CounterAssets, noFee); err != nil {
				return err
			}
		}
		offer.Status = OfferStatusExpired
		return nil
	})
}
