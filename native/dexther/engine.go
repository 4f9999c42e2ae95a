package dexther

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"dexther/core/events"
	"dexther/core/state"
	"dexther/core/types"
	nativecommon "dexther/native/common"
)

// ModuleName is the pause-guard identifier of the module.
const ModuleName = "dexther"

type engineState interface {
	Update(fn func(state.KV) error) error
	View(fn func(state.KV) error) error
}

type dextherEvent struct {
	evt *types.Event
}

func (e dextherEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e dextherEvent) Event() *types.Event { return e.evt }

// Engine settles counter-signed swaps and runs the offer escrow. Every
// mutating call runs as one state transition: either all of its writes
// commit together or none do.
type Engine struct {
	state     engineState
	registry  *Registry
	domain    Domain
	separator common.Hash
	emitter   events.Emitter
	nowFn     func() int64
	pauses    nativecommon.PauseView
}

// NewEngine creates an engine bound to domain. The domain separator is
// computed once here and never changes for the life of the engine.
func NewEngine(domain Domain, registry *Registry) *Engine {
	return &Engine{
		registry:  registry,
		domain:    NewDomain(domain.ChainID, domain.VerifyingContract),
		separator: domain.Separator(),
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPauses wires an operator pause view consulted before every guarded
// transition.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(dextherEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// Domain returns the deployment the engine signs for.
func (e *Engine) Domain() Domain { return NewDomain(e.domain.ChainID, e.domain.VerifyingContract) }

// DomainSeparator returns the separator computed at construction.
func (e *Engine) DomainSeparator() common.Hash { return e.separator }

// Vault is the operator address that moves assets on behalf of parties and
// holds offer escrow. Parties approve it on each asset ledger.
func (e *Engine) Vault() common.Address { return e.domain.VerifyingContract }

// Registry exposes the asset registry the engine dispatches transfers to.
func (e *Engine) Registry() *Registry { return e.registry }

// Digest computes the digest both parties sign for order.
func (e *Engine) Digest(order SwapOrder) common.Hash {
	return ComputeDigest(e.separator, SwapTypeHash, order.Initiator, order.Counterparty)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.registry == nil {
		return errNilRegistry
	}
	return nil
}

// Bootstrap persists the domain separator and seeds the admin, treasury and
// fee on first boot. Later boots leave the configuration untouched but fail
// with ErrDomainMismatch when the stored separator differs.
func (e *Engine) Bootstrap(admin, treasury common.Address, feeBps uint32) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.state.Update(func(kv state.KV) error {
		var stored common.Hash
		ok, err := kv.KVGet(domainKey, &stored)
		if err != nil {
			return err
		}
		if ok && stored != e.separator {
			return fmt.Errorf("%w: stored %s, configured %s", ErrDomainMismatch, stored.Hex(), e.separator.Hex())
		}
		if !ok {
			if err := kv.KVPut(domainKey, e.separator); err != nil {
				return err
			}
		}
		if _, err := loadAdmin(kv); err == nil {
			return nil
		}
		if admin == (common.Address{}) {
			return fmt.Errorf("bootstrap admin: %w", ErrZeroAddress)
		}
		if err := validateFee(feeBps, treasury); err != nil {
			return err
		}
		if err := kv.KVPut(adminKey, admin); err != nil {
			return err
		}
		if err := kv.KVPut(feeKey, feeBps); err != nil {
			return err
		}
		if treasury != (common.Address{}) {
			return kv.KVPut(treasuryKey, treasury)
		}
		return nil
	})
}

func validateFee(feeBps uint32, treasury common.Address) error {
	if feeBps > MaxFeeBps {
		return ErrInvalidFee
	}
	if feeBps > 0 && treasury == (common.Address{}) {
		return ErrTreasuryRequired
	}
	return nil
}

func loadAdmin(kv state.KV) (common.Address, error) {
	var admin common.Address
	ok, err := kv.KVGet(adminKey, &admin)
	if err != nil {
		return common.Address{}, err
	}
	if !ok || admin == (common.Address{}) {
		return common.Address{}, ErrNotBootstrapped
	}
	return admin, nil
}

func requireAdmin(kv state.KV, caller common.Address) error {
	admin, err := loadAdmin(kv)
	if err != nil {
		return err
	}
	if caller != admin {
		return ErrNotAdmin
	}
	return nil
}

type feeConfig struct {
	bps      uint32
	treasury common.Address
}

func loadFeeConfig(kv state.KV) (feeConfig, error) {
	var cfg feeConfig
	if _, err := kv.KVGet(feeKey, &cfg.bps); err != nil {
		return feeConfig{}, err
	}
	if _, err := kv.KVGet(treasuryKey, &cfg.treasury); err != nil {
		return feeConfig{}, err
	}
	return cfg, nil
}

// Admin returns the current admin.
func (e *Engine) Admin() (common.Address, error) {
	if err := e.ready(); err != nil {
		return common.Address{}, err
	}
	var admin common.Address
	err := e.state.View(func(kv state.KV) error {
		var err error
		admin, err = loadAdmin(kv)
		return err
	})
	return admin, err
}

// CurrentFee returns the settlement fee in basis points.
func (e *Engine) CurrentFee() (uint32, error) {
	cfg, err := e.feeConfig()
	return cfg.bps, err
}

// Treasury returns the fee recipient, or the zero address when unset.
func (e *Engine) Treasury() (common.Address, error) {
	cfg, err := e.feeConfig()
	return cfg.treasury, err
}

func (e *Engine) feeConfig() (feeConfig, error) {
	if err := e.ready(); err != nil {
		return feeConfig{}, err
	}
	var cfg feeConfig
	err := e.state.View(func(kv state.KV) error {
		var err error
		cfg, err = loadFeeConfig(kv)
		return err
	})
	return cfg, err
}

// Paused reports whether the admin kill switch or the operator pause view
// currently halts the module.
func (e *Engine) Paused() (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	err := e.state.View(func(kv state.KV) error {
		return e.guard(kv)
	})
	if errors.Is(err, nativecommon.ErrModulePaused) {
		return true, nil
	}
	return false, err
}

func (e *Engine) guard(kv state.KV) error {
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	var paused bool
	if _, err := kv.KVGet(pausedKey, &paused); err != nil {
		return err
	}
	if paused {
		return nativecommon.ErrModulePaused
	}
	return nil
}

// SetAdmin hands the admin role to newAdmin. Only the current admin may call
// it and the role can never be left empty.
func (e *Engine) SetAdmin(caller, newAdmin common.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if newAdmin == (common.Address{}) {
		return fmt.Errorf("set admin: %w", ErrZeroAddress)
	}
	err := e.state.Update(func(kv state.KV) error {
		if err := requireAdmin(kv, caller); err != nil {
			return err
		}
		return kv.KVPut(adminKey, newAdmin)
	})
	if err != nil {
		return err
	}
	e.emit(newAdminChangedEvent(caller, newAdmin))
	return nil
}

// UpdateFee sets the basis-point cut taken from fungible transfers.
func (e *Engine) UpdateFee(caller common.Address, feeBps uint32) error {
	if err := e.ready(); err != nil {
		return err
	}
	var treasury common.Address
	err := e.state.Update(func(kv state.KV) error {
		if err := requireAdmin(kv, caller); err != nil {
			return err
		}
		cfg, err := loadFeeConfig(kv)
		if err != nil {
			return err
		}
		if err := validateFee(feeBps, cfg.treasury); err != nil {
			return err
		}
		treasury = cfg.treasury
		return kv.KVPut(feeKey, feeBps)
	})
	if err != nil {
		return err
	}
	e.emit(newFeeUpdatedEvent(feeBps, treasury))
	return nil
}

// SetTreasury sets the fee recipient. Clearing it is only allowed while the
// fee is zero.
func (e *Engine) SetTreasury(caller, treasury common.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	var bps uint32
	err := e.state.Update(func(kv state.KV) error {
		if err := requireAdmin(kv, caller); err != nil {
			return err
		}
		cfg, err := loadFeeConfig(kv)
		if err != nil {
			return err
		}
		if err := validateFee(cfg.bps, treasury); err != nil {
			return err
		}
		bps = cfg.bps
		if treasury == (common.Address{}) {
			return kv.KVDelete(treasuryKey)
		}
		return kv.KVPut(treasuryKey, treasury)
	})
	if err != nil {
		return err
	}
	e.emit(newFeeUpdatedEvent(bps, treasury))
	return nil
}

// SetPaused toggles the admin kill switch. While paused no swap settles and
// no offer can be created, taken or finalized; escrow can still be returned.
func (e *Engine) SetPaused(caller common.Address, paused bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	err := e.state.Update(func(kv state.KV) error {
		if err := requireAdmin(kv, caller); err != nil {
			return err
		}
		if !paused {
			return kv.KVDelete(pausedKey)
		}
		return kv.KVPut(pausedKey, true)
	})
	if err != nil {
		return err
	}
	e.emit(newPauseEvent(caller, paused))
	return nil
}

// NonceUsed reports whether party's nonce has been consumed.
func (e *Engine) NonceUsed(party common.Address, nonce uint64) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	var used bool
	err := e.state.View(func(kv state.KV) error {
		var err error
		used, err = kv.KVGet(nonceKey(party, nonce), nil)
		return err
	})
	return used, err
}

// PerformSwap verifies both signatures over the order digest, consumes both
// nonces and moves every asset. Nonce consumption and transfers share one
// state transition, so a failing transfer leaves both nonces unconsumed and
// no asset moved. The settled event is emitted only after commit.
func (e *Engine) PerformSwap(caller common.Address, order SwapOrder, initiatorSig, counterpartySig []byte) (*Receipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}

	digest := e.Digest(order)
	if err := e.verifySigner(digest, initiatorSig, order.Initiator.Party, "initiator"); err != nil {
		return nil, err
	}
	if err := e.verifySigner(digest, counterpartySig, order.Counterparty.Party, "counterparty"); err != nil {
		return nil, err
	}

	initiator := order.Initiator.Copy()
	counterparty := order.Counterparty.Copy()
	receipt := &Receipt{
		Digest:             digest,
		Relayer:            caller,
		Initiator:          initiator.Party,
		Counterparty:       counterparty.Party,
		InitiatorNonce:     initiator.Nonce,
		CounterpartyNonce:  counterparty.Nonce,
		InitiatorAssets:    initiator.Assets,
		CounterpartyAssets: counterparty.Assets,
	}

	err := e.state.Update(func(kv state.KV) error {
		if err := e.guard(kv); err != nil {
			return err
		}
		for _, intent := range []SwapIntent{initiator, counterparty} {
			used, err := kv.KVGet(nonceKey(intent.Party, intent.Nonce), nil)
			if err != nil {
				return err
			}
			if used {
				return fmt.Errorf("%w: %s nonce %d", ErrNonceReused, intent.Party.Hex(), intent.Nonce)
			}
		}
		for _, intent := range []SwapIntent{initiator, counterparty} {
			if err := kv.KVPut(nonceKey(intent.Party, intent.Nonce), true); err != nil {
				return err
			}
		}

		cfg, err := loadFeeConfig(kv)
		if err != nil {
			return err
		}
		receipt.FeeBps = cfg.bps
		receipt.Treasury = cfg.treasury

		fees, err := e.moveAssets(kv, initiator.Party, counterparty.Party, initiator.Assets, cfg)
		if err != nil {
			return err
		}
		receipt.Fees = append(receipt.Fees, fees...)
		fees, err = e.moveAssets(kv, counterparty.Party, initiator.Party, counterparty.Assets, cfg)
		if err != nil {
			return err
		}
		receipt.Fees = append(receipt.Fees, fees...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	receipt.SettledAt = e.now()
	e.emit(newSwapSettledEvent(receipt))
	return receipt, nil
}

func (e *Engine) verifySigner(digest common.Hash, sig []byte, party common.Address, role string) error {
	signer, err := Recover(digest, sig)
	if err != nil {
		return fmt.Errorf("%s: %w", role, err)
	}
	if signer != party {
		return fmt.Errorf("%w: %s signed by %s, expected %s", ErrInvalidSignature, role, signer.Hex(), party.Hex())
	}
	return nil
}
