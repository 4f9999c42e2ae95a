package dexther

import (
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"dexther/core/events"
	"dexther/core/state"
	"dexther/core/types"
	dcrypto "dexther/crypto"
	nativecommon "dexther/native/common"
	"dexther/native/tokens"
	"dexther/storage"
)

const (
	alicePrivateKey = "0x511aa64b036d7e415c8c527e684f02dfac78db7d888e6ee9b6c687e22a9feaf0"
	bobPrivateKey   = "0x79c2d003af0de1979f97d718ccf255b382c606c35b3b385f2e6cdb49e47854f4"
)

var (
	testChainID  = big.NewInt(9999)
	testVault    = common.HexToAddress("0x000000000000000000000000000000000000d3e7")
	testAdmin    = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	testTreasury = common.HexToAddress("0x0000000000000000000000000000000000007ea5")
	testRelayer  = common.HexToAddress("0x0000000000000000000000000000000000000aaa")
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []*types.Event
}

func (r *recordingEmitter) Emit(evt events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events.Payload(evt))
}

func (r *recordingEmitter) last() *types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

func (r *recordingEmitter) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, evt := range r.events {
		if evt != nil && evt.Type == eventType {
			n++
		}
	}
	return n
}

type fixture struct {
	engine  *Engine
	mgr     *state.Manager
	emitter *recordingEmitter
	usdc    *tokens.Fungible
	dogs    *tokens.Unique
	items   *tokens.SemiFungible
	alice   *dcrypto.PrivateKey
	bob     *dcrypto.PrivateKey
	now     int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	alice, err := dcrypto.PrivateKeyFromHex(alicePrivateKey)
	if err != nil {
		t.Fatalf("alice key: %v", err)
	}
	bob, err := dcrypto.PrivateKeyFromHex(bobPrivateKey)
	if err != nil {
		t.Fatalf("bob key: %v", err)
	}

	f := &fixture{
		mgr:     state.NewManager(storage.NewMemDB()),
		emitter: &recordingEmitter{},
		usdc:    tokens.NewFungible(common.HexToAddress("0x1000000000000000000000000000000000000001"), "USDC"),
		dogs:    tokens.NewUnique(common.HexToAddress("0x2000000000000000000000000000000000000002"), "DOGS"),
		items:   tokens.NewSemiFungible(common.HexToAddress("0x3000000000000000000000000000000000000003"), "ITEMS"),
		alice:   alice,
		bob:     bob,
		now:     1_700_000_000,
	}

	registry := NewRegistry()
	if err := registry.RegisterFungible(f.usdc); err != nil {
		t.Fatalf("register usdc: %v", err)
	}
	if err := registry.RegisterUnique(f.dogs); err != nil {
		t.Fatalf("register dogs: %v", err)
	}
	if err := registry.RegisterSemiFungible(f.items); err != nil {
		t.Fatalf("register items: %v", err)
	}

	f.engine = NewEngine(NewDomain(testChainID, testVault), registry)
	f.engine.SetState(f.mgr)
	f.engine.SetEmitter(f.emitter)
	f.engine.SetNowFunc(func() int64 { return f.now })
	if err := f.engine.Bootstrap(testAdmin, common.Address{}, 0); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	f.update(t, func(kv state.KV) error {
		if err := f.usdc.Mint(kv, alice.Address(), big.NewInt(100)); err != nil {
			return err
		}
		if err := f.usdc.Approve(kv, alice.Address(), testVault, big.NewInt(100)); err != nil {
			return err
		}
		if err := f.dogs.Mint(kv, bob.Address(), big.NewInt(0)); err != nil {
			return err
		}
		if err := f.dogs.SetApprovalForAll(kv, bob.Address(), testVault, true); err != nil {
			return err
		}
		if err := f.items.Mint(kv, bob.Address(), big.NewInt(0), big.NewInt(1)); err != nil {
			return err
		}
		return f.items.SetApprovalForAll(kv, bob.Address(), testVault, true)
	})
	return f
}

func (f *fixture) update(t *testing.T, fn func(state.KV) error) {
	t.Helper()
	if err := f.mgr.Update(fn); err != nil {
		t.Fatalf("state update: %v", err)
	}
}

func (f *fixture) view(t *testing.T, fn func(state.KV) error) {
	t.Helper()
	if err := f.mgr.View(fn); err != nil {
		t.Fatalf("state view: %v", err)
	}
}

// scenarioOrder is the canonical swap: alice offers 100 USDC, bob offers
// dog #0 and one item #0.
func (f *fixture) scenarioOrder() SwapOrder {
	return SwapOrder{
		Initiator: SwapIntent{
			Party: f.alice.Address(),
			Assets: []Asset{
				{Kind: AssetKindFungible, Token: f.usdc.Address(), ID: big.NewInt(0), Amount: big.NewInt(100)},
			},
			Nonce: 0,
		},
		Counterparty: SwapIntent{
			Party: f.bob.Address(),
			Assets: []Asset{
				{Kind: AssetKindUnique, Token: f.dogs.Address(), ID: big.NewInt(0), Amount: big.NewInt(0)},
				{Kind: AssetKindSemiFungible, Token: f.items.Address(), ID: big.NewInt(0), Amount: big.NewInt(1)},
			},
			Nonce: 0,
		},
	}
}

func (f *fixture) sign(t *testing.T, order SwapOrder) ([]byte, []byte) {
	t.Helper()
	digest := f.engine.Digest(order)
	sigA, err := f.alice.SignDigest(digest)
	if err != nil {
		t.Fatalf("alice sign: %v", err)
	}
	sigB, err := f.bob.SignDigest(digest)
	if err != nil {
		t.Fatalf("bob sign: %v", err)
	}
	return sigA, sigB
}

func (f *fixture) usdcBalance(t *testing.T, owner common.Address) int64 {
	t.Helper()
	var bal *big.Int
	f.view(t, func(kv state.KV) error {
		var err error
		bal, err = f.usdc.BalanceOf(kv, owner)
		return err
	})
	return bal.Int64()
}

func (f *fixture) dogOwner(t *testing.T) common.Address {
	t.Helper()
	var owner common.Address
	f.view(t, func(kv state.KV) error {
		var err error
		owner, err = f.dogs.OwnerOf(kv, big.NewInt(0))
		return err
	})
	return owner
}

func (f *fixture) itemBalance(t *testing.T, owner common.Address) int64 {
	t.Helper()
	var bal *big.Int
	f.view(t, func(kv state.KV) error {
		var err error
		bal, err = f.items.BalanceOf(kv, owner, big.NewInt(0))
		return err
	})
	return bal.Int64()
}

func (f *fixture) assertUntouched(t *testing.T) {
	t.Helper()
	if got := f.usdcBalance(t, f.alice.Address()); got != 100 {
		t.Fatalf("alice usdc changed: %d", got)
	}
	if got := f.usdcBalance(t, f.bob.Address()); got != 0 {
		t.Fatalf("bob usdc changed: %d", got)
	}
	if owner := f.dogOwner(t); owner != f.bob.Address() {
		t.Fatalf("dog moved to %s", owner.Hex())
	}
	if got := f.itemBalance(t, f.bob.Address()); got != 1 {
		t.Fatalf("bob items changed: %d", got)
	}
	for _, party := range []common.Address{f.alice.Address(), f.bob.Address()} {
		used, err := f.engine.NonceUsed(party, 0)
		if err != nil {
			t.Fatalf("nonce used: %v", err)
		}
		if used {
			t.Fatalf("nonce of %s must remain unconsumed", party.Hex())
		}
	}
}

func TestPerformSwapMovesAllAssets(t *testing.T) {
	f := newFixture(t)
	order := f.scenarioOrder()
	sigA, sigB := f.sign(t, order)

	receipt, err := f.engine.PerformSwap(testRelayer, order, sigA, sigB)
	if err != nil {
		t.Fatalf("perform swap: %v", err)
	}
	if receipt.Digest != f.engine.Digest(order) {
		t.Fatalf("receipt digest mismatch")
	}
	if receipt.SettledAt != f.now || receipt.Relayer != testRelayer {
		t.Fatalf("unexpected receipt metadata: %+v", receipt)
	}
	if len(receipt.Fees) != 0 {
		t.Fatalf("expected no fees, got %+v", receipt.Fees)
	}

	if got := f.usdcBalance(t, f.bob.Address()); got != 100 {
		t.Fatalf("expected bob to hold 100 usdc, got %d", got)
	}
	if got := f.usdcBalance(t, f.alice.Address()); got != 0 {
		t.Fatalf("expected alice to hold 0 usdc, got %d", got)
	}
	if owner := f.dogOwner(t); owner != f.alice.Address() {
		t.Fatalf("expected alice to own dog #0, got %s", owner.Hex())
	}
	if got := f.itemBalance(t, f.alice.Address()); got != 1 {
		t.Fatalf("expected alice to hold 1 item, got %d", got)
	}

	for _, party := range []common.Address{f.alice.Address(), f.bob.Address()} {
		used, err := f.engine.NonceUsed(party, 0)
		if err != nil || !used {
			t.Fatalf("expected nonce consumed for %s (err=%v)", party.Hex(), err)
		}
	}

	evt := f.emitter.last()
	if evt == nil || evt.Type != EventTypeSwapSettled {
		t.Fatalf("expected settled event, got %+v", evt)
	}
	if evt.Attributes["initiator"] != f.alice.Address().Hex() || evt.Attributes["counterparty"] != f.bob.Address().Hex() {
		t.Fatalf("unexpected event parties: %+v", evt.Attributes)
	}
	if evt.Attributes["initiatorAssets"] != "fungible:"+f.usdc.Address().Hex()+":0:100" {
		t.Fatalf("unexpected initiator assets: %s", evt.Attributes["initiatorAssets"])
	}
}

func TestPerformSwapRejectsNonceReuse(t *testing.T) {
	f := newFixture(t)
	order := f.scenarioOrder()
	sigA, sigB := f.sign(t, order)
	if _, err := f.engine.PerformSwap(testRelayer, order, sigA, sigB); err != nil {
		t.Fatalf("first swap: %v", err)
	}
	emitted := len(f.emitter.events)

	if _, err := f.engine.PerformSwap(testRelayer, order, sigA, sigB); !errors.Is(err, ErrNonceReused) {
		t.Fatalf("expected ErrNonceReused, got %v", err)
	}
	if len(f.emitter.events) != emitted {
		t.Fatalf("failed swap must not emit events")
	}
}

func TestPerformSwapConcurrentSubmissionsSettleOnce(t *testing.T) {
	f := newFixture(t)
	order := f.scenarioOrder()
	sigA, sigB := f.sign(t, order)

	const submitters = 32
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make(chan error, submitters)
	)
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.engine.PerformSwap(testRelayer, order, sigA, sigB)
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	var settled, reused int
	for err := range errs {
		switch {
		case err == nil:
			settled++
		case errors.Is(err, ErrNonceReused):
			reused++
		default:
			t.Fatalf("unexpected error from concurrent submission: %v", err)
		}
	}
	if settled != 1 || reused != submitters-1 {
		t.Fatalf("expected 1 settlement and %d nonce rejections, got %d and %d", submitters-1, settled, reused)
	}
	if got := f.emitter.count(EventTypeSwapSettled); got != 1 {
		t.Fatalf("expected one settled event, got %d", got)
	}

	if got := f.usdcBalance(t, f.bob.Address()); got != 100 {
		t.Fatalf("expected bob to hold 100 usdc, got %d", got)
	}
	if got := f.usdcBalance(t, f.alice.Address()); got != 0 {
		t.Fatalf("expected alice to hold 0 usdc, got %d", got)
	}
	if owner := f.dogOwner(t); owner != f.alice.Address() {
		t.Fatalf("expected alice to own dog #0, got %s", owner.Hex())
	}
	if got := f.itemBalance(t, f.alice.Address()); got != 1 {
		t.Fatalf("expected alice to hold 1 item, got %d", got)
	}
	if got := f.itemBalance(t, f.bob.Address()); got != 0 {
		t.Fatalf("expected bob to hold 0 items, got %d", got)
	}
}

func TestPerformSwapRejectsTamperedAssets(t *testing.T) {
	f := newFixture(t)
	order := f.scenarioOrder()
	sigA, sigB := f.sign(t, order)

	tampered := order
	tampered.Initiator = order.Initiator.Copy()
	tampered.Initiator.Assets[0].Amount = big.NewInt(1)
	if _, err := f.engine.PerformSwap(testRelayer, tampered, sigA, sigB); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	reordered := order
	reordered.Counterparty = order.Counterparty.Copy()
	reordered.Counterparty.Assets[0], reordered.Counterparty.Assets[1] = reordered.Counterparty.Assets[1], reordered.Counterparty.Assets[0]
	if _, err := f.engine.PerformSwap(testRelayer, reordered, sigA, sigB); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for reordered assets, got %v", err)
	}

	if _, err := f.engine.PerformSwap(testRelayer, order, sigB, sigA); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for swapped signatures, got %v", err)
	}
	if _, err := f.engine.PerformSwap(testRelayer, order, sigA[:10], sigB); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for truncated signature, got %v", err)
	}
	f.assertUntouched(t)
}

func TestPerformSwapRollsBackWhenOneLegFails(t *testing.T) {
	f := newFixture(t)
	f.update(t, func(kv state.KV) error {
		return f.items.SetApprovalForAll(kv, f.bob.Address(), testVault, false)
	})

	order := f.scenarioOrder()
	sigA, sigB := f.sign(t, order)
	_, err := f.engine.PerformSwap(testRelayer, order, sigA, sigB)
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if !errors.Is(err, tokens.ErrNotApproved) {
		t.Fatalf("expected ledger cause to be preserved, got %v", err)
	}
	f.assertUntouched(t)
}

func TestPerformSwapInsufficientAllowance(t *testing.T) {
	f := newFixture(t)
	f.update(t, func(kv state.KV) error {
		return f.usdc.Approve(kv, f.alice.Address(), testVault, big.NewInt(99))
	})
	order := f.scenarioOrder()
	sigA, sigB := f.sign(t, order)
	if _, err := f.engine.PerformSwap(testRelayer, order, sigA, sigB); !errors.Is(err, tokens.ErrInsufficientAllowance) {
		t.Fatalf("expected insufficient allowance, got %v", err)
	}
	f.assertUntouched(t)
}

func TestPerformSwapValidatesOrder(t *testing.T) {
	f := newFixture(t)

	same := f.scenarioOrder()
	same.Counterparty.Party = same.Initiator.Party
	if _, err := f.engine.PerformSwap(testRelayer, same, nil, nil); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder for identical parties, got %v", err)
	}

	empty := SwapOrder{
		Initiator:    SwapIntent{Party: f.alice.Address()},
		Counterparty: SwapIntent{Party: f.bob.Address()},
	}
	if _, err := f.engine.PerformSwap(testRelayer, empty, nil, nil); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder for empty order, got %v", err)
	}

	badUnique := f.scenarioOrder()
	badUnique.Counterparty.Assets[0].Amount = big.NewInt(2)
	if _, err := f.engine.PerformSwap(testRelayer, badUnique, nil, nil); !errors.Is(err, ErrInvalidAsset) {
		t.Fatalf("expected ErrInvalidAsset for unique amount 2, got %v", err)
	}

	huge := f.scenarioOrder()
	huge.Initiator.Assets[0].Amount = new(big.Int).Lsh(big.NewInt(1), 256)
	if _, err := f.engine.PerformSwap(testRelayer, huge, nil, nil); !errors.Is(err, ErrInvalidAsset) {
		t.Fatalf("expected ErrInvalidAsset for oversized amount, got %v", err)
	}
}

func TestPerformSwapUnknownAssetRollsBack(t *testing.T) {
	f := newFixture(t)
	order := f.scenarioOrder()
	order.Counterparty.Assets = append(order.Counterparty.Assets, Asset{
		Kind: AssetKindFungible, Token: common.HexToAddress("0x9999"), ID: big.NewInt(0), Amount: big.NewInt(1),
	})
	sigA, sigB := f.sign(t, order)
	if _, err := f.engine.PerformSwap(testRelayer, order, sigA, sigB); !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("expected ErrUnknownAsset, got %v", err)
	}
	f.assertUntouched(t)

	mislabelled := f.scenarioOrder()
	mislabelled.Counterparty.Assets[1].Kind = AssetKindFungible
	sigA, sigB = f.sign(t, mislabelled)
	if _, err := f.engine.PerformSwap(testRelayer, mislabelled, sigA, sigB); !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("expected ErrUnknownAsset for kind mismatch, got %v", err)
	}
	f.assertUntouched(t)
}

func TestPerformSwapChargesFee(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.SetTreasury(testAdmin, testTreasury); err != nil {
		t.Fatalf("set treasury: %v", err)
	}
	if err := f.engine.UpdateFee(testAdmin, 250); err != nil {
		t.Fatalf("update fee: %v", err)
	}

	order := f.scenarioOrder()
	sigA, sigB := f.sign(t, order)
	receipt, err := f.engine.PerformSwap(testRelayer, order, sigA, sigB)
	if err != nil {
		t.Fatalf("perform swap: %v", err)
	}
	if got := f.usdcBalance(t, testTreasury); got != 2 {
		t.Fatalf("expected treasury to receive 2, got %d", got)
	}
	if got := f.usdcBalance(t, f.bob.Address()); got != 98 {
		t.Fatalf("expected bob to receive 98, got %d", got)
	}
	if len(receipt.Fees) != 1 || receipt.Fees[0].Amount.Int64() != 2 || receipt.Fees[0].Payer != f.alice.Address() {
		t.Fatalf("unexpected fee charges: %+v", receipt.Fees)
	}
	if receipt.FeeBps != 250 || receipt.Treasury != testTreasury {
		t.Fatalf("unexpected fee config on receipt: %d %s", receipt.FeeBps, receipt.Treasury.Hex())
	}
	if owner := f.dogOwner(t); owner != f.alice.Address() {
		t.Fatalf("unique assets must move without fee")
	}
}

func TestAdminOnlyOperations(t *testing.T) {
	f := newFixture(t)
	outsider := f.alice.Address()

	if err := f.engine.UpdateFee(outsider, 10); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin for UpdateFee, got %v", err)
	}
	if err := f.engine.SetAdmin(outsider, outsider); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin for SetAdmin, got %v", err)
	}
	if err := f.engine.SetTreasury(outsider, outsider); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin for SetTreasury, got %v", err)
	}
	if err := f.engine.SetPaused(outsider, true); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin for SetPaused, got %v", err)
	}

	if err := f.engine.UpdateFee(testAdmin, 10); !errors.Is(err, ErrTreasuryRequired) {
		t.Fatalf("expected ErrTreasuryRequired, got %v", err)
	}
	if err := f.engine.SetTreasury(testAdmin, testTreasury); err != nil {
		t.Fatalf("set treasury: %v", err)
	}
	if err := f.engine.UpdateFee(testAdmin, MaxFeeBps+1); !errors.Is(err, ErrInvalidFee) {
		t.Fatalf("expected ErrInvalidFee, got %v", err)
	}
	if err := f.engine.UpdateFee(testAdmin, 10); err != nil {
		t.Fatalf("update fee: %v", err)
	}
	if fee, err := f.engine.CurrentFee(); err != nil || fee != 10 {
		t.Fatalf("expected fee 10, got %d (%v)", fee, err)
	}
	if err := f.engine.SetTreasury(testAdmin, common.Address{}); !errors.Is(err, ErrTreasuryRequired) {
		t.Fatalf("expected ErrTreasuryRequired when clearing treasury, got %v", err)
	}
	if treasury, err := f.engine.Treasury(); err != nil || treasury != testTreasury {
		t.Fatalf("unexpected treasury %s (%v)", treasury.Hex(), err)
	}

	if err := f.engine.SetAdmin(testAdmin, common.Address{}); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
	if err := f.engine.SetAdmin(testAdmin, outsider); err != nil {
		t.Fatalf("set admin: %v", err)
	}
	if admin, err := f.engine.Admin(); err != nil || admin != outsider {
		t.Fatalf("expected new admin %s, got %s (%v)", outsider.Hex(), admin.Hex(), err)
	}
	if err := f.engine.UpdateFee(testAdmin, 20); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("previous admin must lose rights, got %v", err)
	}
	if evt := f.emitter.last(); evt == nil || evt.Type != EventTypeAdminChanged || evt.Attributes["admin"] != outsider.Hex() {
		t.Fatalf("unexpected admin event: %+v", evt)
	}
}

func TestPauseBlocksSettlement(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.SetPaused(testAdmin, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	paused, err := f.engine.Paused()
	if err != nil || !paused {
		t.Fatalf("expected paused engine (err=%v)", err)
	}
	order := f.scenarioOrder()
	sigA, sigB := f.sign(t, order)
	if _, err := f.engine.PerformSwap(testRelayer, order, sigA, sigB); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	f.assertUntouched(t)

	if err := f.engine.SetPaused(testAdmin, false); err != nil {
		t.Fatalf("resume: %v", err)
	}
	operatorPauses := nativecommon.NewStaticPauses(ModuleName)
	f.engine.SetPauses(operatorPauses)
	if _, err := f.engine.PerformSwap(testRelayer, order, sigA, sigB); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected operator pause to block, got %v", err)
	}
	operatorPauses.Set(ModuleName, false)
	if _, err := f.engine.PerformSwap(testRelayer, order, sigA, sigB); err != nil {
		t.Fatalf("swap after resume: %v", err)
	}
}

func TestBootstrapIsIdempotentAndBindsDomain(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Bootstrap(f.alice.Address(), common.Address{}, 0); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	if admin, _ := f.engine.Admin(); admin != testAdmin {
		t.Fatalf("second bootstrap must not replace admin, got %s", admin.Hex())
	}

	other := NewEngine(NewDomain(big.NewInt(1), testVault), f.engine.Registry())
	other.SetState(f.mgr)
	if err := other.Bootstrap(testAdmin, common.Address{}, 0); !errors.Is(err, ErrDomainMismatch) {
		t.Fatalf("expected ErrDomainMismatch, got %v", err)
	}

	fresh := NewEngine(NewDomain(testChainID, testVault), NewRegistry())
	fresh.SetState(state.NewManager(storage.NewMemDB()))
	if err := fresh.Bootstrap(common.Address{}, common.Address{}, 0); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
	if err := fresh.Bootstrap(testAdmin, common.Address{}, 5); !errors.Is(err, ErrTreasuryRequired) {
		t.Fatalf("expected ErrTreasuryRequired, got %v", err)
	}
	if _, err := fresh.Admin(); !errors.Is(err, ErrNotBootstrapped) {
		t.Fatalf("expected ErrNotBootstrapped, got %v", err)
	}
}

func TestEngineRequiresState(t *testing.T) {
	engine := NewEngine(NewDomain(testChainID, testVault), NewRegistry())
	if _, err := engine.PerformSwap(testRelayer, SwapOrder{}, nil, nil); !errors.Is(err, errNilState) {
		t.Fatalf("expected errNilState, got %v", err)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	token := tokens.NewFungible(common.HexToAddress("0x01"), "one")
	if err := registry.RegisterFungible(token); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.RegisterUnique(tokens.NewUnique(token.Address(), "dup")); !errors.Is(err, ErrAssetRegistered) {
		t.Fatalf("expected ErrAssetRegistered, got %v", err)
	}
	if err := registry.RegisterFungible(tokens.NewFungible(common.Address{}, "zero")); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("expected ErrZeroAddress, got %v", err)
	}
	kind, ok := registry.Kind(token.Address())
	if !ok || kind != AssetKindFungible {
		t.Fatalf("unexpected kind %s", kind)
	}
	if assets := registry.Assets(); len(assets) != 1 || assets[0].Token != token.Address() {
		t.Fatalf("unexpected registry listing %+v", assets)
	}
}

func TestRecoverMatchesSigner(t *testing.T) {
	f := newFixture(t)
	order := f.scenarioOrder()
	sig, err := Sign(f.alice, f.engine.Domain(), order)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	signer, err := Recover(f.engine.Digest(order), sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if signer != f.alice.Address() {
		t.Fatalf("recovered %s, want %s", signer.Hex(), f.alice.Address().Hex())
	}
	if _, err := Recover(f.engine.Digest(order), []byte{0x01}); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if f.engine.DomainSeparator() != f.engine.Domain().Separator() {
		t.Fatalf("domain separator must be stable")
	}
	if f.engine.Vault() != testVault {
		t.Fatalf("unexpected vault %s", f.engine.Vault().Hex())
	}
	if SwapTypeHash != ethcrypto.Keccak256Hash([]byte(SwapTypeString)) {
		t.Fatalf("type hash does not match type string")
	}
}
