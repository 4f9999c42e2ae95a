package dexther

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "dexther/native/common"
)

func (f *fixture) usdcAssets(amount int64) []Asset {
	return []Asset{{Kind: AssetKindFungible, Token: f.usdc.Address(), ID: big.NewInt(0), Amount: big.NewInt(amount)}}
}

func (f *fixture) dogAssets() []Asset {
	return []Asset{{Kind: AssetKindUnique, Token: f.dogs.Address(), ID: big.NewInt(0), Amount: big.NewInt(1)}}
}

func TestOfferLifecycleFinalize(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.alice.Address(), f.bob.Address()

	offer, err := f.engine.CreateOffer(alice, f.usdcAssets(100), []common.Address{f.dogs.Address()}, common.Address{}, f.now+3600)
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}
	if offer.Status != OfferStatusOpen || offer.Creator != alice {
		t.Fatalf("unexpected offer %+v", offer)
	}
	if got := f.usdcBalance(t, testVault); got != 100 {
		t.Fatalf("expected vault to escrow 100, got %d", got)
	}

	swapped, err := f.engine.Swap(bob, offer.ID, f.dogAssets())
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if swapped.Status != OfferStatusSwapped || swapped.Swapper != bob {
		t.Fatalf("unexpected swapped offer %+v", swapped)
	}
	if owner := f.dogOwner(t); owner != testVault {
		t.Fatalf("expected vault to hold dog, got %s", owner.Hex())
	}

	if _, err := f.engine.Finalize(bob, offer.ID); !errors.Is(err, ErrNotOfferCreator) {
		t.Fatalf("expected ErrNotOfferCreator, got %v", err)
	}
	finalized, err := f.engine.Finalize(alice, offer.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if finalized.Status != OfferStatusFinalized {
		t.Fatalf("expected finalized, got %s", finalized.Status)
	}
	if got := f.usdcBalance(t, bob); got != 100 {
		t.Fatalf("expected bob to receive 100, got %d", got)
	}
	if owner := f.dogOwner(t); owner != alice {
		t.Fatalf("expected alice to own dog, got %s", owner.Hex())
	}

	stored, err := f.engine.GetOffer(offer.ID)
	if err != nil || stored.Status != OfferStatusFinalized || len(stored.CounterAssets) != 1 {
		t.Fatalf("unexpected stored offer %+v (%v)", stored, err)
	}
	if evt := f.emitter.last(); evt == nil || evt.Type != EventTypeOfferFinalized || evt.Attributes["swapper"] != bob.Hex() {
		t.Fatalf("unexpected event %+v", evt)
	}
	if _, err := f.engine.Finalize(alice, offer.ID); !errors.Is(err, ErrOfferStatus) {
		t.Fatalf("expected ErrOfferStatus on second finalize, got %v", err)
	}
}

func TestOfferFinalizeChargesFee(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.SetTreasury(testAdmin, testTreasury); err != nil {
		t.Fatalf("set treasury: %v", err)
	}
	if err := f.engine.UpdateFee(testAdmin, 1000); err != nil {
		t.Fatalf("update fee: %v", err)
	}
	offer, err := f.engine.CreateOffer(f.alice.Address(), f.usdcAssets(100), nil, common.Address{}, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.engine.Swap(f.bob.Address(), offer.ID, f.dogAssets()); err != nil {
		t.Fatalf("swap: %v", err)
	}
	finalized, err := f.engine.Finalize(f.alice.Address(), offer.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if got := f.usdcBalance(t, testTreasury); got != 10 {
		t.Fatalf("expected treasury fee 10, got %d", got)
	}
	if got := f.usdcBalance(t, f.bob.Address()); got != 90 {
		t.Fatalf("expected bob to receive 90, got %d", got)
	}
	if len(finalized.Fees) != 1 || finalized.Fees[0].Payer != testVault {
		t.Fatalf("unexpected fees %+v", finalized.Fees)
	}
}

func TestOfferDeclineAndCancel(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.alice.Address(), f.bob.Address()

	offer, err := f.engine.CreateOffer(alice, f.usdcAssets(40), nil, common.Address{}, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.engine.Swap(bob, offer.ID, f.dogAssets()); err != nil {
		t.Fatalf("swap: %v", err)
	}
	if _, err := f.engine.Cancel(alice, offer.ID); !errors.Is(err, ErrOfferStatus) {
		t.Fatalf("cancel of swapped offer must fail, got %v", err)
	}
	if _, err := f.engine.Decline(bob, offer.ID); !errors.Is(err, ErrNotOfferCreator) {
		t.Fatalf("expected ErrNotOfferCreator, got %v", err)
	}
	reopened, err := f.engine.Decline(alice, offer.ID)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if reopened.Status != OfferStatusOpen || reopened.Swapper != (common.Address{}) || len(reopened.CounterAssets) != 0 {
		t.Fatalf("unexpected reopened offer %+v", reopened)
	}
	if owner := f.dogOwner(t); owner != bob {
		t.Fatalf("declined counter assets must return to bob, got %s", owner.Hex())
	}

	cancelled, err := f.engine.Cancel(alice, offer.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != OfferStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if got := f.usdcBalance(t, alice); got != 100 {
		t.Fatalf("expected alice refund to 100, got %d", got)
	}
	if _, err := f.engine.Swap(bob, offer.ID, f.dogAssets()); !errors.Is(err, ErrOfferStatus) {
		t.Fatalf("swap on cancelled offer must fail, got %v", err)
	}
}

func TestOfferExpiry(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.alice.Address(), f.bob.Address()
	offer, err := f.engine.CreateOffer(alice, f.usdcAssets(100), nil, common.Address{}, f.now+60)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.engine.Swap(bob, offer.ID, f.dogAssets()); err != nil {
		t.Fatalf("swap: %v", err)
	}
	if _, err := f.engine.Expire(offer.ID); !errors.Is(err, ErrOfferStatus) {
		t.Fatalf("expire before deadline must fail, got %v", err)
	}

	f.now += 61
	if _, err := f.engine.Finalize(alice, offer.ID); !errors.Is(err, ErrOfferExpired) {
		t.Fatalf("expected ErrOfferExpired, got %v", err)
	}
	expired, err := f.engine.Expire(offer.ID)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if expired.Status != OfferStatusExpired || expired.UpdatedAt != f.now {
		t.Fatalf("unexpected expired offer %+v", expired)
	}
	if got := f.usdcBalance(t, alice); got != 100 {
		t.Fatalf("expected alice refund, got %d", got)
	}
	if owner := f.dogOwner(t); owner != bob {
		t.Fatalf("expected bob refund, got %s", owner.Hex())
	}

	if _, err := f.engine.CreateOffer(alice, f.usdcAssets(1), nil, common.Address{}, f.now-1); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("past deadline must be rejected, got %v", err)
	}
}

func TestOfferRestrictionsAndAcceptedTokens(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.alice.Address(), f.bob.Address()
	stranger := common.HexToAddress("0x0000000000000000000000000000000000005555")

	restricted, err := f.engine.CreateOffer(alice, f.usdcAssets(10), nil, stranger, 0)
	if err != nil {
		t.Fatalf("create restricted: %v", err)
	}
	if _, err := f.engine.Swap(bob, restricted.ID, f.dogAssets()); !errors.Is(err, ErrOfferRestricted) {
		t.Fatalf("expected ErrOfferRestricted, got %v", err)
	}

	picky, err := f.engine.CreateOffer(alice, f.usdcAssets(10), []common.Address{f.items.Address()}, common.Address{}, 0)
	if err != nil {
		t.Fatalf("create picky: %v", err)
	}
	if _, err := f.engine.Swap(bob, picky.ID, f.dogAssets()); !errors.Is(err, ErrTokenNotAccepted) {
		t.Fatalf("expected ErrTokenNotAccepted, got %v", err)
	}
	if _, err := f.engine.Swap(alice, picky.ID, f.usdcAssets(1)); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("creator must not take own offer, got %v", err)
	}
	if restricted.ID == picky.ID {
		t.Fatalf("offer ids must be unique")
	}
	if _, err := f.engine.GetOffer(common.Hash{0x01}); !errors.Is(err, ErrOfferNotFound) {
		t.Fatalf("expected ErrOfferNotFound, got %v", err)
	}
	if _, err := f.engine.CreateOffer(alice, nil, nil, common.Address{}, 0); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder for empty offer, got %v", err)
	}
	if _, err := f.engine.CreateOffer(alice, f.usdcAssets(10), nil, alice, 0); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder for self restriction, got %v", err)
	}
}

func TestOfferEscrowRollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	assets := append(f.usdcAssets(50), Asset{Kind: AssetKindUnique, Token: f.dogs.Address(), ID: big.NewInt(0)})
	if _, err := f.engine.CreateOffer(f.alice.Address(), assets, nil, common.Address{}, 0); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if got := f.usdcBalance(t, f.alice.Address()); got != 100 {
		t.Fatalf("failed escrow must not move funds, got %d", got)
	}
	if got := f.usdcBalance(t, testVault); got != 0 {
		t.Fatalf("vault must be empty, got %d", got)
	}
}

func TestOfferPausedStillRefunds(t *testing.T) {
	f := newFixture(t)
	offer, err := f.engine.CreateOffer(f.alice.Address(), f.usdcAssets(100), nil, common.Address{}, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.engine.SetPaused(testAdmin, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := f.engine.Swap(f.bob.Address(), offer.ID, f.dogAssets()); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if _, err := f.engine.Cancel(f.alice.Address(), offer.ID); err != nil {
		t.Fatalf("cancel while paused: %v", err)
	}
}

func TestOfferJSON(t *testing.T) {
	f := newFixture(t)
	offer, err := f.engine.CreateOffer(f.alice.Address(), f.usdcAssets(5), nil, common.Address{}, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	raw, err := json.Marshal(offer)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Offer
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ID != offer.ID || decoded.Status != OfferStatusOpen || decoded.Assets[0].Amount.Int64() != 5 {
		t.Fatalf("unexpected decoded offer %s", raw)
	}
}
