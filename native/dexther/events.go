package dexther

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"dexther/core/types"
)

const (
	EventTypeSwapSettled    = "dexther.swap.settled"
	EventTypeAdminChanged   = "dexther.admin.changed"
	EventTypeFeeUpdated     = "dexther.fee.updated"
	EventTypePauseToggled   = "dexther.pause.toggled"
	EventTypeOfferCreated   = "dexther.offer.created"
	EventTypeOfferSwapped   = "dexther.offer.swapped"
	EventTypeOfferFinalized = "dexther.offer.finalized"
	EventTypeOfferDeclined  = "dexther.offer.declined"
	EventTypeOfferCancelled = "dexther.offer.cancelled"
	EventTypeOfferExpired   = "dexther.offer.expired"
)

// formatAssets renders an asset list as kind:token:id:amount entries joined
// by commas, preserving order.
func formatAssets(assets []Asset) string {
	parts := make([]string, len(assets))
	for i, a := range assets {
		parts[i] = a.Kind.String() + ":" + a.Token.Hex() + ":" + cloneBigInt(a.ID).String() + ":" + cloneBigInt(a.Amount).String()
	}
	return strings.Join(parts, ",")
}

func newSwapSettledEvent(r *Receipt) *types.Event {
	fees := make([]string, len(r.Fees))
	for i, f := range r.Fees {
		fees[i] = f.Token.Hex() + ":" + cloneBigInt(f.Amount).String()
	}
	return &types.Event{
		Type: EventTypeSwapSettled,
		Attributes: map[string]string{
			"digest":             r.Digest.Hex(),
			"relayer":            r.Relayer.Hex(),
			"initiator":          r.Initiator.Hex(),
			"counterparty":       r.Counterparty.Hex(),
			"initiatorNonce":     strconv.FormatUint(r.InitiatorNonce, 10),
			"counterpartyNonce":  strconv.FormatUint(r.CounterpartyNonce, 10),
			"initiatorAssets":    formatAssets(r.InitiatorAssets),
			"counterpartyAssets": formatAssets(r.CounterpartyAssets),
			"fees":               strings.Join(fees, ","),
		},
	}
}

func newAdminChangedEvent(previous, next common.Address) *types.Event {
	return &types.Event{
		Type: EventTypeAdminChanged,
		Attributes: map[string]string{
			"previous": previous.Hex(),
			"admin":    next.Hex(),
		},
	}
}

func newFeeUpdatedEvent(bps uint32, treasury common.Address) *types.Event {
	return &types.Event{
		Type: EventTypeFeeUpdated,
		Attributes: map[string]string{
			"feeBps":   strconv.FormatUint(uint64(bps), 10),
			"treasury": treasury.Hex(),
		},
	}
}

func newPauseEvent(caller common.Address, paused bool) *types.Event {
	return &types.Event{
		Type: EventTypePauseToggled,
		Attributes: map[string]string{
			"admin":  caller.Hex(),
			"paused": strconv.FormatBool(paused),
		},
	}
}

func newOfferEvent(eventType string, o *Offer) *types.Event {
	attrs := map[string]string{
		"id":      o.ID.Hex(),
		"creator": o.Creator.Hex(),
		"status":  o.Status.String(),
		"assets":  formatAssets(o.Assets),
	}
	if o.Deadline > 0 {
		attrs["deadline"] = strconv.FormatInt(o.Deadline, 10)
	}
	if o.RestrictedTo != (common.Address{}) {
		attrs["restrictedTo"] = o.RestrictedTo.Hex()
	}
	if o.Swapper != (common.Address{}) {
		attrs["swapper"] = o.Swapper.Hex()
		attrs["counterAssets"] = formatAssets(o.CounterAssets)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
