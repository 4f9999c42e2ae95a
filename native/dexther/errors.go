package dexther

import "errors"

var (
	// ErrInvalidSignature is returned when a recovered signer differs from
	// the party declared in the order.
	ErrInvalidSignature = errors.New("dexther: invalid signature")
	// ErrNonceReused is returned when either party's nonce was consumed by an
	// earlier swap.
	ErrNonceReused = errors.New("dexther: nonce already used")
	// ErrNotAdmin is returned when a privileged call comes from anyone but
	// the current admin.
	ErrNotAdmin = errors.New("dexther: not admin")
	// ErrTransferFailed wraps the rejection reported by an asset ledger.
	ErrTransferFailed = errors.New("dexther: transfer failed")

	ErrInvalidOrder     = errors.New("dexther: invalid order")
	ErrInvalidAsset     = errors.New("dexther: invalid asset")
	ErrUnknownAsset     = errors.New("dexther: asset not registered")
	ErrAssetRegistered  = errors.New("dexther: asset already registered")
	ErrLengthMismatch   = errors.New("dexther: asset array length mismatch")
	ErrDomainMismatch   = errors.New("dexther: stored domain separator differs from configured deployment")
	ErrInvalidFee       = errors.New("dexther: fee exceeds 10000 basis points")
	ErrTreasuryRequired = errors.New("dexther: non-zero fee requires a treasury")
	ErrZeroAddress      = errors.New("dexther: zero address")
	ErrNotBootstrapped  = errors.New("dexther: engine not bootstrapped")

	ErrOfferNotFound    = errors.New("dexther: offer not found")
	ErrOfferStatus      = errors.New("dexther: offer status does not allow this action")
	ErrOfferExpired     = errors.New("dexther: offer expired")
	ErrNotOfferCreator  = errors.New("dexther: caller is not the offer creator")
	ErrOfferRestricted  = errors.New("dexther: offer restricted to another counterparty")
	ErrTokenNotAccepted = errors.New("dexther: token not accepted by offer")

	errNilState    = errors.New("dexther: state not configured")
	errNilRegistry = errors.New("dexther: asset registry not configured")
)
