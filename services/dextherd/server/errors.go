package server

import (
	"encoding/json"
	"errors"
	"net/http"

	nativecommon "dexther/native/common"
	"dexther/native/dexther"
	"dexther/native/tokens"
	"dexther/services/dextherd/assets"
	"dexther/services/dextherd/storage"
)

var errBadRequest = errors.New("invalid request")

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, errorResponse{Error: reason})
}

// statusFor maps engine and ledger errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, dexther.ErrTransferFailed):
		// Must precede the tokens cases: ledger rejections wrap them.
		return http.StatusUnprocessableEntity
	case errors.Is(err, dexther.ErrNotAdmin),
		errors.Is(err, dexther.ErrNotOfferCreator),
		errors.Is(err, dexther.ErrOfferRestricted),
		errors.Is(err, tokens.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, dexther.ErrOfferNotFound),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, assets.ErrUnknownToken),
		errors.Is(err, tokens.ErrNonexistentToken):
		return http.StatusNotFound
	case errors.Is(err, dexther.ErrNonceReused),
		errors.Is(err, dexther.ErrOfferStatus),
		errors.Is(err, dexther.ErrOfferExpired),
		errors.Is(err, nativecommon.ErrModulePaused),
		errors.Is(err, tokens.ErrAlreadyMinted):
		return http.StatusConflict
	case errors.Is(err, dexther.ErrInvalidSignature),
		errors.Is(err, dexther.ErrTokenNotAccepted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest),
		errors.Is(err, dexther.ErrInvalidOrder),
		errors.Is(err, dexther.ErrInvalidAsset),
		errors.Is(err, dexther.ErrUnknownAsset),
		errors.Is(err, dexther.ErrLengthMismatch),
		errors.Is(err, dexther.ErrInvalidFee),
		errors.Is(err, dexther.ErrTreasuryRequired),
		errors.Is(err, dexther.ErrZeroAddress),
		errors.Is(err, assets.ErrUnsupported),
		errors.Is(err, tokens.ErrInvalidAmount),
		errors.Is(err, tokens.ErrZeroAddress),
		errors.Is(err, tokens.ErrInsufficientBalance):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// outcomeFor classifies err for metric labels.
func outcomeFor(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, dexther.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, dexther.ErrNonceReused):
		return "nonce_reused"
	case errors.Is(err, dexther.ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, nativecommon.ErrModulePaused):
		return "paused"
	case errors.Is(err, dexther.ErrNotAdmin), errors.Is(err, dexther.ErrNotOfferCreator), errors.Is(err, dexther.ErrOfferRestricted):
		return "forbidden"
	}
	if statusFor(err) < http.StatusInternalServerError {
		return "rejected"
	}
	return "error"
}

// respondError writes err with its mapped status. Internal errors are not
// echoed to the client.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "request_id", requestIDFrom(r.Context()), "route", r.URL.Path, "error", err)
		writeError(w, status, http.StatusText(status))
		return
	}
	writeError(w, status, err.Error())
}
