package server

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"dexther/native/dexther"
)

type createOfferRequest struct {
	Assets         []dexther.Asset  `json:"assets"`
	AcceptedTokens []common.Address `json:"acceptedTokens,omitempty"`
	RestrictedTo   common.Address   `json:"restrictedTo"`
	Deadline       int64            `json:"deadline"`
}

func (s *Server) handleCreateOffer(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	var req createOfferRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	offer, err := s.engine.CreateOffer(caller, req.Assets, req.AcceptedTokens, req.RestrictedTo, req.Deadline)
	s.metrics.ObserveOffer("create", outcomeFor(err))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.observeMoved(offer.Assets)
	writeJSON(w, http.StatusCreated, offer)
}

func (s *Server) handleGetOffer(w http.ResponseWriter, r *http.Request) {
	id, err := pathHash(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	offer, err := s.engine.GetOffer(id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

// offerTransition runs fn against the offer named in the path and writes the
// updated offer.
func (s *Server) offerTransition(w http.ResponseWriter, r *http.Request, transition string, fn func(caller common.Address, id common.Hash) (*dexther.Offer, error)) {
	caller, _ := CallerFromContext(r.Context())
	id, err := pathHash(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	offer, err := fn(caller, id)
	s.metrics.ObserveOffer(transition, outcomeFor(err))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.logger.Info("offer updated", "request_id", requestIDFrom(r.Context()), "offer", offer.ID.Hex(), "status", offer.Status.String())
	writeJSON(w, http.StatusOK, offer)
}

func (s *Server) handleOfferSwap(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Assets []dexther.Asset `json:"assets"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.offerTransition(w, r, "swap", func(caller common.Address, id common.Hash) (*dexther.Offer, error) {
		offer, err := s.engine.Swap(caller, id, req.Assets)
		if err == nil {
			s.observeMoved(offer.CounterAssets)
		}
		return offer, err
	})
}

func (s *Server) handleOfferFinalize(w http.ResponseWriter, r *http.Request) {
	s.offerTransition(w, r, "finalize", func(caller common.Address, id common.Hash) (*dexther.Offer, error) {
		offer, err := s.engine.Finalize(caller, id)
		if err == nil {
			s.observeMoved(offer.Assets, offer.CounterAssets)
			s.metrics.ObserveFees(len(offer.Fees))
		}
		return offer, err
	})
}

func (s *Server) handleOfferDecline(w http.ResponseWriter, r *http.Request) {
	s.offerTransition(w, r, "decline", s.engine.Decline)
}

func (s *Server) handleOfferCancel(w http.ResponseWriter, r *http.Request) {
	s.offerTransition(w, r, "cancel", s.engine.Cancel)
}

func (s *Server) handleOfferExpire(w http.ResponseWriter, r *http.Request) {
	s.offerTransition(w, r, "expire", func(_ common.Address, id common.Hash) (*dexther.Offer, error) {
		return s.engine.Expire(id)
	})
}
