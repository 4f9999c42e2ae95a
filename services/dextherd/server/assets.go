package server

import (
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"dexther/core/state"
	"dexther/native/dexther"
	"dexther/services/dextherd/assets"
)

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.book.Listings())
}

type balanceResponse struct {
	Token   common.Address `json:"token"`
	Owner   common.Address `json:"owner"`
	ID      string         `json:"id,omitempty"`
	Balance string         `json:"balance"`
}

func optionalQuantity(raw, field string) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	v, err := dexther.ParseQuantity(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errBadRequest, field, err)
	}
	return v, nil
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	token, err := pathAddress(r, "token")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	owner, err := pathAddress(r, "owner")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	id, err := optionalQuantity(r.URL.Query().Get("id"), "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var balance *big.Int
	err = s.state.View(func(kv state.KV) error {
		var err error
		balance, err = s.book.Balance(kv, token, owner, id)
		return err
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	resp := balanceResponse{Token: token, Owner: owner, Balance: balance.String()}
	if id != nil {
		resp.ID = id.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

type approveRequest struct {
	Spender common.Address `json:"spender"`
	ID      string         `json:"id,omitempty"`
	Amount  string         `json:"amount,omitempty"`
	All     bool           `json:"all,omitempty"`
	Revoke  bool           `json:"revoke,omitempty"`
}

// handleApprove lets the caller grant spender (usually the vault) rights
// over the caller's holding.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	token, err := pathAddress(r, "token")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req approveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	approval := assets.Approval{All: req.All, Revoke: req.Revoke}
	if approval.ID, err = optionalQuantity(req.ID, "id"); err != nil {
		s.respondError(w, r, err)
		return
	}
	if approval.Amount, err = optionalQuantity(req.Amount, "amount"); err != nil {
		s.respondError(w, r, err)
		return
	}
	err = s.state.Update(func(kv state.KV) error {
		return s.book.Approve(kv, token, caller, req.Spender, approval)
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

type mintRequest struct {
	To     common.Address `json:"to"`
	ID     string         `json:"id,omitempty"`
	Amount string         `json:"amount,omitempty"`
}

// handleMint issues reference assets. Only the settlement admin may mint.
func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	token, err := pathAddress(r, "token")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req mintRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	admin, err := s.engine.Admin()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if caller != admin {
		s.respondError(w, r, dexther.ErrNotAdmin)
		return
	}
	id, err := optionalQuantity(req.ID, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	amount, err := optionalQuantity(req.Amount, "amount")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	err = s.state.Update(func(kv state.KV) error {
		return s.book.Mint(kv, token, req.To, id, amount)
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "minted"})
}
