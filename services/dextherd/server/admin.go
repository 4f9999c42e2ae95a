package server

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

type adminInfoResponse struct {
	Admin    common.Address `json:"admin"`
	Treasury common.Address `json:"treasury"`
	FeeBps   uint32         `json:"feeBps"`
	Paused   bool           `json:"paused"`
}

func (s *Server) adminInfo() (adminInfoResponse, error) {
	var info adminInfoResponse
	var err error
	if info.Admin, err = s.engine.Admin(); err != nil {
		return info, err
	}
	if info.Treasury, err = s.engine.Treasury(); err != nil {
		return info, err
	}
	if info.FeeBps, err = s.engine.CurrentFee(); err != nil {
		return info, err
	}
	if info.Paused, err = s.engine.Paused(); err != nil {
		return info, err
	}
	return info, nil
}

func (s *Server) handleAdminInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.adminInfo()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// respondAdmin reports the configuration after a successful admin call.
func (s *Server) respondAdmin(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.handleAdminInfo(w, r)
}

func (s *Server) handleSetAdmin(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	var req struct {
		Admin common.Address `json:"admin"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	err := s.engine.SetAdmin(caller, req.Admin)
	if err == nil {
		s.logger.Info("admin changed", "request_id", requestIDFrom(r.Context()), "component", "admin")
	}
	s.respondAdmin(w, r, err)
}

func (s *Server) handleUpdateFee(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	var req struct {
		FeeBps uint32 `json:"feeBps"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondAdmin(w, r, s.engine.UpdateFee(caller, req.FeeBps))
}

func (s *Server) handleSetTreasury(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	var req struct {
		Treasury common.Address `json:"treasury"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondAdmin(w, r, s.engine.SetTreasury(caller, req.Treasury))
}

func (s *Server) handleSetPaused(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	var req struct {
		Paused bool `json:"paused"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondAdmin(w, r, s.engine.SetPaused(caller, req.Paused))
}
