package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	dcrypto "dexther/crypto"
	"dexther/native/dexther"
	dotel "dexther/observability/otel"
)

const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func pathAddress(r *http.Request, name string) (common.Address, error) {
	addr, err := dexther.ParseAddress(chi.URLParam(r, name))
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %s: %v", errBadRequest, name, err)
	}
	return addr, nil
}

func pathHash(r *http.Request, name string) (common.Hash, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	decoded, err := hexutil.Decode(raw)
	if err != nil || len(decoded) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: %s must be a 32-byte hex value", errBadRequest, name)
	}
	return common.BytesToHash(decoded), nil
}

type domainResponse struct {
	Name              string         `json:"name"`
	Version           string         `json:"version"`
	ChainID           string         `json:"chainId"`
	VerifyingContract common.Address `json:"verifyingContract"`
	DomainSeparator   common.Hash    `json:"domainSeparator"`
	TypeHash          common.Hash    `json:"typeHash"`
	TypeString        string         `json:"typeString"`
}

func (s *Server) handleDomain(w http.ResponseWriter, r *http.Request) {
	domain := s.engine.Domain()
	writeJSON(w, http.StatusOK, domainResponse{
		Name:              dexther.DomainName,
		Version:           dexther.DomainVersion,
		ChainID:           domain.ChainID.String(),
		VerifyingContract: domain.VerifyingContract,
		DomainSeparator:   s.engine.DomainSeparator(),
		TypeHash:          dexther.SwapTypeHash,
		TypeString:        dexther.SwapTypeString,
	})
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	var order dexther.SwapOrder
	if err := decodeJSON(r, &order); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := order.Validate(); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]common.Hash{"digest": s.engine.Digest(order)})
}

type performSwapRequest struct {
	Order                 dexther.SwapOrder `json:"order"`
	InitiatorSignature    string            `json:"initiatorSignature"`
	CounterpartySignature string            `json:"counterpartySignature"`
}

func (s *Server) handlePerformSwap(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	var req performSwapRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	sigA, err := dcrypto.DecodeSignature(req.InitiatorSignature)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("initiator: %w", dexther.ErrInvalidSignature))
		return
	}
	sigB, err := dcrypto.DecodeSignature(req.CounterpartySignature)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("counterparty: %w", dexther.ErrInvalidSignature))
		return
	}

	ctx, span := dotel.Tracer().Start(r.Context(), "dexther.PerformSwap")
	defer span.End()
	span.SetAttributes(
		attribute.String("dexther.relayer", caller.Hex()),
		attribute.String("dexther.initiator", req.Order.Initiator.Party.Hex()),
		attribute.String("dexther.counterparty", req.Order.Counterparty.Party.Hex()),
	)

	receipt, err := s.engine.PerformSwap(caller, req.Order, sigA, sigB)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcomeFor(err))
		s.metrics.ObserveSwap(outcomeFor(err))
		s.respondError(w, r, err)
		return
	}
	span.SetAttributes(attribute.String("dexther.digest", receipt.Digest.Hex()))
	s.metrics.ObserveSwap("settled")
	s.observeMoved(receipt.InitiatorAssets, receipt.CounterpartyAssets)
	s.metrics.ObserveFees(len(receipt.Fees))

	// The swap is committed at this point; a persistence failure is logged
	// and the receipt is still returned.
	if err := s.receipts.Save(ctx, receipt); err != nil {
		s.logger.Error("persist receipt", "request_id", requestIDFrom(ctx), "digest", receipt.Digest.Hex(), "error", err)
	}
	s.logger.Info("swap settled", "request_id", requestIDFrom(ctx), "digest", receipt.Digest.Hex())
	writeJSON(w, http.StatusCreated, receipt)
}

func (s *Server) observeMoved(lists ...[]dexther.Asset) {
	counts := make(map[dexther.AssetKind]int)
	for _, list := range lists {
		for _, asset := range list {
			counts[asset.Kind]++
		}
	}
	for kind, n := range counts {
		s.metrics.ObserveAssetsMoved(kind.String(), n)
	}
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	digest, err := pathHash(r, "digest")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	receipt, err := s.receipts.Get(r.Context(), digest)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	party, err := pathAddress(r, "party")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, r, fmt.Errorf("%w: limit", errBadRequest))
			return
		}
	}
	receipts, err := s.receipts.ListByParty(r.Context(), party, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if receipts == nil {
		receipts = []*dexther.Receipt{}
	}
	writeJSON(w, http.StatusOK, receipts)
}

type nonceResponse struct {
	Party common.Address `json:"party"`
	Nonce uint64         `json:"nonce"`
	Used  bool           `json:"used"`
}

func (s *Server) handleNonce(w http.ResponseWriter, r *http.Request) {
	party, err := pathAddress(r, "party")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	nonce, err := strconv.ParseUint(chi.URLParam(r, "nonce"), 10, 64)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: nonce", errBadRequest))
		return
	}
	used, err := s.engine.NonceUsed(party, nonce)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonceResponse{Party: party, Nonce: nonce, Used: used})
}
