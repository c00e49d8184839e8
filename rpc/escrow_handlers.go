package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"swapd/core"
	"swapd/native/escrow"
	"swapd/native/token"
	"swapd/observability"
)

const (
	codeEscrowInvalidParams = -32021
	codeEscrowNotFound      = -32022
	codeEscrowForbidden     = -32023
	codeEscrowConflict      = -32024
	codeEscrowInternal      = -32025
)

type escrowMakeParams struct {
	Maker   string `json:"maker"`
	AssetX  string `json:"assetX"`
	AssetY  string `json:"assetY"`
	Deposit string `json:"deposit"`
	Receive string `json:"receive"`
}

type escrowNamespaceParams struct {
	Maker  string `json:"maker"`
	AssetX string `json:"assetX"`
}

type escrowAcceptParams struct {
	Taker  string `json:"taker"`
	Maker  string `json:"maker"`
	AssetX string `json:"assetX"`
}

type escrowJSON struct {
	Record  string `json:"record"`
	Maker   string `json:"maker"`
	AssetX  string `json:"assetX"`
	AssetY  string `json:"assetY"`
	Receive string `json:"receive"`
	Custody string `json:"custody"`
	Locked  string `json:"locked"`
}

func (s *Server) handleEscrowMake(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params escrowMakeParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	maker, err := parseBech32Address(params.Maker)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	assetX, err := parseBech32Address(params.AssetX)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	assetY, err := parseBech32Address(params.AssetY)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	deposit, err := parseAmount(params.Deposit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	receive, err := parseAmount(params.Receive)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}

	recordAddr, _, err := escrow.RecordAddress(maker, assetX)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeEscrowInternal, "internal", err.Error())
		return
	}
	custody, err := escrow.CustodyAddress(recordAddr, assetX)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeEscrowInternal, "internal", err.Error())
		return
	}
	makerHoldingX, err := token.AssociatedAddress(maker, assetX)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeEscrowInternal, "internal", err.Error())
		return
	}

	ins := escrow.MakeInstruction(maker, recordAddr, assetX, assetY, makerHoldingX, custody, escrow.MakeArgs{
		Deposit: deposit,
		Receive: receive,
	})
	if !s.submit(w, req, "escrow_make", ins) {
		return
	}
	writeResult(w, req.ID, escrowJSON{
		Record:  recordAddr.String(),
		Maker:   maker.String(),
		AssetX:  assetX.String(),
		AssetY:  assetY.String(),
		Receive: strconv.FormatUint(receive, 10),
		Custody: custody.String(),
		Locked:  strconv.FormatUint(deposit, 10),
	})
}

func (s *Server) handleEscrowAccept(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params escrowAcceptParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	taker, err := parseBech32Address(params.Taker)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	maker, err := parseBech32Address(params.Maker)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	assetX, err := parseBech32Address(params.AssetX)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}

	record, recordAddr, err := s.node.EscrowRecord(maker, assetX)
	if err != nil {
		status, code, message := mapQueryError(err)
		writeError(w, status, req.ID, code, message, err.Error())
		return
	}
	custody, err := escrow.CustodyAddress(recordAddr, assetX)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeEscrowInternal, "internal", err.Error())
		return
	}
	takerHoldingX, err := token.AssociatedAddress(taker, assetX)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeEscrowInternal, "internal", err.Error())
		return
	}
	takerHoldingY, err := token.AssociatedAddress(taker, record.AssetY)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeEscrowInternal, "internal", err.Error())
		return
	}
	makerHoldingY, err := token.AssociatedAddress(maker, record.AssetY)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeEscrowInternal, "internal", err.Error())
		return
	}

	ins := escrow.AcceptInstruction(taker, maker, recordAddr, assetX, record.AssetY, custody, takerHoldingX, takerHoldingY, makerHoldingY)
	if !s.submit(w, req, "escrow_accept", ins) {
		return
	}
	writeResult(w, req.ID, map[string]string{
		"record": recordAddr.String(),
		"status": "settled",
	})
}

func (s *Server) handleEscrowRefund(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params escrowNamespaceParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	maker, err := parseBech32Address(params.Maker)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	assetX, err := parseBech32Address(params.AssetX)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}

	_, recordAddr, err := s.node.EscrowRecord(maker, assetX)
	if err != nil {
		status, code, message := mapQueryError(err)
		writeError(w, status, req.ID, code, message, err.Error())
		return
	}
	custody, err := escrow.CustodyAddress(recordAddr, assetX)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeEscrowInternal, "internal", err.Error())
		return
	}
	makerHoldingX, err := token.AssociatedAddress(maker, assetX)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeEscrowInternal, "internal", err.Error())
		return
	}

	ins := escrow.RefundInstruction(maker, assetX, makerHoldingX, recordAddr, custody)
	if !s.submit(w, req, "escrow_refund", ins) {
		return
	}
	writeResult(w, req.ID, map[string]string{
		"record": recordAddr.String(),
		"status": "refunded",
	})
}

func (s *Server) handleEscrowGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params escrowNamespaceParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	maker, err := parseBech32Address(params.Maker)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	assetX, err := parseBech32Address(params.AssetX)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}

	record, recordAddr, err := s.node.EscrowRecord(maker, assetX)
	if err != nil {
		status, code, message := mapQueryError(err)
		writeError(w, status, req.ID, code, message, err.Error())
		return
	}
	locked, custody, err := s.node.HoldingBalance(recordAddr, assetX)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeEscrowInternal, "internal", err.Error())
		return
	}
	writeResult(w, req.ID, escrowJSON{
		Record:  recordAddr.String(),
		Maker:   record.Maker.String(),
		AssetX:  record.AssetX.String(),
		AssetY:  record.AssetY.String(),
		Receive: strconv.FormatUint(record.Receive, 10),
		Custody: custody.String(),
		Locked:  strconv.FormatUint(locked, 10),
	})
}

// submit runs the instruction through the node and writes the mapped error
// on failure. Returns true when the instruction committed.
func (s *Server) submit(w http.ResponseWriter, req *RPCRequest, method string, ins escrow.Instruction) bool {
	metrics := observability.ModuleMetrics()
	start := time.Now()
	err := s.node.SubmitInstruction(ins)
	if err != nil {
		metrics.ObserveRequest(method, "error", time.Since(start))
		status, code, message := mapExecutionError(err)
		metrics.ObserveError(method, message)
		writeError(w, status, req.ID, code, message, err.Error())
		return false
	}
	metrics.ObserveRequest(method, "ok", time.Since(start))
	return true
}

func decodeSingleParam(w http.ResponseWriter, req *RPCRequest, out interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", "exactly one parameter object expected")
		return false
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return false
	}
	return true
}

func parseAmount(value string) (uint64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("amount required")
	}
	amount, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return amount, nil
}

func mapExecutionError(err error) (int, int, string) {
	switch {
	case errors.Is(err, escrow.ErrMissingSignature):
		return http.StatusForbidden, codeEscrowForbidden, "forbidden"
	case errors.Is(err, escrow.ErrUninitialized),
		errors.Is(err, token.ErrMintNotFound),
		errors.Is(err, token.ErrAccountNotFound):
		return http.StatusNotFound, codeEscrowNotFound, "not_found"
	case errors.Is(err, escrow.ErrAlreadyInitialized):
		return http.StatusConflict, codeEscrowConflict, "conflict"
	case errors.Is(err, escrow.ErrInsufficientFunding),
		errors.Is(err, token.ErrInsufficientFunds),
		errors.Is(err, token.ErrInsufficientRent):
		return http.StatusConflict, codeEscrowConflict, "insufficient_funds"
	case errors.Is(err, escrow.ErrInvalidArgument),
		errors.Is(err, escrow.ErrAddressMismatch),
		errors.Is(err, escrow.ErrWrongProgramOwner),
		errors.Is(err, escrow.ErrWrongDataSize),
		errors.Is(err, escrow.ErrNotEnoughAccounts):
		return http.StatusBadRequest, codeEscrowInvalidParams, "invalid_params"
	default:
		return http.StatusInternalServerError, codeEscrowInternal, "internal"
	}
}

func mapQueryError(err error) (int, int, string) {
	if errors.Is(err, core.ErrNoOpenRecord) {
		return http.StatusNotFound, codeEscrowNotFound, "not_found"
	}
	return http.StatusInternalServerError, codeEscrowInternal, "internal"
}
