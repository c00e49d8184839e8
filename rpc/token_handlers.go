package rpc

import (
	"errors"
	"net/http"
	"strconv"

	"swapd/native/token"
)

type tokenBalanceParams struct {
	Wallet string `json:"wallet"`
	Mint   string `json:"mint"`
}

type tokenBalanceResult struct {
	Wallet  string `json:"wallet"`
	Mint    string `json:"mint"`
	Holding string `json:"holding"`
	Balance string `json:"balance"`
}

type nativeBalanceParams struct {
	Address string `json:"address"`
}

type nativeBalanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

func (s *Server) handleTokenBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenBalanceParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	wallet, err := parseBech32Address(params.Wallet)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	mint, err := parseBech32Address(params.Mint)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	balance, holding, err := s.node.HoldingBalance(wallet, mint)
	if err != nil {
		if errors.Is(err, token.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, req.ID, codeEscrowNotFound, "not_found", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "internal", err.Error())
		return
	}
	writeResult(w, req.ID, tokenBalanceResult{
		Wallet:  wallet.String(),
		Mint:    mint.String(),
		Holding: holding.String(),
		Balance: strconv.FormatUint(balance, 10),
	})
}

func (s *Server) handleNativeBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params nativeBalanceParams
	if !decodeSingleParam(w, req, &params) {
		return
	}
	addr, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	balance, err := s.node.NativeBalance(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "internal", err.Error())
		return
	}
	writeResult(w, req.ID, nativeBalanceResult{
		Address: addr.String(),
		Balance: strconv.FormatUint(balance, 10),
	})
}
