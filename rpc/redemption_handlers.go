package rpc

import (
	"net/http"

	"bondvault/observability"
)

type redemptionCreateParams struct {
	Signer    string `json:"signer"`
	Redeemer  string `json:"redeemer"`
	Input     string `json:"input"`
	Output    string `json:"output"`
	Amount    string `json:"amount"`
	Nonce     uint64 `json:"nonce"`
	ExpiresAt int64  `json:"expiresAt"`
}

type redemptionIDParams struct {
	Signer   string `json:"signer"`
	Input    string `json:"input"`
	Output   string `json:"output"`
	Redeemer string `json:"redeemer"`
	Nonce    uint64 `json:"nonce"`
}

type redemptionAccountParams struct {
	Redeemer string `json:"redeemer"`
}

type requestJSON struct {
	Input     string `json:"input"`
	Output    string `json:"output"`
	Redeemer  string `json:"redeemer"`
	Nonce     uint64 `json:"nonce"`
	Amount    string `json:"amount"`
	ExpiresAt int64  `json:"expiresAt"`
	CreatedAt int64  `json:"createdAt"`
}

func (s *Server) handleRedemptionNextNonce(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params redemptionAccountParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	redeemer, err := parseAddress(params.Redeemer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	nonce, err := s.services.Redemption.NextNonce(redeemer)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"nonce": nonce})
}

func (s *Server) handleRedemptionCreate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params redemptionCreateParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	signer, err := parseAddress(params.Signer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	redeemer, err := parseAddress(params.Redeemer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	request, err := s.services.Redemption.CreateRequest(signer, redeemer, params.Input, params.Output, amount, params.Nonce, params.ExpiresAt)
	observability.EngineMetrics().RecordRedemption("create", err)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, requestJSON{
		Input:     request.Input,
		Output:    request.Output,
		Redeemer:  formatAddress(request.Redeemer),
		Nonce:     request.Nonce,
		Amount:    request.Amount.String(),
		ExpiresAt: request.ExpiresAt,
		CreatedAt: request.CreatedAt,
	})
}

func (s *Server) handleRedemptionCancel(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params redemptionIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	signer, err := parseAddress(params.Signer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	redeemer, err := parseAddress(params.Redeemer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	err = s.services.Redemption.CancelRequest(signer, params.Input, params.Output, redeemer, params.Nonce)
	observability.EngineMetrics().RecordRedemption("cancel", err)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleRedemptionFulfill(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params redemptionIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	signer, err := parseAddress(params.Signer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	redeemer, err := parseAddress(params.Redeemer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	amountOut, err := s.services.Redemption.FulfillRequest(signer, params.Input, params.Output, redeemer, params.Nonce)
	observability.EngineMetrics().RecordRedemption("fulfill", err)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"amountOut": amountOut.String()})
}
