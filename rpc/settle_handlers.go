package rpc

import (
	"net/http"

	"bondvault/native/settle"
	"bondvault/observability"
)

type takeParams struct {
	Taker    string              `json:"taker"`
	Input    string              `json:"input"`
	Output   string              `json:"output"`
	AmountIn string              `json:"amountIn"`
	Approval *takeApprovalParams `json:"approval,omitempty"`
}

// takeApprovalParams carries an approval already verified by the signature
// gateway; the engine only checks that it binds this take.
type takeApprovalParams struct {
	Taker  string `json:"taker"`
	Amount string `json:"amount"`
	Expiry int64  `json:"expiry"`
}

type dualTakeParams struct {
	Taker    string `json:"taker"`
	Input    string `json:"input"`
	Output1  string `json:"output1"`
	Output2  string `json:"output2"`
	AmountIn string `json:"amountIn"`
}

type takeResultJSON struct {
	Fee       string `json:"fee"`
	AmountOut string `json:"amountOut"`
}

type dualTakeResultJSON struct {
	Fee        string `json:"fee"`
	AmountIn1  string `json:"amountIn1"`
	AmountIn2  string `json:"amountIn2"`
	AmountOut1 string `json:"amountOut1"`
	AmountOut2 string `json:"amountOut2"`
}

func (p *takeApprovalParams) toApproval() (*settle.Approval, error) {
	if p == nil {
		return nil, nil
	}
	taker, err := parseAddress(p.Taker)
	if err != nil {
		return nil, err
	}
	amount, err := parsePositiveBigInt(p.Amount)
	if err != nil {
		return nil, err
	}
	return &settle.Approval{Taker: taker, Amount: amount, Expiry: p.Expiry}, nil
}

func (s *Server) handleTake(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params takeParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	taker, err := parseAddress(params.Taker)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	amountIn, err := parsePositiveBigInt(params.AmountIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	approval, err := params.Approval.toApproval()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	result, err := s.services.Settle.Take(taker, params.Input, params.Output, amountIn, approval)
	observability.EngineMetrics().RecordTake(params.Input+"/"+params.Output, err)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, takeResultJSON{Fee: result.Fee.String(), AmountOut: result.AmountOut.String()})
}

func (s *Server) handleTakeDual(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params dualTakeParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	taker, err := parseAddress(params.Taker)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	amountIn, err := parsePositiveBigInt(params.AmountIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	result, err := s.services.Settle.TakeDual(taker, params.Input, params.Output1, params.Output2, amountIn)
	observability.EngineMetrics().RecordTake(params.Input+"/"+params.Output1+"+"+params.Output2, err)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, dualTakeResultJSON{
		Fee:        result.Fee.String(),
		AmountIn1:  result.AmountIn1.String(),
		AmountIn2:  result.AmountIn2.String(),
		AmountOut1: result.AmountOut1.String(),
		AmountOut2: result.AmountOut2.String(),
	})
}

func (s *Server) handleTakeRedemption(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params takeParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	taker, err := parseAddress(params.Taker)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	amountIn, err := parsePositiveBigInt(params.AmountIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	result, err := s.services.Settle.TakeSingleRedemption(taker, params.Input, params.Output, amountIn)
	observability.EngineMetrics().RecordTake(params.Input+"/"+params.Output, err)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, takeResultJSON{Fee: result.Fee.String(), AmountOut: result.AmountOut.String()})
}
