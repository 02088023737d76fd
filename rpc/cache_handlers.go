package rpc

import (
	"net/http"

	"bondvault/observability"
)

type cacheInitializeParams struct {
	Signer string `json:"signer"`
	Asset  string `json:"asset"`
	Admin  string `json:"admin"`
}

type cacheSetYieldsParams struct {
	Signer          string `json:"signer"`
	Asset           string `json:"asset"`
	GrossYieldPPM   uint64 `json:"grossYieldPpm"`
	CurrentYieldPPM uint64 `json:"currentYieldPpm"`
}

type cacheAccrueParams struct {
	Signer string `json:"signer"`
	Asset  string `json:"asset"`
}

type cacheBurnParams struct {
	Signer     string `json:"signer"`
	Asset      string `json:"asset"`
	Adjustment string `json:"adjustment"`
	TargetNav  string `json:"targetNav"`
}

func (s *Server) handleCacheInitialize(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params cacheInitializeParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	signer, err := parseAddress(params.Signer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	admin, err := parseAddress(params.Admin)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	state, err := s.services.Cache.Initialize(signer, params.Asset, admin)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{
		"asset": state.Asset,
		"admin": formatAddress(state.Admin),
	})
}

func (s *Server) handleCacheSetYields(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params cacheSetYieldsParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	signer, err := parseAddress(params.Signer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.services.Cache.SetYields(signer, params.Asset, params.GrossYieldPPM, params.CurrentYieldPPM); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleCacheAccrue(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params cacheAccrueParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	signer, err := parseAddress(params.Signer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	minted, err := s.services.Cache.Accrue(signer, params.Asset)
	observability.EngineMetrics().RecordAccrual(params.Asset, err)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"minted": minted.String()})
}

func (s *Server) handleCacheBurnForNav(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params cacheBurnParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	signer, err := parseAddress(params.Signer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	adjustment, err := parsePositiveBigInt(params.Adjustment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	targetNav, err := parsePositiveBigInt(params.TargetNav)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.services.Cache.BurnForNavIncrease(signer, params.Asset, adjustment, targetNav); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}
