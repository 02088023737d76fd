package rpc

import (
	"net/http"

	"bondvault/native/offers"
	"bondvault/native/pricing"
)

type offerCreateParams struct {
	Signer           string `json:"signer"`
	Input            string `json:"input"`
	Output           string `json:"output"`
	FeeBps           uint32 `json:"feeBps"`
	RequiresApproval bool   `json:"requiresApproval"`
	Permissionless   bool   `json:"permissionless"`
}

type offerPairParams struct {
	Signer string `json:"signer,omitempty"`
	Input  string `json:"input"`
	Output string `json:"output"`
}

type offerVectorParams struct {
	Signer          string `json:"signer"`
	Input           string `json:"input"`
	Output          string `json:"output"`
	AnchorTime      int64  `json:"anchorTime"`
	BasePrice       string `json:"basePrice"`
	AnnualRatePPM   uint64 `json:"annualRatePpm"`
	IntervalSeconds int64  `json:"intervalSeconds"`
}

type dualOfferCreateParams struct {
	Signer        string `json:"signer"`
	Input         string `json:"input"`
	Output1       string `json:"output1"`
	Output2       string `json:"output2"`
	Price1        string `json:"price1"`
	Price2        string `json:"price2"`
	SplitRatioBps uint32 `json:"splitRatioBps"`
	FeeBps        uint32 `json:"feeBps"`
	StartTime     int64  `json:"startTime"`
	EndTime       int64  `json:"endTime"`
}

type dualOfferCloseParams struct {
	Signer  string `json:"signer"`
	Input   string `json:"input"`
	Output1 string `json:"output1"`
	Output2 string `json:"output2"`
}

type singleOfferCreateParams struct {
	Signer    string `json:"signer"`
	Input     string `json:"input"`
	Output    string `json:"output"`
	FeeBps    uint32 `json:"feeBps"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
}

type offerJSON struct {
	Input            string `json:"input"`
	Output           string `json:"output"`
	FeeBps           uint32 `json:"feeBps"`
	RequiresApproval bool   `json:"requiresApproval"`
	Permissionless   bool   `json:"permissionless"`
	Closed           bool   `json:"closed"`
}

func offerToJSON(o *offers.Offer) offerJSON {
	return offerJSON{
		Input:            o.Input,
		Output:           o.Output,
		FeeBps:           o.FeeBps,
		RequiresApproval: o.RequiresApproval,
		Permissionless:   o.Permissionless,
		Closed:           o.Closed,
	}
}

func (s *Server) handleOfferCreate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params offerCreateParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	signer, err := parseAddress(params.Signer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	offer, err := s.services.Offers.CreateOffer(signer, params.Input, params.Output, params.FeeBps, params.RequiresApproval, params.Permissionless)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, offerToJSON(offer))
}

func (s *Server) handleOfferClose(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params offerPairParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	signer, err := parseAddress(params.Signer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.services.Offers.CloseOffer(signer, params.Input, params.Output); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleOfferAddVector(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params offerVectorParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	signer, err := parseAddress(params.Signer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	basePrice, err := parsePositiveBigInt(params.BasePrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	vector := pricing.Vector{
		AnchorTime:      params.AnchorTime,
		BasePrice:       basePrice,
		AnnualRatePPM:   params.AnnualRatePPM,
		IntervalSeconds: params.IntervalSeconds,
	}
	if err := s.services.Offers.AppendVector(signer, params.Input, params.Output, vector); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleOfferPrice(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params offerPairParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	price, err := s.services.Offers.ActivePrice(params.Input, params.Output, s.nowFn())
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"price": price.String()})
}

func (s *Server) handleOfferAPY(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params offerPairParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	apy, err := s.services.Offers.APY(params.Input, params.Output, s.nowFn())
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"apyPpm": apy})
}

func (s *Server) handleDualOfferCreate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params dualOfferCreateParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	signer, err := parseAddress(params.Signer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	price1, err := parsePositiveBigInt(params.Price1)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	price2, err := parsePositiveBigInt(params.Price2)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	def := &offers.DualRedemptionOffer{
		Input:         params.Input,
		Output1:       params.Output1,
		Output2:       params.Output2,
		Price1:        price1,
		Price2:        price2,
		SplitRatioBps: params.SplitRatioBps,
		FeeBps:        params.FeeBps,
		StartTime:     params.StartTime,
		EndTime:       params.EndTime,
	}
	created, err := s.services.Offers.CreateDualRedemptionOffer(signer, def)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"key": created.Key()})
}

func (s *Server) handleDualOfferClose(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params dualOfferCloseParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	signer, err := parseAddress(params.Signer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.services.Offers.CloseDualRedemptionOffer(signer, params.Input, params.Output1, params.Output2); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleSingleOfferCreate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params singleOfferCreateParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	signer, err := parseAddress(params.Signer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	created, err := s.services.Offers.CreateSingleRedemptionOffer(signer, params.Input, params.Output, params.FeeBps, params.StartTime, params.EndTime)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"key": created.Key()})
}

func (s *Server) handleSingleOfferClose(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params offerPairParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	signer, err := parseAddress(params.Signer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.services.Offers.CloseSingleRedemptionOffer(signer, params.Input, params.Output); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}
