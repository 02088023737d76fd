package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"bondvault/native/cache"
	"bondvault/native/common"
	"bondvault/native/offers"
	"bondvault/native/pricing"
	"bondvault/native/redemption"
	"bondvault/native/settle"
	"bondvault/native/token"
	"bondvault/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRateLimited    = -32020
	codeForbidden      = -32030
	codeNotFound       = -32031
	codeConflict       = -32032
	codeRejected       = -32033
)

// Services bundles the engines the RPC server fronts.
type Services struct {
	Offers     *offers.Book
	Settle     *settle.Engine
	Redemption *redemption.Engine
	Cache      *cache.Engine
	Ledger     token.Ledger
}

// Options carries the transport-level server settings.
type Options struct {
	// AuthToken guards mutating methods. An empty token rejects them all.
	AuthToken string
	// RateLimit is the sustained per-client request rate in requests per
	// second; RateBurst bounds short spikes.
	RateLimit float64
	RateBurst int
}

type Server struct {
	services Services

	authToken string
	limit     rate.Limit
	burst     int

	mu       sync.Mutex
	visitors map[string]*rate.Limiter

	metrics interface {
		Observe(method string, status int, duration time.Duration)
		RecordThrottle(reason string)
	}
	nowFn func() int64
}

// NewServer constructs a JSON-RPC server over the supplied engines.
func NewServer(services Services, opts Options) *Server {
	limit := rate.Limit(opts.RateLimit)
	if limit <= 0 {
		limit = rate.Limit(25)
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 50
	}
	return &Server{
		services:  services,
		authToken: strings.TrimSpace(opts.AuthToken),
		limit:     limit,
		burst:     burst,
		visitors:  make(map[string]*rate.Limiter),
		metrics:   observability.RPCMetrics(),
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the time source consulted by query handlers.
func (s *Server) SetNowFunc(now func() int64) {
	if now == nil {
		s.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	s.nowFn = now
}

// Handler returns the HTTP handler serving the RPC endpoint alongside the
// health and metrics endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Start serves the RPC endpoint on the supplied address, blocking until the
// listener fails.
func (s *Server) Start(addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

type instrumentedWriter struct {
	http.ResponseWriter
	status int
}

func (w *instrumentedWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	writer := &instrumentedWriter{ResponseWriter: w, status: http.StatusOK}
	method := s.dispatch(writer, r)
	if s.metrics != nil {
		s.metrics.Observe(method, writer.status, time.Since(started))
	}
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) string {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	if !s.allowSource(clientID(r)) {
		if s.metrics != nil {
			s.metrics.RecordThrottle("rate_limit")
		}
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return "throttled"
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return "invalid"
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return "invalid"
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return "invalid"
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return "invalid"
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return "invalid"
	}

	switch req.Method {
	case "offers_create":
		s.authed(w, r, req, s.handleOfferCreate)
	case "offers_close":
		s.authed(w, r, req, s.handleOfferClose)
	case "offers_addVector":
		s.authed(w, r, req, s.handleOfferAddVector)
	case "offers_price":
		s.handleOfferPrice(w, r, req)
	case "offers_apy":
		s.handleOfferAPY(w, r, req)
	case "offers_createDual":
		s.authed(w, r, req, s.handleDualOfferCreate)
	case "offers_closeDual":
		s.authed(w, r, req, s.handleDualOfferClose)
	case "offers_createRedemption":
		s.authed(w, r, req, s.handleSingleOfferCreate)
	case "offers_closeRedemption":
		s.authed(w, r, req, s.handleSingleOfferClose)
	case "settle_take":
		s.authed(w, r, req, s.handleTake)
	case "settle_takeDual":
		s.authed(w, r, req, s.handleTakeDual)
	case "settle_takeRedemption":
		s.authed(w, r, req, s.handleTakeRedemption)
	case "redemption_nextNonce":
		s.handleRedemptionNextNonce(w, r, req)
	case "redemption_create":
		s.authed(w, r, req, s.handleRedemptionCreate)
	case "redemption_cancel":
		s.authed(w, r, req, s.handleRedemptionCancel)
	case "redemption_fulfill":
		s.authed(w, r, req, s.handleRedemptionFulfill)
	case "cache_initialize":
		s.authed(w, r, req, s.handleCacheInitialize)
	case "cache_setYields":
		s.authed(w, r, req, s.handleCacheSetYields)
	case "cache_accrue":
		s.authed(w, r, req, s.handleCacheAccrue)
	case "cache_burnForNav":
		s.authed(w, r, req, s.handleCacheBurnForNav)
	case "token_balance":
		s.handleTokenBalance(w, r, req)
	case "token_supply":
		s.handleTokenSupply(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
	return req.Method
}

type handlerFunc func(http.ResponseWriter, *http.Request, *RPCRequest)

func (s *Server) authed(w http.ResponseWriter, r *http.Request, req *RPCRequest, next handlerFunc) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	next(w, r, req)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func (s *Server) allowSource(id string) bool {
	s.mu.Lock()
	limiter, ok := s.visitors[id]
	if !ok {
		limiter = rate.NewLimiter(s.limit, s.burst)
		s.visitors[id] = limiter
	}
	s.mu.Unlock()
	return limiter.Allow()
}

func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeEngineError maps the engines' sentinel errors onto stable RPC codes.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	status, code := classify(err)
	writeError(w, status, id, code, err.Error(), nil)
}

func classify(err error) (int, int) {
	switch {
	case errors.Is(err, offers.ErrNotAuthorized),
		errors.Is(err, redemption.ErrNotAuthorized),
		errors.Is(err, cache.ErrNotAuthorized),
		errors.Is(err, settle.ErrTakerNotAllowed),
		errors.Is(err, settle.ErrMissingApproverSignature),
		errors.Is(err, settle.ErrInvalidApproverSignature),
		errors.Is(err, settle.ErrApprovalExpired):
		return http.StatusForbidden, codeForbidden
	case errors.Is(err, offers.ErrOfferNotFound),
		errors.Is(err, redemption.ErrRequestNotFound),
		errors.Is(err, cache.ErrNotInitialized),
		errors.Is(err, token.ErrUnknownAsset):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, offers.ErrOfferExists),
		errors.Is(err, offers.ErrOfferClosed),
		errors.Is(err, redemption.ErrNonceMismatch),
		errors.Is(err, redemption.ErrInvalidRequestStatus),
		errors.Is(err, redemption.ErrRequestExpired),
		errors.Is(err, cache.ErrAlreadyInitialized),
		errors.Is(err, cache.ErrNoChange),
		errors.Is(err, cache.ErrNavMismatch),
		errors.Is(err, cache.ErrAdjustmentExceedsReserve),
		errors.Is(err, common.ErrKillSwitchActivated),
		errors.Is(err, settle.ErrWindowClosed),
		errors.Is(err, settle.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrMintAuthorityNotHeld),
		errors.Is(err, token.ErrAssetExists),
		errors.Is(err, pricing.ErrNoActiveVector),
		errors.Is(err, pricing.ErrVectorOrdering),
		errors.Is(err, pricing.ErrMaxVectors):
		return http.StatusConflict, codeConflict
	case errors.Is(err, offers.ErrFeeOutOfRange),
		errors.Is(err, offers.ErrSplitOutOfRange),
		errors.Is(err, offers.ErrInvalidWindow),
		errors.Is(err, offers.ErrInvalidPrice),
		errors.Is(err, offers.ErrInvalidAsset),
		errors.Is(err, settle.ErrInvalidAmount),
		errors.Is(err, redemption.ErrInvalidAmount),
		errors.Is(err, cache.ErrInvalidAmount),
		errors.Is(err, token.ErrInvalidAmount),
		errors.Is(err, pricing.ErrInvalidVector):
		return http.StatusBadRequest, codeRejected
	default:
		return http.StatusInternalServerError, codeServerError
	}
}

func parseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address: %w", err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("invalid address: expected %d bytes, got %d", len(addr), len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

func formatAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func parsePositiveBigInt(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}
