package state

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/rlp"

	"bondvault/native/cache"
	"bondvault/native/offers"
	"bondvault/native/pricing"
	"bondvault/native/redemption"
	"bondvault/native/token"
	"bondvault/storage"
)

var errNilDatabase = errors.New("state: database not configured")

var (
	offerPrefix   = "offers/pair/"
	dualPrefix    = "offers/dual/"
	singlePrefix  = "offers/redeem/"
	requestPrefix = "redemption/request/"
	noncePrefix   = "redemption/nonce/"
	cachePrefix   = "cache/state/"
	assetPrefix   = "token/asset/"
	balancePrefix = "token/balance/"
)

// Manager persists every record the native engines read and write, keyed by
// deterministic prefixes and encoded with RLP. It satisfies the narrow state
// interfaces each engine declares.
type Manager struct {
	db storage.Database
}

// NewManager constructs a state manager over the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) get(key string, out interface{}) (bool, error) {
	if m == nil || m.db == nil {
		return false, errNilDatabase
	}
	raw, err := m.db.Get([]byte(key))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %s: %w", key, err)
	}
	return true, nil
}

func (m *Manager) put(key string, value interface{}) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	return m.db.Put([]byte(key), encoded)
}

func (m *Manager) delete(key string) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	return m.db.Delete([]byte(key))
}

func addressHex(addr [20]byte) string {
	return hex.EncodeToString(addr[:])
}

func toUnsigned(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}

func toSigned(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("state: value %d exceeds int64 range", v)
	}
	return int64(v), nil
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

// --- offers ---

type storedVector struct {
	AnchorTime      uint64
	BasePrice       *big.Int
	AnnualRatePPM   uint64
	IntervalSeconds uint64
}

type storedOffer struct {
	Input            string
	Output           string
	FeeBps           uint32
	RequiresApproval bool
	Permissionless   bool
	Vectors          []storedVector
	Closed           bool
}

func offerKey(input, output string) string {
	return offerPrefix + offers.PairKey(input, output)
}

func (m *Manager) OfferGet(input, output string) (*offers.Offer, bool, error) {
	var stored storedOffer
	ok, err := m.get(offerKey(input, output), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	offer := &offers.Offer{
		Input:            stored.Input,
		Output:           stored.Output,
		FeeBps:           stored.FeeBps,
		RequiresApproval: stored.RequiresApproval,
		Permissionless:   stored.Permissionless,
		Curve:            &pricing.Curve{},
		Closed:           stored.Closed,
	}
	for _, v := range stored.Vectors {
		anchor, err := toSigned(v.AnchorTime)
		if err != nil {
			return nil, false, err
		}
		interval, err := toSigned(v.IntervalSeconds)
		if err != nil {
			return nil, false, err
		}
		offer.Curve.Vectors = append(offer.Curve.Vectors, pricing.Vector{
			AnchorTime:      anchor,
			BasePrice:       nonNil(v.BasePrice),
			AnnualRatePPM:   v.AnnualRatePPM,
			IntervalSeconds: interval,
		})
	}
	return offer, true, nil
}

func (m *Manager) OfferPut(offer *offers.Offer) error {
	if offer == nil {
		return fmt.Errorf("state: nil offer")
	}
	stored := storedOffer{
		Input:            token.NormalizeAsset(offer.Input),
		Output:           token.NormalizeAsset(offer.Output),
		FeeBps:           offer.FeeBps,
		RequiresApproval: offer.RequiresApproval,
		Permissionless:   offer.Permissionless,
		Closed:           offer.Closed,
	}
	if offer.Curve != nil {
		for _, v := range offer.Curve.Vectors {
			stored.Vectors = append(stored.Vectors, storedVector{
				AnchorTime:      toUnsigned(v.AnchorTime),
				BasePrice:       nonNil(v.BasePrice),
				AnnualRatePPM:   v.AnnualRatePPM,
				IntervalSeconds: toUnsigned(v.IntervalSeconds),
			})
		}
	}
	return m.put(offerKey(offer.Input, offer.Output), stored)
}

type storedDualOffer struct {
	Input         string
	Output1       string
	Output2       string
	Price1        *big.Int
	Price2        *big.Int
	SplitRatioBps uint32
	FeeBps        uint32
	StartTime     uint64
	EndTime       uint64
	Closed        bool
}

func dualKey(input, output1, output2 string) string {
	return dualPrefix + offers.PairKey(input, output1) + "/" + token.NormalizeAsset(output2)
}

func (m *Manager) DualOfferGet(input, output1, output2 string) (*offers.DualRedemptionOffer, bool, error) {
	var stored storedDualOffer
	ok, err := m.get(dualKey(input, output1, output2), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	start, err := toSigned(stored.StartTime)
	if err != nil {
		return nil, false, err
	}
	end, err := toSigned(stored.EndTime)
	if err != nil {
		return nil, false, err
	}
	return &offers.DualRedemptionOffer{
		Input:         stored.Input,
		Output1:       stored.Output1,
		Output2:       stored.Output2,
		Price1:        nonNil(stored.Price1),
		Price2:        nonNil(stored.Price2),
		SplitRatioBps: stored.SplitRatioBps,
		FeeBps:        stored.FeeBps,
		StartTime:     start,
		EndTime:       end,
		Closed:        stored.Closed,
	}, true, nil
}

func (m *Manager) DualOfferPut(offer *offers.DualRedemptionOffer) error {
	if offer == nil {
		return fmt.Errorf("state: nil dual redemption offer")
	}
	stored := storedDualOffer{
		Input:         token.NormalizeAsset(offer.Input),
		Output1:       token.NormalizeAsset(offer.Output1),
		Output2:       token.NormalizeAsset(offer.Output2),
		Price1:        nonNil(offer.Price1),
		Price2:        nonNil(offer.Price2),
		SplitRatioBps: offer.SplitRatioBps,
		FeeBps:        offer.FeeBps,
		StartTime:     toUnsigned(offer.StartTime),
		EndTime:       toUnsigned(offer.EndTime),
		Closed:        offer.Closed,
	}
	return m.put(dualKey(offer.Input, offer.Output1, offer.Output2), stored)
}

type storedSingleOffer struct {
	Input     string
	Output    string
	FeeBps    uint32
	StartTime uint64
	EndTime   uint64
	Requested *big.Int
	Executed  *big.Int
	Closed    bool
}

func singleKey(input, output string) string {
	return singlePrefix + offers.PairKey(input, output)
}

func (m *Manager) SingleOfferGet(input, output string) (*offers.SingleRedemptionOffer, bool, error) {
	var stored storedSingleOffer
	ok, err := m.get(singleKey(input, output), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	start, err := toSigned(stored.StartTime)
	if err != nil {
		return nil, false, err
	}
	end, err := toSigned(stored.EndTime)
	if err != nil {
		return nil, false, err
	}
	return &offers.SingleRedemptionOffer{
		Input:     stored.Input,
		Output:    stored.Output,
		FeeBps:    stored.FeeBps,
		StartTime: start,
		EndTime:   end,
		Requested: nonNil(stored.Requested),
		Executed:  nonNil(stored.Executed),
		Closed:    stored.Closed,
	}, true, nil
}

func (m *Manager) SingleOfferPut(offer *offers.SingleRedemptionOffer) error {
	if offer == nil {
		return fmt.Errorf("state: nil single redemption offer")
	}
	stored := storedSingleOffer{
		Input:     token.NormalizeAsset(offer.Input),
		Output:    token.NormalizeAsset(offer.Output),
		FeeBps:    offer.FeeBps,
		StartTime: toUnsigned(offer.StartTime),
		EndTime:   toUnsigned(offer.EndTime),
		Requested: nonNil(offer.Requested),
		Executed:  nonNil(offer.Executed),
		Closed:    offer.Closed,
	}
	return m.put(singleKey(offer.Input, offer.Output), stored)
}

// --- redemption requests and nonce counters ---

type storedRequest struct {
	Input     string
	Output    string
	Redeemer  [20]byte
	Nonce     uint64
	Amount    *big.Int
	ExpiresAt uint64
	CreatedAt uint64
	Status    uint8
}

func requestKey(input, output string, redeemer [20]byte, nonce uint64) string {
	return requestPrefix + offers.PairKey(input, output) + "/" + addressHex(redeemer) + "/" + strconv.FormatUint(nonce, 10)
}

func (m *Manager) RequestGet(input, output string, redeemer [20]byte, nonce uint64) (*redemption.Request, bool, error) {
	var stored storedRequest
	ok, err := m.get(requestKey(input, output, redeemer, nonce), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	expires, err := toSigned(stored.ExpiresAt)
	if err != nil {
		return nil, false, err
	}
	created, err := toSigned(stored.CreatedAt)
	if err != nil {
		return nil, false, err
	}
	request := &redemption.Request{
		Input:     stored.Input,
		Output:    stored.Output,
		Redeemer:  stored.Redeemer,
		Nonce:     stored.Nonce,
		Amount:    nonNil(stored.Amount),
		ExpiresAt: expires,
		CreatedAt: created,
		Status:    redemption.RequestStatus(stored.Status),
	}
	if !request.Status.Valid() {
		return nil, false, fmt.Errorf("state: invalid request status %d", stored.Status)
	}
	return request, true, nil
}

func (m *Manager) RequestPut(request *redemption.Request) error {
	if request == nil {
		return fmt.Errorf("state: nil redemption request")
	}
	stored := storedRequest{
		Input:     token.NormalizeAsset(request.Input),
		Output:    token.NormalizeAsset(request.Output),
		Redeemer:  request.Redeemer,
		Nonce:     request.Nonce,
		Amount:    nonNil(request.Amount),
		ExpiresAt: toUnsigned(request.ExpiresAt),
		CreatedAt: toUnsigned(request.CreatedAt),
		Status:    uint8(request.Status),
	}
	return m.put(requestKey(request.Input, request.Output, request.Redeemer, request.Nonce), stored)
}

func (m *Manager) RequestDelete(input, output string, redeemer [20]byte, nonce uint64) error {
	return m.delete(requestKey(input, output, redeemer, nonce))
}

func nonceKey(redeemer [20]byte) string {
	return noncePrefix + addressHex(redeemer)
}

func (m *Manager) NonceGet(redeemer [20]byte) (uint64, error) {
	var next uint64
	ok, err := m.get(nonceKey(redeemer), &next)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return next, nil
}

func (m *Manager) NoncePut(redeemer [20]byte, next uint64) error {
	return m.put(nonceKey(redeemer), next)
}

// --- cache accrual ---

type storedCacheState struct {
	Asset           string
	Admin           [20]byte
	GrossYieldPPM   uint64
	CurrentYieldPPM uint64
	LowestSupply    *big.Int
	LastAccrualTime uint64
}

func cacheKey(asset string) string {
	return cachePrefix + token.NormalizeAsset(asset)
}

func (m *Manager) CacheGet(asset string) (*cache.State, bool, error) {
	var stored storedCacheState
	ok, err := m.get(cacheKey(asset), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	last, err := toSigned(stored.LastAccrualTime)
	if err != nil {
		return nil, false, err
	}
	return &cache.State{
		Asset:           stored.Asset,
		Admin:           stored.Admin,
		GrossYieldPPM:   stored.GrossYieldPPM,
		CurrentYieldPPM: stored.CurrentYieldPPM,
		LowestSupply:    stored.LowestSupply,
		LastAccrualTime: last,
	}, true, nil
}

func (m *Manager) CachePut(state *cache.State) error {
	if state == nil {
		return fmt.Errorf("state: nil cache state")
	}
	stored := storedCacheState{
		Asset:           token.NormalizeAsset(state.Asset),
		Admin:           state.Admin,
		GrossYieldPPM:   state.GrossYieldPPM,
		CurrentYieldPPM: state.CurrentYieldPPM,
		LowestSupply:    nonNil(state.LowestSupply),
		LastAccrualTime: toUnsigned(state.LastAccrualTime),
	}
	return m.put(cacheKey(state.Asset), stored)
}

// --- token book ---

type storedAsset struct {
	Symbol        string
	Decimals      uint8
	MintAuthority bool
	TotalSupply   *big.Int
}

func assetKey(symbol string) string {
	return assetPrefix + token.NormalizeAsset(symbol)
}

func (m *Manager) AssetGet(symbol string) (*token.Asset, bool, error) {
	var stored storedAsset
	ok, err := m.get(assetKey(symbol), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &token.Asset{
		Symbol:        stored.Symbol,
		Decimals:      stored.Decimals,
		MintAuthority: stored.MintAuthority,
		TotalSupply:   nonNil(stored.TotalSupply),
	}, true, nil
}

func (m *Manager) AssetPut(asset *token.Asset) error {
	if asset == nil {
		return fmt.Errorf("state: nil asset")
	}
	stored := storedAsset{
		Symbol:        token.NormalizeAsset(asset.Symbol),
		Decimals:      asset.Decimals,
		MintAuthority: asset.MintAuthority,
		TotalSupply:   nonNil(asset.TotalSupply),
	}
	return m.put(assetKey(asset.Symbol), stored)
}

func balanceKey(symbol string, addr [20]byte) string {
	return balancePrefix + token.NormalizeAsset(symbol) + "/" + addressHex(addr)
}

func (m *Manager) BalanceGet(symbol string, addr [20]byte) (*big.Int, error) {
	balance := new(big.Int)
	ok, err := m.get(balanceKey(symbol, addr), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

func (m *Manager) BalancePut(symbol string, addr [20]byte, amount *big.Int) error {
	return m.put(balanceKey(symbol, addr), nonNil(amount))
}
