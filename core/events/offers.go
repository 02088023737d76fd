package events

import (
	"strconv"

	"bondvault/core/types"
)

const (
	// TypeOfferCreated is emitted when the operator opens a new exchange pair.
	TypeOfferCreated = "offers.created"
	// TypeOfferClosed is emitted when an offer stops accepting takes.
	TypeOfferClosed = "offers.closed"
	// TypeVectorAppended is emitted when a pricing segment is added to an
	// offer's curve.
	TypeVectorAppended = "offers.vector_appended"
)

type OfferCreated struct {
	Input  string
	Output string
	FeeBps uint32
}

func (OfferCreated) EventType() string { return TypeOfferCreated }

func (e OfferCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeOfferCreated,
		Attributes: map[string]string{
			"input":  normalizeAsset(e.Input),
			"output": normalizeAsset(e.Output),
			"feeBps": strconv.FormatUint(uint64(e.FeeBps), 10),
		},
	}
}

type OfferClosed struct {
	Input  string
	Output string
}

func (OfferClosed) EventType() string { return TypeOfferClosed }

func (e OfferClosed) Event() *types.Event {
	return &types.Event{
		Type: TypeOfferClosed,
		Attributes: map[string]string{
			"input":  normalizeAsset(e.Input),
			"output": normalizeAsset(e.Output),
		},
	}
}

type VectorAppended struct {
	Input      string
	Output     string
	AnchorTime int64
}

func (VectorAppended) EventType() string { return TypeVectorAppended }

func (e VectorAppended) Event() *types.Event {
	return &types.Event{
		Type: TypeVectorAppended,
		Attributes: map[string]string{
			"input":      normalizeAsset(e.Input),
			"output":     normalizeAsset(e.Output),
			"anchorTime": strconv.FormatInt(e.AnchorTime, 10),
		},
	}
}
