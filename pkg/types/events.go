package types

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// EventType tags an ExecutionEvent payload.
type EventType int32

const (
	EventPaymentSuccess EventType = iota
	EventAssetCreated
	EventOrderNew
	EventOrderFill
	EventOrderPartialFill
	EventOrderUpdate
	EventOrderCancel
	EventFuturesOrderNew
	EventFuturesOrderFill
	EventFuturesOrderPartialFill
	EventFuturesOrderUpdate
	EventFuturesOrderCancel
	EventFuturesLiquidate
)

// ExecutionEvent is one typed event pushed by a controller during handling
// of a single transaction.
type ExecutionEvent struct {
	Type    EventType
	Payload []byte
}

// ExecutionResultBody collects the events a transaction produced.
type ExecutionResultBody struct {
	Events []ExecutionEvent
}

// ExecutionResult is stored in the block next to the serialized
// transaction. Error holds the stable message of the domain error that
// failed the transaction, empty on success.
type ExecutionResult struct {
	Body  ExecutionResultBody
	Error string
}

func SuccessResult(body ExecutionResultBody) ExecutionResult {
	return ExecutionResult{Body: body}
}

func FailedResult(err error) ExecutionResult {
	return ExecutionResult{Error: err.Error()}
}

func (r ExecutionResult) Failed() bool { return r.Error != "" }

// PaymentEventBody reports a completed transfer.
type PaymentEventBody struct {
	Sender   AccountPubKey
	Receiver AccountPubKey
	AssetID  AssetID
	Quantity uint64
}

func (e *PaymentEventBody) Marshal() []byte {
	b := appendBytes(nil, 1, e.Sender[:])
	b = appendBytes(b, 2, e.Receiver[:])
	b = appendUint64(b, 3, e.AssetID)
	return appendUint64(b, 4, e.Quantity)
}

func (e *PaymentEventBody) Unmarshal(b []byte) error {
	var verr error
	err := walkFields(b, func(num protowire.Number, val uint64, raw []byte) {
		switch num {
		case 1, 2:
			pk, err := PubKeyFromBytes(raw)
			if err != nil {
				verr = ErrDeserialization
				return
			}
			if num == 1 {
				e.Sender = pk
			} else {
				e.Receiver = pk
			}
		case 3:
			e.AssetID = val
		case 4:
			e.Quantity = val
		}
	})
	if err != nil {
		return err
	}
	return verr
}

// AssetCreatedEventBody reports a freshly minted asset.
type AssetCreatedEventBody struct {
	AssetID AssetID
	Owner   AccountPubKey
}

func (e *AssetCreatedEventBody) Marshal() []byte {
	b := appendUint64(nil, 1, e.AssetID)
	return appendBytes(b, 2, e.Owner[:])
}

func (e *AssetCreatedEventBody) Unmarshal(b []byte) error {
	var verr error
	err := walkFields(b, func(num protowire.Number, val uint64, raw []byte) {
		switch num {
		case 1:
			e.AssetID = val
		case 2:
			pk, err := PubKeyFromBytes(raw)
			if err != nil {
				verr = ErrDeserialization
				return
			}
			e.Owner = pk
		}
	})
	if err != nil {
		return err
	}
	return verr
}

// OrderEventBody is shared by the order lifecycle events; the ExecutionEvent
// type distinguishes new/fill/partial-fill/update/cancel and spot/futures.
type OrderEventBody struct {
	Account  AccountPubKey
	OrderID  uint64
	Side     uint64
	Price    uint64
	Quantity uint64
}

func (e *OrderEventBody) Marshal() []byte {
	b := appendBytes(nil, 1, e.Account[:])
	b = appendUint64(b, 2, e.OrderID)
	b = appendUint64(b, 3, e.Side)
	b = appendUint64(b, 4, e.Price)
	return appendUint64(b, 5, e.Quantity)
}

func (e *OrderEventBody) Unmarshal(b []byte) error {
	var verr error
	err := walkFields(b, func(num protowire.Number, val uint64, raw []byte) {
		switch num {
		case 1:
			pk, err := PubKeyFromBytes(raw)
			if err != nil {
				verr = ErrDeserialization
				return
			}
			e.Account = pk
		case 2:
			e.OrderID = val
		case 3:
			e.Side = val
		case 4:
			e.Price = val
		case 5:
			e.Quantity = val
		}
	})
	if err != nil {
		return err
	}
	return verr
}

// NewExecutionEvent serializes body under the given type tag.
func NewExecutionEvent(t EventType, body interface{ Marshal() []byte }) ExecutionEvent {
	return ExecutionEvent{Type: t, Payload: body.Marshal()}
}
