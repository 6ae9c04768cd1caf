// Package event 定义服务间传递的领域事件。
// 每条事件都是一个带显式 eventType 与 version 的信封，payload 按类型解码为具体结构体。
package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Type string

const (
	StockReserved  Type = "stock-reserved"
	StockConfirmed Type = "stock-confirmed"
	StockReleased  Type = "stock-released"
	StockUpdated   Type = "stock-updated"

	OrderCreated   Type = "order-created"
	OrderConfirmed Type = "order-confirmed"
	OrderCancelled Type = "order-cancelled"
	OrderShipped   Type = "order-shipped"
	OrderDelivered Type = "order-delivered"

	ProductCreated Type = "product-created"
	ProductDeleted Type = "product-deleted"
)

// CurrentVersion 是本服务写出的 schema 版本。
const CurrentVersion = 1

const (
	TopicInventory = "inventory-events"
	TopicOrder     = "order-events"
	TopicProduct   = "product-events"
)

// HeaderEventType 与 HeaderEventID 会随 kafka 消息头一起发送，消费者无需解析 body 即可路由。
const (
	HeaderEventType = "event_type"
	HeaderEventID   = "event_id"
)

var (
	ErrUnknownType        = errors.New("unknown event type")
	ErrUnsupportedVersion = errors.New("unsupported event version")
)

// Envelope 是事件的线上格式。
type Envelope struct {
	EventID    string          `json:"eventId"`
	EventType  Type            `json:"eventType"`
	Version    int             `json:"version"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// Payload 由所有具体事件结构体实现，把类型和结构体绑定在一起。
type Payload interface {
	EventType() Type
	EventKey() string
}

// New 为一个 payload 生成新的信封。
func New(p Payload, now time.Time) (Envelope, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return Envelope{}, errors.Wrapf(err, "marshal %s payload", p.EventType())
	}
	return Envelope{
		EventID:    uuid.NewString(),
		EventType:  p.EventType(),
		Version:    CurrentVersion,
		Key:        p.EventKey(),
		OccurredAt: now.UTC(),
		Payload:    raw,
	}, nil
}

// MustNew 用于 payload 一定可以序列化的场景（全部是基础类型字段）。
func MustNew(p Payload, now time.Time) Envelope {
	env, err := New(p, now)
	if err != nil {
		panic(err)
	}
	return env
}

// Topic 按事件族路由到主题。
func (e Envelope) Topic() string {
	return TopicFor(e.EventType)
}

func TopicFor(t Type) string {
	switch t {
	case StockReserved, StockConfirmed, StockReleased, StockUpdated:
		return TopicInventory
	case OrderCreated, OrderConfirmed, OrderCancelled, OrderShipped, OrderDelivered:
		return TopicOrder
	case ProductCreated, ProductDeleted:
		return TopicProduct
	}
	return ""
}

// Decode 根据 (eventType, version) 把 payload 解码成具体结构体。
func Decode(e Envelope) (Payload, error) {
	if e.Version != CurrentVersion {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "%s v%d", e.EventType, e.Version)
	}
	var p Payload
	switch e.EventType {
	case StockReserved:
		p = &StockReservedPayload{}
	case StockConfirmed:
		p = &StockConfirmedPayload{}
	case StockReleased:
		p = &StockReleasedPayload{}
	case StockUpdated:
		p = &StockUpdatedPayload{}
	case OrderCreated:
		p = &OrderCreatedPayload{}
	case OrderConfirmed:
		p = &OrderConfirmedPayload{}
	case OrderCancelled:
		p = &OrderCancelledPayload{}
	case OrderShipped:
		p = &OrderShippedPayload{}
	case OrderDelivered:
		p = &OrderDeliveredPayload{}
	case ProductCreated:
		p = &ProductCreatedPayload{}
	case ProductDeleted:
		p = &ProductDeletedPayload{}
	default:
		return nil, errors.Wrapf(ErrUnknownType, "%q", e.EventType)
	}
	if err := json.Unmarshal(e.Payload, p); err != nil {
		return nil, errors.Wrapf(err, "decode %s payload", e.EventType)
	}
	return p, nil
}

// Parse 把消息体解析为信封并解码 payload。
func Parse(body []byte) (Envelope, Payload, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, nil, errors.Wrap(err, "decode event envelope")
	}
	p, err := Decode(env)
	return env, p, err
}
