// Package envelope implements the CloudEvents-compatible event envelope
// (spec component C1): a typed, immutable-once-built message carrying the
// routing topic, correlation id, delivery semantics and AMCP metadata
// alongside the standard CloudEvents 1.0 attributes.
package envelope

import (
	"time"

	"github.com/google/uuid"
	"github.com/owulveryck/amcp/internal/amcperr"
	"github.com/owulveryck/amcp/internal/topic"
)

const component = "envelope"

// DeliveryOption selects the bus's delivery semantics for an event.
type DeliveryOption string

const (
	BestEffort           DeliveryOption = "BEST_EFFORT"
	Reliable             DeliveryOption = "RELIABLE"
	OrderedByCorrelation DeliveryOption = "ORDERED_BY_CORRELATION"
)

// Event is the envelope every publish/subscribe operation carries. It is
// immutable once Build() returns it; the bus and its subscribers only ever
// read it.
type Event struct {
	ID              string
	SpecVersion     string
	Type            string
	Source          string
	Subject         string
	Time            time.Time
	Topic           string
	DataContentType string
	DataSchema      string
	Data            []byte
	CorrelationID   string
	Sender          AgentID
	DeliveryOptions DeliveryOption
	Metadata        map[string]string
	TraceID         string
	SpanID          string
}

// Builder constructs an Event, validating required fields and filling
// defaults (id, time, specVersion) exactly as spec section 4.1 describes.
type Builder struct {
	e   Event
	err error
}

// NewBuilder starts a builder for an event published from source on topic.
func NewBuilder(source, topic string) *Builder {
	return &Builder{e: Event{
		Source:          source,
		Topic:           topic,
		DeliveryOptions: BestEffort,
		Metadata:        make(map[string]string),
	}}
}

func (b *Builder) WithID(id string) *Builder            { b.e.ID = id; return b }
func (b *Builder) WithType(t string) *Builder            { b.e.Type = t; return b }
func (b *Builder) WithSubject(s string) *Builder         { b.e.Subject = s; return b }
func (b *Builder) WithTime(t time.Time) *Builder         { b.e.Time = t; return b }
func (b *Builder) WithDataContentType(c string) *Builder { b.e.DataContentType = c; return b }
func (b *Builder) WithDataSchema(s string) *Builder      { b.e.DataSchema = s; return b }
func (b *Builder) WithData(d []byte) *Builder            { b.e.Data = d; return b }
func (b *Builder) WithCorrelationID(c string) *Builder   { b.e.CorrelationID = c; return b }
func (b *Builder) WithSender(a AgentID) *Builder         { b.e.Sender = a; return b }
func (b *Builder) WithDelivery(d DeliveryOption) *Builder {
	b.e.DeliveryOptions = d
	return b
}
func (b *Builder) WithTraceContext(traceID, spanID string) *Builder {
	b.e.TraceID = traceID
	b.e.SpanID = spanID
	return b
}
func (b *Builder) WithMetadata(key, value string) *Builder {
	b.e.Metadata[key] = value
	return b
}

// Build validates and finalizes the event, auto-filling id/time/specVersion
// when absent.
func (b *Builder) Build() (*Event, error) {
	if b.err != nil {
		return nil, b.err
	}

	e := b.e

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	if e.SpecVersion == "" {
		e.SpecVersion = "1.0"
	}
	if e.DataContentType == "" {
		e.DataContentType = "application/json"
	}
	if e.DeliveryOptions == "" {
		e.DeliveryOptions = BestEffort
	}

	if e.ID == "" || e.SpecVersion == "" || e.Source == "" || e.Type == "" {
		return nil, amcperr.New(amcperr.KindValidation, component, "Build", errMissingRequiredField)
	}
	if err := topic.Validate(e.Topic); err != nil {
		return nil, amcperr.New(amcperr.KindValidation, component, "Build", err)
	}
	switch e.DeliveryOptions {
	case BestEffort, Reliable, OrderedByCorrelation:
	default:
		return nil, amcperr.New(amcperr.KindValidation, component, "Build", errInvalidDeliveryOption)
	}

	return &e, nil
}
