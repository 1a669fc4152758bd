package envelope

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/owulveryck/amcp/internal/amcperr"
)

var deliveryWireNames = map[DeliveryOption]string{
	BestEffort:           "best_effort",
	Reliable:             "reliable",
	OrderedByCorrelation: "ordered",
}

var deliveryFromWire = map[string]DeliveryOption{
	"best_effort": BestEffort,
	"reliable":    Reliable,
	"ordered":     OrderedByCorrelation,
}

// ToCloudEventsMap projects the event onto exactly the CloudEvents 1.0 key
// set, carrying AMCP-specific routing/tracing metadata as extension
// attributes namespaced with "amcp" per spec section 6.
func (e *Event) ToCloudEventsMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":          e.ID,
		"source":      e.Source,
		"specversion": e.SpecVersion,
		"type":        e.Type,
	}
	if e.DataContentType != "" {
		m["datacontenttype"] = e.DataContentType
	}
	if e.DataSchema != "" {
		m["dataschema"] = e.DataSchema
	}
	if e.Subject != "" {
		m["subject"] = e.Subject
	}
	if !e.Time.IsZero() {
		m["time"] = e.Time.Format(time.RFC3339Nano)
	}
	if len(e.Data) > 0 {
		var data interface{}
		if json.Unmarshal(e.Data, &data) == nil {
			m["data"] = data
		} else {
			m["data"] = string(e.Data)
		}
	}

	m["amcptopic"] = e.Topic
	if e.CorrelationID != "" {
		m["amcpcorrelationid"] = e.CorrelationID
	}
	if !e.Sender.IsZero() {
		m["amcpsender"] = e.Sender.String()
	}
	if e.TraceID != "" {
		m["amcptraceid"] = e.TraceID
	}
	if e.SpanID != "" {
		m["amcpspanid"] = e.SpanID
	}
	if wire, ok := deliveryWireNames[e.DeliveryOptions]; ok {
		m["amcpdelivery"] = wire
	}
	for k, v := range e.Metadata {
		m["amcpmeta"+strings.ToLower(k)] = v
	}

	return m
}

// FromCloudEventsMap reconstructs an Event from its CloudEvents projection
// produced by ToCloudEventsMap, used at the A2A bridge and wire boundaries.
// The round trip is not exact: amcpsender is not parsed back into Sender,
// and metadata keys come back lowercased.
func FromCloudEventsMap(m map[string]interface{}) (*Event, error) {
	e := Event{Metadata: make(map[string]string)}

	e.ID, _ = m["id"].(string)
	e.Source, _ = m["source"].(string)
	e.SpecVersion, _ = m["specversion"].(string)
	e.Type, _ = m["type"].(string)
	e.DataContentType, _ = m["datacontenttype"].(string)
	e.DataSchema, _ = m["dataschema"].(string)
	e.Subject, _ = m["subject"].(string)

	if t, ok := m["time"].(string); ok && t != "" {
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return nil, amcperr.New(amcperr.KindValidation, "envelope", "FromCloudEventsMap", err)
		}
		e.Time = parsed
	}

	if data, ok := m["data"]; ok {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, amcperr.New(amcperr.KindValidation, "envelope", "FromCloudEventsMap", err)
		}
		e.Data = raw
	}

	e.Topic, _ = m["amcptopic"].(string)
	e.CorrelationID, _ = m["amcpcorrelationid"].(string)
	e.TraceID, _ = m["amcptraceid"].(string)
	e.SpanID, _ = m["amcpspanid"].(string)
	if wire, ok := m["amcpdelivery"].(string); ok {
		if d, ok := deliveryFromWire[wire]; ok {
			e.DeliveryOptions = d
		}
	}

	for k, v := range m {
		if strings.HasPrefix(k, "amcpmeta") {
			if s, ok := v.(string); ok {
				e.Metadata[strings.TrimPrefix(k, "amcpmeta")] = s
			}
		}
	}

	return &e, nil
}
