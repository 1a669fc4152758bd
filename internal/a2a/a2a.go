// Package a2a implements the A2A bridge (spec component C7): bidirectional
// translation between internal bus events and an external request/response
// agent protocol carried over HTTP/JSON, grounded on the teacher's
// A2ATaskPublisher/A2ATaskSubscriber pairing in internal/agenthub but
// rebuilt against plain net/http+encoding/json instead of the generated
// gRPC client, since the wire format this spec mandates is CloudEvents/JSON
// over HTTP rather than protobuf streaming.
package a2a

import (
	"strings"
	"time"
)

const component = "a2a"

// MessageType classifies an external A2A message, derived from the
// internal topic that produced it.
type MessageType string

const (
	MessageRequest  MessageType = "REQUEST"
	MessageResponse MessageType = "RESPONSE"
	MessageError    MessageType = "ERROR"
	MessageEvent    MessageType = "EVENT"
)

// Message is the wire body for both POST <endpoint>/messages and POST
// <endpoint>/requests, per spec section 6.
type Message struct {
	RequestID     string            `json:"requestId"`
	MessageType   MessageType       `json:"messageType"`
	SenderID      string            `json:"senderId"`
	TargetService string            `json:"targetService"`
	Payload       interface{}       `json:"payload"`
	Timestamp     time.Time         `json:"timestamp"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

const (
	headerContentType   = "Content-Type"
	headerA2AVersion    = "A2A-Version"
	headerCorrelationID = "X-AMCP-Correlation-ID"
	a2aVersion          = "1.0"
	contentTypeJSON     = "application/json"

	metadataNamespace = "amcp."
)

// targetServiceFromTopic derives targetService from the first dotted
// segment of an internal topic, per spec section 4.5.
func targetServiceFromTopic(topic string) string {
	if i := strings.IndexByte(topic, '.'); i >= 0 {
		return topic[:i]
	}
	return topic
}

// messageTypeFromTopic derives the external message type from whether the
// topic contains "request", "response" or "error" as a segment, defaulting
// to EVENT, per spec section 4.5.
func messageTypeFromTopic(topic string) MessageType {
	segments := strings.Split(topic, ".")
	for _, s := range segments {
		switch s {
		case "request":
			return MessageRequest
		case "response":
			return MessageResponse
		case "error":
			return MessageError
		}
	}
	return MessageEvent
}

// inboundTopic synthesizes the internal topic an arriving A2A message is
// published on: a2a.message.<messagetype-lowercased>, per spec section 4.5.
func inboundTopic(mt MessageType) string {
	return "a2a.message." + strings.ToLower(string(mt))
}
