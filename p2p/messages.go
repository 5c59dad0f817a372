package p2p

import (
	"encoding/json"
	"fmt"

	"ledgerd/blockchain"
)

// MessageType tags a protocol message. Exactly three kinds exist; anything
// else is ignored and logged at the protocol boundary.
type MessageType string

const (
	MessageTypeChainRequest   MessageType = "chain_request"
	MessageTypeChainResponse  MessageType = "chain_response"
	MessageTypeBlockBroadcast MessageType = "block_broadcast"
)

// ErrUnknownMessageType is returned when a decoded envelope carries a tag
// outside the protocol's message set.
type ErrUnknownMessageType struct {
	Type MessageType
}

func (e ErrUnknownMessageType) Error() string {
	return fmt.Sprintf("unknown message type: %q", string(e.Type))
}

// Message is the tagged envelope every gossip payload travels in.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ChainRequestPayload asks peers for their full chain. An empty To
// addresses all peers (startup sync); otherwise only the named peer
// responds. From identifies the requester so responses can be routed back.
type ChainRequestPayload struct {
	From string `json:"from"`
	To   string `json:"to,omitempty"`
}

// ChainResponsePayload carries the sender's full current chain, addressed
// to the requester.
type ChainResponsePayload struct {
	To    string            `json:"to"`
	Chain *blockchain.Chain `json:"chain"`
}

// BlockBroadcastPayload announces a single freshly mined block to all peers.
type BlockBroadcastPayload struct {
	Block *blockchain.Block `json:"block"`
}

// NewMessage wraps a payload in a tagged envelope.
func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: msgType, Payload: json.RawMessage(raw)}, nil
}

// ParsePayload unmarshals the envelope payload into the given value.
func (m *Message) ParsePayload(payload interface{}) error {
	return json.Unmarshal(m.Payload, payload)
}

// Encode serializes the envelope for the wire.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage parses a wire envelope and rejects unknown tags so the
// caller can ignore-and-log them with the sender attached.
func DecodeMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("malformed message: %w", err)
	}
	switch msg.Type {
	case MessageTypeChainRequest, MessageTypeChainResponse, MessageTypeBlockBroadcast:
		return &msg, nil
	default:
		return nil, ErrUnknownMessageType{Type: msg.Type}
	}
}
