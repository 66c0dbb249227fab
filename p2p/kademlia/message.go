package kademlia

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/LumeraProtocol/entrynode/pkg/errors"
)

const (
	// Ping the target to check if it's online
	Ping = iota
	// StoreData stores a key/value pair on the target
	StoreData
	// FindNode asks the target for the nodes closest to an id
	FindNode
	// FindValue asks the target for a value or the nodes closest to its key
	FindValue
)

// maxMessageSize bounds a single frame in either direction.
const maxMessageSize = 64 << 20

// headerSize is the fixed frame header carrying a uvarint payload length.
const headerSize = 8

func init() {
	gob.Register(&ResponseStatus{})
	gob.Register(&PingRequest{})
	gob.Register(&PingResponse{})
	gob.Register(&FindNodeRequest{})
	gob.Register(&FindNodeResponse{})
	gob.Register(&FindValueRequest{})
	gob.Register(&FindValueResponse{})
	gob.Register(&StoreDataRequest{})
	gob.Register(&StoreDataResponse{})
}

// Message structure for kademlia network
type Message struct {
	Sender      *Node       // the sender node
	Receiver    *Node       // the receiver node
	MessageType int         // the message type
	Data        interface{} // the real data for the request
	// CorrelationID joins logs across nodes for one logical request.
	CorrelationID string
}

func (m *Message) String() string {
	sender, receiver := "<nil>", "<nil>"
	if m.Sender != nil {
		sender = m.Sender.String()
	}
	if m.Receiver != nil {
		receiver = m.Receiver.String()
	}
	return fmt.Sprintf("type: %v, sender: %v, receiver: %v, data type: %T", messageTypeName(m.MessageType), sender, receiver, m.Data)
}

func messageTypeName(t int) string {
	switch t {
	case Ping:
		return "Ping"
	case StoreData:
		return "StoreData"
	case FindNode:
		return "FindNode"
	case FindValue:
		return "FindValue"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}

// ResultType specify success of message request
type ResultType int

const (
	// ResultOk means request is ok
	ResultOk ResultType = 0
	// ResultFailed meas request got failed
	ResultFailed ResultType = 1
)

// ResponseStatus defines the result of request
type ResponseStatus struct {
	Result ResultType
	ErrMsg string
}

// PingRequest checks liveness; the sender is in the envelope.
type PingRequest struct {
	SentAt int64
}

// PingResponse acknowledges a ping
type PingResponse struct {
	Status ResponseStatus
}

// FindNodeRequest defines the request data for find node
type FindNodeRequest struct {
	Target []byte
}

// FindNodeResponse defines the response data for find node
type FindNodeResponse struct {
	Status  ResponseStatus
	Closest []*Node
}

// FindValueRequest defines the request data for find value. Key is the raw store key.
type FindValueRequest struct {
	Key []byte
}

// FindValueResponse defines the response data for find value
type FindValueResponse struct {
	Status  ResponseStatus
	Closest []*Node
	Value   []byte
}

// StoreDataRequest defines the request data for store data
type StoreDataRequest struct {
	Key   []byte
	Value []byte
}

// StoreDataResponse defines the response data for store data
type StoreDataResponse struct {
	Status ResponseStatus
}

// encode builds the on-wire frame: an 8 byte header holding the payload length, then the gob payload.
func encode(message *Message) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(make([]byte, headerSize))
	if err := gob.NewEncoder(&buf).Encode(message); err != nil {
		return nil, errors.Errorf("gob encode: %w", err)
	}

	payloadLen := buf.Len() - headerSize
	if payloadLen > maxMessageSize {
		return nil, errors.New("payload too big")
	}

	out := buf.Bytes()
	binary.PutUvarint(out[:headerSize], uint64(payloadLen))
	return out, nil
}

// decode reads one frame from conn.
func decode(conn io.Reader) (*Message, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, err
	}

	length, err := binary.ReadUvarint(bytes.NewReader(header))
	if err != nil {
		return nil, errors.Errorf("parse header length: %w", err)
	}
	if length > maxMessageSize {
		return nil, errors.New("payload too big")
	}

	lr := &io.LimitedReader{R: conn, N: int64(length)}
	msg := &Message{}
	if err := gob.NewDecoder(lr).Decode(msg); err != nil {
		return nil, errors.Errorf("gob decode: %w", err)
	}
	// keep the stream aligned if gob left bytes behind
	if lr.N > 0 {
		_, _ = io.CopyN(io.Discard, lr, lr.N)
	}
	return msg, nil
}
