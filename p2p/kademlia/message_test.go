package kademlia

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeStoreData(t *testing.T) {
	sender := &Node{ID: bytes.Repeat([]byte{1}, 32), IP: "10.0.0.1", Port: 4445, Version: "v1"}
	msg := &Message{
		Sender:        sender,
		MessageType:   StoreData,
		Data:          &StoreDataRequest{Key: []byte("e_abc"), Value: []byte(`{"name":"doc1"}`)},
		CorrelationID: "req-1",
	}

	frame, err := encode(msg)
	require.NoError(t, err)

	// two frames back to back must decode independently
	stream := bytes.NewReader(append(append([]byte{}, frame...), frame...))
	for i := 0; i < 2; i++ {
		got, err := decode(stream)
		require.NoError(t, err)
		assert.Equal(t, StoreData, got.MessageType)
		assert.Equal(t, "req-1", got.CorrelationID)
		assert.Equal(t, sender, got.Sender)

		req, ok := got.Data.(*StoreDataRequest)
		require.True(t, ok)
		assert.Equal(t, []byte("e_abc"), req.Key)
		assert.Equal(t, []byte(`{"name":"doc1"}`), req.Value)
	}
}

func TestDecodeRejectsOversizedFrame(t *testing.T) {
	header := make([]byte, headerSize)
	binary.PutUvarint(header, maxMessageSize+1)

	_, err := decode(bytes.NewReader(header))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload too big")
}

func TestDecodeTruncated(t *testing.T) {
	frame, err := encode(&Message{MessageType: Ping, Data: &PingRequest{}})
	require.NoError(t, err)

	_, err = decode(bytes.NewReader(frame[:len(frame)-2]))
	assert.Error(t, err)
}

func TestMessageString(t *testing.T) {
	msg := &Message{MessageType: FindValue, Data: &FindValueRequest{}}
	assert.Contains(t, msg.String(), "FindValue")
	assert.Contains(t, msg.String(), "<nil>")
}
