package peer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ledgerlab/minichain/foundation/blockchain/database"
)

// ErrParse is returned when a message from a peer can't be understood.
var ErrParse = errors.New("unable to parse peer message")

// MessageType identifies the kind of message exchanged between peers.
type MessageType uint8

// Set of message types.
const (
	QueryLatest        MessageType = 0
	QueryAll           MessageType = 1
	ResponseBlockchain MessageType = 2
)

// String implements the fmt.Stringer interface.
func (mt MessageType) String() string {
	switch mt {
	case QueryLatest:
		return "QueryLatest"
	case QueryAll:
		return "QueryAll"
	case ResponseBlockchain:
		return "ResponseBlockchain"
	}
	return fmt.Sprintf("MessageType(%d)", uint8(mt))
}

// Message is the envelope for everything sent between peers. Responses carry
// the blocks as a JSON string in Data; queries carry no data.
type Message struct {
	Type MessageType `json:"type"`
	Data *string     `json:"data"`
}

// NewQueryLatest constructs a request for the peer's latest block.
func NewQueryLatest() Message {
	return Message{Type: QueryLatest}
}

// NewQueryAll constructs a request for the peer's whole chain.
func NewQueryAll() Message {
	return Message{Type: QueryAll}
}

// NewResponseBlockchain constructs a response carrying the blocks.
func NewResponseBlockchain(blocks []database.Block) (Message, error) {
	data, err := json.Marshal(blocks)
	if err != nil {
		return Message{}, err
	}

	s := string(data)
	return Message{Type: ResponseBlockchain, Data: &s}, nil
}

// Encode returns the wire form of the message.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Blocks decodes the blocks carried by a response.
func (m Message) Blocks() ([]database.Block, error) {
	if m.Type != ResponseBlockchain || m.Data == nil {
		return nil, fmt.Errorf("%w: %s carries no blocks", ErrParse, m.Type)
	}

	var blocks []database.Block
	if err := json.Unmarshal([]byte(*m.Data), &blocks); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	return blocks, nil
}

// Decode parses the wire form of a message.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrParse, err)
	}

	switch m.Type {
	case QueryLatest, QueryAll, ResponseBlockchain:
	default:
		return Message{}, fmt.Errorf("%w: unknown type %d", ErrParse, m.Type)
	}

	return m, nil
}
