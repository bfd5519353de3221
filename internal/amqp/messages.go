package amqp

import (
	"encoding/json"
	"time"
)

// State change reasons carried by StateChangedMessage.
const (
	ReasonLoad        = "load"
	ReasonEntry       = "entry"
	ReasonSample      = "sample"
	ReasonBudget      = "budget"
	ReasonSettings    = "settings"
	ReasonCategory    = "category"
	ReasonRecurring   = "recurring"
	ReasonMaterialize = "materialize"
	ReasonImport      = "import"
	ReasonSync        = "sync"
)

// StateChangedMessage announces that a session persisted a new State.
// It carries no ledger data, consumers reload the State when they need it.
type StateChangedMessage struct {
	Reason       string    `json:"reason"`
	Revision     int64     `json:"revision"`
	EntriesAdded int       `json:"entriesAdded"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewStateChangedMessage creates a message stamped with the current time
func NewStateChangedMessage(reason string, revision int64, entriesAdded int) *StateChangedMessage {
	return &StateChangedMessage{
		Reason:       reason,
		Revision:     revision,
		EntriesAdded: entriesAdded,
		Timestamp:    time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *StateChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// StateChangedMessageFromJSON creates a message from JSON bytes
func StateChangedMessageFromJSON(data []byte) (*StateChangedMessage, error) {
	var msg StateChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
