package model

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
)

// Event is the journal representation of a committed ledger operation.
type Event struct {
	Seq        uint64            `json:"seq"`
	Mint       common.Address    `json:"mint"`
	Operation  string            `json:"operation"`
	Actor      common.Address    `json:"actor"`
	Subject    *common.Address   `json:"subject,omitempty"`
	Amount     uint64            `json:"amount,omitempty"`
	Timestamp  int64             `json:"timestamp"`
	Attributes map[string]string `json:"attributes,omitempty"`
	RecordedAt string            `json:"recorded_at"`
}

// MarshalJSON ensures Event is encoded with stable field names.
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	return json.Marshal(Alias(e))
}

// UnmarshalJSON decodes an Event from JSON.
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = Event(a)
	return nil
}
