package amqp

import (
	"encoding/json"
	"time"
)

// ImportedMessage announces transactions inserted by one import. It carries
// ids only; the worker loads the rows from the database.
type ImportedMessage struct {
	ImportID       string    `json:"import_id"`
	Filename       string    `json:"filename,omitempty"`
	TransactionIDs []string  `json:"transaction_ids"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewImportedMessage(importID, filename string, transactionIDs []string) *ImportedMessage {
	return &ImportedMessage{
		ImportID:       importID,
		Filename:       filename,
		TransactionIDs: transactionIDs,
		Timestamp:      time.Now(),
	}
}

func (m *ImportedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ImportedMessageFromJSON(data []byte) (*ImportedMessage, error) {
	var msg ImportedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
