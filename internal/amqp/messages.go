package amqp

import (
	"encoding/json"
	"time"

	"fintrack/internal/core"
)

// TransactionPostedMessage announces a committed posting. Balance is the
// account balance after the posting, when an account was referenced.
type TransactionPostedMessage struct {
	TransactionID string               `json:"transactionId"`
	UserID        string               `json:"userId"`
	Type          core.TransactionType `json:"type"`
	Amount        core.Money           `json:"amount"`
	Date          time.Time            `json:"date"`
	BankAccountID *string              `json:"bankAccountId,omitempty"`
	Balance       *core.Money          `json:"balance,omitempty"`
	Timestamp     time.Time            `json:"timestamp"`
}

// NewTransactionPostedMessage builds the event for t.
func NewTransactionPostedMessage(t core.Transaction) *TransactionPostedMessage {
	msg := &TransactionPostedMessage{
		TransactionID: t.ID,
		UserID:        t.UserID,
		Type:          t.Type,
		Amount:        t.Amount,
		Date:          t.Date,
		BankAccountID: t.BankAccountID,
		Timestamp:     time.Now().UTC(),
	}
	if t.BankAccount != nil {
		balance := t.BankAccount.Balance
		msg.Balance = &balance
	}
	return msg
}

// ToJSON converts the message to JSON bytes
func (m *TransactionPostedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionPostedMessageFromJSON decodes a message body.
func TransactionPostedMessageFromJSON(data []byte) (*TransactionPostedMessage, error) {
	var msg TransactionPostedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
