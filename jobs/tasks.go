package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueMail carries transactional mail deliveries.
	QueueMail = "mail"
	// QueuePayouts carries wallet-to-bank payout requests.
	QueuePayouts = "payouts"

	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeCreatePayout is the task type for provider payouts.
	TaskTypeCreatePayout = "payout:create"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// PayoutPayload describes a wallet-to-bank payout. The amount travels
// in minor units so the payload stays exact through JSON.
type PayoutPayload struct {
	AuthorID      string `json:"author_id"`
	WalletID      string `json:"wallet_id"`
	BankAccountID string `json:"bank_account_id"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	Reference     string `json:"reference"`
}

// NewPayoutTask constructs an Asynq task.
func NewPayoutTask(payload PayoutPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeCreatePayout, data), nil
}
