package payment

import (
	"encoding/json"
	"time"
)

// Transaction is the persisted record of one gateway transaction. The
// processed flag is the idempotency guard against at-least-once
// callback delivery.
type Transaction struct {
	ID            int64
	TransactionID string // gateway-assigned
	OrderNumber   string
	Amount        int64
	Signature     string
	Verified      bool
	Processed     bool
	Outcome       string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

type CreateRequest struct {
	OrderNumber string
	UserID      string
	Amount      int64 // minor units
	Mobile      string
}

type CreateResponse struct {
	TransactionID string
	RedirectURL   string
	Raw           json.RawMessage
}

type StatusResponse struct {
	State         string
	TransactionID string
	Amount        int64
	ResponseCode  string
}

// Callback codes delivered by the gateway.
const (
	CodeSuccess  = "PAYMENT_SUCCESS"
	CodeError    = "PAYMENT_ERROR"
	CodeDeclined = "PAYMENT_DECLINED"
	CodePending  = "PAYMENT_PENDING"
)

// CallbackEnvelope is the raw callback body: the payload itself rides
// base64-encoded so the signature can be computed over the exact bytes.
type CallbackEnvelope struct {
	Response string `json:"response"`
}

type CallbackPayload struct {
	Success bool         `json:"success"`
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Data    CallbackData `json:"data"`
}

type CallbackData struct {
	MerchantID            string `json:"merchantId"`
	MerchantTransactionID string `json:"merchantTransactionId"`
	TransactionID         string `json:"transactionId"`
	Amount                int64  `json:"amount"`
	State                 string `json:"state"`
	ResponseCode          string `json:"responseCode"`
}
