package payment

import "context"

// Gateway talks to the payment provider. It is stateless per call:
// transient failures are retried by the caller, never internally.
type Gateway interface {
	CreatePayment(ctx context.Context, req CreateRequest) (*CreateResponse, error)
	CheckStatus(ctx context.Context, merchantTxnID string) (*StatusResponse, error)

	// VerifyCallback authenticates an asynchronous callback: it
	// recomputes the checksum over the received base64 body using the
	// salt named by the signature's salt index and compares in constant
	// time. A mismatch is a hard rejection.
	VerifyCallback(base64Body, signatureHeader string) error
}
