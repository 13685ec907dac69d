package webhook

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	"stitchwear-be/internal/logger"
	"stitchwear-be/internal/metrics"
	"stitchwear-be/internal/payment"
	"stitchwear-be/internal/utils"

	"go.uber.org/zap"
)

// OrderService is the slice of the order module the webhook needs to
// drive payment-triggered transitions.
type OrderService interface {
	ConfirmPayment(ctx context.Context, orderNumber, transactionID string) error
	FailPayment(ctx context.Context, orderNumber string) error
}

type Handler struct {
	orders  OrderService
	gateway payment.Gateway
	repo    payment.Repository
}

func NewHandler(orders OrderService, gateway payment.Gateway, repo payment.Repository) *Handler {
	return &Handler{
		orders:  orders,
		gateway: gateway,
		repo:    repo,
	}
}

// PaymentCallbackHandler receives the gateway's asynchronous callback.
// A verified callback is always acked with 200, whatever happens
// internally; the gateway's retry policy targets delivery, not our
// processing.
func (h *Handler) PaymentCallbackHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		utils.WriteJSONError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var envelope payment.CallbackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Response == "" {
		metrics.WebhookEvents.WithLabelValues("malformed").Inc()
		utils.WriteJSONError(w, "invalid payload", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-VERIFY")
	if err := h.gateway.VerifyCallback(envelope.Response, signature); err != nil {
		// Never trust the claimed outcome without a matching signature.
		metrics.WebhookEvents.WithLabelValues("invalid_signature").Inc()
		log.Warn("callback signature rejected", zap.Error(err))
		utils.WriteJSONError(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	decoded, err := base64.StdEncoding.DecodeString(envelope.Response)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("malformed").Inc()
		utils.WriteJSONError(w, "invalid payload encoding", http.StatusBadRequest)
		return
	}

	var payload payment.CallbackPayload
	if err := json.Unmarshal(decoded, &payload); err != nil {
		metrics.WebhookEvents.WithLabelValues("malformed").Inc()
		utils.WriteJSONError(w, "invalid payload", http.StatusBadRequest)
		return
	}

	log = log.With(
		zap.String("order_number", payload.Data.MerchantTransactionID),
		zap.String("transaction_id", payload.Data.TransactionID),
		zap.String("code", payload.Code),
	)

	// Non-final states are acked without recording: the gateway sends
	// the same transaction id again with the final state.
	if payload.Code == payment.CodePending {
		log.Info("callback in non-final state, acked")
		metrics.WebhookEvents.WithLabelValues("pending").Inc()
		utils.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
		return
	}

	txnID, isDuplicate, err := h.repo.SaveTransaction(ctx, &payment.Transaction{
		TransactionID: payload.Data.TransactionID,
		OrderNumber:   payload.Data.MerchantTransactionID,
		Amount:        payload.Data.Amount,
		Signature:     signature,
		Verified:      true,
	})
	if err != nil {
		log.Error("failed to record payment transaction", zap.Error(err))
		utils.WriteJSONError(w, "failed to record transaction", http.StatusInternalServerError)
		return
	}

	if isDuplicate {
		// At-least-once delivery: return the prior outcome without
		// re-applying side effects.
		prior, err := h.repo.GetByTransactionID(ctx, payload.Data.TransactionID)
		outcome := ""
		if err == nil {
			outcome = prior.Outcome
		}
		log.Info("duplicate callback, replaying prior outcome", zap.String("outcome", outcome))
		metrics.WebhookEvents.WithLabelValues("duplicate").Inc()
		utils.WriteJSON(w, map[string]string{"status": "ok", "outcome": outcome}, http.StatusOK)
		return
	}

	var dispatchErr error
	switch payload.Code {
	case payment.CodeSuccess:
		dispatchErr = h.orders.ConfirmPayment(ctx, payload.Data.MerchantTransactionID, payload.Data.TransactionID)
	case payment.CodeError, payment.CodeDeclined:
		dispatchErr = h.orders.FailPayment(ctx, payload.Data.MerchantTransactionID)
	default:
		log.Warn("unhandled callback code")
	}

	if dispatchErr != nil {
		// Ack anyway: the callback was authentic and recorded; the
		// failure is ours to resolve, not the gateway's to retry.
		log.Error("failed to apply payment callback", zap.Error(dispatchErr))
		if err := h.repo.MarkFailed(ctx, txnID, dispatchErr.Error()); err != nil {
			log.Error("failed to mark transaction failed", zap.Error(err))
		}
		metrics.WebhookEvents.WithLabelValues("dispatch_failed").Inc()
		utils.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
		return
	}

	if err := h.repo.MarkProcessed(ctx, txnID, payload.Code); err != nil {
		log.Error("failed to mark transaction processed", zap.Error(err))
	}

	metrics.WebhookEvents.WithLabelValues("processed").Inc()
	utils.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
