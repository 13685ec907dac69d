package payment

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stitchwear-be/internal/config"
	"stitchwear-be/internal/logger"

	"go.uber.org/zap"
)

const (
	payPath        = "/pg/v1/pay"
	statusPathBase = "/pg/v1/status"
)

type phonepeGateway struct {
	baseURL     string
	merchantID  string
	saltKeys    map[string]string // salt index -> key, supports rotation
	activeIndex string
	callbackURL string
	redirectURL string
	httpClient  *http.Client
}

func NewPhonePeGateway(cfg *config.Config) Gateway {
	if cfg.MerchantID == "" || len(cfg.SaltKeys) == 0 {
		logger.L().Warn("payment gateway credentials are incomplete")
	}

	return &phonepeGateway{
		baseURL:     cfg.GatewayBaseURL,
		merchantID:  cfg.MerchantID,
		saltKeys:    cfg.SaltKeys,
		activeIndex: cfg.ActiveSaltIndex,
		callbackURL: cfg.CallbackURL,
		redirectURL: cfg.RedirectURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// sign computes hex(sha256(payload + path + saltKey)) and appends the
// salt index so the receiver knows which secret to verify with.
func (g *phonepeGateway) sign(payload, path, saltIndex string) string {
	salt := g.saltKeys[saltIndex]
	sum := sha256.Sum256([]byte(payload + path + salt))
	return hex.EncodeToString(sum[:]) + "###" + saltIndex
}

func (g *phonepeGateway) CreatePayment(ctx context.Context, req CreateRequest) (*CreateResponse, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("order_number", req.OrderNumber),
		zap.Int64("amount", req.Amount),
	)

	body := map[string]interface{}{
		"merchantId":            g.merchantID,
		"merchantTransactionId": req.OrderNumber,
		"merchantUserId":        req.UserID,
		"amount":                req.Amount,
		"redirectUrl":           g.redirectURL,
		"redirectMode":          "POST",
		"callbackUrl":           g.callbackURL,
		"mobileNumber":          req.Mobile,
		"paymentInstrument": map[string]interface{}{
			"type": "PAY_PAGE",
		},
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		log.Error("failed to marshal payment request", zap.Error(err))
		return nil, err
	}

	encoded := base64.StdEncoding.EncodeToString(jsonBody)
	checksum := g.sign(encoded, payPath, g.activeIndex)

	reqBody, err := json.Marshal(map[string]string{"request": encoded})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+payPath, bytes.NewBuffer(reqBody))
	if err != nil {
		log.Error("failed creating request", zap.Error(err))
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-VERIFY", checksum)

	log.Info("sending payment request to gateway")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		log.Error("gateway request failed", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error("gateway returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", respBytes),
		)
		return nil, &GatewayError{Status: resp.StatusCode, Body: string(respBytes)}
	}

	var res struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
		Data    struct {
			TransactionID       string `json:"transactionId"`
			InstrumentResponse struct {
				RedirectInfo struct {
					URL string `json:"url"`
				} `json:"redirectInfo"`
			} `json:"instrumentResponse"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBytes, &res); err != nil {
		log.Error("failed decoding gateway response", zap.Error(err))
		return nil, err
	}

	log.Info("gateway payment created",
		zap.String("transaction_id", res.Data.TransactionID),
		zap.String("code", res.Code),
	)

	return &CreateResponse{
		TransactionID: res.Data.TransactionID,
		RedirectURL:   res.Data.InstrumentResponse.RedirectInfo.URL,
		Raw:           json.RawMessage(respBytes),
	}, nil
}

func (g *phonepeGateway) CheckStatus(ctx context.Context, merchantTxnID string) (*StatusResponse, error) {
	log := logger.FromCtx(ctx).With(zap.String("merchant_txn_id", merchantTxnID))

	path := fmt.Sprintf("%s/%s/%s", statusPathBase, g.merchantID, merchantTxnID)
	checksum := g.sign("", path, g.activeIndex)

	req, err := http.NewRequestWithContext(ctx, "GET", g.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-VERIFY", checksum)
	req.Header.Set("X-MERCHANT-ID", g.merchantID)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		log.Error("gateway status request failed", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error("gateway status returned non-success",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", respBytes),
		)
		return nil, &GatewayError{Status: resp.StatusCode, Body: string(respBytes)}
	}

	var res struct {
		Code string `json:"code"`
		Data struct {
			TransactionID string `json:"transactionId"`
			Amount        int64  `json:"amount"`
			State         string `json:"state"`
			ResponseCode  string `json:"responseCode"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBytes, &res); err != nil {
		return nil, err
	}

	return &StatusResponse{
		State:         res.Data.State,
		TransactionID: res.Data.TransactionID,
		Amount:        res.Data.Amount,
		ResponseCode:  res.Data.ResponseCode,
	}, nil
}

func (g *phonepeGateway) VerifyCallback(base64Body, signatureHeader string) error {
	received, saltIndex, ok := strings.Cut(signatureHeader, "###")
	if !ok || received == "" {
		return fmt.Errorf("%w: malformed signature header", ErrInvalidSignature)
	}

	salt, ok := g.saltKeys[saltIndex]
	if !ok {
		return fmt.Errorf("%w: unknown salt index %q", ErrInvalidSignature, saltIndex)
	}

	sum := sha256.Sum256([]byte(base64Body + salt))
	expected := hex.EncodeToString(sum[:])

	if subtle.ConstantTimeCompare([]byte(received), []byte(expected)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}
