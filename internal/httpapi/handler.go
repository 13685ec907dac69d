package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"stitchwear-be/internal/coupon"
	"stitchwear-be/internal/inventory"
	"stitchwear-be/internal/logger"
	"stitchwear-be/internal/order"
	"stitchwear-be/internal/payment"
	"stitchwear-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler is the JSON surface over the core services. It holds no
// business rules: every decision lives in the services it wraps.
type Handler struct {
	orders    order.Service
	coupons   coupon.Service
	inventory inventory.Service
}

func NewHandler(orders order.Service, coupons coupon.Service, inv inventory.Service) *Handler {
	return &Handler{
		orders:    orders,
		coupons:   coupons,
		inventory: inv,
	}
}

type checkoutRequest struct {
	Items []struct {
		ProductID string `json:"productId"`
		Size      string `json:"size"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	PaymentMethod   string `json:"paymentMethod"`
	CouponCode      string `json:"couponCode"`
	ShippingName    string `json:"shippingName"`
	ShippingPhone   string `json:"shippingPhone"`
	ShippingAddress string `json:"shippingAddress"`
	Mobile          string `json:"mobile"`
}

func (h *Handler) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.WriteJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	input := order.CreateOrderInput{
		UserID:          userID,
		PaymentMethod:   order.PaymentMethod(req.PaymentMethod),
		CouponCode:      req.CouponCode,
		ShippingName:    req.ShippingName,
		ShippingPhone:   req.ShippingPhone,
		ShippingAddress: req.ShippingAddress,
		Mobile:          req.Mobile,
	}
	for _, it := range req.Items {
		input.Items = append(input.Items, order.CreateOrderItem{
			ProductID: it.ProductID,
			Size:      it.Size,
			Quantity:  it.Quantity,
		})
	}

	o, payResp, err := h.orders.CreateOrder(r.Context(), input)
	if err != nil {
		if o != nil {
			// The order persisted but payment initiation did not. Hand
			// the order number back so the storefront can retry
			// initiation against the same order instead of checking
			// out again.
			utils.WriteJSON(w, map[string]interface{}{
				"error":       "payment initiation failed",
				"orderNumber": o.OrderNumber,
			}, http.StatusBadGateway)
			return
		}
		writeDomainError(w, r, err)
		return
	}

	resp := map[string]interface{}{"order": orderResponse(o)}
	if payResp != nil {
		resp["payment"] = map[string]string{
			"transactionId": payResp.TransactionID,
			"redirectUrl":   payResp.RedirectURL,
		}
	}
	utils.WriteJSON(w, resp, http.StatusCreated)
}

type transitionRequest struct {
	Status         string `json:"status"`
	CourierName    string `json:"courierName"`
	TrackingNumber string `json:"trackingNumber"`
}

func (h *Handler) TransitionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		utils.WriteJSONError(w, "invalid order id", http.StatusBadRequest)
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	target := order.Status(req.Status)
	if !order.ValidStatus(target) {
		utils.WriteJSONError(w, "unknown order status", http.StatusBadRequest)
		return
	}

	o, err := h.orders.Transition(r.Context(), id, target, order.TrackingInfo{
		CourierName:    req.CourierName,
		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	utils.WriteJSON(w, orderResponse(o), http.StatusOK)
}

func (h *Handler) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		utils.WriteJSONError(w, "invalid order id", http.StatusBadRequest)
		return
	}

	o, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, orderResponse(o), http.StatusOK)
}

func (h *Handler) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := order.ListFilter{
		Status:        order.Status(q.Get("status")),
		PaymentStatus: order.PaymentStatus(q.Get("paymentStatus")),
		UserID:        q.Get("userId"),
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		f.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		f.Offset = v
	}

	orders, err := h.orders.ListOrders(r.Context(), f)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := make([]map[string]interface{}, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, orderResponse(o))
	}
	utils.WriteJSON(w, resp, http.StatusOK)
}

type createCouponRequest struct {
	Code         string `json:"code"`
	DiscountType string `json:"discountType"`
	Value        int64  `json:"value"`
	MinOrder     int64  `json:"minOrder"`
	MaxDiscount  int64  `json:"maxDiscount"`
	UsageLimit   int    `json:"usageLimit"`
	PerUserLimit int    `json:"perUserLimit"`
	ExpiresAt    string `json:"expiresAt"`
}

func (h *Handler) CreateCouponHandler(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	expiry, err := time.Parse(time.RFC3339, req.ExpiresAt)
	if err != nil {
		utils.WriteJSONError(w, "expiresAt must be RFC3339", http.StatusBadRequest)
		return
	}

	c := &coupon.Coupon{
		Code:         req.Code,
		Type:         coupon.DiscountType(req.DiscountType),
		Value:        req.Value,
		MinOrder:     req.MinOrder,
		MaxDiscount:  req.MaxDiscount,
		UsageLimit:   req.UsageLimit,
		PerUserLimit: req.PerUserLimit,
		ExpiresAt:    expiry,
		Status:       coupon.StatusActive,
	}
	if err := h.coupons.Create(r.Context(), c); err != nil {
		writeDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, map[string]string{"code": c.Code}, http.StatusCreated)
}

func (h *Handler) CouponStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	status := coupon.Status(req.Status)
	if status != coupon.StatusActive && status != coupon.StatusInactive {
		utils.WriteJSONError(w, "status must be ACTIVE or INACTIVE", http.StatusBadRequest)
		return
	}

	if err := h.coupons.SetStatus(r.Context(), r.PathValue("code"), status); err != nil {
		writeDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, map[string]string{"status": string(status)}, http.StatusOK)
}

type adjustStockRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Op        string `json:"op"`
	Amount    int    `json:"amount"`
}

func (h *Handler) AdjustStockHandler(w http.ResponseWriter, r *http.Request) {
	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	newQty, err := h.inventory.Adjust(r.Context(), req.ProductID, req.Size, inventory.AdjustOp(req.Op), req.Amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	utils.WriteJSON(w, map[string]interface{}{
		"productId":     req.ProductID,
		"size":          req.Size,
		"stockQuantity": newQty,
	}, http.StatusOK)
}

func orderResponse(o *order.Order) map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, map[string]interface{}{
			"productId": it.ProductID,
			"size":      it.Size,
			"quantity":  it.Quantity,
			"unitPrice": it.UnitPrice,
			"lineTotal": it.LineTotal(),
		})
	}

	timeline := make([]map[string]interface{}, 0, len(o.Timeline))
	for _, e := range o.Timeline {
		timeline = append(timeline, map[string]interface{}{
			"status":    e.Status,
			"createdAt": e.CreatedAt.Format(time.RFC3339),
		})
	}

	return map[string]interface{}{
		"id":             o.ID.String(),
		"orderNumber":    o.OrderNumber,
		"items":          items,
		"subtotal":       o.Subtotal,
		"discount":       o.Discount,
		"shipping":       o.Shipping,
		"total":          o.Total,
		"currency":       o.Currency,
		"couponCode":     o.CouponCode,
		"orderStatus":    o.Status,
		"paymentStatus":  o.PaymentStatus,
		"paymentMethod":  o.PaymentMethod,
		"courierName":    o.CourierName,
		"trackingNumber": o.TrackingNumber,
		"timeline":       timeline,
		"createdAt":      o.CreatedAt.Format(time.RFC3339),
		"shippedAt":      utils.FormatTimePtr(o.ShippedAt),
		"deliveredAt":    utils.FormatTimePtr(o.DeliveredAt),
	}
}

// writeDomainError maps the service error taxonomy onto HTTP statuses:
// rejections the caller can fix get 4xx with a specific message,
// everything else is a 500 with the detail kept in the logs.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	if rej, ok := coupon.Rejected(err); ok {
		utils.WriteJSONError(w, rej.Error(), http.StatusUnprocessableEntity)
		return
	}

	var stockErr *inventory.InsufficientStockError
	if errors.As(err, &stockErr) {
		utils.WriteJSONError(w, stockErr.Error(), http.StatusUnprocessableEntity)
		return
	}

	var invalid *order.InvalidTransitionError
	if errors.As(err, &invalid) {
		utils.WriteJSONError(w, invalid.Error(), http.StatusConflict)
		return
	}

	var gatewayErr *payment.GatewayError
	if errors.As(err, &gatewayErr) {
		logger.FromCtx(r.Context()).Error("gateway request failed", zap.Error(err))
		utils.WriteJSONError(w, fmt.Sprintf("payment gateway returned %d", gatewayErr.Status), http.StatusBadGateway)
		return
	}

	switch {
	case errors.Is(err, order.ErrValidation),
		errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, inventory.ErrInvalidPrice),
		errors.Is(err, inventory.ErrInvalidOp):
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, order.ErrMissingTrackingInfo):
		utils.WriteJSONError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, inventory.ErrInsufficientStock):
		utils.WriteJSONError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, inventory.ErrVariantNotFound),
		errors.Is(err, coupon.ErrCouponNotFound):
		utils.WriteJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, order.ErrConcurrentUpdate):
		utils.WriteJSONError(w, err.Error(), http.StatusConflict)
	default:
		logger.FromCtx(r.Context()).Error("request failed", zap.Error(err))
		utils.WriteJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}
