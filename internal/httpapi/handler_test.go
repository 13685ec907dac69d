package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stitchwear-be/internal/coupon"
	"stitchwear-be/internal/inventory"
	"stitchwear-be/internal/order"
	"stitchwear-be/internal/payment"
	"stitchwear-be/internal/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockOrders struct {
	mock.Mock
}

func (m *MockOrders) CreateOrder(ctx context.Context, input order.CreateOrderInput) (*order.Order, *payment.CreateResponse, error) {
	args := m.Called(ctx, input)
	var o *order.Order
	if args.Get(0) != nil {
		o = args.Get(0).(*order.Order)
	}
	var p *payment.CreateResponse
	if args.Get(1) != nil {
		p = args.Get(1).(*payment.CreateResponse)
	}
	return o, p, args.Error(2)
}

func (m *MockOrders) Transition(ctx context.Context, id uuid.UUID, target order.Status, tracking order.TrackingInfo) (*order.Order, error) {
	args := m.Called(ctx, id, target, tracking)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrders) ConfirmPayment(ctx context.Context, orderNumber, transactionID string) error {
	args := m.Called(ctx, orderNumber, transactionID)
	return args.Error(0)
}

func (m *MockOrders) FailPayment(ctx context.Context, orderNumber string) error {
	args := m.Called(ctx, orderNumber)
	return args.Error(0)
}

func (m *MockOrders) GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrders) GetByOrderNumber(ctx context.Context, orderNumber string) (*order.Order, error) {
	args := m.Called(ctx, orderNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrders) ListOrders(ctx context.Context, f order.ListFilter) ([]*order.Order, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

type MockCoupons struct {
	mock.Mock
}

func (m *MockCoupons) Validate(ctx context.Context, code string, subtotal int64, userID string, now time.Time) (int64, error) {
	args := m.Called(ctx, code, subtotal, userID, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCoupons) Consume(ctx context.Context, code, userID, orderID string) error {
	args := m.Called(ctx, code, userID, orderID)
	return args.Error(0)
}

func (m *MockCoupons) Unconsume(ctx context.Context, code, orderID string) error {
	args := m.Called(ctx, code, orderID)
	return args.Error(0)
}

func (m *MockCoupons) Create(ctx context.Context, c *coupon.Coupon) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCoupons) SetStatus(ctx context.Context, code string, status coupon.Status) error {
	args := m.Called(ctx, code, status)
	return args.Error(0)
}

type MockInventory struct {
	mock.Mock
}

func (m *MockInventory) GetVariant(ctx context.Context, productID, size string) (*inventory.Variant, error) {
	args := m.Called(ctx, productID, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Variant), args.Error(1)
}

func (m *MockInventory) UpsertVariant(ctx context.Context, v *inventory.Variant) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *MockInventory) Adjust(ctx context.Context, productID, size string, op inventory.AdjustOp, amount int) (int, error) {
	args := m.Called(ctx, productID, size, op, amount)
	return args.Int(0), args.Error(1)
}

func (m *MockInventory) DecrementForOrder(ctx context.Context, items []inventory.Item) error {
	args := m.Called(ctx, items)
	return args.Error(0)
}

func (m *MockInventory) RestoreForOrder(ctx context.Context, items []inventory.Item) error {
	args := m.Called(ctx, items)
	return args.Error(0)
}

func (m *MockInventory) Subscribe() <-chan inventory.LowStockEvent {
	args := m.Called()
	return args.Get(0).(<-chan inventory.LowStockEvent)
}

func sampleOrder() *order.Order {
	id := uuid.New()
	return &order.Order{
		ID:          id,
		OrderNumber: "SW-AB12CD34EF56",
		UserID:      "user-1",
		Subtotal:    130000,
		Shipping:    1000,
		Total:       131000,
		Currency:    "INR",
		Status:      order.StatusPending,
		PaymentStatus: order.PaymentPending,
		PaymentMethod: order.MethodCOD,
		CreatedAt:   time.Now(),
		Timeline: []order.TimelineEntry{
			{Status: order.StatusPending, CreatedAt: time.Now()},
		},
	}
}

func authed(r *http.Request, userID string) *http.Request {
	return r.WithContext(utils.SetUserContext(r.Context(), userID, "u@example.com", utils.RoleStaff))
}

func TestCheckoutHandler(t *testing.T) {
	body := `{
		"items":[{"productId":"prod-1","size":"M","quantity":2}],
		"paymentMethod":"COD",
		"shippingName":"Asha Rao",
		"shippingAddress":"12 MG Road"
	}`

	t.Run("Creates order", func(t *testing.T) {
		orders := new(MockOrders)
		h := NewHandler(orders, new(MockCoupons), new(MockInventory))

		orders.On("CreateOrder", mock.Anything, mock.MatchedBy(func(input order.CreateOrderInput) bool {
			return input.UserID == "user-1" &&
				len(input.Items) == 1 &&
				input.PaymentMethod == order.MethodCOD
		})).Return(sampleOrder(), nil, nil)

		req := authed(httptest.NewRequest("POST", "/checkout", bytes.NewBufferString(body)), "user-1")
		rec := httptest.NewRecorder()
		h.CheckoutHandler(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, string(resp["order"]), "SW-AB12CD34EF56")
	})

	t.Run("Requires authentication", func(t *testing.T) {
		h := NewHandler(new(MockOrders), new(MockCoupons), new(MockInventory))

		req := httptest.NewRequest("POST", "/checkout", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		h.CheckoutHandler(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Coupon rejection maps to 422", func(t *testing.T) {
		orders := new(MockOrders)
		h := NewHandler(orders, new(MockCoupons), new(MockInventory))

		orders.On("CreateOrder", mock.Anything, mock.Anything).
			Return(nil, nil, &coupon.RejectionError{Code: "SAVE20", Reason: coupon.ReasonBelowMinimum})

		req := authed(httptest.NewRequest("POST", "/checkout", bytes.NewBufferString(body)), "user-1")
		rec := httptest.NewRecorder()
		h.CheckoutHandler(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "BelowMinimum")
	})

	t.Run("Insufficient stock maps to 422", func(t *testing.T) {
		orders := new(MockOrders)
		h := NewHandler(orders, new(MockCoupons), new(MockInventory))

		orders.On("CreateOrder", mock.Anything, mock.Anything).
			Return(nil, nil, &inventory.InsufficientStockError{ProductID: "prod-1", Size: "M"})

		req := authed(httptest.NewRequest("POST", "/checkout", bytes.NewBufferString(body)), "user-1")
		rec := httptest.NewRecorder()
		h.CheckoutHandler(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("Gateway failure after persistence returns the order number", func(t *testing.T) {
		orders := new(MockOrders)
		h := NewHandler(orders, new(MockCoupons), new(MockInventory))

		orders.On("CreateOrder", mock.Anything, mock.Anything).
			Return(sampleOrder(), nil, &payment.GatewayError{Status: 503, Body: "unavailable"})

		req := authed(httptest.NewRequest("POST", "/checkout", bytes.NewBufferString(body)), "user-1")
		rec := httptest.NewRecorder()
		h.CheckoutHandler(rec, req)

		assert.Equal(t, http.StatusBadGateway, rec.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		// The order survives the failed initiation; the storefront
		// retries against this number instead of checking out again.
		assert.Equal(t, "SW-AB12CD34EF56", resp["orderNumber"])
	})

	t.Run("Gateway failure without an order maps to 502", func(t *testing.T) {
		orders := new(MockOrders)
		h := NewHandler(orders, new(MockCoupons), new(MockInventory))

		orders.On("CreateOrder", mock.Anything, mock.Anything).
			Return(nil, nil, &payment.GatewayError{Status: 500, Body: "boom"})

		req := authed(httptest.NewRequest("POST", "/checkout", bytes.NewBufferString(body)), "user-1")
		rec := httptest.NewRecorder()
		h.CheckoutHandler(rec, req)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "payment gateway returned 500")
	})

	t.Run("Validation error maps to 400", func(t *testing.T) {
		orders := new(MockOrders)
		h := NewHandler(orders, new(MockCoupons), new(MockInventory))

		orders.On("CreateOrder", mock.Anything, mock.Anything).
			Return(nil, nil, order.ValidationError("items", "must not be empty"))

		req := authed(httptest.NewRequest("POST", "/checkout", bytes.NewBufferString(body)), "user-1")
		rec := httptest.NewRecorder()
		h.CheckoutHandler(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func transitionReq(t *testing.T, id uuid.UUID, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest("POST", "/admin/orders/"+id.String()+"/status", bytes.NewBufferString(body))
	req.SetPathValue("id", id.String())
	return req
}

func TestTransitionHandler(t *testing.T) {
	id := uuid.New()

	t.Run("Transitions order", func(t *testing.T) {
		orders := new(MockOrders)
		h := NewHandler(orders, new(MockCoupons), new(MockInventory))

		shipped := sampleOrder()
		shipped.Status = order.StatusShipped
		orders.On("Transition", mock.Anything, id, order.StatusShipped, order.TrackingInfo{
			CourierName:    "Delhivery",
			TrackingNumber: "DL123",
		}).Return(shipped, nil)

		rec := httptest.NewRecorder()
		h.TransitionHandler(rec, transitionReq(t, id,
			`{"status":"SHIPPED","courierName":"Delhivery","trackingNumber":"DL123"}`))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "SHIPPED")
	})

	t.Run("Invalid transition maps to 409", func(t *testing.T) {
		orders := new(MockOrders)
		h := NewHandler(orders, new(MockCoupons), new(MockInventory))

		orders.On("Transition", mock.Anything, id, order.StatusProcessing, mock.Anything).
			Return(nil, &order.InvalidTransitionError{From: order.StatusShipped, To: order.StatusProcessing})

		rec := httptest.NewRecorder()
		h.TransitionHandler(rec, transitionReq(t, id, `{"status":"PROCESSING"}`))

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("Missing tracking maps to 422", func(t *testing.T) {
		orders := new(MockOrders)
		h := NewHandler(orders, new(MockCoupons), new(MockInventory))

		orders.On("Transition", mock.Anything, id, order.StatusShipped, mock.Anything).
			Return(nil, order.ErrMissingTrackingInfo)

		rec := httptest.NewRecorder()
		h.TransitionHandler(rec, transitionReq(t, id, `{"status":"SHIPPED"}`))

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("Unknown status maps to 400", func(t *testing.T) {
		h := NewHandler(new(MockOrders), new(MockCoupons), new(MockInventory))

		rec := httptest.NewRecorder()
		h.TransitionHandler(rec, transitionReq(t, id, `{"status":"TELEPORTED"}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Unknown order maps to 404", func(t *testing.T) {
		orders := new(MockOrders)
		h := NewHandler(orders, new(MockCoupons), new(MockInventory))

		orders.On("Transition", mock.Anything, id, order.StatusCancelled, mock.Anything).
			Return(nil, order.ErrOrderNotFound)

		rec := httptest.NewRecorder()
		h.TransitionHandler(rec, transitionReq(t, id, `{"status":"CANCELLED"}`))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListOrdersHandler(t *testing.T) {
	orders := new(MockOrders)
	h := NewHandler(orders, new(MockCoupons), new(MockInventory))

	orders.On("ListOrders", mock.Anything, order.ListFilter{
		Status: order.StatusShipped,
		Limit:  10,
	}).Return([]*order.Order{sampleOrder()}, nil)

	req := httptest.NewRequest("GET", "/admin/orders?status=SHIPPED&limit=10", nil)
	rec := httptest.NewRecorder()
	h.ListOrdersHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	orders.AssertExpectations(t)
}

func TestCreateCouponHandler(t *testing.T) {
	t.Run("Creates coupon", func(t *testing.T) {
		coupons := new(MockCoupons)
		h := NewHandler(new(MockOrders), coupons, new(MockInventory))

		coupons.On("Create", mock.Anything, mock.MatchedBy(func(c *coupon.Coupon) bool {
			return c.Code == "SAVE20" &&
				c.Type == coupon.DiscountPercentage &&
				c.Value == 20 &&
				c.Status == coupon.StatusActive
		})).Return(nil)

		body := `{
			"code":"SAVE20","discountType":"PERCENTAGE","value":20,
			"minOrder":500,"maxDiscount":100,"usageLimit":2,"perUserLimit":1,
			"expiresAt":"2027-01-01T00:00:00Z"
		}`
		req := httptest.NewRequest("POST", "/admin/coupons", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		h.CreateCouponHandler(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		coupons.AssertExpectations(t)
	})

	t.Run("Rejects bad expiry", func(t *testing.T) {
		h := NewHandler(new(MockOrders), new(MockCoupons), new(MockInventory))

		req := httptest.NewRequest("POST", "/admin/coupons",
			bytes.NewBufferString(`{"code":"X","discountType":"FIXED","value":1,"expiresAt":"tomorrow"}`))
		rec := httptest.NewRecorder()
		h.CreateCouponHandler(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAdjustStockHandler(t *testing.T) {
	t.Run("Adjusts stock", func(t *testing.T) {
		inv := new(MockInventory)
		h := NewHandler(new(MockOrders), new(MockCoupons), inv)

		inv.On("Adjust", mock.Anything, "prod-1", "M", inventory.OpAdd, 5).Return(15, nil)

		req := httptest.NewRequest("POST", "/admin/inventory/adjust",
			bytes.NewBufferString(`{"productId":"prod-1","size":"M","op":"ADD","amount":5}`))
		rec := httptest.NewRecorder()
		h.AdjustStockHandler(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"stockQuantity":15`)
	})

	t.Run("Underflow maps to 422", func(t *testing.T) {
		inv := new(MockInventory)
		h := NewHandler(new(MockOrders), new(MockCoupons), inv)

		inv.On("Adjust", mock.Anything, "prod-1", "M", inventory.OpAdd, -50).
			Return(0, &inventory.InsufficientStockError{ProductID: "prod-1", Size: "M"})

		req := httptest.NewRequest("POST", "/admin/inventory/adjust",
			bytes.NewBufferString(`{"productId":"prod-1","size":"M","op":"ADD","amount":-50}`))
		rec := httptest.NewRecorder()
		h.AdjustStockHandler(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}
