package main

import (
	"log"
	"net/http"

	"stitchwear-be/internal/config"
	"stitchwear-be/internal/coupon"
	"stitchwear-be/internal/db"
	"stitchwear-be/internal/httpapi"
	"stitchwear-be/internal/inventory"
	"stitchwear-be/internal/logger"
	"stitchwear-be/internal/metrics"
	"stitchwear-be/internal/middleware"
	"stitchwear-be/internal/order"
	"stitchwear-be/internal/payment"
	"stitchwear-be/internal/payment/webhook"
	"stitchwear-be/internal/utils"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := db.InitDB(cfg)
	defer database.Close()

	invRepo := inventory.NewRepository(database)
	invSvc := inventory.NewService(invRepo, cfg.LowStockThreshold)

	couponRepo := coupon.NewRepository(database)
	couponSvc := coupon.NewService(couponRepo)

	gateway := payment.NewPhonePeGateway(cfg)
	paymentRepo := payment.NewRepository(database)

	orderRepo := order.NewRepository(database)
	orderSvc := order.NewService(orderRepo, invSvc, couponSvc, gateway, cfg)

	api := httpapi.NewHandler(orderSvc, couponSvc, invSvc)
	callback := webhook.NewHandler(orderSvc, gateway, paymentRepo)

	go logLowStock(invSvc.Subscribe())

	router := setupRouter(api, callback.PaymentCallbackHandler)

	addr := ":" + cfg.AppPort
	logger.L().Info("server listening", zap.String("addr", addr))
	log.Fatal(http.ListenAndServe(addr, router))
}

func setupRouter(api *httpapi.Handler, paymentCallback http.HandlerFunc) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	})
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /checkout", api.CheckoutHandler)
	mux.HandleFunc("POST /payments/callback", paymentCallback)
	mux.HandleFunc("GET /orders/{id}", api.GetOrderHandler)

	staff := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireRole(utils.RoleStaff, h)
	}
	mux.Handle("POST /admin/orders/{id}/status", staff(api.TransitionHandler))
	mux.Handle("GET /admin/orders", staff(api.ListOrdersHandler))
	mux.Handle("POST /admin/coupons", staff(api.CreateCouponHandler))
	mux.Handle("PATCH /admin/coupons/{code}/status", staff(api.CouponStatusHandler))
	mux.Handle("POST /admin/inventory/adjust", staff(api.AdjustStockHandler))

	var h http.Handler = mux
	h = middleware.AuthMiddleware(h)
	h = middleware.RateLimitMiddleware(h)
	h = middleware.LoggingMiddleware(h)
	h = logger.RequestIDMiddleware(h)
	return h
}

// logLowStock drains the ledger's alert stream. The dashboard consumes
// the same stream in production; logging keeps the events visible even
// without one attached.
func logLowStock(events <-chan inventory.LowStockEvent) {
	for ev := range events {
		logger.L().Warn("low stock",
			zap.String("product_id", ev.ProductID),
			zap.String("size", ev.Size),
			zap.Int("remaining", ev.Remaining),
		)
	}
}
