package httpgin

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/cinetix/internal/domain"
	"github.com/kirinyoku/cinetix/internal/realtime"
	"github.com/kirinyoku/cinetix/internal/service"
	"github.com/kirinyoku/cinetix/internal/service/checkout"
	"github.com/kirinyoku/cinetix/internal/service/orders"
	"github.com/kirinyoku/cinetix/internal/service/payments"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const maxWebhookBody = 1 << 20

type RouterConfig struct {
	CORSOrigins []string
	// Metrics is served at /metrics when set.
	Metrics http.Handler
}

func NewRouter(
	svcs *service.Services,
	ws *realtime.WSHandler,
	cfg RouterConfig,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS(cfg.CORSOrigins))
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	api := r.Group("/api")
	{
		api.POST("/orders", handleCreateOrder(svcs))
		api.GET("/orders/:id", handleGetOrder(svcs))
		api.GET("/orders/:id/webhooks", handleListDeliveries(svcs))
		if ws != nil {
			api.GET("/orders/:id/ws", handleOrderWS(ws))
		}

		api.POST("/payments/preference", handleCreatePreference(svcs))
		api.POST("/payments/webhook", handleWebhook(svcs))
		api.GET("/payments/status", handlePaymentStatus(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Create order with tickets and concessions
// @Param    req body  CreateOrderRequest true "payload"
// @Success  201 {object} CreateOrderResponse
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "seat already taken"
// @Router   /api/orders [post]
func handleCreateOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		in := checkout.CreateOrderInput{
			UserID:        req.UserID,
			ShowID:        req.ShowID,
			PaymentMethod: req.PaymentMethod,
			Customer:      req.Customer,
		}
		for _, s := range req.Seats {
			in.Seats = append(in.Seats, checkout.SeatInput{Row: s.Row, Seat: s.Seat})
		}
		for _, l := range req.Concessions {
			in.Concessions = append(in.Concessions, checkout.ConcessionLine{ID: l.ID, Quantity: l.Quantity})
		}

		d, err := svcs.Checkout.CreateOrder(c.Request.Context(), in)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, CreateOrderResponse{
			OrderID:     d.Order.ID.String(),
			TotalAmount: d.Order.TotalAmount,
			Status:      d.Order.Status(),
			Tickets:     d.Tickets,
		})
	}
}

// @Summary  Get order with tickets and line items
// @Param    id  path  string  true  "Order ID (uuid)"
// @Success  200 {object} domain.OrderDetails
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Router   /api/orders/{id} [get]
func handleGetOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		d, err := svcs.Orders.GetOrder(c.Request.Context(), orderID)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, d, "no-cache", true)
	}
}

// @Summary  List webhook deliveries recorded for an order
// @Param    id     path   string  true   "Order ID (uuid)"
// @Param    limit  query  int     false  "max entries"
// @Success  200 {array}  domain.WebhookDelivery
// @Failure  501 {object} ErrorResponse "delivery log disabled"
// @Router   /api/orders/{id}/webhooks [get]
func handleListDeliveries(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		limit := parseIntDefault(c.Query("limit"), 50)
		out, err := svcs.Orders.Deliveries(c.Request.Context(), orderID, int64(limit))
		if err != nil {
			respondErr(c, err)
			return
		}
		if out == nil {
			out = []domain.WebhookDelivery{}
		}

		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Stream order status changes over a websocket
// @Param    id  path  string  true  "Order ID (uuid)"
// @Success  101 {object} domain.OrderStatusEvent
// @Failure  404 {object} ErrorResponse
// @Router   /api/orders/{id}/ws [get]
func handleOrderWS(ws *realtime.WSHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		ws.Serve(c.Writer, c.Request, orderID)
	}
}

// @Summary  Create payment preference for an order
// @Param    req body  CreatePreferenceRequest true "payload"
// @Success  200 {object} CreatePreferenceResponse
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Failure  429 {object} ErrorResponse "rate limited"
// @Failure  502 {object} ErrorResponse "gateway error"
// @Router   /api/payments/preference [post]
func handleCreatePreference(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreatePreferenceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		labels := make([]string, 0, len(req.SelectedSeats))
		for _, s := range req.SelectedSeats {
			if id := strings.TrimSpace(s.ID); id != "" {
				labels = append(labels, id)
			}
		}

		pref, err := svcs.Checkout.CreatePreference(c.Request.Context(), checkout.PreferenceInput{
			OrderID:     string(req.CompraID),
			TotalPrice:  req.TotalPrice,
			Customer:    req.CustomerData,
			SeatLabels:  labels,
			Concessions: req.CarritoAlimentos,
			ClientID:    "ip:" + c.ClientIP(),
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, CreatePreferenceResponse{
			Success:          true,
			PreferenceID:     pref.ID,
			InitPoint:        pref.InitPoint,
			SandboxInitPoint: pref.SandboxInitPoint,
			QRCode:           pref.CheckoutURL(),
		})
	}
}

// @Summary  Payment gateway notification receiver
// @Param    x-signature   header  string  false  "ts=<ts>,v1=<hmac>"
// @Param    x-request-id  header  string  false  "gateway request id"
// @Param    data.id       query   string  false  "payment id"
// @Success  200 {object} WebhookResponse
// @Failure  400 {object} ErrorResponse
// @Failure  401 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "delivery in progress"
// @Failure  502 {object} ErrorResponse "gateway lookup failed"
// @Router   /api/payments/webhook [post]
func handleWebhook(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			badRequest(c, "unreadable body")
			return
		}

		res, err := svcs.Payments.HandleWebhook(c.Request.Context(), payments.WebhookInput{
			Body:        body,
			Signature:   c.GetHeader("x-signature"),
			RequestID:   c.GetHeader("x-request-id"),
			QueryDataID: c.Query("data.id"),
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, WebhookResponse{
			Received: true,
			Ignored:  res.Outcome == payments.OutcomeIgnoredType || res.Outcome == payments.OutcomeIgnoredTest,
			Outcome:  res.Outcome,
			OrderID:  res.OrderID,
			Status:   res.Status,
		})
	}
}

// @Summary  Poll payment status by preference or payment id
// @Param    preference_id  query  string  false  "gateway preference id"
// @Param    payment_id     query  string  false  "gateway payment id"
// @Success  200 {object} StatusResponse
// @Success  304 "not modified"
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Router   /api/payments/status [get]
func handlePaymentStatus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := svcs.Payments.Status(c.Request.Context(), payments.StatusQuery{
			PreferenceID: c.Query("preference_id"),
			PaymentID:    c.Query("payment_id"),
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, StatusResponse{
			Success: true,
			Status:  v.Status,
			OrderID: v.OrderID,
			Amount:  v.Amount,
		}, "no-cache", true)
	}
}

// --- Helpers ---

func parseUUIDParam(c *gin.Context, name string) (string, bool) {
	s := c.Param(name)
	if _, err := uuid.Parse(s); err != nil {
		badRequest(c, "invalid "+name)
		return "", false
	}
	return s, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func errJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var (
		validationErr *checkout.ValidationError
		rateErr       *checkout.RateLimitedError
		gatewayErr    *checkout.GatewayError
	)

	switch {
	// checkout service
	case errors.As(err, &validationErr):
		badRequest(c, validationErr.Error())
	case errors.Is(err, checkout.ErrInvalidInput):
		badRequest(c, "invalid input")
	case errors.As(err, &rateErr):
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(rateErr.RetryAfter.Seconds()))))
		errJSON(c, http.StatusTooManyRequests, "too many requests")
	case errors.Is(err, checkout.ErrOrderNotFound):
		errJSON(c, http.StatusNotFound, "order not found")
	case errors.Is(err, checkout.ErrSeatTaken):
		errJSON(c, http.StatusConflict, "seat already taken")
	case errors.As(err, &gatewayErr):
		errJSON(c, http.StatusBadGateway, gatewayErr.Message)
	case errors.Is(err, checkout.ErrPersistPreference):
		errJSON(c, http.StatusInternalServerError, "failed to store payment preference")

	// payments service
	case errors.Is(err, payments.ErrInvalidPayload):
		badRequest(c, "invalid webhook payload")
	case errors.Is(err, payments.ErrInvalidSignature):
		errJSON(c, http.StatusUnauthorized, "invalid signature")
	case errors.Is(err, payments.ErrPaymentLookup):
		errJSON(c, http.StatusBadGateway, "payment lookup failed")
	case errors.Is(err, payments.ErrMissingExternalReference):
		badRequest(c, "payment has no external reference")
	case errors.Is(err, payments.ErrInProgress):
		c.Header("Retry-After", "1")
		errJSON(c, http.StatusConflict, "notification in progress")
	case errors.Is(err, payments.ErrOrderNotFound):
		errJSON(c, http.StatusNotFound, "order not found")
	case errors.Is(err, payments.ErrUnknownOrderReference):
		badRequest(c, "external reference matches no order")
	case errors.Is(err, payments.ErrMissingLookupKey):
		badRequest(c, "preference_id or payment_id is required")

	// orders service
	case errors.Is(err, orders.ErrOrderNotFound):
		errJSON(c, http.StatusNotFound, "order not found")
	case errors.Is(err, orders.ErrLogDisabled):
		errJSON(c, http.StatusNotImplemented, "delivery log disabled")

	default:
		errJSON(c, http.StatusInternalServerError, "internal error")
	}

	if c.Writer.Status() >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
}
