package httpgin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/cinetix/internal/domain"
	"github.com/kirinyoku/cinetix/internal/gateway/mercadopago"
	"github.com/kirinyoku/cinetix/internal/repository"
	redisrepo "github.com/kirinyoku/cinetix/internal/repository/redis"
	"github.com/kirinyoku/cinetix/internal/service"
	"github.com/kirinyoku/cinetix/internal/service/checkout"
	"github.com/kirinyoku/cinetix/internal/service/orders"
	"github.com/kirinyoku/cinetix/internal/service/payments"
	"github.com/kirinyoku/cinetix/internal/uow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeOrders struct {
	order *domain.Order
	saved *domain.Preference
}

func (f *fakeOrders) lookup(id uuid.UUID) (*domain.Order, error) {
	if f.order == nil || f.order.ID != id {
		return nil, repository.ErrNotFound
	}
	cp := *f.order
	return &cp, nil
}

func (f *fakeOrders) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return f.lookup(id)
}

func (f *fakeOrders) GetDetails(ctx context.Context, id uuid.UUID) (*domain.OrderDetails, error) {
	o, err := f.lookup(id)
	if err != nil {
		return nil, err
	}
	return &domain.OrderDetails{Order: *o}, nil
}

func (f *fakeOrders) SavePreference(ctx context.Context, id uuid.UUID, pref domain.Preference) error {
	f.saved = &pref
	f.order.Preference = &pref
	return nil
}

func (f *fakeOrders) FindByPreferenceID(ctx context.Context, preferenceID string) (*domain.Order, error) {
	if f.order == nil || f.order.Preference == nil || f.order.Preference.ID != preferenceID {
		return nil, repository.ErrNotFound
	}
	cp := *f.order
	return &cp, nil
}

func (f *fakeOrders) FindByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error) {
	return nil, repository.ErrNotFound
}

type fakeGateway struct {
	prefCalls int
	prefErr   error
	payment   *mercadopago.Payment
}

func (g *fakeGateway) CreatePreference(ctx context.Context, req mercadopago.PreferenceRequest) (*mercadopago.Preference, error) {
	g.prefCalls++
	if g.prefErr != nil {
		return nil, g.prefErr
	}
	return &mercadopago.Preference{ID: "PREF123", InitPoint: "https://mp/init"}, nil
}

func (g *fakeGateway) GetPayment(ctx context.Context, id string) (*mercadopago.Payment, error) {
	if g.payment == nil {
		return nil, mercadopago.ErrPaymentNotFound
	}
	return g.payment, nil
}

// paymentTx runs the webhook transaction against fakeOrders.
type paymentTx struct {
	orders *fakeOrders
}

func (p paymentTx) Do(ctx context.Context, fn func(ctx context.Context, tx payments.Tx, after func(uow.AfterCommit)) error) error {
	return fn(ctx, p, func(uow.AfterCommit) {})
}

func (p paymentTx) LockOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return p.orders.lookup(id)
}

func (p paymentTx) ApplyPayment(ctx context.Context, id uuid.UUID, upd domain.PaymentUpdate) error {
	p.orders.order.PaymentID = upd.PaymentID
	p.orders.order.PaymentStatus = upd.Status
	return nil
}

func (p paymentTx) EnqueueEvent(ctx context.Context, eventType, aggregateID string, payload []byte) error {
	return nil
}

type limiterFunc func(ctx context.Context, clientID string) (redisrepo.Decision, error)

func (f limiterFunc) Allow(ctx context.Context, clientID string) (redisrepo.Decision, error) {
	return f(ctx, clientID)
}

type testEnv struct {
	router  *gin.Engine
	orders  *fakeOrders
	gateway *fakeGateway
	order   *domain.Order
}

func newTestEnv(t *testing.T, limiter checkout.Limiter, verifier payments.Verifier) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	order := &domain.Order{
		ID:            uuid.New(),
		TotalAmount:   decimal.RequireFromString("45.00"),
		PaymentMethod: "mercadopago",
	}
	env := &testEnv{
		orders:  &fakeOrders{order: order},
		gateway: &fakeGateway{},
		order:   order,
	}

	svcs := &service.Services{
		Checkout: checkout.New(env.orders, nil, env.gateway, limiter, nil, logger, checkout.Config{PublicBaseURL: "https://cine.example"}),
		Payments: payments.New(payments.Deps{
			Gateway:  env.gateway,
			Verifier: verifier,
			Orders:   env.orders,
			TxM:      paymentTx{orders: env.orders},
		}, logger, payments.Config{}),
		Orders: orders.New(env.orders, nil),
	}
	env.router = NewRouter(svcs, nil, RouterConfig{}, logger)

	return env
}

func (e *testEnv) do(method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		r = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func preferenceBody(orderID string) map[string]any {
	return map[string]any{
		"compraId":   orderID,
		"totalPrice": 45.00,
		"customerData": map[string]string{
			"nombre":   "Ana",
			"email":    "ana@example.com",
			"telefono": "999111222",
		},
		"selectedSeats":    []map[string]string{{"id": "F7"}, {"id": "F8"}},
		"carritoAlimentos": map[string]int{"popcorn": 1},
	}
}

func TestCreatePreference_Success(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(http.MethodPost, "/api/payments/preference", preferenceBody(env.order.ID.String()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp CreatePreferenceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "PREF123", resp.PreferenceID)
	assert.Equal(t, "https://mp/init", resp.QRCode)
	require.NotNil(t, env.orders.saved)
	assert.Equal(t, "PREF123", env.orders.saved.ID)
}

func TestCreatePreference_MissingFieldsSkipGateway(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	cases := map[string]func(b map[string]any){
		"no order id": func(b map[string]any) { delete(b, "compraId") },
		"zero price":  func(b map[string]any) { b["totalPrice"] = 0 },
		"no customer": func(b map[string]any) { delete(b, "customerData") },
		"no email":    func(b map[string]any) { b["customerData"] = map[string]string{"nombre": "Ana", "telefono": "1"} },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			body := preferenceBody(env.order.ID.String())
			mutate(body)

			w := env.do(http.MethodPost, "/api/payments/preference", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeError(t, w)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}

	assert.Zero(t, env.gateway.prefCalls)
}

func TestCreatePreference_UnknownOrder(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(http.MethodPost, "/api/payments/preference", preferenceBody(uuid.NewString()))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, env.gateway.prefCalls)
}

func TestCreatePreference_TotalMismatch(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	body := preferenceBody(env.order.ID.String())
	body["totalPrice"] = 0.01

	w := env.do(http.MethodPost, "/api/payments/preference", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Error, "totalPrice")
	assert.Zero(t, env.gateway.prefCalls)
}

func TestCreatePreference_GatewayRejected(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.gateway.prefErr = &mercadopago.APIError{StatusCode: 400, Message: "invalid unit_price"}

	w := env.do(http.MethodPost, "/api/payments/preference", preferenceBody(env.order.ID.String()))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "gateway rejected the request: invalid unit_price", decodeError(t, w).Error)
	assert.Nil(t, env.orders.saved)
}

func TestCreatePreference_RateLimited(t *testing.T) {
	limiter := limiterFunc(func(ctx context.Context, clientID string) (redisrepo.Decision, error) {
		return redisrepo.Decision{Count: 11, RetryAfter: 1500 * time.Millisecond}, nil
	})
	env := newTestEnv(t, limiter, nil)

	w := env.do(http.MethodPost, "/api/payments/preference", preferenceBody(env.order.ID.String()))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Zero(t, env.gateway.prefCalls)
}

func TestWebhook_Responses(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		verifier payments.Verifier
		payment  *mercadopago.Payment
		want     int
		ignored  bool
	}{
		{name: "other type", body: `{"type":"merchant_order","data":{"id":"1"}}`, want: http.StatusOK, ignored: true},
		{name: "simulator", body: `{"type":"payment","data":{"id":"123456"}}`, want: http.StatusOK, ignored: true},
		{name: "invalid json", body: `nope`, want: http.StatusBadRequest},
		{name: "bad signature", body: `{"type":"payment","data":{"id":"PAY456"}}`, verifier: mercadopago.NewVerifier("s3cret"), want: http.StatusUnauthorized},
		{name: "lookup failed", body: `{"type":"payment","data":{"id":"PAY456"}}`, want: http.StatusBadGateway},
		{
			name:    "no external reference",
			body:    `{"type":"payment","data":{"id":"PAY456"}}`,
			payment: &mercadopago.Payment{ID: "PAY456", Status: "approved"},
			want:    http.StatusBadRequest,
		},
		{
			name:    "applied",
			body:    `{"type":"payment","data":{"id":"PAY456"}}`,
			payment: &mercadopago.Payment{ID: "PAY456", Status: "approved", ExternalReference: "{order}"},
			want:    http.StatusOK,
		},
		{
			name:    "unknown order",
			body:    `{"type":"payment","data":{"id":"PAY456"}}`,
			payment: &mercadopago.Payment{ID: "PAY456", Status: "approved", ExternalReference: uuid.NewString()},
			want:    http.StatusBadRequest,
		},
		{
			name:    "reference is not an order id",
			body:    `{"type":"payment","data":{"id":"PAY456"}}`,
			payment: &mercadopago.Payment{ID: "PAY456", Status: "approved", ExternalReference: "O1"},
			want:    http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil, tt.verifier)
			if tt.payment != nil && tt.payment.ExternalReference == "{order}" {
				tt.payment.ExternalReference = env.order.ID.String()
			}
			env.gateway.payment = tt.payment

			w := env.do(http.MethodPost, "/api/payments/webhook", tt.body,
				"x-signature", "ts=1,v1=00", "x-request-id", "req-1")
			assert.Equal(t, tt.want, w.Code, w.Body.String())

			if tt.want == http.StatusOK {
				var resp WebhookResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.True(t, resp.Received)
				assert.Equal(t, tt.ignored, resp.Ignored)
			}
		})
	}
}

func TestPaymentStatus(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.order.Preference = &domain.Preference{ID: "PREF123"}

	w := env.do(http.MethodGet, "/api/payments/status", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/payments/status?preference_id=NOPE", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, decodeError(t, w).Success)

	w = env.do(http.MethodGet, "/api/payments/status?preference_id=PREF123", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, domain.StatusPending, resp.Status)
	assert.Equal(t, env.order.ID.String(), resp.OrderID)
	assert.Equal(t, "45", resp.Amount.String())

	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	w = env.do(http.MethodGet, "/api/payments/status?preference_id=PREF123", nil, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, w.Code)
}

func TestGetOrder(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(http.MethodGet, "/api/orders/O1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/orders/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/orders/"+env.order.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/orders/"+env.order.ID.String()+"/webhooks", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestCreateOrder_BindingErrors(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(http.MethodPost, "/api/orders", map[string]any{"show_id": 7, "seats": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/orders", map[string]any{
		"show_id":  7,
		"customer": map[string]string{"nombre": "Ana", "email": "not-an-email", "telefono": "1"},
		"seats":    []map[string]any{{"row": "F", "seat": 7}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Error, "customer.email")
}

func TestRespondErr(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New("boom"), http.StatusInternalServerError},
		{payments.ErrInProgress, http.StatusConflict},
		{checkout.ErrSeatTaken, http.StatusConflict},
		{checkout.ErrPersistPreference, http.StatusInternalServerError},
		{&checkout.GatewayError{Message: "payment gateway unavailable"}, http.StatusBadGateway},
		{orders.ErrOrderNotFound, http.StatusNotFound},
		{payments.ErrUnknownOrderReference, http.StatusBadRequest},
		{&checkout.ValidationError{Field: "totalPrice", Reason: "does not match order total 45.00"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		respondErr(c, tt.err)
		assert.Equal(t, tt.want, w.Code, tt.err.Error())
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondErr(c, payments.ErrInProgress)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}
