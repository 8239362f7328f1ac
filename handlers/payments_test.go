package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cardpresent/models"
	"cardpresent/services/configuration"
	"cardpresent/services/eligibility"
	"cardpresent/services/payments"
	"cardpresent/services/terminal"
	"cardpresent/utils"

	"github.com/gin-gonic/gin"
)

var errMissing = errors.New("missing")

type fakeSession struct {
	startErr  error
	cancelErr error
	gotReq     payments.PaymentRequest
	receipt    *models.ReceiptParameters
	receiptErr error
	gotSite    string
}

func (f *fakeSession) ConnectReader(ctx context.Context) (*models.Reader, error) {
	return &models.Reader{ID: "tmr_1"}, nil
}

func (f *fakeSession) DisconnectReader(ctx context.Context) error { return nil }

func (f *fakeSession) StartPayment(ctx context.Context, req payments.PaymentRequest) (*models.PaymentIntent, *models.ReceiptParameters, error) {
	f.gotReq = req
	if f.startErr != nil {
		return nil, nil, f.startErr
	}
	return &models.PaymentIntent{ID: "pi_1", Status: models.PaymentIntentStatusSucceeded}, f.receipt, nil
}

func (f *fakeSession) Cancel(ctx context.Context) error { return f.cancelErr }

func (f *fakeSession) Snapshot(ctx context.Context) payments.Snapshot {
	return payments.Snapshot{State: payments.StateIdle}
}

func (f *fakeSession) Receipt(ctx context.Context, intentID, siteID string) (*models.ReceiptParameters, error) {
	f.gotSite = siteID
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	return f.receipt, nil
}

type fakeDispatcher struct {
	result     models.Eligibility
	err        error
	dispatched *int
}

func (f fakeDispatcher) Dispatch(action eligibility.CheckEligibilityAction) {
	if f.dispatched != nil {
		*f.dispatched++
	}
	go action.OnCompletion(f.result, f.err)
}

type fakeAttempts struct {
	byID map[string]models.PaymentAttempt
}

func (f fakeAttempts) GetByID(ctx context.Context, id string) (*models.PaymentAttempt, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, errMissing
	}
	return &a, nil
}

func (f fakeAttempts) GetByOrderID(ctx context.Context, siteID, orderID string) ([]models.PaymentAttempt, error) {
	var out []models.PaymentAttempt
	for _, a := range f.byID {
		if a.SiteID == siteID && a.OrderID == orderID {
			out = append(out, a)
		}
	}
	return out, nil
}

func usConfig() (models.CardPresentPaymentsConfiguration, error) {
	return configuration.MakeConfiguration("US", false, false)
}

func newTestRouter(h *PaymentHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(utils.ContextSiteID, "site-from-token")
		c.Next()
	})
	r.GET("/configuration", h.GetConfigurationHandler)
	r.POST("/eligibility", h.CheckEligibilityHandler)
	r.POST("/payments", h.StartPaymentHandler)
	r.POST("/payments/cancel", h.CancelPaymentHandler)
	r.GET("/attempts", h.ListAttemptsHandler)
	r.GET("/attempts/:id", h.GetAttemptHandler)
	r.GET("/intents/:id/receipt", h.GetReceiptHandler)
	return r
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetConfigurationHandler(t *testing.T) {
	h := NewPaymentHandler(&fakeSession{}, usConfig, fakeDispatcher{}, fakeAttempts{}, errMissing)
	w := serve(newTestRouter(h), http.MethodGet, "/configuration", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var cfg models.CardPresentPaymentsConfiguration
	if err := json.Unmarshal(w.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.CountryCode != "US" {
		t.Fatalf("expected US configuration, got %q", cfg.CountryCode)
	}

	missing := func() (models.CardPresentPaymentsConfiguration, error) {
		return configuration.MakeConfiguration("FR", false, false)
	}
	h = NewPaymentHandler(&fakeSession{}, missing, fakeDispatcher{}, fakeAttempts{}, errMissing)
	w = serve(newTestRouter(h), http.MethodGet, "/configuration", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unsupported country, got %d", w.Code)
	}

	h.ForCountry = func(country string) (models.CardPresentPaymentsConfiguration, error) {
		return configuration.MakeConfiguration(country, false, true)
	}
	w = serve(newTestRouter(h), http.MethodGet, "/configuration?country=ca", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for CA with canada enabled, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCheckEligibilityHandler_RequiresOrderID(t *testing.T) {
	h := NewPaymentHandler(&fakeSession{}, usConfig, fakeDispatcher{}, fakeAttempts{}, errMissing)
	w := serve(newTestRouter(h), http.MethodPost, "/eligibility", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCheckEligibilityHandler(t *testing.T) {
	tests := []struct {
		name   string
		result models.Eligibility
		err    error
		want   int
	}{
		{"eligible", models.Eligibility{OrderID: "42", Eligible: true}, nil, http.StatusOK},
		{"ineligible", models.Eligibility{OrderID: "42", Reason: "paid"}, eligibility.ErrIneligible, http.StatusOK},
		{"unauthorized", models.Eligibility{}, eligibility.ErrUnauthorized, http.StatusBadGateway},
		{"network", models.Eligibility{}, eligibility.ErrNetwork, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewPaymentHandler(&fakeSession{}, usConfig, fakeDispatcher{result: tt.result, err: tt.err}, fakeAttempts{}, errMissing)
			w := serve(newTestRouter(h), http.MethodPost, "/eligibility", `{"orderId":"42"}`)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestStartPaymentHandler(t *testing.T) {
	session := &fakeSession{receipt: &models.ReceiptParameters{Amount: 1999, Currency: "usd"}}
	h := NewPaymentHandler(session, usConfig, fakeDispatcher{}, fakeAttempts{}, errMissing)
	w := serve(newTestRouter(h), http.MethodPost, "/payments", `{"orderId":"42","amount":"19.99","currency":"USD"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if session.gotReq.SiteID != "site-from-token" {
		t.Fatalf("expected site id from token, got %q", session.gotReq.SiteID)
	}
	if session.gotReq.Amount.String() != "19.99" {
		t.Fatalf("expected amount 19.99, got %s", session.gotReq.Amount)
	}

	w = serve(newTestRouter(h), http.MethodPost, "/payments", `{"amount":"1"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing order id, got %d", w.Code)
	}
}

func TestStartPaymentHandler_ErrorMapping(t *testing.T) {
	declined := &payments.PaymentError{
		Class:      payments.ClassProcessing,
		Code:       string(terminal.CodeCardDeclined),
		NextAction: payments.ActionTryAnotherCard,
		Err:        errors.New("declined"),
	}
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"busy", payments.ErrInvalidTransition, http.StatusConflict},
		{"declined", declined, http.StatusPaymentRequired},
		{"ineligible", &payments.PaymentError{Class: payments.ClassEligibility, Code: payments.CodeIneligible, Err: eligibility.ErrIneligible}, http.StatusUnprocessableEntity},
		{"below minimum", &payments.PaymentError{Class: payments.ClassIntentBuild, Code: payments.CodeAmountBelowMinimum, Err: errors.New("too small")}, http.StatusBadRequest},
		{"reader offline", &payments.PaymentError{Class: payments.ClassConnection, Code: string(terminal.CodeReaderOffline), Retryable: true, Err: errors.New("offline")}, http.StatusServiceUnavailable},
		{"canceled", &payments.PaymentError{Class: payments.ClassCanceled, Code: payments.CodeCanceled, Err: payments.ErrCanceled}, http.StatusConflict},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewPaymentHandler(&fakeSession{startErr: tt.err}, usConfig, fakeDispatcher{}, fakeAttempts{}, errMissing)
			w := serve(newTestRouter(h), http.MethodPost, "/payments", `{"orderId":"42","amount":"5","currency":"USD"}`)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}

	h := NewPaymentHandler(&fakeSession{startErr: declined}, usConfig, fakeDispatcher{}, fakeAttempts{}, errMissing)
	w := serve(newTestRouter(h), http.MethodPost, "/payments", `{"orderId":"42","amount":"5","currency":"USD"}`)
	var resp utils.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != "card_declined" || resp.NextAction != "try_another_card" {
		t.Fatalf("unexpected error body: %+v", resp)
	}
}

func TestCancelPaymentHandler(t *testing.T) {
	h := NewPaymentHandler(&fakeSession{cancelErr: payments.ErrNoActiveAttempt}, usConfig, fakeDispatcher{}, fakeAttempts{}, errMissing)
	w := serve(newTestRouter(h), http.MethodPost, "/payments/cancel", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 without an attempt, got %d", w.Code)
	}

	h = NewPaymentHandler(&fakeSession{}, usConfig, fakeDispatcher{}, fakeAttempts{}, errMissing)
	w = serve(newTestRouter(h), http.MethodPost, "/payments/cancel", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAttemptHandlers(t *testing.T) {
	store := fakeAttempts{byID: map[string]models.PaymentAttempt{
		"a1": {ID: "a1", SiteID: "site-from-token", OrderID: "42"},
	}}
	r := newTestRouter(NewPaymentHandler(&fakeSession{}, usConfig, fakeDispatcher{}, store, errMissing))

	if w := serve(r, http.MethodGet, "/attempts/a1", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/attempts/nope", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/attempts", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without orderId, got %d", w.Code)
	}

	w := serve(r, http.MethodGet, "/attempts?orderId=42", "")
	var body struct {
		Attempts []models.PaymentAttempt `json:"attempts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Attempts) != 1 || body.Attempts[0].ID != "a1" {
		t.Fatalf("expected attempt a1, got %+v", body.Attempts)
	}
}

func TestGetReceiptHandler(t *testing.T) {
	r := newTestRouter(NewPaymentHandler(&fakeSession{}, usConfig, fakeDispatcher{}, fakeAttempts{}, errMissing))
	if w := serve(r, http.MethodGet, "/intents/pi_1/receipt", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without card details, got %d", w.Code)
	}
}

func TestGetReceiptHandler_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unsettled", fmt.Errorf("%w: intent pi_1 is still processing", payments.ErrReceiptUnavailable), http.StatusConflict},
		{"other site", fmt.Errorf("%w: pi_1", payments.ErrIntentNotFound), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &fakeSession{receiptErr: tt.err}
			r := newTestRouter(NewPaymentHandler(session, usConfig, fakeDispatcher{}, fakeAttempts{}, errMissing))
			w := serve(r, http.MethodGet, "/intents/pi_1/receipt", "")
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
			if session.gotSite != "site-from-token" {
				t.Fatalf("expected lookup scoped to site-from-token, got %q", session.gotSite)
			}
		})
	}
}

func TestHandlers_RejectForeignSite(t *testing.T) {
	session := &fakeSession{}
	dispatched := 0
	store := fakeAttempts{byID: map[string]models.PaymentAttempt{
		"a1": {ID: "a1", SiteID: "site-from-token", OrderID: "42"},
		"a2": {ID: "a2", SiteID: "other-site", OrderID: "42"},
	}}
	r := newTestRouter(NewPaymentHandler(session, usConfig, fakeDispatcher{dispatched: &dispatched}, store, errMissing))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"start payment", http.MethodPost, "/payments", `{"siteId":"other-site","orderId":"42","amount":"5","currency":"USD"}`, http.StatusForbidden},
		{"eligibility", http.MethodPost, "/eligibility", `{"siteId":"other-site","orderId":"42"}`, http.StatusForbidden},
		{"list attempts", http.MethodGet, "/attempts?orderId=42&siteId=other-site", "", http.StatusForbidden},
		{"attempt of other site", http.MethodGet, "/attempts/a2", "", http.StatusNotFound},
		{"matching site", http.MethodPost, "/payments", `{"siteId":"site-from-token","orderId":"42","amount":"5","currency":"USD"}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
	if session.gotReq.OrderID != "42" || session.gotReq.SiteID != "site-from-token" {
		t.Fatalf("only the matching request should reach the session, got %+v", session.gotReq)
	}
	if dispatched != 0 {
		t.Fatalf("expected no eligibility dispatch for a foreign site, got %d", dispatched)
	}
}

func TestSiteFor_WithoutTokenSite(t *testing.T) {
	session := &fakeSession{}
	h := NewPaymentHandler(session, usConfig, fakeDispatcher{}, fakeAttempts{}, errMissing)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/payments", h.StartPaymentHandler)

	w := serve(r, http.MethodPost, "/payments", `{"siteId":"site-7","orderId":"42","amount":"5","currency":"USD"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if session.gotReq.SiteID != "site-7" {
		t.Fatalf("expected explicit site id, got %q", session.gotReq.SiteID)
	}
}
