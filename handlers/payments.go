package handlers

import (
	"context"
	"errors"
	"net/http"

	"cardpresent/models"
	"cardpresent/services/configuration"
	"cardpresent/services/eligibility"
	"cardpresent/services/payments"
	"cardpresent/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentSession is the orchestrator surface used over HTTP.
type PaymentSession interface {
	ConnectReader(ctx context.Context) (*models.Reader, error)
	DisconnectReader(ctx context.Context) error
	StartPayment(ctx context.Context, req payments.PaymentRequest) (*models.PaymentIntent, *models.ReceiptParameters, error)
	Cancel(ctx context.Context) error
	Snapshot(ctx context.Context) payments.Snapshot
	Receipt(ctx context.Context, intentID, siteID string) (*models.ReceiptParameters, error)
}

// EligibilityDispatcher runs eligibility checks off the request goroutine.
type EligibilityDispatcher interface {
	Dispatch(action eligibility.CheckEligibilityAction)
}

// AttemptReader looks up recorded payment attempts.
type AttemptReader interface {
	GetByID(ctx context.Context, id string) (*models.PaymentAttempt, error)
	GetByOrderID(ctx context.Context, siteID, orderID string) ([]models.PaymentAttempt, error)
}

// CountryResolver resolves the configuration of another country with the
// store's capability toggles.
type CountryResolver func(country string) (models.CardPresentPaymentsConfiguration, error)

// PaymentHandler serves the point-of-sale payment endpoints.
type PaymentHandler struct {
	Session       PaymentSession
	Configuration payments.ConfigurationProvider
	ForCountry    CountryResolver
	Eligibility   EligibilityDispatcher
	Attempts      AttemptReader
	NotFound      error
}

// NewPaymentHandler wires the handler; notFound is the repository's missing-attempt error.
func NewPaymentHandler(session PaymentSession, cfg payments.ConfigurationProvider, dispatcher EligibilityDispatcher, attempts AttemptReader, notFound error) *PaymentHandler {
	return &PaymentHandler{
		Session:       session,
		Configuration: cfg,
		Eligibility:   dispatcher,
		Attempts:      attempts,
		NotFound:      notFound,
	}
}

// siteFor resolves the site a request acts for. A site carried by the merchant
// token wins and an explicit site id naming another site is refused with 403.
func siteFor(c *gin.Context, explicit string) (string, bool) {
	token := c.GetString(utils.ContextSiteID)
	if token == "" || explicit == "" || explicit == token {
		if token != "" {
			return token, true
		}
		return explicit, true
	}
	getLogger(c).Warn("Site id does not match merchant token",
		zap.String("requested_site", explicit), zap.String("token_site", token))
	c.JSON(http.StatusForbidden, gin.H{"error": "site id does not match the merchant token"})
	return "", false
}

// GetConfigurationHandler handles GET /api/payments/configuration?country=.
// Without a country the store's own configuration is returned.
func (h *PaymentHandler) GetConfigurationHandler(c *gin.Context) {
	logger := getLogger(c)
	var (
		cfg models.CardPresentPaymentsConfiguration
		err error
	)
	if country := c.Query("country"); country != "" && h.ForCountry != nil {
		cfg, err = h.ForCountry(country)
	} else {
		cfg, err = h.Configuration()
	}
	if err != nil {
		logger.Warn("Card present configuration unavailable", zap.Error(err))
		if errors.Is(err, configuration.ErrConfigurationMissing) {
			c.JSON(http.StatusNotFound, gin.H{"error": "card present payments are not available for this store", "details": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// CheckEligibilityHandler handles POST /api/payments/eligibility.
func (h *PaymentHandler) CheckEligibilityHandler(c *gin.Context) {
	logger := getLogger(c)
	var input struct {
		SiteID  string `json:"siteId"`
		OrderID string `json:"orderId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	siteID, ok := siteFor(c, input.SiteID)
	if !ok {
		return
	}
	cfg, err := h.Configuration()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "card present payments are not available for this store", "details": err.Error()})
		return
	}

	type outcome struct {
		result models.Eligibility
		err    error
	}
	done := make(chan outcome, 1)
	h.Eligibility.Dispatch(eligibility.CheckEligibilityAction{
		OrderID:       input.OrderID,
		SiteID:        siteID,
		Configuration: cfg,
		OnCompletion: func(result models.Eligibility, err error) {
			done <- outcome{result: result, err: err}
		},
	})

	select {
	case <-c.Request.Context().Done():
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "eligibility check abandoned"})
	case out := <-done:
		switch {
		case out.err == nil, errors.Is(out.err, eligibility.ErrIneligible):
			c.JSON(http.StatusOK, out.result)
		case errors.Is(out.err, eligibility.ErrUnauthorized):
			logger.Error("Commerce backend rejected credentials", zap.Error(out.err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "eligibility check unauthorized", "details": out.err.Error()})
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "eligibility check failed", "details": out.err.Error()})
		}
	}
}

// StartPaymentHandler handles POST /api/payments. It blocks until the attempt
// completes, fails or is canceled through CancelPaymentHandler.
func (h *PaymentHandler) StartPaymentHandler(c *gin.Context) {
	logger := getLogger(c)
	var input struct {
		SiteID              string          `json:"siteId"`
		OrderID             string          `json:"orderId" binding:"required"`
		Amount              decimal.Decimal `json:"amount"`
		Currency            string          `json:"currency" binding:"required"`
		StoreName           string          `json:"storeName"`
		ReceiptDescription  string          `json:"receiptDescription"`
		ReceiptEmail        *string         `json:"receiptEmail"`
		StatementDescriptor *string         `json:"statementDescriptor"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	siteID, ok := siteFor(c, input.SiteID)
	if !ok {
		return
	}

	// A dropped client connection is not a cancel; only the cancel endpoint is.
	ctx := context.WithoutCancel(c.Request.Context())
	intent, receipt, err := h.Session.StartPayment(ctx, payments.PaymentRequest{
		SiteID:              siteID,
		OrderID:             input.OrderID,
		Amount:              input.Amount,
		Currency:            input.Currency,
		StoreName:           input.StoreName,
		ReceiptDescription:  input.ReceiptDescription,
		ReceiptEmail:        input.ReceiptEmail,
		StatementDescriptor: input.StatementDescriptor,
	})
	if err != nil {
		logger.Info("Payment attempt did not complete", zap.String("order_id", input.OrderID), zap.Error(err))
		writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"intent": intent, "receipt": receipt})
}

// CancelPaymentHandler handles POST /api/payments/cancel.
func (h *PaymentHandler) CancelPaymentHandler(c *gin.Context) {
	if err := h.Session.Cancel(c.Request.Context()); err != nil {
		writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Session.Snapshot(c.Request.Context()))
}

// GetStateHandler handles GET /api/payments/state and GET /api/readers/status.
func (h *PaymentHandler) GetStateHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.Session.Snapshot(c.Request.Context()))
}

// ConnectReaderHandler handles POST /api/readers/connect.
func (h *PaymentHandler) ConnectReaderHandler(c *gin.Context) {
	reader, err := h.Session.ConnectReader(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		getLogger(c).Warn("Reader connection failed", zap.Error(err))
		writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, reader)
}

// DisconnectReaderHandler handles POST /api/readers/disconnect.
func (h *PaymentHandler) DisconnectReaderHandler(c *gin.Context) {
	if err := h.Session.DisconnectReader(c.Request.Context()); err != nil {
		writeSessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetReceiptHandler handles GET /api/payments/intents/:id/receipt.
func (h *PaymentHandler) GetReceiptHandler(c *gin.Context) {
	receipt, err := h.Session.Receipt(c.Request.Context(), c.Param("id"), c.GetString(utils.ContextSiteID))
	if err != nil {
		writeSessionError(c, err)
		return
	}
	if receipt == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment intent has no card present charge"})
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// GetAttemptHandler handles GET /api/payments/attempts/:id.
func (h *PaymentHandler) GetAttemptHandler(c *gin.Context) {
	id := c.Param("id")
	attempt, err := h.Attempts.GetByID(c.Request.Context(), id)
	if err != nil {
		if h.NotFound != nil && errors.Is(err, h.NotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		getLogger(c).Error("Attempt lookup failed", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// Attempts of other sites are reported as missing.
	if site := c.GetString(utils.ContextSiteID); site != "" && attempt.SiteID != site {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment attempt not found"})
		return
	}
	c.JSON(http.StatusOK, attempt)
}

// ListAttemptsHandler handles GET /api/payments/attempts?orderId=.
func (h *PaymentHandler) ListAttemptsHandler(c *gin.Context) {
	orderID := c.Query("orderId")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "orderId is required"})
		return
	}
	siteID, ok := siteFor(c, c.Query("siteId"))
	if !ok {
		return
	}
	attempts, err := h.Attempts.GetByOrderID(c.Request.Context(), siteID, orderID)
	if err != nil {
		getLogger(c).Error("Attempt listing failed", zap.String("order_id", orderID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}

// writeSessionError maps orchestrator failures onto HTTP statuses.
func writeSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, payments.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "payment session busy", "details": err.Error()})
		return
	case errors.Is(err, payments.ErrNoActiveAttempt), errors.Is(err, payments.ErrReceiptUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, payments.ErrIntentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var perr *payments.PaymentError
	if !errors.As(err, &perr) {
		utils.JSONError(c, http.StatusInternalServerError, "payment session error", err.Error())
		return
	}
	utils.JSONErrorResponse(c, statusFor(perr), utils.ErrorResponse{
		Message:    string(perr.Class) + " failure",
		Details:    perr.Err.Error(),
		Code:       perr.Code,
		Retryable:  perr.Retryable,
		NextAction: string(perr.NextAction),
	})
}

func statusFor(perr *payments.PaymentError) int {
	switch perr.Class {
	case payments.ClassConfiguration:
		return http.StatusNotFound
	case payments.ClassEligibility:
		switch perr.Code {
		case payments.CodeIneligible:
			return http.StatusUnprocessableEntity
		case payments.CodeUnauthorized:
			return http.StatusBadGateway
		}
		return http.StatusServiceUnavailable
	case payments.ClassIntentBuild:
		return http.StatusBadRequest
	case payments.ClassConnection:
		return http.StatusServiceUnavailable
	case payments.ClassCollection, payments.ClassProcessing:
		if perr.NextAction == payments.ActionTryAnotherCard {
			return http.StatusPaymentRequired
		}
		return http.StatusBadGateway
	case payments.ClassCanceled:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
