package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	AuthCache *redis.Client
	Metrics   gin.HandlerFunc

	// Configuration and eligibility endpoints
	GetConfigurationHandler gin.HandlerFunc
	CheckEligibilityHandler gin.HandlerFunc

	// Reader endpoints
	ConnectReaderHandler    gin.HandlerFunc
	DisconnectReaderHandler gin.HandlerFunc
	ReaderStatusHandler     gin.HandlerFunc

	// Payment endpoints
	StartPaymentHandler  gin.HandlerFunc
	CancelPaymentHandler gin.HandlerFunc
	PaymentStateHandler  gin.HandlerFunc
	GetReceiptHandler    gin.HandlerFunc
	GetAttemptHandler    gin.HandlerFunc
	ListAttemptsHandler  gin.HandlerFunc
}

// NewHandlerBundle exposes every PaymentHandler endpoint.
func NewHandlerBundle(h *PaymentHandler, authCache *redis.Client, metrics gin.HandlerFunc) *HandlerBundle {
	return &HandlerBundle{
		AuthCache:               authCache,
		Metrics:                 metrics,
		GetConfigurationHandler: h.GetConfigurationHandler,
		CheckEligibilityHandler: h.CheckEligibilityHandler,
		ConnectReaderHandler:    h.ConnectReaderHandler,
		DisconnectReaderHandler: h.DisconnectReaderHandler,
		ReaderStatusHandler:     h.GetStateHandler,
		StartPaymentHandler:     h.StartPaymentHandler,
		CancelPaymentHandler:    h.CancelPaymentHandler,
		PaymentStateHandler:     h.GetStateHandler,
		GetReceiptHandler:       h.GetReceiptHandler,
		GetAttemptHandler:       h.GetAttemptHandler,
		ListAttemptsHandler:     h.ListAttemptsHandler,
	}
}
