package service

import (
	"context"

	"github.com/lshigami/Quokkas/internal/gateway"
)

// PaymentGateway is the provider boundary as seen by the reconciler.
// Declared here so service tests can substitute a mock.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, params gateway.CreateOrderParams) (*gateway.Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(rawBody []byte, signature, timestamp string) bool
	QueryPaymentStatus(ctx context.Context, paymentID string) (gateway.PaymentStatus, error)
}
