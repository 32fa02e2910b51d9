package payment

import (
	"strings"

	"github.com/google/uuid"
	"github.com/mstgnz/storegate/provider"
)

var refundNamespace = uuid.MustParse("5b0c2a4e-8f0e-4c59-9a8c-3f1d2e7a9b10")

// RefundReference derives a stable refund reference from the payment and amount,
// so a retried refund reaches the gateway with the same reference.
func RefundReference(providerName, paymentID string, amount float64) string {
	seed := strings.Join([]string{
		provider.NormalizeName(providerName),
		paymentID,
		RefundAmountKey(&amount),
	}, ":")
	return strings.ReplaceAll(uuid.NewSHA1(refundNamespace, []byte(seed)).String(), "-", "")
}
