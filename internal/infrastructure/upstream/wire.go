package upstream

import (
	"fmt"
	"strings"

	"github.com/erp/salesdesk/internal/domain/sales"
)

var paymentWire = map[sales.PaymentMethod]string{
	sales.PaymentCash:            "dinheiro",
	sales.PaymentCreditCard:      "cartao_credito",
	sales.PaymentDebitCard:       "cartao_debito",
	sales.PaymentInstantTransfer: "pix",
	sales.PaymentInvoiceBilling:  "boleto",
}

// PaymentToWire returns the ERP value of a payment method
func PaymentToWire(m sales.PaymentMethod) (string, error) {
	v, ok := paymentWire[m]
	if !ok {
		return "", fmt.Errorf("%w: %q", sales.ErrInvalidPaymentMethod, m)
	}
	return v, nil
}

// StatusFromWire maps an ERP order status
func StatusFromWire(s string) (sales.OrderStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PENDENTE", "RASCUNHO":
		return sales.OrderStatusDraft, nil
	case "FINALIZADA", "CONCLUIDA":
		return sales.OrderStatusFinalized, nil
	case "CANCELADA":
		return sales.OrderStatusCancelled, nil
	}
	return "", fmt.Errorf("%w: unknown order status %q", sales.ErrInvalidOrderStatus, s)
}
