package sales

import "strings"

// PaymentMethod is how the client pays for an order
type PaymentMethod string

const (
	PaymentCash            PaymentMethod = "CASH"
	PaymentCreditCard      PaymentMethod = "CREDIT_CARD"
	PaymentDebitCard       PaymentMethod = "DEBIT_CARD"
	PaymentInstantTransfer PaymentMethod = "INSTANT_TRANSFER"
	PaymentInvoiceBilling  PaymentMethod = "INVOICE_BILLING"
)

// DefaultPaymentMethod is selected when a session starts or is reset
const DefaultPaymentMethod = PaymentCash

// AllPaymentMethods lists the methods in display order
func AllPaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		PaymentCash,
		PaymentCreditCard,
		PaymentDebitCard,
		PaymentInstantTransfer,
		PaymentInvoiceBilling,
	}
}

// IsValid checks if the method is a known PaymentMethod
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCash, PaymentCreditCard, PaymentDebitCard, PaymentInstantTransfer, PaymentInvoiceBilling:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// ParsePaymentMethod parses a method name case-insensitively
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", ErrInvalidPaymentMethod
	}
	return m, nil
}
