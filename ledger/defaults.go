package ledger

const (
	DefaultCurrency    = "SAR"
	DefaultRegion      = "KSA"
	DefaultPaymentType = "wallet"
)

// Defaults fills pass-through fields the caller left empty.
type Defaults struct {
	Currency    string
	Region      string
	PaymentType string
}

// WithFallbacks returns d with empty fields set to the package defaults.
func (d Defaults) WithFallbacks() Defaults {
	if d.Currency == "" {
		d.Currency = DefaultCurrency
	}
	if d.Region == "" {
		d.Region = DefaultRegion
	}
	if d.PaymentType == "" {
		d.PaymentType = DefaultPaymentType
	}
	return d
}

// Or returns v, or fallback when v is empty.
func Or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
