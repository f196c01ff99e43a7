// internal/domain/checkout/entity.go
package checkout

// PaymentProvider enumerates the offered payment methods
type PaymentProvider string

const (
	PaymentVisa     PaymentProvider = "visa"
	PaymentPrivat24 PaymentProvider = "privat24"
)

// Valid reports whether the provider is one of the offered methods
func (p PaymentProvider) Valid() bool {
	switch p {
	case PaymentVisa, PaymentPrivat24:
		return true
	}
	return false
}

// ShippingForm is the checkout form as entered by the user. Only first
// and last name are validated locally; everything else is pass-through
// for the service to judge.
type ShippingForm struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Country     string
	City        string
	Address1    string
	Address2    string
	State       string
	PostalCode  string
	Company     string
}

// OrderRequest is the wire payload for submitting a checkout
type OrderRequest struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	PhoneNumber     string `json:"phone_number"`
	Country         string `json:"country"`
	City            string `json:"city"`
	Address1        string `json:"address1"`
	Address2        string `json:"address2"`
	State           string `json:"state"`
	PostalCode      string `json:"postal_code"`
	Company         string `json:"company"`
	PaymentProvider string `json:"payment_provider"`
}

// GeneralErrorKey indexes failures that are not attributable to a field
const GeneralErrorKey = "general"

// Result is the outcome of one submit attempt: an order identity on
// success, or a field-keyed error map on failure — never both.
type Result struct {
	OrderID string
	Errors  map[string]string
}

// Succeeded reports whether an order was created
func (r Result) Succeeded() bool {
	return r.OrderID != ""
}

func (f ShippingForm) toRequest(provider PaymentProvider) OrderRequest {
	return OrderRequest{
		FirstName:       f.FirstName,
		LastName:        f.LastName,
		Email:           f.Email,
		PhoneNumber:     f.PhoneNumber,
		Country:         f.Country,
		City:            f.City,
		Address1:        f.Address1,
		Address2:        f.Address2,
		State:           f.State,
		PostalCode:      f.PostalCode,
		Company:         f.Company,
		PaymentProvider: string(provider),
	}
}
