package response

import (
	"cinema-ticketing/internal/data/entity"

	"github.com/shopspring/decimal"
)

// PaymentHandleResponse is what the client needs to send the user to the
// processor's checkout page.
type PaymentHandleResponse struct {
	PaymentID   string               `json:"payment_id"`
	CheckoutID  string               `json:"checkout_id"`
	RedirectURL string               `json:"redirect_url"`
	Status      entity.PaymentStatus `json:"status"`
	TotalAmount decimal.Decimal      `json:"total_amount"`
	Currency    string               `json:"currency"`
}
