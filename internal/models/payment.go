package models

// PaymentStatus is the state written for one billing period.
type PaymentStatus string

const (
	StatusPaid   PaymentStatus = "paid"
	StatusUnpaid PaymentStatus = "unpaid"
)

// PaymentEvent is a single write in a user's payment history.
type PaymentEvent struct {
	// Status is "paid" or "unpaid".
	Status PaymentStatus `json:"status"`

	// Date is when the payment was recorded. Unpaid writes usually carry no date,
	// and malformed dates decode as absent.
	Date Timestamp `json:"date"`

	// MonthKey identifies the billing period, formatted "<MonthName>-<Year>"
	// (e.g., "March-2024").
	MonthKey string `json:"monthKey"`

	// Name and Surname are copies of the user's names at write time.
	Name    string `json:"name,omitempty"`
	Surname string `json:"surname,omitempty"`
}

// PaymentRecord is the append-only payment history of one user.
type PaymentRecord struct {
	History []PaymentEvent `json:"history"`
}

// Payments maps user ID to payment record, as returned by GET /payments.
type Payments map[string]PaymentRecord
