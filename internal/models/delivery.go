package models

// Delivery is the local record of one broadcast recipient. Deliveries are kept
// by the console only; the API keeps its own attendance log.
type Delivery struct {
	// ID is the unique identifier for the delivery (UUID format).
	ID string

	// BatchID groups the deliveries of one broadcast (UUID format).
	BatchID string

	// UserID is the recipient.
	UserID string

	// GroupID is the group that was selected when the broadcast was sent.
	GroupID string

	// Message is the full text sent, greeting included.
	Message string

	// Delivered is true when the API acknowledged the message.
	Delivered bool

	// Error is the failure reported for this recipient, if any.
	Error string

	// CreatedAt is the Unix timestamp when the delivery was attempted.
	CreatedAt int64
}
