package notifications

// Payload is one user-facing notification. Empty payloads are never shown.
type Payload struct {
	Title   string
	Content string
}

// Sender delivers notifications. Delivery is best-effort, so Send has no error.
type Sender interface {
	Send(payload Payload)
}
