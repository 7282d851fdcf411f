package outbox

// Outbox row persisted inside the same transaction as the state change that
// produced it. The worker relay reads pending rows and publishes to the bus,
// so notification delivery never races the write it describes.
type Message struct {
	ID         string
	EventType  string
	Payload    []byte
	Status     string // pending, published, failed
	RetryCount int
}
