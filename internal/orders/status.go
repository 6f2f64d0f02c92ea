package orders

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var known = map[Status]bool{
	StatusPending:    true,
	StatusConfirmed:  true,
	StatusProcessing: true,
	StatusShipped:    true,
	StatusDelivered:  true,
	StatusCancelled:  true,
}

func (s Status) Valid() bool { return known[s] }

// CanTransition reports whether an order in from may move to to.
// Statuses other than cancelled are opaque to stock, so any edge between
// them is allowed. Nothing leaves cancelled: its stock was already given back.
func CanTransition(from, to Status) bool {
	if !to.Valid() {
		return false
	}
	if from == StatusCancelled {
		return to == StatusCancelled
	}
	return true
}

// RestoresStock is true exactly on the non-cancelled -> cancelled edge.
func RestoresStock(from, to Status) bool {
	return to == StatusCancelled && from != StatusCancelled
}
