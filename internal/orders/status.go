package orders

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

type PayStatus string

const (
	PaymentPending   PayStatus = "PENDING"
	PaymentCompleted PayStatus = "COMPLETED"
	PaymentFailed    PayStatus = "FAILED"
)

// PAID and CANCELLED are terminal.
var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusPaid: true, StatusCancelled: true},
	StatusPaid:      {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
