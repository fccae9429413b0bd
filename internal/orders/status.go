package orders

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

var allStatuses = []Status{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled}

// ParseStatus accepts only the enumerated values, compared exactly.
func ParseStatus(s string) (Status, bool) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

func (s Status) Valid() bool {
	_, ok := ParseStatus(string(s))
	return ok
}

// TransitionPolicy decides whether an order may move from one status to another.
type TransitionPolicy interface {
	Allow(from, to Status) bool
}

// Permissive allows any enumerated status after any other.
type Permissive struct{}

func (Permissive) Allow(from, to Status) bool { return to.Valid() }

// TransitionTable is an explicit lifecycle. Statuses with no entry are terminal.
type TransitionTable map[Status]map[Status]bool

// StrictTransitions is the lifecycle used when STRICT_STATUS_TRANSITIONS is set.
var StrictTransitions = TransitionTable{
	StatusPending:   {StatusConfirmed: true, StatusShipped: true, StatusCancelled: true},
	StatusConfirmed: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:   {StatusDelivered: true},
	StatusDelivered: {},
	StatusCancelled: {},
}

func (t TransitionTable) Allow(from, to Status) bool {
	return t[from][to]
}

// PolicyFor returns the table when strict is set and Permissive otherwise.
func PolicyFor(strict bool) TransitionPolicy {
	if strict {
		return StrictTransitions
	}
	return Permissive{}
}
