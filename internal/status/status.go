// Package status encodes the order lifecycle graph. It is actor-agnostic:
// which caller may apply which transition is decided by the handlers.
package status

// Status is an order lifecycle state, stored as text in the orders table.
type Status string

const (
	PendingPayment Status = "pending_payment"
	Paid           Status = "paid"
	Preparing      Status = "preparing"
	Ready          Status = "ready"
	Delivering     Status = "delivering"
	Completed      Status = "completed"
	Cancelled      Status = "cancelled"
)

// next maps each status to its single legal successor. Terminal statuses
// (completed, cancelled) are absent. Cancellation is not a successor; it is
// a separate edge checked via CanCancel.
var next = map[Status]Status{
	PendingPayment: Paid,
	Paid:           Preparing,
	Preparing:      Ready,
	Ready:          Delivering,
	Delivering:     Completed,
}

// Next returns the single legal successor of s. ok is false when s is
// terminal or unrecognized.
func Next(s Status) (Status, bool) {
	n, ok := next[s]
	return n, ok
}

// IsValid reports whether s is a known order status.
func IsValid(s Status) bool {
	switch s {
	case PendingPayment, Paid, Preparing, Ready, Delivering, Completed, Cancelled:
		return true
	}
	return false
}

// IsTerminal reports whether s has no outgoing transitions.
func IsTerminal(s Status) bool {
	return s == Completed || s == Cancelled
}

// CanCancel reports whether an order in s may move to cancelled.
func CanCancel(s Status) bool {
	return IsValid(s) && !IsTerminal(s)
}

// Open is the set of statuses that count as an open order for the
// one-open-order-per-customer rule.
func Open() []Status {
	return []Status{PendingPayment, Preparing}
}

// Active is every status that belongs on the live dashboard.
func Active() []Status {
	return []Status{PendingPayment, Paid, Preparing, Ready, Delivering}
}
