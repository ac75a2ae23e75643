package domain

type CheckoutState string

const (
	CheckoutStateCollected CheckoutState = "COLLECTED"
	CheckoutStateValidated CheckoutState = "VALIDATED"
	CheckoutStateCommitted CheckoutState = "COMMITTED"
	CheckoutStateAborted   CheckoutState = "ABORTED"
)

func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateCommitted || s == CheckoutStateAborted
}

// String representation (for logging)
func (s CheckoutState) String() string {
	return string(s)
}

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	"":                     {CheckoutStateCollected, CheckoutStateAborted},
	CheckoutStateCollected: {CheckoutStateValidated, CheckoutStateAborted},
	CheckoutStateValidated: {CheckoutStateCommitted, CheckoutStateAborted},
}

func CanTransitionTo(from, to CheckoutState) bool {
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
