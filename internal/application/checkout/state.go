package checkout

// State is the orchestrator's progress through a checkout
type State string

const (
	StateIdle              State = "IDLE"
	StateValidating        State = "VALIDATING"
	StateCreatingOrder     State = "CREATING_ORDER"
	StateFinalizingPayment State = "FINALIZING_PAYMENT"
	StateRetrievingReceipt State = "RETRIEVING_RECEIPT"
	StateCompleted         State = "COMPLETED"
	StateFailed            State = "FAILED"
)

// String returns the string representation of State
func (s State) String() string {
	return string(s)
}

// InFlight returns true while a remote stage is running
func (s State) InFlight() bool {
	switch s {
	case StateValidating, StateCreatingOrder, StateFinalizingPayment, StateRetrievingReceipt:
		return true
	}
	return false
}

// Stage identifies the remote step a failure happened in
type Stage string

const (
	StageOrderCreation       Stage = "ORDER_CREATION"
	StagePaymentFinalization Stage = "PAYMENT_FINALIZATION"
	StageReceiptRetrieval    Stage = "RECEIPT_RETRIEVAL"
)

// String returns the string representation of Stage
func (s Stage) String() string {
	return string(s)
}

// state returns the orchestrator state while the stage runs
func (s Stage) state() State {
	switch s {
	case StageOrderCreation:
		return StateCreatingOrder
	case StagePaymentFinalization:
		return StateFinalizingPayment
	case StageReceiptRetrieval:
		return StateRetrievingReceipt
	}
	return StateIdle
}

// spanName returns the tracing method name of the stage
func (s Stage) spanName() string {
	switch s {
	case StageOrderCreation:
		return "create_order"
	case StagePaymentFinalization:
		return "finalize_payment"
	case StageReceiptRetrieval:
		return "retrieve_receipt"
	}
	return "unknown"
}
