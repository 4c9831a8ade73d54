package payment

import "time"

// StepName identifies a settlement pipeline step.
type StepName string

// Pipeline steps in execution order.
const (
	StepInitiate           StepName = "INITIATE"
	StepComplianceScreen   StepName = "COMPLIANCE_SCREEN"
	StepUSDToUSDC          StepName = "USD_TO_USDC"
	StepBlockchainTransfer StepName = "BLOCKCHAIN_TRANSFER"
	StepUSDCToLocal        StepName = "USDC_TO_LOCAL"
	StepBankTransfer       StepName = "BANK_TRANSFER"
	StepComplete           StepName = "COMPLETE"
)

// StepOrder is the canonical execution sequence.
var StepOrder = []StepName{
	StepInitiate,
	StepComplianceScreen,
	StepUSDToUSDC,
	StepBlockchainTransfer,
	StepUSDCToLocal,
	StepBankTransfer,
	StepComplete,
}

// StepPosition returns the 0-based position of a step in the pipeline,
// or -1 for an unknown step.
func StepPosition(name StepName) int {
	for i, n := range StepOrder {
		if n == name {
			return i
		}
	}
	return -1
}

// StepStatus is the state of one pipeline step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepProcessing StepStatus = "processing"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
	StepSkipped    StepStatus = "skipped"
)

// Step records the outcome of one pipeline step.
type Step struct {
	ID           string     `json:"id"`
	Name         StepName   `json:"name"`
	Status       StepStatus `json:"status"`
	Timestamp    time.Time  `json:"timestamp"`
	Details      string     `json:"details,omitempty"`
	TxHash       string     `json:"tx_hash,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// NewStep builds a step whose id is derived from its name; the id is
// what upserts key on, so re-running a step replaces its record.
func NewStep(name StepName, status StepStatus) Step {
	return Step{
		ID:        string(name),
		Name:      name,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}
}

// Steps is an insertion-ordered step list keyed by step id. Upserting
// an existing id replaces the record in place; a new id appends. This
// keeps progress updates re-entrant without duplicates or reordering.
type Steps []Step

// Upsert replaces the step with the same id or appends it.
func (s Steps) Upsert(step Step) Steps {
	for i := range s {
		if s[i].ID == step.ID {
			s[i] = step
			return s
		}
	}
	return append(s, step)
}

// Get returns the step with the given id, if present.
func (s Steps) Get(id string) (Step, bool) {
	for _, step := range s {
		if step.ID == id {
			return step, true
		}
	}
	return Step{}, false
}

// CompletedCount counts steps recorded as completed.
func (s Steps) CompletedCount() int {
	n := 0
	for _, step := range s {
		if step.Status == StepCompleted {
			n++
		}
	}
	return n
}
