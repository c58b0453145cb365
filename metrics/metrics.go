package metrics

import "time"

// Recorder knows how to measure different kind of metrics of a grid run.
type Recorder interface {
	// WithID will set the ID name to the recorder and every metric
	// measured with the obtained recorder will be identified with
	// the name (usually the run ID).
	WithID(id string) Recorder
	// ObserveTaskExecution will measure the execution of one task through
	// the whole runner chain, including retries.
	ObserveTaskExecution(start time.Time, success bool)
	// IncRetry will increment the number of task retries.
	IncRetry()
	// IncThroughputLimited will increment the number of throughput-limit
	// failures reported by the engine.
	IncThroughputLimited()
	// IncTimeout will increment the number of task timeouts.
	IncTimeout()
	// IncAdmissionQueued increments the number of tasks that asked for an
	// admission slot.
	IncAdmissionQueued()
	// IncAdmissionProcessed increments the number of tasks that obtained an
	// admission slot.
	IncAdmissionProcessed()
	// SetAdmissionInFlight sets the number of tasks currently holding an
	// admission slot.
	SetAdmissionInFlight(n int)
	// SetBudgetBalance sets the current balance of the rate budget.
	SetBudgetBalance(balance float64)
	// IncTaskFailure increments the number of tasks that reached a fatal state.
	IncTaskFailure()
	// AddResultsMerged adds the number of results merged into the result set.
	AddResultsMerged(n int)
}

// Dummy is a dummy recorder, is safe to use and doesn't measure anything.
var Dummy Recorder = dummy{}

type dummy struct{}

func (dummy) WithID(_ string) Recorder { return Dummy }

func (dummy) ObserveTaskExecution(_ time.Time, _ bool) {}
func (dummy) IncRetry() {}
func (dummy) IncThroughputLimited() {}
func (dummy) IncTimeout() {}
func (dummy) IncAdmissionQueued() {}
func (dummy) IncAdmissionProcessed() {}
func (dummy) SetAdmissionInFlight(_ int) {}
func (dummy) SetBudgetBalance(_ float64) {}
func (dummy) IncTaskFailure() {}
func (dummy) AddResultsMerged(_ int) {}
