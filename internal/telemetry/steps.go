package telemetry

import (
	"strings"
	"sync"
)

type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepDone    StepStatus = "done"
	StepFailed  StepStatus = "failed"
)

type StepState struct {
	ID      string
	Title   string
	Status  StepStatus
	Message string
}

// Snapshot is the state of every known step, in plan order.
type Snapshot struct {
	Steps []StepState
}

// StepReporter receives a snapshot after every step transition.
type StepReporter func(Snapshot)

type stepObserver struct {
	mu       sync.Mutex
	steps    map[string]StepState
	order    []string
	reporter StepReporter
}

func newStepObserver(reporter StepReporter) *stepObserver {
	return &stepObserver{
		steps:    make(map[string]StepState),
		reporter: reporter,
	}
}

func (o *stepObserver) onPlan(plan Plan) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, planned := range plan.Steps {
		id := strings.TrimSpace(planned.ID)
		step := o.ensureLocked(id)
		if title := strings.TrimSpace(planned.Title); title != "" {
			step.Title = title
		}
		o.steps[id] = step
	}
	o.emitLocked()
}

func (o *stepObserver) onStart(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	step := o.ensureLocked(id)
	step.Status = StepRunning
	step.Message = ""
	o.steps[step.ID] = step
	o.emitLocked()
}

func (o *stepObserver) onEnd(id string, failed bool, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	step := o.ensureLocked(id)
	step.Status = StepDone
	step.Message = ""
	if failed {
		step.Status = StepFailed
		step.Message = strings.TrimSpace(message)
	}
	o.steps[step.ID] = step
	o.emitLocked()
}

// ensureLocked returns the step for id, appending unplanned steps to the order.
func (o *stepObserver) ensureLocked(id string) StepState {
	id = strings.TrimSpace(id)
	if id == "" {
		id = "unnamed"
	}
	if step, ok := o.steps[id]; ok {
		return step
	}
	o.order = append(o.order, id)
	return StepState{ID: id, Title: id, Status: StepPending}
}

func (o *stepObserver) emitLocked() {
	if o.reporter == nil {
		return
	}
	steps := make([]StepState, 0, len(o.order))
	for _, id := range o.order {
		if step, ok := o.steps[id]; ok {
			steps = append(steps, step)
		}
	}
	o.reporter(Snapshot{Steps: steps})
}
