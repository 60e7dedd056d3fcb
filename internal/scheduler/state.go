package scheduler

import (
	"humidcast/internal/models"
	"time"
)

// State is the scheduler's position in its loop
type State string

const (
	StateIdle           State = "idle"
	StateAuthenticating State = "authenticating"
	StateEnumerating    State = "enumerating"
	StateRefreshing     State = "refreshing"
	StatePublishing     State = "publishing"
	StateSleeping       State = "sleeping"
	StateStopped        State = "stopped"
)

// Cycle outcomes as recorded on models.CycleReport
const (
	OutcomePublished         = "published"
	OutcomeAuthFailed        = "auth_failed"
	OutcomeEnumerationFailed = "enumeration_failed"
	OutcomeCancelled         = "cancelled"
)

// Status is a point-in-time view of the scheduler. Done and Total count
// sensors while Refreshing.
type Status struct {
	State     State               `json:"state"`
	Done      int                 `json:"done"`
	Total     int                 `json:"total"`
	NextRun   time.Time           `json:"next_run,omitzero"`
	LastCycle *models.CycleReport `json:"last_cycle,omitempty"`
}

// State returns the current status.
func (r *Refresher) State() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.status
	if s.LastCycle != nil {
		last := *s.LastCycle
		s.LastCycle = &last
	}
	return s
}

func (r *Refresher) update(fn func(*Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.status)
}

func (r *Refresher) enter(state State) {
	r.update(func(s *Status) {
		s.State = state
		s.NextRun = time.Time{}
	})
}
