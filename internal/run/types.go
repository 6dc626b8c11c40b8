// Run lifecycle types shared by the runner, registry, and broadcaster
package run

import (
	"errors"
	"time"

	"infrasim/internal/degradation"
)

// Status is the lifecycle state of a simulation run.
type Status string

// Run statuses. A run is created pending, moves to running immediately,
// and ends in exactly one terminal status.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// MonthResult is one month of projected asset state. Immutable once
// produced; safe to share with concurrent readers.
type MonthResult struct {
	Month                 int                   `json:"month"` // 1-based
	Year                  int                   `json:"year"`  // ceil(month/12)
	Condition             float64               `json:"condition"`
	CumulativeDegradation float64               `json:"cumulativeDegradation"`
	FailureProbability    float64               `json:"failureProbability"`
	Risk                  degradation.RiskLevel `json:"riskLevel"`
	MaintenanceCost       float64               `json:"maintenanceCost"`
}

// State is the live record of one run. Owned by the registry; the runner
// is the only writer while the run is active.
type State struct {
	ID          string        `json:"runId"`
	TenantID    string        `json:"tenantId,omitempty"`
	AssetID     string        `json:"assetId,omitempty"`
	Status      Status        `json:"status"`
	Progress    int           `json:"progressPercent"` // 0-100, monotonic while running
	Results     []MonthResult `json:"results"`
	Error       string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"startedAt"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
}

// Summary holds metrics derived once from a finished trajectory.
type Summary struct {
	FailureWindowStart   *time.Time `json:"failureWindowStart,omitempty"`
	FailureWindowEnd     *time.Time `json:"failureWindowEnd,omitempty"`
	RepairCost           float64    `json:"repairCost"`
	ReplacementCost      float64    `json:"replacementCost"`
	FirstYearMaintenance float64    `json:"firstYearMaintenance"`
	TotalCost            float64    `json:"totalCost"`
}

// EventKind names a lifecycle or progress event.
type EventKind string

// Event kinds delivered to subscribers. EventRunSnapshot is the catch-up
// payload handed to a subscriber joining an existing run.
const (
	EventRunStarted         EventKind = "run-started"
	EventRunProgress        EventKind = "run-progress"
	EventRunCompleted       EventKind = "run-completed"
	EventRunCancelled       EventKind = "run-cancelled"
	EventRunFailed          EventKind = "run-failed"
	EventTenantNotification EventKind = "tenant-notification"
	EventRunSnapshot        EventKind = "run-snapshot"
)

// Event is the wire payload fanned out to subscribers. Field names are
// the contract external layers must preserve.
type Event struct {
	Kind            EventKind    `json:"kind"`
	RunID           string       `json:"runId"`
	TenantID        string       `json:"tenantId,omitempty"`
	Config          any          `json:"config,omitempty"`
	Month           *MonthResult `json:"month,omitempty"`
	ProgressPercent int          `json:"progressPercent,omitempty"`
	CompletedAt     *time.Time   `json:"completedAt,omitempty"`
	Reason          string       `json:"reason,omitempty"`
	Type            string       `json:"type,omitempty"`
	Message         string       `json:"message,omitempty"`
	Error           string       `json:"error,omitempty"`
	State           *State       `json:"state,omitempty"`
}

// Registry errors.
var (
	ErrNotFound = errors.New("run not found")
	ErrTerminal = errors.New("run already in a terminal status")
)

// Registry tracks live and recently finished runs. Implementations must
// serialize mutations per run; entries are retained until evicted by the
// caller. Cancellation requests only set a flag — status transitions are
// the runner's alone.
type Registry interface {
	Create(st State) error
	Snapshot(runID string) (State, bool)
	List() []State
	Append(runID string, r MonthResult) error
	SetStatus(runID string, status Status, errMsg string) error
	SetProgress(runID string, pct int) error
	RequestCancel(runID string) error
	CancelRequested(runID string) bool
	Evict(runID string)
}
