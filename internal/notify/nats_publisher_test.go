package notify

import (
	"testing"

	"infrasim/internal/run"
)

func TestSubjectFor(t *testing.T) {
	cases := []struct {
		ev   run.Event
		want string
	}{
		{run.Event{Kind: run.EventRunStarted, RunID: "r1"}, "sim.run.r1.started"},
		{run.Event{Kind: run.EventRunProgress, RunID: "r1"}, "sim.run.r1.progress"},
		{run.Event{Kind: run.EventRunCompleted, RunID: "r1"}, "sim.run.r1.completed"},
		{run.Event{Kind: run.EventRunCancelled, RunID: "r1"}, "sim.run.r1.cancelled"},
		{run.Event{Kind: run.EventRunFailed, RunID: "r1"}, "sim.run.r1.failed"},
		{run.Event{Kind: run.EventTenantNotification, RunID: "r1", TenantID: "t9"}, "sim.tenant.t9.notifications"},
	}
	for _, c := range cases {
		if got := subjectFor(c.ev); got != c.want {
			t.Errorf("subjectFor(%s) = %q, want %q", c.ev.Kind, got, c.want)
		}
	}
}
