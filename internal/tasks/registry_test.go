package tasks

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDefinitions(t *testing.T) {
	seen := map[string]bool{}
	for _, d := range Definitions {
		if seen[d.Type] {
			t.Errorf("duplicate task type %q", d.Type)
		}
		seen[d.Type] = true
		if d.Queue == "" {
			t.Errorf("%s has no queue", d.Type)
		}
		if d.Weight < 1 {
			t.Errorf("%s weight = %d, want >= 1", d.Type, d.Weight)
		}
	}

	tests := []struct {
		typ   string
		queue string
	}{
		{TypeFetchPrices, QueuePrices},
		{TypeHealthCheck, QueueMonitoring},
		{TypeCleanup, QueueMaintenance},
	}
	for _, tt := range tests {
		d, ok := Lookup(tt.typ)
		if !ok {
			t.Fatalf("Lookup(%q) not found", tt.typ)
		}
		if d.Queue != tt.queue {
			t.Errorf("Lookup(%q).Queue = %q, want %q", tt.typ, d.Queue, tt.queue)
		}
	}

	if _, ok := Lookup("send_email"); ok {
		t.Error("Lookup(send_email) found, want missing")
	}
}

func TestQueues(t *testing.T) {
	q := Queues()
	if len(q) != 3 {
		t.Fatalf("len(Queues()) = %d, want 3", len(q))
	}
	if q[QueuePrices] <= q[QueueMaintenance] {
		t.Errorf("prices weight %d should exceed maintenance weight %d", q[QueuePrices], q[QueueMaintenance])
	}
}

func TestEnqueueOptions(t *testing.T) {
	opts := Options{MaxRetry: 2, Timeout: time.Minute, Retention: time.Hour}

	got, err := opts.enqueueOptions(TypeFetchPrices)
	if err != nil {
		t.Fatalf("enqueueOptions() error = %v", err)
	}
	if len(got) != 4 {
		t.Errorf("len(options) = %d, want 4", len(got))
	}

	opts.Timeout = 0
	opts.Retention = 0
	got, err = opts.enqueueOptions(TypeHealthCheck)
	if err != nil {
		t.Fatalf("enqueueOptions() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len(options) without timeout/retention = %d, want 2", len(got))
	}

	if _, err := opts.enqueueOptions("unknown"); err == nil {
		t.Error("enqueueOptions(unknown) error = nil, want error")
	}
}

func TestNewCleanupTask(t *testing.T) {
	task, err := NewCleanupTask(7)
	if err != nil {
		t.Fatalf("NewCleanupTask() error = %v", err)
	}
	if task.Type() != TypeCleanup {
		t.Errorf("Type() = %q, want %q", task.Type(), TypeCleanup)
	}

	var p CleanupPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.DaysToKeep != 7 {
		t.Errorf("DaysToKeep = %d, want 7", p.DaysToKeep)
	}
}
