package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teledash/teledash/internal/config"
)

func noop(context.Context, Job) error { return nil }

func TestAddJob(t *testing.T) {
	s := New(noop)

	if err := s.AddJob(JobFetchRecent, "*/15 * * * *"); err != nil {
		t.Errorf("AddJob() with valid cron = %v, want nil", err)
	}
	if !s.IsScheduled(JobFetchRecent) {
		t.Error("job was not scheduled")
	}
	if s.IsScheduled(JobProcess) {
		t.Error("unrelated job reported as scheduled")
	}
}

func TestAddJobInvalidCron(t *testing.T) {
	s := New(noop)
	if err := s.AddJob(JobProcess, "invalid cron"); err == nil {
		t.Error("AddJob() with invalid cron = nil, want error")
	}
}

func TestAddJobReplacesExisting(t *testing.T) {
	s := New(noop)

	if err := s.AddJob(JobProcess, "0 2 * * *"); err != nil {
		t.Fatalf("AddJob() = %v", err)
	}
	if err := s.AddJob(JobProcess, "0 3 * * *"); err != nil {
		t.Fatalf("AddJob() = %v", err)
	}

	statuses := s.Status()
	if len(statuses) != 1 {
		t.Fatalf("len(Status()) = %d, want 1", len(statuses))
	}
	if statuses[0].Schedule != "0 3 * * *" {
		t.Errorf("Schedule = %q, want replaced expression", statuses[0].Schedule)
	}
	if n := len(s.cron.Entries()); n != 1 {
		t.Errorf("cron entries = %d, want 1", n)
	}
}

func TestAddJobsFromConfig(t *testing.T) {
	tests := []struct {
		name       string
		schedule   config.ScheduleConfig
		wantCount  int
		wantErrors int
	}{
		{"disabled", config.ScheduleConfig{FetchRecent: "*/5 * * * *", Enabled: false}, 0, 0},
		{"both", config.ScheduleConfig{FetchRecent: "*/5 * * * *", Process: "0 * * * *", Enabled: true}, 2, 0},
		{"fetch only", config.ScheduleConfig{FetchRecent: "@every 10m", Enabled: true}, 1, 0},
		{"invalid", config.ScheduleConfig{FetchRecent: "bogus", Process: "0 * * * *", Enabled: true}, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(noop)
			cfg := config.NewDefaultConfig()
			cfg.Schedule = tt.schedule

			count, errs := s.AddJobsFromConfig(cfg)
			if count != tt.wantCount || len(errs) != tt.wantErrors {
				t.Errorf("AddJobsFromConfig() = %d, %v; want %d jobs, %d errors", count, errs, tt.wantCount, tt.wantErrors)
			}
		})
	}
}

func TestStartStop(t *testing.T) {
	s := New(noop)
	if err := s.AddJob(JobFetchRecent, "@hourly"); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	s.Start()

	ctx := s.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Error("Stop() did not complete in time")
	}
	if err := s.Trigger(JobFetchRecent); err == nil {
		t.Error("Trigger() after Stop() = nil, want error")
	}
}

func TestStopCancelsRunningJob(t *testing.T) {
	started := make(chan struct{})
	s := New(func(ctx context.Context, job Job) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	if err := s.AddJob(JobFetchRecent, "0 0 1 1 *"); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := s.Trigger(JobFetchRecent); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("job did not start")
	}

	ctx := s.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not complete after cancelling job")
	}

	if st := s.Status(); len(st) != 1 || st[0].LastError == "" {
		t.Errorf("Status() = %+v, want cancellation recorded", st)
	}
}

func TestTriggerPreventsDoubleRun(t *testing.T) {
	var called, concurrent, maxConcurrent atomic.Int32
	release := make(chan struct{})
	s := New(func(ctx context.Context, job Job) error {
		called.Add(1)
		c := concurrent.Add(1)
		if c > maxConcurrent.Load() {
			maxConcurrent.Store(c)
		}
		<-release
		concurrent.Add(-1)
		return nil
	})

	if err := s.AddJob(JobProcess, "0 0 1 1 *"); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := s.Trigger(JobProcess); err != nil {
		t.Fatalf("Trigger() = %v", err)
	}
	for range 4 {
		if err := s.Trigger(JobProcess); err == nil {
			t.Error("Trigger() while running = nil, want error")
		}
	}
	close(release)

	ctx := s.Stop()
	<-ctx.Done()

	if called.Load() != 1 || maxConcurrent.Load() != 1 {
		t.Errorf("called = %d, max concurrent = %d; want 1, 1", called.Load(), maxConcurrent.Load())
	}
}

func TestStatusAfterRun(t *testing.T) {
	s := New(func(ctx context.Context, job Job) error {
		if job == JobProcess {
			return errors.New("process failed")
		}
		return nil
	})

	for _, job := range []Job{JobProcess, JobFetchRecent} {
		if err := s.AddJob(job, "0 0 1 1 *"); err != nil {
			t.Fatalf("AddJob: %v", err)
		}
		if err := s.Trigger(job); err != nil {
			t.Fatalf("Trigger: %v", err)
		}
	}

	deadline := time.Now().Add(time.Second)
	var statuses []JobStatus
	for time.Now().Before(deadline) {
		statuses = s.Status()
		if !statuses[0].Running && !statuses[1].Running {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if statuses[0].Job != JobFetchRecent || statuses[1].Job != JobProcess {
		t.Fatalf("Status() order = %v, %v; want sorted by name", statuses[0].Job, statuses[1].Job)
	}
	if statuses[0].LastRun.IsZero() || statuses[0].LastError != "" {
		t.Errorf("fetch-recent status = %+v, want success", statuses[0])
	}
	if statuses[1].LastError != "process failed" {
		t.Errorf("process status = %+v, want error recorded", statuses[1])
	}
	if statuses[1].NextRun.IsZero() {
		// Entries only get a next run once the cron loop starts.
		s.Start()
		defer s.Stop()
		if s.Status()[1].NextRun.IsZero() {
			t.Error("NextRun is zero after Start()")
		}
	}
}

func TestTriggerAfterStop(t *testing.T) {
	s := New(noop)
	if err := s.AddJob(JobFetchRecent, "0 0 1 1 *"); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	<-s.Stop().Done()

	if err := s.Trigger(JobFetchRecent); err == nil {
		t.Error("Trigger() after Stop() = nil, want error")
	}
}

func TestValidateCronExpr(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 2 * * *", false},
		{"*/15 * * * *", false},
		{"@hourly", false},
		{"@every 5m", false},
		{"invalid", true},
		{"* * * * * *", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := ValidateCronExpr(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCronExpr(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}
