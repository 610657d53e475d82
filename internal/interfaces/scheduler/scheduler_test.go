package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"finlink/internal/domain/connection"
	"finlink/internal/domain/openfinance"
	"finlink/internal/shared/config"
)

// MockRefresher is a mock implementation of Refresher
type MockRefresher struct {
	RefreshConnectionFunc func(ctx context.Context, id string) (*openfinance.RefreshOutcome, error)
}

func (m *MockRefresher) RefreshConnection(ctx context.Context, id string) (*openfinance.RefreshOutcome, error) {
	if m.RefreshConnectionFunc != nil {
		return m.RefreshConnectionFunc(ctx, id)
	}
	return &openfinance.RefreshOutcome{ConnectionID: id}, nil
}

// MockLister is a mock implementation of ConnectionLister
type MockLister struct {
	ListFunc func(ctx context.Context) ([]connection.Connection, error)
}

func (m *MockLister) List(ctx context.Context) ([]connection.Connection, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}

func TestParseScheduleTime(t *testing.T) {
	tests := []struct {
		in      string
		want    ScheduleTime
		wantErr bool
	}{
		{in: "06:30", want: ScheduleTime{Hour: 6, Minute: 30}},
		{in: "23:59", want: ScheduleTime{Hour: 23, Minute: 59}},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseScheduleTime(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseScheduleTime(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseScheduleTime(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func newTestScheduler(t *testing.T, times []string, provider JobProvider) *Scheduler {
	t.Helper()
	s, err := NewScheduler(config.SchedulerConfig{
		ScheduleTimes: times,
		WorkerCount:   2,
		QueueSize:     10,
	}, provider)
	if err != nil {
		t.Fatalf("NewScheduler() error: %v", err)
	}
	return s
}

func TestNewScheduler_Errors(t *testing.T) {
	provider := func(ctx context.Context) ([]Job, error) { return nil, nil }

	tests := []struct {
		name     string
		times    []string
		provider JobProvider
	}{
		{name: "No times", times: nil, provider: provider},
		{name: "Bad time", times: []string{"25:00"}, provider: provider},
		{name: "No provider", times: []string{"06:00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewScheduler(config.SchedulerConfig{ScheduleTimes: tt.times, WorkerCount: 1, QueueSize: 1}, tt.provider); err == nil {
				t.Error("NewScheduler() succeeded")
			}
		})
	}
}

func TestShouldRun(t *testing.T) {
	s := newTestScheduler(t, []string{"06:00", "18:30"}, func(ctx context.Context) ([]Job, error) { return nil, nil })
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	steps := []struct {
		at   time.Time
		want bool
	}{
		{day.Add(6 * time.Hour), true},
		{day.Add(6*time.Hour + 20*time.Second), false}, // same minute, already ran
		{day.Add(6*time.Hour + time.Minute), false},
		{day.Add(18*time.Hour + 30*time.Minute), true},
		{day.AddDate(0, 0, 1).Add(6 * time.Hour), true},
	}
	for _, st := range steps {
		if got := s.shouldRun(st.at); got != st.want {
			t.Errorf("shouldRun(%s) = %t, want %t", st.at.Format(time.RFC3339), got, st.want)
		}
	}
}

func TestNextRun(t *testing.T) {
	s := newTestScheduler(t, []string{"18:30", "06:00"}, func(ctx context.Context) ([]Job, error) { return nil, nil })
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		now  time.Time
		want time.Time
	}{
		{day.Add(5 * time.Hour), day.Add(6 * time.Hour)},
		{day.Add(6 * time.Hour), day.Add(18*time.Hour + 30*time.Minute)},
		{day.Add(20 * time.Hour), day.AddDate(0, 0, 1).Add(6 * time.Hour)},
	}
	for _, tt := range tests {
		if got := s.NextRun(tt.now); !got.Equal(tt.want) {
			t.Errorf("NextRun(%s) = %s, want %s", tt.now.Format("15:04"), got, tt.want)
		}
	}
}

func TestRefreshJobProvider(t *testing.T) {
	lister := &MockLister{ListFunc: func(ctx context.Context) ([]connection.Connection, error) {
		return []connection.Connection{
			{ID: "item_1", InstitutionName: "Chase"},
			{ID: "item_2", InstitutionName: "Amex", RequiresRelink: true},
			{ID: "item_3", InstitutionName: "Ally"},
		}, nil
	}}

	jobs, err := RefreshJobProvider(lister, &MockRefresher{})(context.Background())
	if err != nil {
		t.Fatalf("provider error: %v", err)
	}
	if len(jobs) != 2 || jobs[0].Key() != "item_1" || jobs[1].Key() != "item_3" {
		t.Fatalf("jobs = %v", jobs)
	}
	if jobs[0].Description() != "Balance refresh for Chase (item_1)" {
		t.Errorf("Description() = %q", jobs[0].Description())
	}

	failing := &MockLister{ListFunc: func(ctx context.Context) ([]connection.Connection, error) {
		return nil, errors.New("store down")
	}}
	if _, err := RefreshJobProvider(failing, &MockRefresher{})(context.Background()); err == nil {
		t.Error("provider swallowed a list error")
	}
}

func TestRefreshJob_Execute(t *testing.T) {
	boom := errors.New("provider down")
	job := NewRefreshJob(connection.Connection{ID: "item_1"}, &MockRefresher{
		RefreshConnectionFunc: func(ctx context.Context, id string) (*openfinance.RefreshOutcome, error) {
			return &openfinance.RefreshOutcome{ConnectionID: id, Error: boom.Error()}, boom
		},
	})

	if err := job.Execute(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Execute() error = %v, want %v", err, boom)
	}
}

func TestSchedulerRunOnStartup(t *testing.T) {
	var (
		mu  sync.Mutex
		ids []string
	)
	refresher := &MockRefresher{RefreshConnectionFunc: func(ctx context.Context, id string) (*openfinance.RefreshOutcome, error) {
		mu.Lock()
		ids = append(ids, id)
		mu.Unlock()
		return &openfinance.RefreshOutcome{ConnectionID: id}, nil
	}}
	lister := &MockLister{ListFunc: func(ctx context.Context) ([]connection.Connection, error) {
		return []connection.Connection{{ID: "item_1"}, {ID: "item_2"}}, nil
	}}

	s, err := NewScheduler(config.SchedulerConfig{
		ScheduleTimes: []string{"03:00"},
		WorkerCount:   2,
		QueueSize:     10,
		RunOnStartup:  true,
	}, RefreshJobProvider(lister, refresher))
	if err != nil {
		t.Fatalf("NewScheduler() error: %v", err)
	}

	s.Start()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(ids)
		mu.Unlock()
		if n == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.Shutdown(time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(ids) != 2 {
		t.Errorf("refreshed %v, want both connections", ids)
	}
}

type countingJob struct {
	key  string
	runs *atomic.Int32
}

func (j countingJob) Execute(ctx context.Context) error { j.runs.Add(1); return nil }
func (j countingJob) Key() string                       { return j.key }
func (j countingJob) Description() string               { return "counting " + j.key }

func TestWorkerPool_QueueFull(t *testing.T) {
	var runs atomic.Int32
	wp := NewWorkerPool(1, 0, 1)

	// Not started: the single buffer slot fills and the next submit is rejected.
	if err := wp.Submit(countingJob{"a", &runs}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if err := wp.Submit(countingJob{"b", &runs}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Submit() error = %v, want ErrQueueFull", err)
	}

	wp.Start()
	wp.Shutdown()

	if runs.Load() != 1 {
		t.Errorf("runs = %d, want 1", runs.Load())
	}
}

func TestWorkerPool_SubmitBatch(t *testing.T) {
	var runs atomic.Int32
	wp := NewWorkerPool(3, 0, 10)
	wp.Start()

	jobs := []Job{countingJob{"a", &runs}, countingJob{"b", &runs}, countingJob{"c", &runs}}
	if n := wp.SubmitBatch(jobs); n != 3 {
		t.Errorf("SubmitBatch() = %d, want 3", n)
	}
	wp.Shutdown()

	if runs.Load() != 3 {
		t.Errorf("runs = %d, want 3", runs.Load())
	}
}
