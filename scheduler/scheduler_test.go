package scheduler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/telcorain/cmlrain/metadata"
)

func baseParams() RunParams {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return RunParams{
		Start:               start,
		End:                 start.Add(2 * time.Hour),
		StepMin:             10,
		RollingWindowValues: 6,
		RollingWindowHours:  1,
		OutputStepMin:       10,
	}
}

func TestValidateRunParamsRejectsTooShortWindow(t *testing.T) {
	p := baseParams()
	p.End = p.Start.Add(30 * time.Minute)
	msg := ValidateRunParams(p)
	if msg == "" {
		t.Fatal("expected validation failure for a 30-minute window")
	}
	if !contains(msg, "at least 1 hour") {
		t.Errorf("expected message to mention the 1-hour minimum, got %q", msg)
	}
}

func TestValidateRunParamsAcceptsValidWindow(t *testing.T) {
	if msg := ValidateRunParams(baseParams()); msg != "" {
		t.Errorf("expected valid params to pass, got %q", msg)
	}
}

func TestValidateRunParamsRejectsEndBeforeStart(t *testing.T) {
	p := baseParams()
	p.End = p.Start.Add(-time.Hour)
	if msg := ValidateRunParams(p); msg == "" {
		t.Error("expected failure when end precedes start")
	}
}

func TestValidateRunParamsRejectsStepOver59Minutes(t *testing.T) {
	p := baseParams()
	p.StepMin = 60
	if msg := ValidateRunParams(p); msg == "" {
		t.Error("expected failure for step > 59 minutes")
	}
}

func TestValidateRunParamsRejectsRollingWindowTooLarge(t *testing.T) {
	p := baseParams()
	p.RollingWindowHours = 3
	if msg := ValidateRunParams(p); msg == "" {
		t.Error("expected failure when rolling window exceeds the run window")
	}
}

func TestSchedulerRunHistoricRejectsInvalidParams(t *testing.T) {
	s := &Scheduler{Bus: NewStatusBus(), Iterate: func(ctx context.Context, runID int64, p RunParams) error {
		t.Fatal("iterate must not run for invalid params")
		return nil
	}}
	p := baseParams()
	p.End = p.Start.Add(time.Minute)
	if err := s.RunHistoric(context.Background(), p); err == nil {
		t.Error("expected an error for invalid params")
	}
}

func TestSchedulerRunHistoricPropagatesIterationError(t *testing.T) {
	wantErr := errors.New("boom")
	s := &Scheduler{Bus: NewStatusBus(), Iterate: func(ctx context.Context, runID int64, p RunParams) error {
		return wantErr
	}}
	if err := s.RunHistoric(context.Background(), baseParams()); !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestTickSkipsWhenWriterBusy(t *testing.T) {
	called := false
	s := &Scheduler{
		Bus:        NewStatusBus(),
		WriterBusy: func() bool { return true },
		Iterate: func(ctx context.Context, runID int64, p RunParams) error {
			called = true
			return nil
		},
	}
	s.tick(context.Background(), baseParams())
	if called {
		t.Error("iteration must not run while the writer is busy")
	}
}

type fakeGridStore struct {
	metadata.Store
	exists bool
	run    metadata.RealtimeRun
}

func (f *fakeGridStore) VerifyRainGrid(ctx context.Context, runID int64, t time.Time) (bool, error) {
	return f.exists, nil
}
func (f *fakeGridStore) GetRun(ctx context.Context, runID int64) (metadata.RealtimeRun, error) {
	return f.run, nil
}

func TestHandleGridValueReturns404WhenMissing(t *testing.T) {
	api := &API{Meta: &fakeGridStore{exists: false}}
	req := httptest.NewRequest(http.MethodGet, "/api/gridvalue?timestamp=2024-06-01_1200&parameters=1&latitude=50&longitude=14", nil)
	w := httptest.NewRecorder()
	api.handleGridValue(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandleGridValueReturns400OnMalformedQuery(t *testing.T) {
	api := &API{Meta: &fakeGridStore{}}
	req := httptest.NewRequest(http.MethodGet, "/api/gridvalue?timestamp=not-a-time", nil)
	w := httptest.NewRecorder()
	api.handleGridValue(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleHelloReturnsOK(t *testing.T) {
	api := &API{}
	req := httptest.NewRequest(http.MethodGet, "/api/hello", nil)
	w := httptest.NewRecorder()
	api.handleHello(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
