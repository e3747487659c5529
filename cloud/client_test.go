package cloud

import (
	"context"
	"os"
	"testing"

	"github.com/telcorain/cmlrain/cmlrainutil"
)

func TestClientFakeRunJob(t *testing.T) {
	staging := t.TempDir()
	outputsWeb := t.TempDir()
	outputsRaw := t.TempDir()
	// seed a fake frame so checkOutputs sees a non-empty directory.
	if err := os.WriteFile(outputsWeb+"/frame.json", []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(outputsRaw+"/frame.tif", []byte{0}, 0644); err != nil {
		t.Fatal(err)
	}

	c, err := NewFakeClient(t, false, staging, outputsWeb, outputsRaw)
	if err != nil {
		t.Fatal(err)
	}

	job := &JobSpec{
		Version:  cmlrainutil.Version,
		Name:     "test_job",
		Cmd:      []string{"cmlrain", "run"},
		Args:     []string{"--start", "2026-01-01T00:00:00Z", "--end", "2026-01-01T01:00:00Z"},
		MemoryGB: 1,
	}
	ctx := context.WithValue(context.Background(), userContextKey, "test_user")

	status, err := c.RunJob(ctx, job)
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if status.Status != StatusComplete && status.Status != StatusWaiting && status.Status != StatusRunning {
		t.Errorf("unexpected status after RunJob: %v (%s)", status.Status, status.Message)
	}
}

func TestUserJobName(t *testing.T) {
	got := userJobName("jane_doe", "realtime_run")
	want := "jane-doe-realtime-run"
	if got != want {
		t.Errorf("userJobName() = %q, want %q", got, want)
	}
}
