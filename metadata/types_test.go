package metadata

import (
	"testing"
	"time"
)

func TestNewRealtimeRunGridSpan(t *testing.T) {
	run := NewRealtimeRun(time.Now(), 180, 10, 0.01, 12.0, 14.0, 48.0, 49.0, "")
	wantCols := int((14.0-12.0)/0.01) + 1
	wantRows := int((49.0-48.0)/0.01) + 1
	if run.Cols != wantCols {
		t.Errorf("Cols = %d, want %d", run.Cols, wantCols)
	}
	if run.Rows != wantRows {
		t.Errorf("Rows = %d, want %d", run.Rows, wantRows)
	}
}

func TestRebindForPostgres(t *testing.T) {
	s := &sqlStore{driver: "pgx"}
	got := s.rebind("SELECT * FROM t WHERE a = ? AND b = ?")
	want := "SELECT * FROM t WHERE a = $1 AND b = $2"
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}
}

func TestRebindForMariaDBIsNoop(t *testing.T) {
	s := &sqlStore{driver: "mysql"}
	q := "SELECT * FROM t WHERE a = ?"
	if got := s.rebind(q); got != q {
		t.Errorf("rebind = %q, want unchanged %q", got, q)
	}
}
