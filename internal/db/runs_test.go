package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/hpungsan/textual/internal/errors"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func stringPtr(s string) *string {
	return &s
}

func newTestRun(id, kind string, createdAt int64) *Run {
	return &Run{
		ID:           id,
		Kind:         kind,
		Fragments:    2,
		Groups:       1,
		Replacements: 3,
		Usage:        12,
		CreatedAt:    createdAt,
	}
}

func TestInsertAndGetRun(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	r := newTestRun("01RUN001", KindCSV, 1000)
	r.Source = stringPtr("/tmp/people.csv")
	r.Labels = map[string]int{"NAME_GIVEN": 2, "LOCATION_CITY": 1}

	if err := InsertRun(ctx, db, r); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}

	got, err := GetRun(ctx, db, "01RUN001")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Kind != KindCSV {
		t.Errorf("Kind = %q, want %q", got.Kind, KindCSV)
	}
	if got.Source == nil || *got.Source != "/tmp/people.csv" {
		t.Errorf("Source = %v, want /tmp/people.csv", got.Source)
	}
	if got.Fragments != 2 || got.Groups != 1 || got.Replacements != 3 || got.Usage != 12 {
		t.Errorf("counts = %d/%d/%d/%d, want 2/1/3/12", got.Fragments, got.Groups, got.Replacements, got.Usage)
	}
	if got.Labels["NAME_GIVEN"] != 2 || got.Labels["LOCATION_CITY"] != 1 {
		t.Errorf("Labels = %v", got.Labels)
	}
	if got.CreatedAt != 1000 {
		t.Errorf("CreatedAt = %d, want 1000", got.CreatedAt)
	}
}

func TestInsertRun_NoSourceNoLabels(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := InsertRun(ctx, db, newTestRun("01RUN002", KindText, 1000)); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}
	got, err := GetRun(ctx, db, "01RUN002")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Source != nil {
		t.Errorf("Source = %q, want nil", *got.Source)
	}
	if got.Labels != nil {
		t.Errorf("Labels = %v, want nil", got.Labels)
	}
}

func TestInsertRun_DuplicateID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := InsertRun(ctx, db, newTestRun("01DUP", KindText, 1000)); err != nil {
		t.Fatalf("first InsertRun failed: %v", err)
	}
	err := InsertRun(ctx, db, newTestRun("01DUP", KindText, 2000))
	if err != ErrUniqueConstraint {
		t.Errorf("expected ErrUniqueConstraint, got %v", err)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := GetRun(context.Background(), db, "missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	fixtures := []*Run{
		newTestRun("01A", KindText, 1000),
		newTestRun("01B", KindCSV, 2000),
		newTestRun("01C", KindText, 3000),
		newTestRun("01D", KindText, 3000),
	}
	for _, r := range fixtures {
		if err := InsertRun(ctx, db, r); err != nil {
			t.Fatalf("InsertRun(%s) failed: %v", r.ID, err)
		}
	}

	tests := []struct {
		name   string
		kind   string
		limit  int
		offset int
		want   []string
	}{
		{"all newest first", "", 10, 0, []string{"01D", "01C", "01B", "01A"}},
		{"by kind", KindText, 10, 0, []string{"01D", "01C", "01A"}},
		{"limit", "", 2, 0, []string{"01D", "01C"}},
		{"offset", "", 2, 2, []string{"01B", "01A"}},
		{"past end", "", 10, 10, []string{}},
		{"unknown kind", KindMarkdown, 10, 0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := ListRuns(ctx, db, tt.kind, tt.limit, tt.offset)
			if err != nil {
				t.Fatalf("ListRuns failed: %v", err)
			}
			if runs == nil {
				t.Fatal("ListRuns returned nil slice")
			}
			if len(runs) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(runs), len(tt.want))
			}
			for i, id := range tt.want {
				if runs[i].ID != id {
					t.Errorf("runs[%d].ID = %q, want %q", i, runs[i].ID, id)
				}
			}
		})
	}
}

func TestCountRuns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i, kind := range []string{KindText, KindText, KindTranscript} {
		r := newTestRun(string(rune('A'+i)), kind, int64(1000+i))
		if err := InsertRun(ctx, db, r); err != nil {
			t.Fatalf("InsertRun failed: %v", err)
		}
	}

	total, err := CountRuns(ctx, db, "")
	if err != nil {
		t.Fatalf("CountRuns failed: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}

	text, err := CountRuns(ctx, db, KindText)
	if err != nil {
		t.Fatalf("CountRuns failed: %v", err)
	}
	if text != 2 {
		t.Errorf("text = %d, want 2", text)
	}
}

func TestPurgeRuns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i, at := range []int64{1000, 2000, 3000} {
		r := newTestRun(string(rune('A'+i)), KindText, at)
		if err := InsertRun(ctx, db, r); err != nil {
			t.Fatalf("InsertRun failed: %v", err)
		}
	}

	n, err := PurgeRuns(ctx, db, 2500)
	if err != nil {
		t.Fatalf("PurgeRuns failed: %v", err)
	}
	if n != 2 {
		t.Errorf("purged = %d, want 2", n)
	}

	remaining, err := ListRuns(ctx, db, "", 10, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "C" {
		t.Errorf("remaining = %v, want [C]", remaining)
	}

	n, err = PurgeRuns(ctx, db, 0)
	if err != nil {
		t.Fatalf("PurgeRuns failed: %v", err)
	}
	if n != 0 {
		t.Errorf("purged = %d, want 0", n)
	}
}
