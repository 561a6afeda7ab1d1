package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/voxhall/audio-insights/constants"
	"github.com/voxhall/audio-insights/internal/common"
	"github.com/voxhall/audio-insights/internal/entity"
)

// openTestDB migrates a fresh in-memory store.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	raw, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	raw.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = raw.Close() })

	db := &DB{DB: raw, driver: DriverSQLite}
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func sampleJob() *entity.Job {
	return &entity.Job{
		ID:        "J1",
		SourceURI: "recordings/call.wav",
		Status:    constants.JobStatusUploaded,
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

// TestJobUpsertRoundTrip writes a job, updates it, and reads it back by
// both keys.
func TestJobUpsertRoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewJobRepository(db, nil)
	ctx := context.Background()

	job := sampleJob()
	if err := repo.Upsert(ctx, job); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := repo.GetByID(ctx, "J1")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.SourceURI != job.SourceURI || got.Status != constants.JobStatusUploaded {
		t.Fatalf("got = %+v", got)
	}

	got, err = repo.GetBySourceURI(ctx, "recordings/call.wav")
	if err != nil {
		t.Fatalf("get by source uri: %v", err)
	}
	if got.ID != "J1" {
		t.Fatalf("got id = %q", got.ID)
	}

	job.Status = constants.JobStatusTranscribing
	job.TranscriptionHandle = "T1"
	job.UpdatedAt = job.UpdatedAt.Add(time.Minute)
	if err := repo.Upsert(ctx, job); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, _ = repo.GetByID(ctx, "J1")
	if got.Status != constants.JobStatusTranscribing || got.TranscriptionHandle != "T1" {
		t.Fatalf("updated job = %+v", got)
	}
}

// TestJobNotFound maps an absent row to a not-found error.
func TestJobNotFound(t *testing.T) {
	db := openTestDB(t)
	repo := NewJobRepository(db, nil)

	if _, err := repo.GetByID(context.Background(), "nope"); !common.IsKind(err, common.KindNotFound) {
		t.Fatalf("error kind = %v, want not found (%v)", common.KindOf(err), err)
	}
	if _, err := repo.GetBySourceURI(context.Background(), "nope.wav"); !common.IsKind(err, common.KindNotFound) {
		t.Fatalf("error kind = %v, want not found (%v)", common.KindOf(err), err)
	}
}

// TestJobSchemaRejectsFailedWithoutMessage exercises the document
// schema at the write boundary.
func TestJobSchemaRejectsFailedWithoutMessage(t *testing.T) {
	db := openTestDB(t)
	repo := NewJobRepository(db, nil)
	ctx := context.Background()

	job := sampleJob()
	job.Status = constants.JobStatusFailed
	if err := repo.Upsert(ctx, job); !common.IsKind(err, common.KindInvalidRequest) {
		t.Fatalf("error kind = %v, want invalid request (%v)", common.KindOf(err), err)
	}

	job.ErrorMessage = "submit rejected"
	if err := repo.Upsert(ctx, job); err != nil {
		t.Fatalf("failed job with message should pass: %v", err)
	}

	// And the other direction: error_message on a healthy status.
	job2 := sampleJob()
	job2.ID = "J2"
	job2.SourceURI = "recordings/other.wav"
	job2.ErrorMessage = "leftover"
	if err := repo.Upsert(ctx, job2); !common.IsKind(err, common.KindInvalidRequest) {
		t.Fatalf("error kind = %v, want invalid request (%v)", common.KindOf(err), err)
	}
}

// TestJobList orders newest first by update time.
func TestJobList(t *testing.T) {
	db := openTestDB(t)
	repo := NewJobRepository(db, nil)
	ctx := context.Background()

	older := sampleJob()
	newer := sampleJob()
	newer.ID = "J2"
	newer.SourceURI = "recordings/second.wav"
	newer.UpdatedAt = older.UpdatedAt.Add(time.Hour)
	if err := repo.Upsert(ctx, older); err != nil {
		t.Fatalf("upsert older: %v", err)
	}
	if err := repo.Upsert(ctx, newer); err != nil {
		t.Fatalf("upsert newer: %v", err)
	}

	got, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "J2" || got[1].ID != "J1" {
		t.Fatalf("list order = %v", []string{got[0].ID, got[1].ID})
	}
}

// TestJobListSubSecondOrdering pins the sort-key format: a whole-second
// update time must not sort after a fractional one from the same second.
func TestJobListSubSecondOrdering(t *testing.T) {
	db := openTestDB(t)
	repo := NewJobRepository(db, nil)
	ctx := context.Background()

	older := sampleJob()
	newer := sampleJob()
	newer.ID = "J2"
	newer.SourceURI = "recordings/second.wav"
	newer.UpdatedAt = older.UpdatedAt.Add(500 * time.Millisecond)
	if err := repo.Upsert(ctx, older); err != nil {
		t.Fatalf("upsert older: %v", err)
	}
	if err := repo.Upsert(ctx, newer); err != nil {
		t.Fatalf("upsert newer: %v", err)
	}

	got, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got[0].ID != "J2" || got[1].ID != "J1" {
		t.Fatalf("list order = %v, want newest first", []string{got[0].ID, got[1].ID})
	}
}

// TestGetPromptText resolves the lexically first prompt and maps the
// error cases to not-found.
func TestGetPromptText(t *testing.T) {
	db := openTestDB(t)
	repo := NewPromptRepository(db, nil)
	ctx := context.Background()

	err := repo.Put(ctx, &entity.PromptSubcategory{
		ID:   "minutes",
		Name: "Meeting minutes",
		Prompts: map[string]string{
			"b-detailed": "Write detailed minutes.",
			"a-brief":    "Write brief minutes.",
		},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	text, err := repo.GetPromptText(ctx, "minutes")
	if err != nil {
		t.Fatalf("get prompt text: %v", err)
	}
	if text != "Write brief minutes." {
		t.Fatalf("text = %q, want the lexically first prompt", text)
	}

	if _, err := repo.GetPromptText(ctx, "absent"); !common.IsKind(err, common.KindNotFound) {
		t.Fatalf("error kind = %v, want not found (%v)", common.KindOf(err), err)
	}

	if err := repo.Put(ctx, &entity.PromptSubcategory{ID: "empty"}); err != nil {
		t.Fatalf("put empty: %v", err)
	}
	if _, err := repo.GetPromptText(ctx, "empty"); !common.IsKind(err, common.KindNotFound) {
		t.Fatalf("error kind = %v, want not found (%v)", common.KindOf(err), err)
	}
}

// TestRebind leaves postgres queries alone and rewrites placeholders
// for sqlite.
func TestRebind(t *testing.T) {
	pg := &DB{driver: DriverPostgres}
	lite := &DB{driver: DriverSQLite}

	q := `INSERT INTO jobs (id, doc) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET doc = excluded.doc`
	if got := pg.Rebind(q); got != q {
		t.Fatalf("postgres rebind changed the query: %q", got)
	}
	want := `INSERT INTO jobs (id, doc) VALUES (?, ?) ON CONFLICT (id) DO UPDATE SET doc = excluded.doc`
	if got := lite.Rebind(q); got != want {
		t.Fatalf("sqlite rebind = %q, want %q", got, want)
	}
}
