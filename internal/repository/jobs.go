package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/voxhall/audio-insights/internal/common"
	"github.com/voxhall/audio-insights/internal/entity"
)

// jobDocumentSchema guards the serialization boundary between the Job
// struct and its stored document: required keys, the status enum, and
// the error_message-iff-failed invariant.
const jobDocumentSchema = `{
	"type": "object",
	"required": ["id", "file_path", "status", "created_at", "updated_at"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"file_path": {"type": "string", "minLength": 1},
		"status": {"enum": ["uploaded", "transcribing", "transcribed", "completed", "failed"]},
		"transcription_id": {"type": "string"},
		"transcription_file_path": {"type": "string"},
		"analysis_file_path": {"type": "string"},
		"analysis_text": {"type": "string"},
		"prompt_category_id": {"type": "string"},
		"prompt_subcategory_id": {"type": "string"},
		"error_message": {"type": "string", "minLength": 1},
		"created_at": {"type": "string"},
		"updated_at": {"type": "string"}
	},
	"allOf": [
		{
			"if": {"properties": {"status": {"const": "failed"}}},
			"then": {"required": ["error_message"]},
			"else": {"not": {"required": ["error_message"]}}
		}
	]
}`

var compiledJobSchema = jsonschema.MustCompileString("job.schema.json", jobDocumentSchema)

// updatedAtFormat is fixed-width so the TEXT ORDER BY on updated_at
// sorts chronologically; RFC3339Nano drops trailing zeros, which would
// put "...00Z" after "...00.5Z" lexically.
const updatedAtFormat = "2006-01-02T15:04:05.000000000Z07:00"

// JobRepository reads and writes job documents in the keyed store.
type JobRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Job, error)
	GetBySourceURI(ctx context.Context, sourceURI string) (*entity.Job, error)
	Upsert(ctx context.Context, job *entity.Job) error
	List(ctx context.Context) ([]*entity.Job, error)
}

type jobRepo struct {
	db  *DB
	log *slog.Logger
}

func NewJobRepository(db *DB, log *slog.Logger) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &jobRepo{db: db, log: log}
}

func (r *jobRepo) GetByID(ctx context.Context, id string) (*entity.Job, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT doc FROM jobs WHERE id = $1`), id)
	return r.scanJob(row, "id", id)
}

func (r *jobRepo) GetBySourceURI(ctx context.Context, sourceURI string) (*entity.Job, error) {
	row := r.db.QueryRowContext(ctx,
		r.db.Rebind(`SELECT doc FROM jobs WHERE file_path = $1 LIMIT 1`), sourceURI)
	return r.scanJob(row, "file_path", sourceURI)
}

func (r *jobRepo) scanJob(row *sql.Row, key, value string) (*entity.Job, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NewAppError(common.KindNotFound, "job not found: "+key+"="+value, err)
		}
		r.log.Error("job lookup failed", key, value, "error", err)
		return nil, err
	}
	var job entity.Job
	if err := json.Unmarshal(doc, &job); err != nil {
		return nil, common.WrapError(err, "decode job document")
	}
	return &job, nil
}

func (r *jobRepo) Upsert(ctx context.Context, job *entity.Job) error {
	doc, err := json.Marshal(job)
	if err != nil {
		return common.WrapError(err, "encode job document")
	}
	if err := validateJobDocument(doc); err != nil {
		r.log.Error("job document rejected by schema", "job_id", job.ID, "error", err)
		return err
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO jobs (id, file_path, status, doc, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
			file_path = excluded.file_path,
			status = excluded.status,
			doc = excluded.doc,
			updated_at = excluded.updated_at`),
		job.ID, job.SourceURI, string(job.Status), string(doc),
		job.UpdatedAt.UTC().Format(updatedAtFormat))
	if err != nil {
		r.log.Error("job upsert failed", "job_id", job.ID, "error", err)
		return err
	}
	r.log.Debug("job upserted", "job_id", job.ID, "status", job.Status)
	return nil
}

func (r *jobRepo) List(ctx context.Context) ([]*entity.Job, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT doc FROM jobs ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Job
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var job entity.Job
		if err := json.Unmarshal(doc, &job); err != nil {
			return nil, common.WrapError(err, "decode job document")
		}
		out = append(out, &job)
	}
	return out, rows.Err()
}

// validateJobDocument checks a serialized job against the document schema.
func validateJobDocument(doc []byte) error {
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return common.WrapError(err, "decode job document")
	}
	if err := compiledJobSchema.Validate(v); err != nil {
		return common.NewAppError(common.KindInvalidRequest, "job document violates schema", err)
	}
	return nil
}
