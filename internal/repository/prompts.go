package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"

	"github.com/voxhall/audio-insights/internal/common"
	"github.com/voxhall/audio-insights/internal/entity"
)

// PromptRepository reads prompt-subcategory documents. The CRUD surface
// that manages them is external; the pipeline only resolves the prompt
// text for a job's subcategory.
type PromptRepository interface {
	GetPromptText(ctx context.Context, subcategoryID string) (string, error)
	Put(ctx context.Context, sub *entity.PromptSubcategory) error
}

type promptRepo struct {
	db  *DB
	log *slog.Logger
}

func NewPromptRepository(db *DB, log *slog.Logger) PromptRepository {
	if log == nil {
		log = slog.Default()
	}
	return &promptRepo{db: db, log: log}
}

// GetPromptText returns the prompt text for a subcategory. When the
// document carries several prompts, the value under the first key in
// lexical order wins, so repeated runs resolve the same text.
func (r *promptRepo) GetPromptText(ctx context.Context, subcategoryID string) (string, error) {
	row := r.db.QueryRowContext(ctx,
		r.db.Rebind(`SELECT doc FROM prompt_subcategories WHERE id = $1`), subcategoryID)

	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.Errorf(common.KindNotFound, "no prompts found for subcategory: %s", subcategoryID)
		}
		r.log.Error("prompt lookup failed", "subcategory_id", subcategoryID, "error", err)
		return "", err
	}

	var sub entity.PromptSubcategory
	if err := json.Unmarshal(doc, &sub); err != nil {
		return "", common.WrapError(err, "decode prompt document")
	}
	if sub.Type != entity.PromptSubcategoryType {
		return "", common.Errorf(common.KindNotFound, "document %s is not a prompt subcategory", subcategoryID)
	}
	if len(sub.Prompts) == 0 {
		return "", common.Errorf(common.KindNotFound, "no prompts found in subcategory: %s", subcategoryID)
	}

	keys := make([]string, 0, len(sub.Prompts))
	for k := range sub.Prompts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return sub.Prompts[keys[0]], nil
}

func (r *promptRepo) Put(ctx context.Context, sub *entity.PromptSubcategory) error {
	if sub.Type == "" {
		sub.Type = entity.PromptSubcategoryType
	}
	doc, err := json.Marshal(sub)
	if err != nil {
		return common.WrapError(err, "encode prompt document")
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO prompt_subcategories (id, doc) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET doc = excluded.doc`),
		sub.ID, string(doc))
	if err != nil {
		r.log.Error("prompt upsert failed", "subcategory_id", sub.ID, "error", err)
	}
	return err
}
