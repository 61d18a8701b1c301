package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"kuiz-session-service/internal/domain"
)

// TemplateLoader loads template JSONB from Postgres. Templates are authored
// by the external editing flows; this service only reads them.
type TemplateLoader struct {
	pool *pgxpool.Pool
}

func NewTemplateLoader(pool *pgxpool.Pool) *TemplateLoader {
	return &TemplateLoader{pool: pool}
}

func (l *TemplateLoader) LoadTemplate(ctx context.Context, templateID string) (domain.Template, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM templates WHERE id=$1`, templateID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Template{}, domain.ErrTemplateNotFound
	}
	if err != nil {
		return domain.Template{}, fmt.Errorf("load template: %w", err)
	}
	var template domain.Template
	if err := json.Unmarshal(raw, &template); err != nil {
		return domain.Template{}, fmt.Errorf("unmarshal template: %w", err)
	}
	return template, nil
}
