package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Novoflow/internal/domain"
)

// ProjectRepo — репозиторий projects в PostgreSQL.
type ProjectRepo struct {
	pool *pgxpool.Pool
}

// NewProjectRepo создаёт новый ProjectRepo.
func NewProjectRepo(pool *pgxpool.Pool) *ProjectRepo {
	return &ProjectRepo{pool: pool}
}

// Create создаёт новый project.
func (r *ProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	paramsJSON, err := marshalParams(p.Parameters)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO projects (id, name, status, parameters, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.pool.Exec(ctx, query,
		p.ID,
		p.Name,
		p.Status,
		paramsJSON,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// GetByID возвращает project по ID.
func (r *ProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	query := `
		SELECT id, name, status, parameters, created_at, updated_at
		FROM projects
		WHERE id = $1
	`
	return scanProject(r.pool.QueryRow(ctx, query, id))
}

// Update обновляет статус и параметры project.
func (r *ProjectRepo) Update(ctx context.Context, p *domain.Project) error {
	paramsJSON, err := marshalParams(p.Parameters)
	if err != nil {
		return err
	}

	query := `
		UPDATE projects
		SET name = $2, status = $3, parameters = $4, updated_at = $5
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		p.ID,
		p.Name,
		p.Status,
		paramsJSON,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List возвращает projects, новые первыми.
func (r *ProjectRepo) List(ctx context.Context, filter ProjectFilter) ([]domain.Project, error) {
	query := `
		SELECT id, name, status, parameters, created_at, updated_at
		FROM projects
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.Status.String()),
		normalizeLimit(filter.Limit),
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// Delete удаляет project. Tasks удаляются каскадно (ON DELETE CASCADE).
func (r *ProjectRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func scanProject(row pgx.Row) (*domain.Project, error) {
	var p domain.Project
	var paramsJSON []byte

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Status,
		&paramsJSON,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}

	if p.Parameters, err = unmarshalParams(paramsJSON); err != nil {
		return nil, err
	}
	return &p, nil
}

func marshalParams(params map[string]any) ([]byte, error) {
	if params == nil {
		params = map[string]any{}
	}
	b, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal parameters: %w", err)
	}
	return b, nil
}

func unmarshalParams(b []byte) (map[string]any, error) {
	if b == nil {
		return nil, nil
	}
	var params map[string]any
	if err := json.Unmarshal(b, &params); err != nil {
		return nil, fmt.Errorf("unmarshal parameters: %w", err)
	}
	return params, nil
}

// nullString возвращает nil для пустой строки.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
