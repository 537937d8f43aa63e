package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/themeflow/server/internal/models"
)

// ThemeDocumentRepository defines operations for theme document persistence
type ThemeDocumentRepository interface {
	List(ctx context.Context) ([]*models.StoredTheme, error)
	GetByName(ctx context.Context, name string) (*models.StoredTheme, error)
	Upsert(ctx context.Context, theme *models.StoredTheme) error
	Delete(ctx context.Context, name string) error
}

type themeDocumentRepository struct {
	db DBTX
}

// NewThemeDocumentRepository creates a new theme document repository.
// Queries use $n placeholders, which both SQLite and PostgreSQL accept.
func NewThemeDocumentRepository(db DBTX) ThemeDocumentRepository {
	return &themeDocumentRepository{db: db}
}

// List retrieves all stored documents, system themes first
func (r *themeDocumentRepository) List(ctx context.Context) ([]*models.StoredTheme, error) {
	query := `
		SELECT name, format, document, is_system, created_at, updated_at
		FROM theme_documents
		ORDER BY is_system DESC, name ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var themes []*models.StoredTheme
	for rows.Next() {
		theme, err := r.scanTheme(rows)
		if err != nil {
			return nil, err
		}
		themes = append(themes, theme)
	}

	return themes, rows.Err()
}

// GetByName retrieves a document by theme name
func (r *themeDocumentRepository) GetByName(ctx context.Context, name string) (*models.StoredTheme, error) {
	query := `
		SELECT name, format, document, is_system, created_at, updated_at
		FROM theme_documents
		WHERE name = $1
	`

	row := r.db.QueryRowContext(ctx, query, name)
	theme, err := r.scanTheme(row)
	if errors.Is(err, models.ErrThemeNotFound) {
		return nil, fmt.Errorf("theme %s in database: %w", name, err)
	}
	return theme, err
}

// Upsert creates or replaces a non-system document
func (r *themeDocumentRepository) Upsert(ctx context.Context, theme *models.StoredTheme) error {
	// System documents cannot be overwritten
	existing, err := r.GetByName(ctx, theme.Name)
	if err != nil && !errors.Is(err, models.ErrThemeNotFound) {
		return err
	}
	if existing != nil && existing.IsSystem && !theme.IsSystem {
		return models.ErrSystemThemeEdit
	}

	now := time.Now().UTC()
	if existing != nil {
		theme.CreatedAt = existing.CreatedAt
	} else {
		theme.CreatedAt = now
	}
	theme.UpdatedAt = now

	query := `
		INSERT INTO theme_documents (name, format, document, is_system, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE
		SET format = excluded.format, document = excluded.document, updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		theme.Name,
		string(theme.Format),
		theme.Document,
		theme.IsSystem,
		theme.CreatedAt,
		theme.UpdatedAt,
	)
	return err
}

// Delete deletes a document by name (only non-system documents)
func (r *themeDocumentRepository) Delete(ctx context.Context, name string) error {
	// Check if it's a system theme (cannot be deleted)
	existing, err := r.GetByName(ctx, name)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return models.ErrSystemThemeEdit
	}

	query := `DELETE FROM theme_documents WHERE name = $1 AND is_system = FALSE`

	result, err := r.db.ExecContext(ctx, query, name)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return models.ErrThemeNotFound
	}

	return nil
}

// scanTheme scans a row into a StoredTheme
func (r *themeDocumentRepository) scanTheme(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.StoredTheme, error) {
	var theme models.StoredTheme
	var format string
	var isSystem interface{} // BOOLEAN in postgres, INTEGER in sqlite

	err := scanner.Scan(
		&theme.Name,
		&format,
		&theme.Document,
		&isSystem,
		&theme.CreatedAt,
		&theme.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrThemeNotFound
		}
		return nil, err
	}

	switch v := isSystem.(type) {
	case bool:
		theme.IsSystem = v
	case int64:
		theme.IsSystem = v != 0
	}
	theme.Format = models.DocumentFormat(format)

	return &theme, nil
}
