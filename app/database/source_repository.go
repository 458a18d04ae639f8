package database

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// sourceRepository handles database operations for configured sources
type sourceRepository struct {
	db  *DB
	now func() time.Time
}

var _ SourceRepository = (*sourceRepository)(nil)

// NewSourceRepository creates a new source repository
func NewSourceRepository(db *DB) SourceRepository {
	return &sourceRepository{db: db, now: time.Now}
}

var sourceColumns = []string{
	"name", "source_type", "url", "enabled", "position",
	"declared_count", "last_counted_at", "last_error", "created_at", "updated_at",
}

// UpsertSource inserts or updates a source from its configuration
func (r *sourceRepository) UpsertSource(name, sourceType, url string, enabled bool, order int) error {
	now := r.now().Unix()

	query, args, err := sq.Insert("sources").
		Columns("name", "source_type", "url", "enabled", "position", "created_at", "updated_at").
		Values(name, sourceType, url, enabled, order, now, now).
		Suffix(`ON CONFLICT (name) DO UPDATE SET
			source_type = excluded.source_type,
			url = excluded.url,
			enabled = excluded.enabled,
			position = excluded.position,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build source upsert: %w", err)
	}

	if _, err := r.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}

	return nil
}

// UpdateSourceCount records a successful count
func (r *sourceRepository) UpdateSourceCount(name string, count int) error {
	now := r.now().Unix()

	return r.update(name, map[string]any{
		"declared_count":  count,
		"last_counted_at": now,
		"last_error":      "",
		"updated_at":      now,
	})
}

// UpdateSourceError records a failed count, keeping the last known count
func (r *sourceRepository) UpdateSourceError(name string, countErr error) error {
	message := ""
	if countErr != nil {
		message = countErr.Error()
	}

	return r.update(name, map[string]any{
		"last_error": message,
		"updated_at": r.now().Unix(),
	})
}

func (r *sourceRepository) update(name string, values map[string]any) error {
	query, args, err := sq.Update("sources").
		SetMap(values).
		Where(sq.Eq{"name": name}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build source update: %w", err)
	}

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("source '%s' not found", name)
	}

	return nil
}

// DeleteSourcesExcept removes sources that are no longer configured
func (r *sourceRepository) DeleteSourcesExcept(names []string) (int64, error) {
	builder := sq.Delete("sources")
	if len(names) > 0 {
		builder = builder.Where(sq.NotEq{"name": names})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build source delete: %w", err)
	}

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sources: %w", err)
	}

	return result.RowsAffected()
}

func (r *sourceRepository) GetSource(name string) (*Source, error) {
	query, args, err := sq.Select(sourceColumns...).
		From("sources").
		Where(sq.Eq{"name": name}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build source query: %w", err)
	}

	source, err := scanSource(r.db.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	return source, nil
}

// GetSources returns all sources in declaration order
func (r *sourceRepository) GetSources() ([]Source, error) {
	query, args, err := sq.Select(sourceColumns...).
		From("sources").
		OrderBy("position ASC", "name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build sources query: %w", err)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, *source)
	}

	return sources, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*Source, error) {
	var (
		source        Source
		declaredCount sql.NullInt64
		lastCountedAt sql.NullInt64
		createdAt     int64
		updatedAt     int64
	)

	err := row.Scan(
		&source.Name, &source.Type, &source.URL, &source.Enabled, &source.Order,
		&declaredCount, &lastCountedAt, &source.LastError, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if declaredCount.Valid {
		count := int(declaredCount.Int64)
		source.DeclaredCount = &count
	}
	if lastCountedAt.Valid {
		t := time.Unix(lastCountedAt.Int64, 0)
		source.LastCountedAt = &t
	}
	source.CreatedAt = time.Unix(createdAt, 0)
	source.UpdatedAt = time.Unix(updatedAt, 0)

	return &source, nil
}
