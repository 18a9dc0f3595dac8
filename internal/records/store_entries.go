package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"scanmatch/internal/matcher"
)

const entryColumns = "id, name, description, template, created_at, modified_at"

// Find returns the entry enrolled under name, or nil when there is none.
func (s *Store) Find(ctx context.Context, name string) (*Entry, error) {
	key, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+entryColumns+" FROM enrollments WHERE name = ?", key)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find entry: %w", err)
	}
	return entry, nil
}

// Enroll stores a new user. It fails with ErrAlreadyEnrolled when name is taken.
func (s *Store) Enroll(ctx context.Context, name, description string, tpl *matcher.Template) (*Entry, error) {
	key, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	blob, err := encodeTemplate(tpl)
	if err != nil {
		return nil, err
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	_, err = s.execWithRetry(ctx,
		`INSERT INTO enrollments (name, description, template, created_at, modified_at)
         VALUES (?, ?, ?, ?, ?)`,
		key, description, blob, timestamp, timestamp,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("enroll %q: %w", key, ErrAlreadyEnrolled)
	}
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}
	return s.Find(ctx, key)
}

// Update replaces the template and description of an existing user. The
// creation time is kept.
func (s *Store) Update(ctx context.Context, name, description string, tpl *matcher.Template) (*Entry, error) {
	key, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	blob, err := encodeTemplate(tpl)
	if err != nil {
		return nil, err
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE enrollments SET description = ?, template = ?, modified_at = ? WHERE name = ?`,
		description, blob, time.Now().UTC().Format(time.RFC3339Nano), key,
	)
	if err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("update entry rows: %w", err)
	} else if n == 0 {
		return nil, fmt.Errorf("update %q: %w", key, ErrNotEnrolled)
	}
	return s.Find(ctx, key)
}

// Remove deletes one user.
func (s *Store) Remove(ctx context.Context, name string) error {
	key, err := NormalizeName(name)
	if err != nil {
		return err
	}
	res, err := s.execWithRetry(ctx, "DELETE FROM enrollments WHERE name = ?", key)
	if err != nil {
		return fmt.Errorf("remove entry: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("remove entry rows: %w", err)
	} else if n == 0 {
		return fmt.Errorf("remove %q: %w", key, ErrNotEnrolled)
	}
	return nil
}

// List returns every entry ordered by name.
func (s *Store) List(ctx context.Context) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT "+entryColumns+" FROM enrollments ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// Count returns the number of enrolled users.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ensureContext(ctx), "SELECT COUNT(1) FROM enrollments").Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// Clear removes every user and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM enrollments")
	if err != nil {
		return 0, fmt.Errorf("clear entries: %w", err)
	}
	return res.RowsAffected()
}

// Size reports the database size in bytes.
func (s *Store) Size(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	var pages, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pages); err != nil {
		return 0, fmt.Errorf("read page count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("read page size: %w", err)
	}
	return pages * pageSize, nil
}

func encodeTemplate(tpl *matcher.Template) ([]byte, error) {
	if tpl == nil {
		return nil, fmt.Errorf("%w: nil template", matcher.ErrInvalidArgument)
	}
	blob, err := tpl.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode template: %w", err)
	}
	return blob, nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry       Entry
		blob        []byte
		createdRaw  string
		modifiedRaw string
	)
	if err := scanner.Scan(&entry.ID, &entry.Name, &entry.Description, &blob, &createdRaw, &modifiedRaw); err != nil {
		return nil, err
	}
	tpl := &matcher.Template{}
	if err := tpl.UnmarshalBinary(blob); err != nil {
		return nil, fmt.Errorf("decode template for %q: %w", entry.Name, err)
	}
	entry.Template = tpl
	var err error
	if entry.CreatedAt, err = time.Parse(time.RFC3339Nano, createdRaw); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if entry.ModifiedAt, err = time.Parse(time.RFC3339Nano, modifiedRaw); err != nil {
		return nil, fmt.Errorf("parse modified_at: %w", err)
	}
	return &entry, nil
}
