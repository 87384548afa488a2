package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/skimapp/skim-api/internal/domain"
	"github.com/skimapp/skim-api/internal/store"
)

// TagStore implements the store.TagStore interface using PostgreSQL.
// The multi-statement maintenance operations (Merge, Retire) run inside
// a transaction when the store is pool-backed.
type TagStore struct {
	db store.DBTX

	// pool is the owning database when the store is not transaction
	// bound; nil on a store returned by WithTx.
	pool *sql.DB
}

// NewTagStore creates a new PostgreSQL implementation of store.TagStore.
func NewTagStore(db *sql.DB) *TagStore {
	return &TagStore{db: db, pool: db}
}

// Ensure TagStore implements store.TagStore.
var _ store.TagStore = (*TagStore)(nil)

// WithTx returns a TagStore bound to the provided transaction.
func (s *TagStore) WithTx(tx *sql.Tx) *TagStore {
	return &TagStore{db: tx}
}

// GetOrCreate implements store.TagStore.GetOrCreate. The no-op DO UPDATE
// makes the statement return the existing row on conflict, so concurrent
// creators of the same slug converge on one tag.
func (s *TagStore) GetOrCreate(ctx context.Context, tag *domain.Tag) (*domain.Tag, error) {
	query := `
		INSERT INTO tags (name, slug, level, category, usage_count, created_at)
		VALUES ($1, $2, $3, $4, 0, now())
		ON CONFLICT (slug) DO UPDATE SET slug = EXCLUDED.slug
		RETURNING id, name, slug, level, COALESCE(category, ''), usage_count, created_at
	`

	var stored domain.Tag
	err := s.db.QueryRowContext(ctx, query,
		tag.Name,
		tag.Slug,
		tag.Level,
		nullableString(tag.Category),
	).Scan(
		&stored.ID,
		&stored.Name,
		&stored.Slug,
		&stored.Level,
		&stored.Category,
		&stored.UsageCount,
		&stored.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create tag %q: %w", tag.Slug, err)
	}

	return &stored, nil
}

// AttachToStory implements store.TagStore.AttachToStory.
func (s *TagStore) AttachToStory(ctx context.Context, storyID int64, tagIDs []int64) error {
	if len(tagIDs) == 0 {
		return nil
	}

	query := `
		INSERT INTO story_tags (story_id, tag_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING
	`

	if _, err := s.db.ExecContext(ctx, query, storyID, tagIDs); err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrStoryNotFound
		}
		return fmt.Errorf("failed to attach tags to story %d: %w", storyID, err)
	}

	// Keep the denormalized all-time counter in step with the links.
	recount := `
		UPDATE tags
		SET usage_count = (SELECT count(*) FROM story_tags WHERE tag_id = tags.id)
		WHERE id = ANY($1)
	`
	if _, err := s.db.ExecContext(ctx, recount, tagIDs); err != nil {
		return fmt.Errorf("failed to refresh tag usage counts: %w", err)
	}

	return nil
}

// UsageSince implements store.TagStore.UsageSince.
func (s *TagStore) UsageSince(ctx context.Context, since time.Time) ([]domain.TagUsage, error) {
	query := `
		SELECT t.id, t.name, t.slug, t.level, COALESCE(t.category, ''),
			t.usage_count, t.created_at,
			count(st.story_id) FILTER (WHERE s.source_created_at >= $1) AS recent_count
		FROM tags t
		LEFT JOIN story_tags st ON st.tag_id = t.id
		LEFT JOIN stories s ON s.id = st.story_id
		GROUP BY t.id
		ORDER BY recent_count DESC, t.name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query tag usage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var usages []domain.TagUsage
	for rows.Next() {
		var u domain.TagUsage
		err := rows.Scan(
			&u.Tag.ID,
			&u.Tag.Name,
			&u.Tag.Slug,
			&u.Tag.Level,
			&u.Tag.Category,
			&u.Tag.UsageCount,
			&u.Tag.CreatedAt,
			&u.RecentCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tag usage: %w", err)
		}
		usages = append(usages, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tag usage: %w", err)
	}

	return usages, nil
}

// Merge implements store.TagStore.Merge. On a pool-backed store the
// remap and the deletes commit as one transaction, so a partial remap
// is never visible.
func (s *TagStore) Merge(ctx context.Context, fromTagID, intoTagID int64) error {
	if s.pool != nil {
		return store.RunInTransaction(ctx, s.pool, func(ctx context.Context, tx *sql.Tx) error {
			return s.WithTx(tx).Merge(ctx, fromTagID, intoTagID)
		})
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM tags WHERE id IN ($1, $2)`,
		fromTagID, intoTagID,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check tags before merge: %w", err)
	}
	if count != 2 {
		return store.ErrTagNotFound
	}

	remap := `
		INSERT INTO story_tags (story_id, tag_id)
		SELECT story_id, $2 FROM story_tags WHERE tag_id = $1
		ON CONFLICT DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, remap, fromTagID, intoTagID); err != nil {
		return fmt.Errorf("failed to remap story tags: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM story_tags WHERE tag_id = $1`, fromTagID); err != nil {
		return fmt.Errorf("failed to delete old story tags: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE id = $1`, fromTagID); err != nil {
		return fmt.Errorf("failed to delete merged tag: %w", err)
	}

	recount := `
		UPDATE tags
		SET usage_count = (SELECT count(*) FROM story_tags WHERE tag_id = tags.id)
		WHERE id = $1
	`
	if _, err := s.db.ExecContext(ctx, recount, intoTagID); err != nil {
		return fmt.Errorf("failed to refresh merged tag usage count: %w", err)
	}

	return nil
}

// Rename implements store.TagStore.Rename.
func (s *TagStore) Rename(ctx context.Context, tagID int64, newName, newSlug string) error {
	query := `UPDATE tags SET name = $2, slug = $3 WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, tagID, newName, newSlug)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("failed to rename tag %d: %w", tagID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrTagNotFound
	}

	return nil
}

// Retire implements store.TagStore.Retire. Like Merge, the link delete
// and the tag delete commit together on a pool-backed store.
func (s *TagStore) Retire(ctx context.Context, tagID int64) error {
	if s.pool != nil {
		return store.RunInTransaction(ctx, s.pool, func(ctx context.Context, tx *sql.Tx) error {
			return s.WithTx(tx).Retire(ctx, tagID)
		})
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM story_tags WHERE tag_id = $1`, tagID); err != nil {
		return fmt.Errorf("failed to delete story tags for retired tag: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE id = $1`, tagID)
	if err != nil {
		return fmt.Errorf("failed to retire tag %d: %w", tagID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrTagNotFound
	}

	return nil
}
