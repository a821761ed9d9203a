package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"lyrahub/internal/domain"
)

const itemColumns = `id, title, url, source, kind, lang, summary, summary_target,
	published_at, is_featured, created_at, updated_at`

// UpsertItem inserts the item or refreshes the fetched fields of the row with
// the same id. Derived summaries and the featured flag survive re-ingestion.
func (d *Database) UpsertItem(ctx context.Context, item *domain.ContentItem) error {
	id := strings.TrimSpace(item.ID)
	if id == "" {
		return fmt.Errorf("upsert item: %w: empty id", domain.ErrInvalidInput)
	}

	var published sql.NullTime
	if item.PublishedAt != nil {
		published = sql.NullTime{Time: item.PublishedAt.UTC(), Valid: true}
	}

	now := time.Now().UTC()

	query := `insert into items (id, title, url, source, kind, lang, summary, published_at, created_at, updated_at)
	values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	on conflict (id) do update set
		title = excluded.title,
		url = excluded.url,
		source = excluded.source,
		kind = excluded.kind,
		lang = excluded.lang,
		summary = excluded.summary,
		published_at = excluded.published_at,
		updated_at = excluded.updated_at`

	_, err := d.db.ExecContext(ctx, query,
		id,
		strings.TrimSpace(item.Title),
		strings.TrimSpace(item.URL),
		nullString(item.Source),
		nullString(string(item.Kind)),
		nullString(string(item.Lang)),
		nullString(item.Summary),
		published,
		now,
		now)
	if err != nil {
		return fmt.Errorf("upsert item (id = %s): %w", id, err)
	}

	return nil
}

func (d *Database) getItem(ctx context.Context, id string) (*domain.ContentItem, error) {
	items, err := d.queryItems(ctx, "getItem", `select `+itemColumns+` from items where id = ?`, id)
	if err != nil {
		return nil, err
	}

	if len(items) == 0 {
		return nil, domain.ErrNotFound
	}

	return &items[0], nil
}

// SelectRecentTop returns up to limit items published since the given time
// (or undated), newest first. Items of excludeKind are skipped when it is set.
func (d *Database) SelectRecentTop(
	ctx context.Context,
	since time.Time,
	limit int,
	excludeKind domain.SourceKind,
) ([]domain.ContentItem, error) {
	query := `select ` + itemColumns + ` from items
	where (published_at is null or published_at >= ?)
	and (? = '' or kind is null or kind != ?)
	order by published_at desc nulls last, created_at desc
	limit ?`

	return d.queryItems(ctx, "SelectRecentTop", query,
		since.UTC(), string(excludeKind), string(excludeKind), limit)
}

func (d *Database) UpdateSummaryTarget(ctx context.Context, id string, summary string) error {
	query := "update items set summary_target = ?, updated_at = ? where id = ?"

	res, err := d.db.ExecContext(ctx, query, strings.TrimSpace(summary), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update summary: %w", err)
	}

	if err = requireAffected(res); err != nil {
		return fmt.Errorf("update summary (id = %s): %w", id, err)
	}

	return nil
}

// ReplaceFeatured clears every featured flag and sets it on ids in one
// transaction, so readers never see two runs' picks mixed.
func (d *Database) ReplaceFeatured(ctx context.Context, ids []string) error {
	return d.inTx(ctx, "ReplaceFeatured", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "update items set is_featured = 0 where is_featured = 1"); err != nil {
			return fmt.Errorf("clear featured: %w", err)
		}

		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, "update items set is_featured = 1 where id = ?", id); err != nil {
				return fmt.Errorf("set featured (id = %s): %w", id, err)
			}
		}

		return nil
	})
}

func (d *Database) ListFeaturedItems(ctx context.Context, limit int) ([]domain.ContentItem, error) {
	query := `select ` + itemColumns + ` from items
	where is_featured = 1
	order by published_at desc nulls last, created_at desc
	limit ?`

	return d.queryItems(ctx, "ListFeaturedItems", query, limit)
}

func (d *Database) ListLatestItems(ctx context.Context, limit int) ([]domain.ContentItem, error) {
	query := `select ` + itemColumns + ` from items
	order by published_at desc nulls last, created_at desc
	limit ?`

	return d.queryItems(ctx, "ListLatestItems", query, limit)
}

// SearchItems matches every whitespace separated term against title, summary
// and source.
func (d *Database) SearchItems(ctx context.Context, text string, limit int) ([]domain.ContentItem, error) {
	terms := strings.Fields(strings.ToLower(text))
	if len(terms) == 0 {
		return nil, nil
	}

	var (
		where []string
		args  []any
	)

	for _, term := range terms {
		pattern := "%" + escapeLike(term) + "%"
		where = append(where, `(lower(title) like ? escape '\'
			or lower(coalesce(summary, '')) like ? escape '\'
			or lower(coalesce(source, '')) like ? escape '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	args = append(args, limit)

	query := `select ` + itemColumns + ` from items
	where ` + strings.Join(where, " and ") + `
	order by published_at desc nulls last
	limit ?`

	return d.queryItems(ctx, "SearchItems", query, args...)
}

func (d *Database) Stats(ctx context.Context) (domain.Stats, error) {
	var s domain.Stats

	if err := d.db.QueryRowContext(ctx, "select count(*) from items").Scan(&s.Items); err != nil {
		return s, fmt.Errorf("count items: %w", err)
	}

	if err := d.db.QueryRowContext(ctx, "select count(*) from subscribers").Scan(&s.Subscribers); err != nil {
		return s, fmt.Errorf("count subscribers: %w", err)
	}

	return s, nil
}

func (d *Database) queryItems(
	ctx context.Context,
	operation string,
	query string,
	args ...any,
) ([]domain.ContentItem, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, operation)

	var items []domain.ContentItem
	for rows.Next() {
		var (
			it            domain.ContentItem
			source        sql.NullString
			kind          sql.NullString
			lang          sql.NullString
			summary       sql.NullString
			summaryTarget sql.NullString
			published     sql.NullTime
		)

		err = rows.Scan(&it.ID, &it.Title, &it.URL, &source, &kind, &lang,
			&summary, &summaryTarget, &published, &it.Featured, &it.CreatedAt, &it.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		it.Source = source.String
		it.Kind = domain.SourceKind(kind.String)
		it.Lang = domain.Language(lang.String)
		it.Summary = summary.String
		it.SummaryTarget = summaryTarget.String

		if published.Valid {
			t := published.Time
			it.PublishedAt = &t
		}

		items = append(items, it)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return items, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
