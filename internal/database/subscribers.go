package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lyrahub/internal/domain"
)

// UpsertSubscriber stores the address with its preferred language. A repeated
// subscription only updates the language.
func (d *Database) UpsertSubscriber(ctx context.Context, email string, lang domain.Language) error {
	email = strings.ToLower(strings.TrimSpace(email))

	query := `insert into subscribers (email, lang, confirmed, created_at)
	values (?, ?, 1, ?)
	on conflict (email) do update set lang = excluded.lang, confirmed = 1`

	if _, err := d.db.ExecContext(ctx, query, email, string(lang), time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert subscriber (email = %s): %w", email, err)
	}

	return nil
}

// RemoveSubscriber reports whether a row was deleted.
func (d *Database) RemoveSubscriber(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	res, err := d.db.ExecContext(ctx, "delete from subscribers where email = ?", email)
	if err != nil {
		return false, fmt.Errorf("delete subscriber: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return n > 0, nil
}

func (d *Database) ListConfirmedSubscribers(ctx context.Context) ([]domain.Subscriber, error) {
	query := `select email, lang, confirmed, created_at
	from subscribers
	where confirmed = 1
	order by created_at`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "ListConfirmedSubscribers")

	var subs []domain.Subscriber
	for rows.Next() {
		var (
			s    domain.Subscriber
			lang string
		)

		if err = rows.Scan(&s.Email, &lang, &s.Confirmed, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		s.Lang = domain.Language(lang)
		subs = append(subs, s)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return subs, nil
}
