package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"therapyhub/internal/domain"
)

const workshopColumns = `id, title, description, facilitator, location, cover_image, date, start_time,
	duration_minutes, capacity, enrolled, price_type, price, status, published_at, created_at, updated_at`

type workshopRepository struct {
	DB *sql.DB
}

func NewWorkshopRepository(db *sql.DB) domain.WorkshopRepository {
	return &workshopRepository{
		DB: db,
	}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkshop(s rowScanner) (*domain.Workshop, error) {
	w := &domain.Workshop{}
	var dateNull, publishedNull sql.NullTime
	var priceType, status string
	if err := s.Scan(
		&w.ID, &w.Title, &w.Description, &w.Facilitator, &w.Location, &w.CoverImage,
		&dateNull, &w.StartTime, &w.DurationMinutes, &w.Capacity, &w.Enrolled,
		&priceType, &w.Price, &status, &publishedNull, &w.CreatedAt, &w.UpdatedAt,
	); err != nil {
		return nil, err
	}
	w.PriceType = domain.PriceType(priceType)
	w.Status = domain.WorkshopStatus(status)
	if dateNull.Valid {
		w.Date = &dateNull.Time
	}
	if publishedNull.Valid {
		w.PublishedAt = &publishedNull.Time
	}
	return w, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *workshopRepository) Create(ctx context.Context, w *domain.Workshop) error {
	query := `
		INSERT INTO workshops (title, description, facilitator, location, cover_image, date, start_time,
			duration_minutes, capacity, price_type, price, status, published_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		w.Title, w.Description, w.Facilitator, w.Location, w.CoverImage, nullTime(w.Date), w.StartTime,
		w.DurationMinutes, w.Capacity, string(w.PriceType), w.Price, string(w.Status), nullTime(w.PublishedAt),
		w.CreatedAt, w.UpdatedAt,
	).Scan(&w.ID)
}

func (r *workshopRepository) GetByID(ctx context.Context, id string) (*domain.Workshop, error) {
	query := `SELECT ` + workshopColumns + ` FROM workshops WHERE id = $1`
	w, err := scanWorkshop(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return w, nil
}

func (r *workshopRepository) List(ctx context.Context, statuses []domain.WorkshopStatus) ([]*domain.Workshop, error) {
	query := `SELECT ` + workshopColumns + ` FROM workshops`
	var args []any
	if len(statuses) > 0 {
		values := make([]string, len(statuses))
		for i, s := range statuses {
			values[i] = string(s)
		}
		query += ` WHERE status = ANY($1)`
		args = append(args, pq.Array(values))
	}
	query += ` ORDER BY date ASC NULLS LAST, created_at DESC`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	workshops := make([]*domain.Workshop, 0)
	for rows.Next() {
		w, err := scanWorkshop(rows)
		if err != nil {
			return nil, err
		}
		workshops = append(workshops, w)
	}
	return workshops, rows.Err()
}

func (r *workshopRepository) Update(ctx context.Context, w *domain.Workshop) error {
	// The capacity guard keeps the write from shrinking capacity below a concurrently
	// reserved seat count.
	query := `
		UPDATE workshops
		SET title = $2, description = $3, facilitator = $4, location = $5, cover_image = $6, date = $7,
			start_time = $8, duration_minutes = $9, capacity = $10, price_type = $11, price = $12,
			status = $13, published_at = $14, updated_at = $15
		WHERE id = $1 AND ($10 = 0 OR enrolled <= $10)
		RETURNING enrolled
	`
	err := r.DB.QueryRowContext(ctx, query,
		w.ID, w.Title, w.Description, w.Facilitator, w.Location, w.CoverImage, nullTime(w.Date),
		w.StartTime, w.DurationMinutes, w.Capacity, string(w.PriceType), w.Price,
		string(w.Status), nullTime(w.PublishedAt), w.UpdatedAt,
	).Scan(&w.Enrolled)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	var exists bool
	if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM workshops WHERE id = $1)`, w.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%w: capacity cannot be lower than the number of enrolled participants", domain.ErrInvalidInput)
}

func (r *workshopRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB.ExecContext(ctx, `DELETE FROM workshops WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *workshopRepository) ReserveSeat(ctx context.Context, id string, now time.Time) (bool, error) {
	// One statement: the row lock taken by UPDATE serializes concurrent reservations and the
	// WHERE clause is re-evaluated against the latest row version.
	query := `
		UPDATE workshops
		SET enrolled = enrolled + 1,
			status = CASE WHEN status = 'ready' THEN 'upcoming' ELSE status END,
			published_at = CASE WHEN status = 'ready' AND published_at IS NULL THEN $2 ELSE published_at END,
			updated_at = $2
		WHERE id = $1 AND (capacity = 0 OR enrolled < capacity)
	`
	result, err := r.DB.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// unpublishCond holds when a workshop promoted by a failed registration has nothing left
// that its first registration would have published.
const unpublishCond = `(enrolled = 1 AND status = 'upcoming'
	AND NOT EXISTS (SELECT 1 FROM registrations WHERE registrations.workshop_id = workshops.id))`

func (r *workshopRepository) ReleaseSeat(ctx context.Context, id string, promotedAt *time.Time) error {
	if promotedAt == nil {
		query := `UPDATE workshops SET enrolled = enrolled - 1, updated_at = NOW() WHERE id = $1 AND enrolled > 0`
		_, err := r.DB.ExecContext(ctx, query, id)
		return err
	}
	// SET expressions see the row before the update, so enrolled = 1 means the last seat.
	query := `
		UPDATE workshops
		SET enrolled = enrolled - 1,
			status = CASE WHEN ` + unpublishCond + ` THEN 'ready' ELSE status END,
			published_at = CASE WHEN ` + unpublishCond + ` AND published_at = $2 THEN NULL ELSE published_at END,
			updated_at = NOW()
		WHERE id = $1 AND enrolled > 0
	`
	_, err := r.DB.ExecContext(ctx, query, id, *promotedAt)
	return err
}

func (r *workshopRepository) PromoteReady(ctx context.Context, id string, now time.Time) error {
	query := `
		UPDATE workshops
		SET status = 'upcoming', published_at = COALESCE(published_at, $2), updated_at = $2
		WHERE id = $1 AND status = 'ready'
	`
	_, err := r.DB.ExecContext(ctx, query, id, now)
	return err
}
