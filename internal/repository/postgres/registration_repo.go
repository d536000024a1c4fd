package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"therapyhub/internal/domain"
)

const registrationColumns = `id, workshop_id, user_id, name, email, phone, notes,
	workshop_title, workshop_date, workshop_start_time, workshop_duration_minutes, workshop_cover_image,
	status, waitlisted, decision_status, decision_note, decided_at,
	payment_intent_id, payment_status, payment_amount, payment_currency, payment_method,
	created_at, updated_at`

// pgUniqueViolation is the SQLSTATE Postgres reports for a unique index conflict.
const pgUniqueViolation = "23505"

type registrationRepository struct {
	DB *sql.DB
}

func NewRegistrationRepository(db *sql.DB) domain.RegistrationRepository {
	return &registrationRepository{
		DB: db,
	}
}

func scanRegistration(s rowScanner) (*domain.Registration, error) {
	reg := &domain.Registration{}
	var userID, intentID sql.NullString
	var workshopDate, decidedAt sql.NullTime
	var status, decision string
	if err := s.Scan(
		&reg.ID, &reg.WorkshopID, &userID,
		&reg.Participant.Name, &reg.Participant.Email, &reg.Participant.Phone, &reg.Participant.Notes,
		&reg.Workshop.Title, &workshopDate, &reg.Workshop.StartTime, &reg.Workshop.DurationMinutes, &reg.Workshop.CoverImage,
		&status, &reg.Waitlisted, &decision, &reg.DecisionNote, &decidedAt,
		&intentID, &reg.Payment.Status, &reg.Payment.Amount, &reg.Payment.Currency, &reg.Payment.Method,
		&reg.CreatedAt, &reg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	reg.Status = domain.RegistrationStatus(status)
	reg.DecisionStatus = domain.DecisionStatus(decision)
	if userID.Valid {
		reg.UserID = &userID.String
	}
	if intentID.Valid {
		reg.Payment.IntentID = intentID.String
	}
	if workshopDate.Valid {
		reg.Workshop.Date = &workshopDate.Time
	}
	if decidedAt.Valid {
		reg.DecidedAt = &decidedAt.Time
	}
	return reg, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return nullString(*s)
}

func scanRegistrations(rows *sql.Rows) ([]*domain.Registration, error) {
	defer rows.Close()
	regs := make([]*domain.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

func (r *registrationRepository) Create(ctx context.Context, reg *domain.Registration) error {
	query := `
		INSERT INTO registrations (workshop_id, user_id, name, email, phone, notes,
			workshop_title, workshop_date, workshop_start_time, workshop_duration_minutes, workshop_cover_image,
			status, waitlisted, decision_status, decision_note,
			payment_intent_id, payment_status, payment_amount, payment_currency, payment_method,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query,
		reg.WorkshopID, nullStringPtr(reg.UserID),
		reg.Participant.Name, reg.Participant.Email, reg.Participant.Phone, reg.Participant.Notes,
		reg.Workshop.Title, nullTime(reg.Workshop.Date), reg.Workshop.StartTime, reg.Workshop.DurationMinutes, reg.Workshop.CoverImage,
		string(reg.Status), reg.Waitlisted, string(reg.DecisionStatus), reg.DecisionNote,
		nullString(reg.Payment.IntentID), reg.Payment.Status, reg.Payment.Amount, reg.Payment.Currency, reg.Payment.Method,
		reg.CreatedAt, reg.UpdatedAt,
	).Scan(&reg.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return domain.ErrDuplicatePayment
		}
		return err
	}
	return nil
}

func (r *registrationRepository) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	reg, err := scanRegistration(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return reg, nil
}

func (r *registrationRepository) GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE payment_intent_id = $1`
	reg, err := scanRegistration(r.DB.QueryRowContext(ctx, query, intentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return reg, nil
}

func (r *registrationRepository) ListByUserID(ctx context.Context, userID string) ([]*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return scanRegistrations(rows)
}

// registrationWhere builds the WHERE clause for filter. Status is derived above the store and
// is not matched here.
func registrationWhere(filter domain.RegistrationFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.WorkshopID != "" {
		add("workshop_id = $%d", filter.WorkshopID)
	}
	if len(filter.StoredStatuses) > 0 {
		statuses := make([]string, len(filter.StoredStatuses))
		for i, st := range filter.StoredStatuses {
			statuses[i] = string(st)
		}
		add("status = ANY($%d)", pq.Array(statuses))
	}
	if filter.DecisionStatus != "" {
		add("decision_status = $%d", string(filter.DecisionStatus))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", n, n))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *registrationRepository) List(ctx context.Context, filter domain.RegistrationFilter, page domain.PaginationParams) ([]*domain.Registration, int, error) {
	where, args := registrationWhere(filter)

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM registrations%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		registrationColumns, where, len(args)+1, len(args)+2)
	rows, err := r.DB.QueryContext(ctx, query, append(args, page.PageSize, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	regs, err := scanRegistrations(rows)
	if err != nil {
		return nil, 0, err
	}
	return regs, total, nil
}

func (r *registrationRepository) ListAll(ctx context.Context, filter domain.RegistrationFilter) ([]*domain.Registration, error) {
	where, args := registrationWhere(filter)
	query := fmt.Sprintf(`SELECT %s FROM registrations%s ORDER BY created_at DESC`, registrationColumns, where)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanRegistrations(rows)
}

func (r *registrationRepository) SetDecision(ctx context.Context, ids []string, decision domain.DecisionStatus, note string, decidedAt time.Time) (int, error) {
	query := `
		UPDATE registrations
		SET decision_status = $1, decision_note = $2, decided_at = $3, updated_at = $3
		WHERE id = ANY($4)
	`
	result, err := r.DB.ExecContext(ctx, query, string(decision), note, decidedAt, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *registrationRepository) SetStatus(ctx context.Context, id string, status domain.RegistrationStatus) error {
	result, err := r.DB.ExecContext(ctx,
		`UPDATE registrations SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *registrationRepository) UpdatePaymentByIntentID(ctx context.Context, payment domain.PaymentSnapshot) error {
	query := `
		UPDATE registrations
		SET payment_status = $2, payment_amount = $3, payment_currency = $4, payment_method = $5, updated_at = NOW()
		WHERE payment_intent_id = $1
	`
	result, err := r.DB.ExecContext(ctx, query,
		payment.IntentID, payment.Status, payment.Amount, payment.Currency, payment.Method)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
