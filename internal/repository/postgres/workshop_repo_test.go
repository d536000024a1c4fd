package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"therapyhub/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var workshopRowColumns = []string{
	"id", "title", "description", "facilitator", "location", "cover_image", "date", "start_time",
	"duration_minutes", "capacity", "enrolled", "price_type", "price", "status", "published_at", "created_at", "updated_at",
}

func TestWorkshopRepository_Create(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	date := time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mock    func(mock sqlmock.Sqlmock)
		wantID  string
		wantErr bool
	}{
		{
			name: "success",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO workshops \(title, description`).
					WithArgs("Breathwork", "", "Dr. Lee", "Room 2", "c.png", sqlmock.AnyArg(), "09:00",
						60, 10, "paid", 30.0, "draft", sqlmock.AnyArg(), ts, ts).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ws-1"))
			},
			wantID: "ws-1",
		},
		{
			name: "db error",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO workshops`).WillReturnError(sql.ErrConnDone)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.mock(mock)
			w := &domain.Workshop{
				Title: "Breathwork", Facilitator: "Dr. Lee", Location: "Room 2", CoverImage: "c.png",
				Date: &date, StartTime: "09:00", DurationMinutes: 60, Capacity: 10,
				PriceType: domain.PriceTypePaid, Price: 30, Status: domain.WorkshopStatusDraft,
				CreatedAt: ts, UpdatedAt: ts,
			}
			err = NewWorkshopRepository(db).Create(ctx, w)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantID, w.ID)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestWorkshopRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	date := time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mock    func(mock sqlmock.Sqlmock)
		want    *domain.Workshop
		wantErr error
	}{
		{
			name: "found",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM workshops WHERE id = \$1`).
					WithArgs("ws-1").
					WillReturnRows(sqlmock.NewRows(workshopRowColumns).AddRow(
						"ws-1", "Breathwork", "desc", "Dr. Lee", "Room 2", "c.png", date, "09:00",
						60, 10, 4, "paid", 30.0, "upcoming", ts, ts, ts))
			},
			want: &domain.Workshop{
				ID: "ws-1", Title: "Breathwork", Description: "desc", Facilitator: "Dr. Lee", Location: "Room 2",
				CoverImage: "c.png", Date: &date, StartTime: "09:00", DurationMinutes: 60, Capacity: 10, Enrolled: 4,
				PriceType: domain.PriceTypePaid, Price: 30, Status: domain.WorkshopStatusUpcoming,
				PublishedAt: &ts, CreatedAt: ts, UpdatedAt: ts,
			},
		},
		{
			name: "null date and publish time",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM workshops WHERE id = \$1`).
					WithArgs("ws-1").
					WillReturnRows(sqlmock.NewRows(workshopRowColumns).AddRow(
						"ws-1", "Draft", "", "", "", "", nil, "",
						60, 0, 0, "free", 0.0, "draft", nil, ts, ts))
			},
			want: &domain.Workshop{
				ID: "ws-1", Title: "Draft", DurationMinutes: 60, PriceType: domain.PriceTypeFree,
				Status: domain.WorkshopStatusDraft, CreatedAt: ts, UpdatedAt: ts,
			},
		},
		{
			name: "not found",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM workshops WHERE id = \$1`).
					WithArgs("ws-1").
					WillReturnError(sql.ErrNoRows)
			},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.mock(mock)
			got, err := NewWorkshopRepository(db).GetByID(ctx, "ws-1")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestWorkshopRepository_List(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	t.Run("filters by status", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT .+ FROM workshops WHERE status = ANY\(\$1\) ORDER BY date ASC NULLS LAST`).
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(workshopRowColumns).
				AddRow("ws-1", "A", "", "", "", "a.png", ts, "09:00", 60, 5, 0, "free", 0.0, "ready", nil, ts, ts).
				AddRow("ws-2", "B", "", "", "", "b.png", ts, "10:00", 60, 5, 5, "free", 0.0, "upcoming", ts, ts, ts))

		got, err := NewWorkshopRepository(db).List(ctx, domain.PublicWorkshopStatuses)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "ws-2", got[1].ID)
		assert.Equal(t, 5, got[1].Enrolled)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no filter", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT .+ FROM workshops ORDER BY`).
			WithoutArgs().
			WillReturnRows(sqlmock.NewRows(workshopRowColumns))

		got, err := NewWorkshopRepository(db).List(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWorkshopRepository_Update(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		mock         func(mock sqlmock.Sqlmock)
		wantEnrolled int
		wantErr      error
	}{
		{
			name: "success refreshes enrolled",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`UPDATE workshops\s+SET title = \$2.+WHERE id = \$1 AND \(\$10 = 0 OR enrolled <= \$10\)`).
					WillReturnRows(sqlmock.NewRows([]string{"enrolled"}).AddRow(7))
			},
			wantEnrolled: 7,
		},
		{
			name: "missing row",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`UPDATE workshops`).WillReturnError(sql.ErrNoRows)
				mock.ExpectQuery(`SELECT EXISTS`).WithArgs("ws-1").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
			},
			wantErr: domain.ErrNotFound,
		},
		{
			name: "capacity below enrolled",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`UPDATE workshops`).WillReturnError(sql.ErrNoRows)
				mock.ExpectQuery(`SELECT EXISTS`).WithArgs("ws-1").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
			},
			wantErr: domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.mock(mock)
			w := &domain.Workshop{ID: "ws-1", Title: "A", Capacity: 8, PriceType: domain.PriceTypeFree,
				Status: domain.WorkshopStatusReady, DurationMinutes: 60, UpdatedAt: ts}
			err = NewWorkshopRepository(db).Update(ctx, w)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.NoError(t, mock.ExpectationsWereMet())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantEnrolled, w.Enrolled)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestWorkshopRepository_Delete(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM workshops WHERE id = \$1`).WithArgs("ws-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM workshops WHERE id = \$1`).WithArgs("ws-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewWorkshopRepository(db)
	require.NoError(t, repo.Delete(ctx, "ws-1"))
	require.ErrorIs(t, repo.Delete(ctx, "ws-2"), domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkshopRepository_ReserveSeat(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"seat reserved", 1, true},
		{"workshop full", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectExec(`UPDATE workshops\s+SET enrolled = enrolled \+ 1.+WHERE id = \$1 AND \(capacity = 0 OR enrolled < capacity\)`).
				WithArgs("ws-1", now).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := NewWorkshopRepository(db).ReserveSeat(ctx, "ws-1", now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestWorkshopRepository_ReleaseSeatAndPromote(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE workshops SET enrolled = enrolled - 1.+enrolled > 0`).WithArgs("ws-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE workshops\s+SET enrolled = enrolled - 1,\s+status = CASE WHEN \(enrolled = 1 AND status = 'upcoming'.+NOT EXISTS \(SELECT 1 FROM registrations.+THEN 'ready'.+published_at = \$2 THEN NULL.+WHERE id = \$1 AND enrolled > 0`).
		WithArgs("ws-2", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE workshops\s+SET status = 'upcoming'.+WHERE id = \$1 AND status = 'ready'`).
		WithArgs("ws-1", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewWorkshopRepository(db)
	require.NoError(t, repo.ReleaseSeat(ctx, "ws-1", nil))
	require.NoError(t, repo.ReleaseSeat(ctx, "ws-2", &now))
	require.NoError(t, repo.PromoteReady(ctx, "ws-1", now))
	require.NoError(t, mock.ExpectationsWereMet())
}
