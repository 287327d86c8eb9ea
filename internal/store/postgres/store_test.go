package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiscaldocs/dce-cancel/internal/models"
	"github.com/fiscaldocs/dce-cancel/internal/store/postgres"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakeDB struct {
	sql  string
	args []any
	row  fakeRow
	err  error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql, f.args = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.sql, f.args = sql, args
	return f.row
}

func newStore(t *testing.T, db postgres.DB) *postgres.Store {
	t.Helper()
	s, err := postgres.New(db, postgres.Config{TableName: "dce_status", AccessTableName: "dce_access"}, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func Test_Upsert_ShouldInsertOnConflictUpdate(t *testing.T) {
	db := &fakeDB{}
	s := newStore(t, db)
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	err := s.Upsert(context.Background(), models.StatusRecord{
		DocumentID:         "1234567890",
		Status:             models.StatusCancellationRequested,
		CorrelationID:      "corr-1",
		EventCode:          models.EventCodeCancellation,
		UpdatedAt:          ts,
		EventTimestamp:     ts,
		RequestedAt:        ts,
		CancellationReason: "customer request",
		OperationStatus:    models.OperationStatusReceived,
		ClientID:           "partner-123",
	})
	require.NoError(t, err)

	assert.Contains(t, db.sql, `INSERT INTO "dce_status"`)
	assert.Contains(t, db.sql, `ON CONFLICT ("pk", "sk")`)
	assert.Contains(t, db.sql, "DO UPDATE SET")
	assert.Contains(t, db.sql, `"client_id"="excluded"."client_id"`)
	assert.Contains(t, db.args, "DCE#1234567890")
	assert.Contains(t, db.args, "LATEST")
	assert.Contains(t, db.args, "partner-123")
	assert.Contains(t, db.args, "corr-1")
}

func Test_Upsert_ShouldQuoteMixedCaseConflictTarget(t *testing.T) {
	db := &fakeDB{}
	s, err := postgres.New(db, postgres.Config{
		TableName:    "dce_status",
		PartitionKey: "PK",
		SortKey:      "SK",
	}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, s.Upsert(context.Background(), models.StatusRecord{DocumentID: "1", UpdatedAt: time.Now()}))

	assert.Contains(t, db.sql, `ON CONFLICT ("PK", "SK")`)
	assert.Contains(t, db.sql, `"PK"`)
	assert.NotContains(t, db.sql, "ON CONFLICT (PK, SK)")
}

func Test_Upsert_ShouldWrapExecError(t *testing.T) {
	cause := errors.New("connection reset")
	s := newStore(t, &fakeDB{err: cause})

	err := s.Upsert(context.Background(), models.StatusRecord{DocumentID: "1"})
	assert.ErrorIs(t, err, cause)
}

func Test_Get_ShouldScanRow(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	db := &fakeDB{row: fakeRow{scan: func(dest ...any) error {
		*dest[0].(*string) = models.StatusCancellationRequested
		*dest[1].(*string) = "corr-1"
		*dest[2].(*string) = models.EventCodeCancellation
		*dest[3].(*time.Time) = ts
		*dest[4].(*time.Time) = ts
		*dest[5].(*time.Time) = ts
		*dest[6].(*string) = "customer request"
		*dest[7].(*string) = models.OperationStatusReceived
		*dest[8].(*string) = "partner-123"
		return nil
	}}}
	s := newStore(t, db)

	rec, found, err := s.Get(context.Background(), "1234567890")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "1234567890", rec.DocumentID)
	assert.Equal(t, "partner-123", rec.ClientID)
	assert.Equal(t, ts, rec.UpdatedAt)
	assert.Contains(t, db.sql, `FROM "dce_status"`)
	assert.Contains(t, db.args, "DCE#1234567890")
}

func Test_Get_ShouldReportMissingRow(t *testing.T) {
	db := &fakeDB{row: fakeRow{scan: func(...any) error { return pgx.ErrNoRows }}}
	s := newStore(t, db)

	_, found, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func Test_HasAccess(t *testing.T) {
	cause := errors.New("timeout")

	tests := []struct {
		name    string
		scanErr error
		want    bool
		wantErr error
	}{
		{name: "match", want: true},
		{name: "no rows", scanErr: pgx.ErrNoRows, want: false},
		{name: "query failure", scanErr: cause, wantErr: cause},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDB{row: fakeRow{scan: func(dest ...any) error {
				if tt.scanErr != nil {
					return tt.scanErr
				}
				*dest[0].(*int) = 1
				return nil
			}}}
			s := newStore(t, db)

			got, err := s.HasAccess(context.Background(), "1234567890", "partner-123")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, db.sql, `FROM "dce_access"`)
			assert.Contains(t, db.sql, "LIMIT")
			assert.Contains(t, db.args, "partner-123")
		})
	}
}

func Test_HasAccess_ShouldRequireAccessTable(t *testing.T) {
	s, err := postgres.New(&fakeDB{}, postgres.Config{TableName: "dce_status"}, zerolog.Nop())
	require.NoError(t, err)

	_, err = s.HasAccess(context.Background(), "1", "c")
	assert.Error(t, err)
}
