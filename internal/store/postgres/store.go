// Package postgres keeps cancellation status records and the access index in
// PostgreSQL. Statements are built with goqu and run on a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/fiscaldocs/dce-cancel/internal/models"
)

const (
	dialectPostgres = "postgres"

	colStatus             = "status"
	colCorrelationID      = "correlation_id"
	colEventCode          = "event_code"
	colUpdatedAt          = "updated_at"
	colEventTimestamp     = "event_timestamp"
	colRequestedAt        = "requested_at"
	colCancellationReason = "cancellation_reason"
	colOperationStatus    = "operation_status"
	colClientID           = "client_id"
	colAccessKey          = "access_key"
)

// DB is the subset of *pgxpool.Pool used by Store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Config names the tables and key columns.
type Config struct {
	TableName       string
	PartitionKey    string
	SortKey         string
	AccessTableName string
}

// Store implements dispatch.StatusStore and access.AccessChecker.
type Store struct {
	db     DB
	cfg    Config
	logger zerolog.Logger
}

// Open creates a pgx pool for dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	const (
		maxConns          = int32(8)
		minConns          = int32(1)
		maxConnLifetime   = time.Hour
		maxConnIdleTime   = 5 * time.Minute
		healthCheckPeriod = time.Minute
		connectTimeout    = 5 * time.Second
	)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}
	poolCfg.MaxConns = maxConns
	poolCfg.MinConns = minConns
	poolCfg.MaxConnLifetime = maxConnLifetime
	poolCfg.MaxConnIdleTime = maxConnIdleTime
	poolCfg.HealthCheckPeriod = healthCheckPeriod
	poolCfg.ConnConfig.ConnectTimeout = connectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	return pool, nil
}

// New constructs a Store.
func New(db DB, cfg Config, logger zerolog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("postgres store: db is required")
	}
	if cfg.TableName == "" {
		return nil, errors.New("postgres store: table name is required")
	}
	if cfg.PartitionKey == "" {
		cfg.PartitionKey = "pk"
	}
	if cfg.SortKey == "" {
		cfg.SortKey = "sk"
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Store{db: db, cfg: cfg, logger: logger}, nil
}

// Upsert implements dispatch.StatusStore. The (pk, sk) row is inserted or
// fully overwritten.
func (s *Store) Upsert(ctx context.Context, rec models.StatusRecord) error {
	query, args, err := s.buildUpsert(rec)
	if err != nil {
		return fmt.Errorf("postgres store: build upsert: %w", err)
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("postgres store: upsert: %w", err)
	}
	return nil
}

// Get returns the live status record of documentID.
func (s *Store) Get(ctx context.Context, documentID string) (models.StatusRecord, bool, error) {
	query, args, err := goqu.Dialect(dialectPostgres).
		From(s.cfg.TableName).
		Select(colStatus, colCorrelationID, colEventCode, colUpdatedAt, colEventTimestamp,
			colRequestedAt, colCancellationReason, colOperationStatus, colClientID).
		Where(goqu.Ex{
			s.cfg.PartitionKey: models.PartitionKeyFor(documentID),
			s.cfg.SortKey:      models.SortKeyLatest,
		}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return models.StatusRecord{}, false, fmt.Errorf("postgres store: build select: %w", err)
	}

	rec := models.StatusRecord{DocumentID: documentID}
	err = s.db.QueryRow(ctx, query, args...).Scan(
		&rec.Status, &rec.CorrelationID, &rec.EventCode, &rec.UpdatedAt, &rec.EventTimestamp,
		&rec.RequestedAt, &rec.CancellationReason, &rec.OperationStatus, &rec.ClientID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.StatusRecord{}, false, nil
	}
	if err != nil {
		return models.StatusRecord{}, false, fmt.Errorf("postgres store: select: %w", err)
	}
	return rec, true, nil
}

// HasAccess implements access.AccessChecker.
func (s *Store) HasAccess(ctx context.Context, accessKey, clientID string) (bool, error) {
	if s.cfg.AccessTableName == "" {
		return false, errors.New("postgres store: access table is not configured")
	}

	query, args, err := goqu.Dialect(dialectPostgres).
		From(s.cfg.AccessTableName).
		Select(goqu.L("1")).
		Where(goqu.Ex{colAccessKey: accessKey, colClientID: clientID}).
		Limit(1).
		Prepared(true).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("postgres store: build access query: %w", err)
	}

	var one int
	err = s.db.QueryRow(ctx, query, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.Debug().Str("accessKey", accessKey).Str("clientId", clientID).Msg("no access row found")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("postgres store: access query: %w", err)
	}
	return true, nil
}

func (s *Store) buildUpsert(rec models.StatusRecord) (string, []any, error) {
	row := goqu.Record{
		s.cfg.PartitionKey:    rec.PartitionKey(),
		s.cfg.SortKey:         rec.SortKey(),
		colStatus:             rec.Status,
		colCorrelationID:      rec.CorrelationID,
		colEventCode:          rec.EventCode,
		colUpdatedAt:          rec.UpdatedAt.UTC(),
		colEventTimestamp:     rec.EventTimestamp.UTC(),
		colRequestedAt:        rec.RequestedAt.UTC(),
		colCancellationReason: rec.CancellationReason,
		colOperationStatus:    rec.OperationStatus,
		colClientID:           rec.ClientID,
	}

	update := goqu.Record{}
	for _, col := range []string{
		colStatus, colCorrelationID, colEventCode, colUpdatedAt, colEventTimestamp,
		colRequestedAt, colCancellationReason, colOperationStatus, colClientID,
	} {
		update[col] = goqu.I("excluded." + col)
	}

	return goqu.Dialect(dialectPostgres).
		Insert(s.cfg.TableName).
		Rows(row).
		OnConflict(goqu.DoUpdate(quoteIdent(s.cfg.PartitionKey)+", "+quoteIdent(s.cfg.SortKey), update)).
		Prepared(true).
		ToSQL()
}

// quoteIdent quotes a column name for the raw ON CONFLICT target, which goqu
// writes verbatim.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
