package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	blocklistdomain "github.com/traylorre/sentiment-auth/internal/blocklist/domain"
	"github.com/traylorre/sentiment-auth/internal/session/domain"
)

// scriptedConn is a driver.Conn that replays a fixed sequence of statement
// outcomes, so the eviction transaction's rollback and error-classification
// paths can be exercised without a live database.
type scriptedConn struct {
	execs     []execOutcome
	commitErr error

	commits   int
	rollbacks int
}

type execOutcome struct {
	rows int64
	err  error
}

func (c *scriptedConn) ExecContext(_ context.Context, _ string, _ []driver.NamedValue) (driver.Result, error) {
	if len(c.execs) == 0 {
		return nil, errors.New("scriptedConn: unexpected statement")
	}
	out := c.execs[0]
	c.execs = c.execs[1:]
	if out.err != nil {
		return nil, out.err
	}
	return driver.RowsAffected(out.rows), nil
}

func (c *scriptedConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("scriptedConn: prepare not supported")
}

func (c *scriptedConn) Close() error { return nil }

func (c *scriptedConn) Begin() (driver.Tx, error) { return &scriptedTx{conn: c}, nil }

type scriptedTx struct {
	conn *scriptedConn
}

func (t *scriptedTx) Commit() error {
	t.conn.commits++
	return t.conn.commitErr
}

func (t *scriptedTx) Rollback() error {
	t.conn.rollbacks++
	return nil
}

type scriptedConnector struct {
	conn *scriptedConn
}

func (c scriptedConnector) Connect(context.Context) (driver.Conn, error) { return c.conn, nil }

func (c scriptedConnector) Driver() driver.Driver { return scriptedDriver{} }

type scriptedDriver struct{}

func (scriptedDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("scriptedDriver: open via connector")
}

func evictOnScripted(t *testing.T, conn *scriptedConn) error {
	t.Helper()
	db := sql.OpenDB(scriptedConnector{conn: conn})
	t.Cleanup(func() { db.Close() })
	repo := NewPostgresRepository(db)

	now := time.Now()
	entry := &blocklistdomain.Entry{
		TokenHash: "hash-old",
		UserID:    "user-1",
		EvictedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	s := &domain.Session{
		ID:               "new-1",
		UserID:           "user-1",
		RefreshJti:       "jti-new",
		RefreshTokenHash: "hash-new",
		CreatedAt:        now,
		ExpiresAt:        now.Add(time.Hour),
	}
	return repo.EvictAndCreate(context.Background(), "old-1", entry, s)
}

func TestEvictAndCreate_CommitsOnlyWhenAllStatementsSucceed(t *testing.T) {
	conn := &scriptedConn{execs: []execOutcome{
		{rows: 1}, // delete oldest
		{rows: 0}, // blocklist insert
		{rows: 0}, // session insert
	}}
	if err := evictOnScripted(t, conn); err != nil {
		t.Fatalf("EvictAndCreate: %v", err)
	}
	if conn.commits != 1 {
		t.Errorf("commits = %d, want 1", conn.commits)
	}
	if conn.rollbacks != 0 {
		t.Errorf("rollbacks = %d, want 0", conn.rollbacks)
	}
}

func TestEvictAndCreate_RollsBackAndClassifies(t *testing.T) {
	infraErr := errors.New("connection timeout")
	duplicate := &pgconn.PgError{Code: pgUniqueViolation}
	serialization := &pgconn.PgError{Code: pgSerializationFailure}

	testCases := []struct {
		name    string
		execs   []execOutcome
		wantErr error
	}{
		{
			name:    "oldest already gone",
			execs:   []execOutcome{{rows: 0}},
			wantErr: ErrEvictionConflict,
		},
		{
			name:    "infra error on delete passes through",
			execs:   []execOutcome{{err: infraErr}},
			wantErr: infraErr,
		},
		{
			name:    "blocklist hash already present",
			execs:   []execOutcome{{rows: 1}, {err: duplicate}},
			wantErr: ErrDuplicateSession,
		},
		{
			name:    "session id already present",
			execs:   []execOutcome{{rows: 1}, {rows: 0}, {err: duplicate}},
			wantErr: ErrDuplicateSession,
		},
		{
			name:    "serialization failure on insert",
			execs:   []execOutcome{{rows: 1}, {err: serialization}},
			wantErr: ErrEvictionConflict,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conn := &scriptedConn{execs: tc.execs}
			err := evictOnScripted(t, conn)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("EvictAndCreate = %v, want %v", err, tc.wantErr)
			}
			if conn.commits != 0 {
				t.Errorf("commits = %d, want 0 (no partial effects)", conn.commits)
			}
			if conn.rollbacks != 1 {
				t.Errorf("rollbacks = %d, want 1", conn.rollbacks)
			}
		})
	}
}

func TestEvictAndCreate_SerializationFailureOnCommit(t *testing.T) {
	conn := &scriptedConn{
		execs: []execOutcome{
			{rows: 1},
			{rows: 0},
			{rows: 0},
		},
		commitErr: &pgconn.PgError{Code: pgSerializationFailure},
	}
	err := evictOnScripted(t, conn)
	if !errors.Is(err, ErrEvictionConflict) {
		t.Fatalf("EvictAndCreate = %v, want ErrEvictionConflict", err)
	}
	if conn.commits != 1 {
		t.Errorf("commits = %d, want 1 (commit attempted, refused by the database)", conn.commits)
	}
}
