package jobs

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/teranos/tempo/db"
	"github.com/teranos/tempo/errors"
)

const jobColumns = `id, type, status, plan, start, finish, duration, params, result`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store reads and writes the jobs table. Failures of the database itself are
// marked with errors.ErrStore; callers treat those as fatal for a pass.
type Store struct {
	conn    *sql.DB
	q       querier
	dialect db.Dialect
	inTx    bool
}

// NewStore creates a job store over conn.
func NewStore(conn *sql.DB, dialect db.Dialect) *Store {
	return &Store{conn: conn, q: conn, dialect: dialect}
}

// Transact runs fn against a Store bound to one SQL transaction. The
// transaction commits when fn returns nil and rolls back otherwise. Nested
// calls reuse the outer transaction.
func (s *Store) Transact(ctx context.Context, fn func(tx *Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.MarkStore(err, "begin transaction")
	}
	txStore := &Store{conn: s.conn, q: tx, dialect: s.dialect, inTx: true}

	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.WithSecondaryError(err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.MarkStore(err, "commit transaction")
	}
	return nil
}

// Insert adds a row and returns its store-assigned id. An empty payload marks
// a reconciler-owned recurring row.
func (s *Store) Insert(ctx context.Context, typ string, status Status, plan time.Time, payload string) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, s.dialect.Rebind(`
		INSERT INTO jobs (type, status, plan, params)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`), typ, string(status), s.dialect.TimeArg(plan), payload).Scan(&id)
	if err != nil {
		return 0, errors.MarkStore(err, "insert job")
	}
	return id, nil
}

// ListPendingFor returns the empty-params todo rows of one type, ordered by
// plan then id.
func (s *Store) ListPendingFor(ctx context.Context, typ string) ([]Pending, error) {
	return s.pending(ctx, `
		SELECT id, type, plan FROM jobs
		WHERE status = 'todo' AND params = '' AND type = ?
		ORDER BY plan ASC, id ASC
	`, typ)
}

// ListPending returns every empty-params todo row planned strictly after the
// given time, ordered by plan then id. These are the reconciler's candidates.
func (s *Store) ListPending(ctx context.Context, after time.Time) ([]Pending, error) {
	return s.pending(ctx, `
		SELECT id, type, plan FROM jobs
		WHERE status = 'todo' AND params = '' AND plan > ?
		ORDER BY plan ASC, id ASC
	`, s.dialect.TimeArg(after))
}

func (s *Store) pending(ctx context.Context, query string, args ...interface{}) ([]Pending, error) {
	rows, err := s.q.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, errors.MarkStore(err, "list pending jobs")
	}
	defer rows.Close()

	var out []Pending
	for rows.Next() {
		var p Pending
		var plan db.Time
		if err := rows.Scan(&p.ID, &p.Type, &plan); err != nil {
			return nil, errors.MarkStore(err, "scan pending job")
		}
		p.Plan = plan.Time
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.MarkStore(err, "iterate pending jobs")
	}
	return out, nil
}

// Delete removes the given rows and returns how many existed.
func (s *Store) Delete(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := s.q.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM jobs WHERE id IN (`+placeholders+`)`), args...)
	if err != nil {
		return 0, errors.MarkStore(err, "delete jobs")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.MarkStore(err, "delete jobs")
	}
	return n, nil
}

// NextDue returns the earliest todo row with plan <= now, ties broken by the
// lower id. Returns nil when nothing is due.
func (s *Store) NextDue(ctx context.Context, now time.Time) (*Job, error) {
	row := s.q.QueryRowContext(ctx, s.dialect.Rebind(`
		SELECT `+jobColumns+` FROM jobs
		WHERE status = 'todo' AND plan <= ?
		ORDER BY plan ASC, id ASC
		LIMIT 1
	`), s.dialect.TimeArg(now))

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.MarkStore(err, "next due job")
	}
	return job, nil
}

// MarkWorking moves a todo row to working and records its start time.
func (s *Store) MarkWorking(ctx context.Context, id int64, start time.Time) error {
	res, err := s.q.ExecContext(ctx, s.dialect.Rebind(`
		UPDATE jobs SET status = 'working', start = ?
		WHERE id = ? AND status = 'todo'
	`), s.dialect.TimeArg(start), id)
	if err != nil {
		return errors.MarkStore(err, "mark job working")
	}
	return s.expectOne(ctx, res, id, StatusWorking)
}

// MarkFinished records the outcome of a working row. status must be
// StatusDone or StatusFail.
func (s *Store) MarkFinished(ctx context.Context, id int64, status Status, durationS int64, result string, finish time.Time) error {
	if !status.Terminal() {
		return errors.Wrapf(ErrIllegalTransition, "job %d: cannot finish with status %q", id, status)
	}

	res, err := s.q.ExecContext(ctx, s.dialect.Rebind(`
		UPDATE jobs SET status = ?, finish = ?, duration = ?, result = ?
		WHERE id = ? AND status = 'working'
	`), string(status), s.dialect.TimeArg(finish), durationS, result, id)
	if err != nil {
		return errors.MarkStore(err, "mark job finished")
	}
	return s.expectOne(ctx, res, id, status)
}

// expectOne turns a zero-row update into not-found or an illegal transition.
func (s *Store) expectOne(ctx context.Context, res sql.Result, id int64, to Status) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.MarkStore(err, "rows affected")
	}
	if n == 1 {
		return nil
	}

	current, found, err := s.StatusOf(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return errors.NewNotFoundError("job %d", id)
	}
	return errors.Wrapf(ErrIllegalTransition, "job %d: %s -> %s", id, current, to)
}

// StatusOf returns the current status of a row. found is false when the row
// does not exist.
func (s *Store) StatusOf(ctx context.Context, id int64) (status Status, found bool, err error) {
	var raw string
	err = s.q.QueryRowContext(ctx, s.dialect.Rebind(`SELECT status FROM jobs WHERE id = ?`), id).Scan(&raw)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.MarkStore(err, "job status")
	}
	return Status(raw), true, nil
}

// StateForDay returns the rows planned on the calendar day containing day,
// in day's location, ordered by plan then id. An empty status means all.
func (s *Store) StateForDay(ctx context.Context, day time.Time, status Status) ([]Job, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.AddDate(0, 0, 1)

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE plan >= ? AND plan < ?`
	args := []interface{}{s.dialect.TimeArg(from), s.dialect.TimeArg(to)}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY plan ASC, id ASC`

	return s.list(ctx, "jobs for day", query, args...)
}

// ListByStatus returns rows with the given status (all when empty), ordered
// by plan then id. limit <= 0 means no limit.
func (s *Store) ListByStatus(ctx context.Context, status Status, limit int) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY plan ASC, id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.list(ctx, "jobs by status", query, args...)
}

func (s *Store) list(ctx context.Context, what, query string, args ...interface{}) ([]Job, error) {
	rows, err := s.q.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, errors.MarkStore(err, what)
	}
	defer rows.Close()

	out := []Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.MarkStore(err, what)
		}
		out = append(out, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.MarkStore(err, what)
	}
	return out, nil
}

// Get returns one row, or an errors.ErrNotFound error.
func (s *Store) Get(ctx context.Context, id int64) (*Job, error) {
	row := s.q.QueryRowContext(ctx, s.dialect.Rebind(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`), id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("job %d", id)
	}
	if err != nil {
		return nil, errors.MarkStore(err, "get job")
	}
	return job, nil
}

// Redo resets a working or terminal row to todo and clears its run columns.
// The plan is kept, so an overdue row runs on the next pass.
func (s *Store) Redo(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, s.dialect.Rebind(`
		UPDATE jobs
		SET status = 'todo', start = NULL, finish = NULL, duration = NULL, result = NULL
		WHERE id = ? AND status IN ('working', 'finish', 'fail')
	`), id)
	if err != nil {
		return errors.MarkStore(err, "redo job")
	}
	return s.expectOne(ctx, res, id, StatusTodo)
}

// PurgeFinished deletes finish rows whose finish time is before cutoff.
// Failed rows are kept for inspection.
func (s *Store) PurgeFinished(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.q.ExecContext(ctx, s.dialect.Rebind(`
		DELETE FROM jobs WHERE status = 'finish' AND finish < ?
	`), s.dialect.TimeArg(before))
	if err != nil {
		return 0, errors.MarkStore(err, "purge finished jobs")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.MarkStore(err, "purge finished jobs")
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scanner) (*Job, error) {
	var job Job
	var status string
	var plan, start, finish db.Time
	var duration sql.NullInt64
	var payload, result sql.NullString

	if err := row.Scan(&job.ID, &job.Type, &status, &plan, &start, &finish, &duration, &payload, &result); err != nil {
		return nil, err
	}

	job.Status = Status(status)
	job.Plan = plan.Time
	job.Start = start.Ptr()
	job.Finish = finish.Ptr()
	if duration.Valid {
		d := duration.Int64
		job.Duration = &d
	}
	job.Params = payload.String
	job.Result = result.String
	return &job, nil
}
