/*
Package sqlite provides a SQLite-backed implementation of schedule.TxStore.

PURPOSE:
  Persists programs, their items and tasks (the template side), and the
  generated schedule instances.

KEY TABLES:
  programs:                 start date + status
  program_items:            recurrence parameters per item
  item_tasks:               tasks attached to items (delay in days)
  schedule_instances:       UNIQUE(item_id, instance_number)
  task_schedule_instances:  UNIQUE(item_task_id, instance_number)

IDENTITY:
  The unique constraints are the instance identity. Generation writes go
  through INSERT ... ON CONFLICT on that key, so an overlapping or retried
  write converges instead of duplicating rows:
    - ConflictKeep   -> DO NOTHING
    - ConflictRedate -> DO UPDATE SET planned date (state untouched)

OPTIMISTIC CONCURRENCY:
  UpdateInstance is "UPDATE ... WHERE version = ?". Zero affected rows means
  somebody else wrote first and the caller gets *schedule.ConflictError.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, so a
  transaction never races a second connection (which would also see a
  different database for ":memory:").

USAGE:
  store, err := sqlite.New("./data/tracker.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := schedule.NewService(store)

SEE ALSO:
  - schedule/store.go: Interface definitions
  - schedule/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/myowjaYOY/program-tracker-sub004/schedule"
)

// Store implements schedule.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS programs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS program_items (
		id TEXT PRIMARY KEY,
		program_id TEXT NOT NULL REFERENCES programs(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		repeat_count INTEGER NOT NULL,
		offset_days INTEGER NOT NULL DEFAULT 0,
		spacing_days INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_program_items_program
		ON program_items(program_id);
	-- Recent regeneration filters on modification time
	CREATE INDEX IF NOT EXISTS idx_program_items_updated
		ON program_items(program_id, updated_at);

	CREATE TABLE IF NOT EXISTS item_tasks (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL REFERENCES program_items(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		delay_days INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_item_tasks_item
		ON item_tasks(item_id, position);

	-- CRITICAL: (item_id, instance_number) is the instance identity
	CREATE TABLE IF NOT EXISTS schedule_instances (
		id TEXT PRIMARY KEY,
		program_id TEXT NOT NULL REFERENCES programs(id) ON DELETE CASCADE,
		item_id TEXT NOT NULL,
		instance_number INTEGER NOT NULL,
		planned_date TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'pending',
		completed_on TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL,
		UNIQUE(item_id, instance_number)
	);

	CREATE INDEX IF NOT EXISTS idx_schedule_instances_program
		ON schedule_instances(program_id, planned_date);

	-- CRITICAL: (item_task_id, instance_number) is the task instance identity
	CREATE TABLE IF NOT EXISTS task_schedule_instances (
		id TEXT PRIMARY KEY,
		program_id TEXT NOT NULL REFERENCES programs(id) ON DELETE CASCADE,
		item_id TEXT NOT NULL,
		item_task_id TEXT NOT NULL,
		instance_number INTEGER NOT NULL,
		due_date TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'pending',
		completed_on TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL,
		UNIQUE(item_task_id, instance_number)
	);

	CREATE INDEX IF NOT EXISTS idx_task_schedule_instances_program
		ON task_schedule_instances(program_id, due_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LOCKED ENTRY POINTS (schedule.Store interface)
// =============================================================================

func (s *Store) q() *queries { return &queries{db: s.db} }

func (s *Store) GetProgram(ctx context.Context, id schedule.ProgramID) (schedule.Program, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().GetProgram(ctx, id)
}

func (s *Store) ListPrograms(ctx context.Context) ([]schedule.Program, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListPrograms(ctx)
}

func (s *Store) ListItems(ctx context.Context, programID schedule.ProgramID) ([]schedule.ProgramItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListItems(ctx, programID)
}

func (s *Store) SaveProgram(ctx context.Context, p schedule.Program) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().SaveProgram(ctx, p)
}

// SaveItem upserts the item and its tasks atomically.
func (s *Store) SaveItem(ctx context.Context, item schedule.ProgramItem) error {
	return s.WithTx(ctx, func(st schedule.Store) error {
		return st.SaveItem(ctx, item)
	})
}

func (s *Store) ListInstances(ctx context.Context, series schedule.SeriesKey) ([]schedule.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListInstances(ctx, series)
}

func (s *Store) ListProgramInstances(ctx context.Context, programID schedule.ProgramID, kind schedule.Kind) ([]schedule.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListProgramInstances(ctx, programID, kind)
}

func (s *Store) GetInstance(ctx context.Context, key schedule.InstanceKey) (schedule.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().GetInstance(ctx, key)
}

// UpsertInstances writes all instances or none.
func (s *Store) UpsertInstances(ctx context.Context, insts []schedule.Instance, policy schedule.ConflictPolicy) error {
	return s.WithTx(ctx, func(st schedule.Store) error {
		return st.UpsertInstances(ctx, insts, policy)
	})
}

func (s *Store) UpdateInstance(ctx context.Context, inst schedule.Instance) (schedule.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().UpdateInstance(ctx, inst)
}

func (s *Store) DeleteInstances(ctx context.Context, keys []schedule.InstanceKey) error {
	return s.WithTx(ctx, func(st schedule.Store) error {
		return st.DeleteInstances(ctx, keys)
	})
}

// =============================================================================
// TRANSACTIONAL STORE (schedule.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(schedule.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{db: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"task_schedule_instances", "schedule_instances", "item_tasks", "program_items", "programs"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// QUERIES - shared by the store and its transactions
// =============================================================================

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

type scanner interface {
	Scan(dest ...any) error
}

// ---- programs ----

func (q *queries) GetProgram(ctx context.Context, id schedule.ProgramID) (schedule.Program, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT id, name, start_date, status, created_at, updated_at FROM programs WHERE id = ?", id)
	p, err := scanProgram(row)
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.Program{}, &schedule.NotFoundError{Resource: "program", ID: string(id)}
	}
	return p, err
}

func (q *queries) ListPrograms(ctx context.Context) ([]schedule.Program, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, name, start_date, status, created_at, updated_at FROM programs ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query programs: %w", err)
	}
	defer rows.Close()

	var programs []schedule.Program
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	return programs, rows.Err()
}

func scanProgram(row scanner) (schedule.Program, error) {
	var (
		p                    schedule.Program
		startDate, status    string
		createdAt, updatedAt string
	)
	if err := row.Scan(&p.ID, &p.Name, &startDate, &status, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("failed to scan program: %w", err)
	}
	p.StartDate = parseDate(startDate)
	p.Status = schedule.ProgramStatus(status)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

func (q *queries) SaveProgram(ctx context.Context, p schedule.Program) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}

	query := `
		INSERT INTO programs (id, name, start_date, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			start_date = excluded.start_date,
			status = excluded.status,
			updated_at = excluded.updated_at
	`
	_, err := q.db.ExecContext(ctx, query,
		p.ID, p.Name, p.StartDate.String(), string(p.Status),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save program %s: %w", p.ID, err)
	}
	return nil
}

// ---- items ----

func (q *queries) ListItems(ctx context.Context, programID schedule.ProgramID) ([]schedule.ProgramItem, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, program_id, name, repeat_count, offset_days, spacing_days, active, created_at, updated_at
		FROM program_items
		WHERE program_id = ?
		ORDER BY id`, programID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []schedule.ProgramItem
	index := make(map[schedule.ItemID]int)
	for rows.Next() {
		var (
			it                   schedule.ProgramItem
			createdAt, updatedAt string
		)
		if err := rows.Scan(&it.ID, &it.ProgramID, &it.Name, &it.RepeatCount, &it.OffsetDays,
			&it.SpacingDays, &it.Active, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		it.CreatedAt = parseTime(createdAt)
		it.UpdatedAt = parseTime(updatedAt)
		index[it.ID] = len(items)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	taskRows, err := q.db.QueryContext(ctx, `
		SELECT t.id, t.item_id, t.name, t.delay_days
		FROM item_tasks t
		JOIN program_items i ON i.id = t.item_id
		WHERE i.program_id = ?
		ORDER BY t.item_id, t.position`, programID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer taskRows.Close()

	for taskRows.Next() {
		var t schedule.ItemTask
		if err := taskRows.Scan(&t.ID, &t.ItemID, &t.Name, &t.DelayDays); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		if i, ok := index[t.ItemID]; ok {
			items[i].Tasks = append(items[i].Tasks, t)
		}
	}
	return items, taskRows.Err()
}

func (q *queries) SaveItem(ctx context.Context, item schedule.ProgramItem) error {
	if _, err := q.GetProgram(ctx, item.ProgramID); err != nil {
		return err
	}

	// Item and task IDs are global keys; never take over another owner's row.
	owner, err := q.ownerOf(ctx, "SELECT program_id FROM program_items WHERE id = ?", string(item.ID))
	if err != nil {
		return err
	}
	if owner != "" && owner != string(item.ProgramID) {
		return &schedule.ValidationError{Field: "item_id", Reason: fmt.Sprintf("item %s belongs to program %s", item.ID, owner)}
	}
	for _, t := range item.Tasks {
		owner, err := q.ownerOf(ctx, "SELECT item_id FROM item_tasks WHERE id = ?", string(t.ID))
		if err != nil {
			return err
		}
		if owner != "" && owner != string(item.ID) {
			return &schedule.ValidationError{Field: "task_id", Reason: fmt.Sprintf("task %s belongs to item %s", t.ID, owner)}
		}
	}

	now := time.Now().UTC()
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = now
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = item.UpdatedAt
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO program_items
		(id, program_id, name, repeat_count, offset_days, spacing_days, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			repeat_count = excluded.repeat_count,
			offset_days = excluded.offset_days,
			spacing_days = excluded.spacing_days,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		item.ID, item.ProgramID, item.Name, item.RepeatCount, item.OffsetDays, item.SpacingDays,
		item.Active, formatTime(item.CreatedAt), formatTime(item.UpdatedAt),
	)
	if err != nil {
		return wrapConstraint(err, "item_id", fmt.Sprintf("failed to save item %s", item.ID))
	}

	keep := make([]any, 0, len(item.Tasks)+1)
	keep = append(keep, item.ID)
	for pos, t := range item.Tasks {
		_, err := q.db.ExecContext(ctx, `
			INSERT INTO item_tasks (id, item_id, name, delay_days, position)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				delay_days = excluded.delay_days,
				position = excluded.position`,
			t.ID, item.ID, t.Name, t.DelayDays, pos,
		)
		if err != nil {
			return wrapConstraint(err, "task_id", fmt.Sprintf("failed to save task %s", t.ID))
		}
		keep = append(keep, t.ID)
	}

	del := "DELETE FROM item_tasks WHERE item_id = ?"
	if len(keep) > 1 {
		del += " AND id NOT IN (" + placeholders(len(keep)-1) + ")"
	}
	if _, err := q.db.ExecContext(ctx, del, keep...); err != nil {
		return fmt.Errorf("failed to prune tasks of item %s: %w", item.ID, err)
	}
	return nil
}

// ownerOf returns the single owner column selected by query, or "" when
// the row does not exist.
func (q *queries) ownerOf(ctx context.Context, query, id string) (string, error) {
	var owner string
	err := q.db.QueryRowContext(ctx, query, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up owner of %s: %w", id, err)
	}
	return owner, nil
}

// ---- instances ----

// instanceTable maps a kind onto its table. Item rows use item_id as the
// series column; task rows carry both item_id and item_task_id.
type instanceTable struct {
	name      string
	seriesCol string
	dateCol   string
}

func tableFor(kind schedule.Kind) instanceTable {
	if kind == schedule.KindTask {
		return instanceTable{name: "task_schedule_instances", seriesCol: "item_task_id", dateCol: "due_date"}
	}
	return instanceTable{name: "schedule_instances", seriesCol: "item_id", dateCol: "planned_date"}
}

func (t instanceTable) selectSQL() string {
	return fmt.Sprintf(
		"SELECT id, program_id, item_id, %s, instance_number, %s, state, completed_on, version, updated_at FROM %s",
		t.seriesCol, t.dateCol, t.name)
}

func (q *queries) ListInstances(ctx context.Context, series schedule.SeriesKey) ([]schedule.Instance, error) {
	t := tableFor(series.Kind)
	query := t.selectSQL() + fmt.Sprintf(" WHERE %s = ? ORDER BY instance_number", t.seriesCol)
	return q.queryInstances(ctx, series.Kind, query, series.ID)
}

func (q *queries) ListProgramInstances(ctx context.Context, programID schedule.ProgramID, kind schedule.Kind) ([]schedule.Instance, error) {
	t := tableFor(kind)
	query := t.selectSQL() + fmt.Sprintf(" WHERE program_id = ? ORDER BY %s, %s, instance_number", t.dateCol, t.seriesCol)
	return q.queryInstances(ctx, kind, query, programID)
}

func (q *queries) GetInstance(ctx context.Context, key schedule.InstanceKey) (schedule.Instance, error) {
	t := tableFor(key.Kind)
	query := t.selectSQL() + fmt.Sprintf(" WHERE %s = ? AND instance_number = ?", t.seriesCol)
	insts, err := q.queryInstances(ctx, key.Kind, query, key.Series, key.Number)
	if err != nil {
		return schedule.Instance{}, err
	}
	if len(insts) == 0 {
		return schedule.Instance{}, &schedule.NotFoundError{Resource: "instance", ID: key.String()}
	}
	return insts[0], nil
}

func (q *queries) queryInstances(ctx context.Context, kind schedule.Kind, query string, args ...any) ([]schedule.Instance, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	defer rows.Close()

	var insts []schedule.Instance
	for rows.Next() {
		inst, err := scanInstance(rows, kind)
		if err != nil {
			return nil, err
		}
		insts = append(insts, inst)
	}
	return insts, rows.Err()
}

func scanInstance(row scanner, kind schedule.Kind) (schedule.Instance, error) {
	var (
		inst        schedule.Instance
		series      string
		planned     string
		state       string
		completedOn sql.NullString
		updatedAt   string
	)
	err := row.Scan(&inst.ID, &inst.ProgramID, &inst.ItemID, &series, &inst.Key.Number,
		&planned, &state, &completedOn, &inst.Version, &updatedAt)
	if err != nil {
		return inst, fmt.Errorf("failed to scan instance: %w", err)
	}

	inst.Key.Kind = kind
	inst.Key.Series = schedule.SeriesID(series)
	inst.PlannedDate = parseDate(planned)
	inst.State, err = schedule.ParseState(state)
	if err != nil {
		return inst, fmt.Errorf("instance %s: %w", inst.Key, err)
	}
	if completedOn.Valid && completedOn.String != "" {
		inst.CompletedOn = parseDate(completedOn.String).Ptr()
	}
	inst.UpdatedAt = parseTime(updatedAt)
	return inst, nil
}

func (q *queries) UpsertInstances(ctx context.Context, insts []schedule.Instance, policy schedule.ConflictPolicy) error {
	for _, inst := range insts {
		if err := q.upsertInstance(ctx, inst, policy); err != nil {
			return err
		}
	}
	return nil
}

func (q *queries) upsertInstance(ctx context.Context, inst schedule.Instance, policy schedule.ConflictPolicy) error {
	t := tableFor(inst.Key.Kind)

	cols := []string{"id", "program_id", "item_id"}
	args := []any{inst.ID, inst.ProgramID, inst.ItemID}
	if inst.Key.Kind == schedule.KindTask {
		cols = append(cols, t.seriesCol)
		args = append(args, inst.Key.Series)
	}
	cols = append(cols, "instance_number", t.dateCol, "state", "completed_on", "version", "updated_at")
	args = append(args, inst.Key.Number, inst.PlannedDate.String(), string(inst.State),
		nullDate(inst.CompletedOn), 1, formatTime(inst.UpdatedAt))

	onConflict := "DO NOTHING"
	if policy == schedule.ConflictRedate {
		onConflict = fmt.Sprintf(`DO UPDATE SET
			%[1]s = excluded.%[1]s,
			version = %[2]s.version + 1,
			updated_at = excluded.updated_at`, t.dateCol, t.name)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s, instance_number) %s",
		t.name, strings.Join(cols, ", "), placeholders(len(cols)), t.seriesCol, onConflict)

	if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert instance %s: %w", inst.Key, err)
	}
	return nil
}

func (q *queries) UpdateInstance(ctx context.Context, inst schedule.Instance) (schedule.Instance, error) {
	t := tableFor(inst.Key.Kind)
	if inst.UpdatedAt.IsZero() {
		inst.UpdatedAt = time.Now().UTC()
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = ?, state = ?, completed_on = ?, version = version + 1, updated_at = ?
		WHERE %s = ? AND instance_number = ? AND version = ?`,
		t.name, t.dateCol, t.seriesCol)

	res, err := q.db.ExecContext(ctx, query,
		inst.PlannedDate.String(), string(inst.State), nullDate(inst.CompletedOn), formatTime(inst.UpdatedAt),
		inst.Key.Series, inst.Key.Number, inst.Version,
	)
	if err != nil {
		return schedule.Instance{}, fmt.Errorf("failed to update instance %s: %w", inst.Key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return schedule.Instance{}, err
	}

	cur, err := q.GetInstance(ctx, inst.Key)
	if err != nil {
		return schedule.Instance{}, err
	}
	if n == 0 {
		return schedule.Instance{}, &schedule.ConflictError{Key: inst.Key, ExpectedVersion: inst.Version, ActualVersion: cur.Version}
	}
	return cur, nil
}

func (q *queries) DeleteInstances(ctx context.Context, keys []schedule.InstanceKey) error {
	for _, k := range keys {
		t := tableFor(k.Kind)
		query := fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND instance_number = ?", t.name, t.seriesCol)
		if _, err := q.db.ExecContext(ctx, query, k.Series, k.Number); err != nil {
			return fmt.Errorf("failed to delete instance %s: %w", k, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullDate(d *schedule.Date) sql.NullString {
	if d == nil || d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseDate(s string) schedule.Date {
	d, _ := schedule.ParseDate(s)
	return d
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// wrapConstraint turns constraint violations into validation errors so
// they reach the caller as client errors.
func wrapConstraint(err error, field, msg string) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return &schedule.ValidationError{Field: field, Reason: se.Error()}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
