/*
store.go - Persistence interfaces for programs and schedule instances

KEY INTERFACES:
  TemplateProvider: read-only view of programs and their items
  Store:            instance persistence keyed by (kind, series, number)
  TxStore:          Store + atomic multi-write units

IDENTITY AND UPSERTS:
  Instances are written with UpsertInstances, which is conflict-resolved on
  the identity key. A retried or overlapping write converges to the same
  rows instead of duplicating them:
    - ConflictKeep:   an existing row wins (incremental generation)
    - ConflictRedate: an existing row gets the new planned date; its state
                      and completion date are never touched (full generation)

OPTIMISTIC CONCURRENCY:
  UpdateInstance writes only if the stored version still equals
  Instance.Version and returns *ConflictError otherwise. Every successful
  write bumps the version.

IMPLEMENTATIONS:
  - schedule/store/memory.go: in-memory, for tests and demos
  - store/sqlite/sqlite.go:   SQLite
*/
package schedule

import "context"

// TemplateProvider serves program templates. The engine never edits them.
type TemplateProvider interface {
	// GetProgram returns *NotFoundError when the program does not exist.
	GetProgram(ctx context.Context, id ProgramID) (Program, error)

	ListPrograms(ctx context.Context) ([]Program, error)

	// ListItems returns the program's items with their tasks, ordered by ID.
	ListItems(ctx context.Context, programID ProgramID) ([]ProgramItem, error)
}

// ConflictPolicy decides what UpsertInstances does with an existing key.
type ConflictPolicy int

const (
	ConflictKeep ConflictPolicy = iota
	ConflictRedate
)

type Store interface {
	TemplateProvider

	SaveProgram(ctx context.Context, p Program) error

	// SaveItem upserts the item and replaces its task list.
	SaveItem(ctx context.Context, item ProgramItem) error

	// ListInstances returns one series ordered by number.
	ListInstances(ctx context.Context, series SeriesKey) ([]Instance, error)

	// ListProgramInstances returns every instance of one kind in a program.
	ListProgramInstances(ctx context.Context, programID ProgramID, kind Kind) ([]Instance, error)

	// GetInstance returns *NotFoundError when the key does not exist.
	GetInstance(ctx context.Context, key InstanceKey) (Instance, error)

	UpsertInstances(ctx context.Context, instances []Instance, policy ConflictPolicy) error

	// UpdateInstance writes planned date, state and completion date when the
	// stored version equals inst.Version, and returns the stored row.
	UpdateInstance(ctx context.Context, inst Instance) (Instance, error)

	DeleteInstances(ctx context.Context, keys []InstanceKey) error
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the Store passed to fn
	// is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
