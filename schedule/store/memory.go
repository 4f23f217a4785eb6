// Package store provides in-memory schedule.TxStore implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/myowjaYOY/program-tracker-sub004/schedule"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	d  data
}

type data struct {
	programs  map[schedule.ProgramID]schedule.Program
	items     map[schedule.ItemID]schedule.ProgramItem
	instances map[schedule.InstanceKey]schedule.Instance
}

func NewMemory() *Memory {
	return &Memory{d: newData()}
}

func newData() data {
	return data{
		programs:  make(map[schedule.ProgramID]schedule.Program),
		items:     make(map[schedule.ItemID]schedule.ProgramItem),
		instances: make(map[schedule.InstanceKey]schedule.Instance),
	}
}

func (m *Memory) GetProgram(ctx context.Context, id schedule.ProgramID) (schedule.Program, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.GetProgram(ctx, id)
}

func (m *Memory) ListPrograms(ctx context.Context) ([]schedule.Program, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ListPrograms(ctx)
}

func (m *Memory) ListItems(ctx context.Context, programID schedule.ProgramID) ([]schedule.ProgramItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ListItems(ctx, programID)
}

func (m *Memory) SaveProgram(ctx context.Context, p schedule.Program) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.SaveProgram(ctx, p)
}

func (m *Memory) SaveItem(ctx context.Context, item schedule.ProgramItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.SaveItem(ctx, item)
}

func (m *Memory) ListInstances(ctx context.Context, series schedule.SeriesKey) ([]schedule.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ListInstances(ctx, series)
}

func (m *Memory) ListProgramInstances(ctx context.Context, programID schedule.ProgramID, kind schedule.Kind) ([]schedule.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ListProgramInstances(ctx, programID, kind)
}

func (m *Memory) GetInstance(ctx context.Context, key schedule.InstanceKey) (schedule.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.GetInstance(ctx, key)
}

// UpsertInstances writes all instances or none.
func (m *Memory) UpsertInstances(ctx context.Context, insts []schedule.Instance, policy schedule.ConflictPolicy) error {
	return m.WithTx(ctx, func(st schedule.Store) error {
		return st.UpsertInstances(ctx, insts, policy)
	})
}

func (m *Memory) UpdateInstance(ctx context.Context, inst schedule.Instance) (schedule.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.UpdateInstance(ctx, inst)
}

func (m *Memory) DeleteInstances(ctx context.Context, keys []schedule.InstanceKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.DeleteInstances(ctx, keys)
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(schedule.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.d.clone()
	if err := fn(&m.d); err != nil {
		m.d = snapshot
		return err
	}
	return nil
}

// Reset drops everything.
func (m *Memory) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d = newData()
	return nil
}

func (d data) clone() data {
	c := newData()
	for k, v := range d.programs {
		c.programs[k] = v
	}
	for k, v := range d.items {
		c.items[k] = v
	}
	for k, v := range d.instances {
		c.instances[k] = v
	}
	return c
}

// =============================================================================
// UNLOCKED OPERATIONS - shared by Memory and the transactional view
// =============================================================================

func (d *data) GetProgram(_ context.Context, id schedule.ProgramID) (schedule.Program, error) {
	p, ok := d.programs[id]
	if !ok {
		return schedule.Program{}, &schedule.NotFoundError{Resource: "program", ID: string(id)}
	}
	return p, nil
}

func (d *data) ListPrograms(context.Context) ([]schedule.Program, error) {
	out := make([]schedule.Program, 0, len(d.programs))
	for _, p := range d.programs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *data) ListItems(_ context.Context, programID schedule.ProgramID) ([]schedule.ProgramItem, error) {
	var out []schedule.ProgramItem
	for _, it := range d.items {
		if it.ProgramID == programID {
			it.Tasks = append([]schedule.ItemTask(nil), it.Tasks...)
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *data) SaveProgram(_ context.Context, p schedule.Program) error {
	if existing, ok := d.programs[p.ID]; ok && p.CreatedAt.IsZero() {
		p.CreatedAt = existing.CreatedAt
	}
	d.programs[p.ID] = p
	return nil
}

func (d *data) SaveItem(_ context.Context, item schedule.ProgramItem) error {
	if _, ok := d.programs[item.ProgramID]; !ok {
		return &schedule.NotFoundError{Resource: "program", ID: string(item.ProgramID)}
	}
	if existing, ok := d.items[item.ID]; ok && existing.ProgramID != item.ProgramID {
		return &schedule.ValidationError{Field: "item_id", Reason: fmt.Sprintf("item %s belongs to program %s", item.ID, existing.ProgramID)}
	}
	for _, t := range item.Tasks {
		if owner, ok := d.taskOwner(t.ID); ok && owner != item.ID {
			return &schedule.ValidationError{Field: "task_id", Reason: fmt.Sprintf("task %s belongs to item %s", t.ID, owner)}
		}
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = time.Now().UTC()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = item.UpdatedAt
		if existing, ok := d.items[item.ID]; ok {
			item.CreatedAt = existing.CreatedAt
		}
	}
	item.Tasks = append([]schedule.ItemTask(nil), item.Tasks...)
	for i := range item.Tasks {
		item.Tasks[i].ItemID = item.ID
	}
	d.items[item.ID] = item
	return nil
}

func (d *data) taskOwner(id schedule.TaskID) (schedule.ItemID, bool) {
	for _, it := range d.items {
		for _, t := range it.Tasks {
			if t.ID == id {
				return it.ID, true
			}
		}
	}
	return "", false
}

func (d *data) ListInstances(_ context.Context, series schedule.SeriesKey) ([]schedule.Instance, error) {
	var out []schedule.Instance
	for k, inst := range d.instances {
		if k.SeriesKey() == series {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Number < out[j].Key.Number })
	return out, nil
}

func (d *data) ListProgramInstances(_ context.Context, programID schedule.ProgramID, kind schedule.Kind) ([]schedule.Instance, error) {
	var out []schedule.Instance
	for k, inst := range d.instances {
		if k.Kind == kind && inst.ProgramID == programID {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Series != out[j].Key.Series {
			return out[i].Key.Series < out[j].Key.Series
		}
		return out[i].Key.Number < out[j].Key.Number
	})
	return out, nil
}

func (d *data) GetInstance(_ context.Context, key schedule.InstanceKey) (schedule.Instance, error) {
	inst, ok := d.instances[key]
	if !ok {
		return schedule.Instance{}, &schedule.NotFoundError{Resource: "instance", ID: key.String()}
	}
	return inst, nil
}

func (d *data) UpsertInstances(_ context.Context, insts []schedule.Instance, policy schedule.ConflictPolicy) error {
	for _, inst := range insts {
		cur, ok := d.instances[inst.Key]
		switch {
		case !ok:
			inst.Version = 1
			d.instances[inst.Key] = inst
		case policy == schedule.ConflictRedate:
			cur.PlannedDate = inst.PlannedDate
			cur.UpdatedAt = inst.UpdatedAt
			cur.Version++
			d.instances[inst.Key] = cur
		}
	}
	return nil
}

func (d *data) UpdateInstance(_ context.Context, inst schedule.Instance) (schedule.Instance, error) {
	cur, ok := d.instances[inst.Key]
	if !ok {
		return schedule.Instance{}, &schedule.NotFoundError{Resource: "instance", ID: inst.Key.String()}
	}
	if cur.Version != inst.Version {
		return schedule.Instance{}, &schedule.ConflictError{Key: inst.Key, ExpectedVersion: inst.Version, ActualVersion: cur.Version}
	}
	cur.PlannedDate = inst.PlannedDate
	cur.State = inst.State
	cur.CompletedOn = inst.CompletedOn
	cur.UpdatedAt = inst.UpdatedAt
	cur.Version++
	d.instances[inst.Key] = cur
	return cur, nil
}

func (d *data) DeleteInstances(_ context.Context, keys []schedule.InstanceKey) error {
	for _, k := range keys {
		delete(d.instances, k)
	}
	return nil
}
