// Package undo keeps bounded undo and redo stacks of session snapshots.
package undo

import (
	"github.com/tbxark/intakeagent/types"
)

const DefaultCapacity = 10

// Manager is not safe for concurrent use; the session store guards it with the session lock.
type Manager struct {
	capacity int
	undo     []types.Snapshot
	redo     []types.Snapshot
}

func NewManager(capacity int) *Manager {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Manager{capacity: capacity}
}

func (m *Manager) Capacity() int { return m.capacity }

// Push records a snapshot taken before a user action and clears the redo stack.
func (m *Manager) Push(s types.Snapshot) {
	m.undo = pushBounded(m.undo, copySnapshot(s), m.capacity)
	m.redo = nil
}

// Undo moves current onto the redo stack and returns the most recent undo snapshot.
func (m *Manager) Undo(current types.Snapshot) (types.Snapshot, bool) {
	if len(m.undo) == 0 {
		return types.Snapshot{}, false
	}
	prev := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = pushBounded(m.redo, copySnapshot(current), m.capacity)
	return copySnapshot(prev), true
}

func (m *Manager) Redo(current types.Snapshot) (types.Snapshot, bool) {
	if len(m.redo) == 0 {
		return types.Snapshot{}, false
	}
	next := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	m.undo = pushBounded(m.undo, copySnapshot(current), m.capacity)
	return copySnapshot(next), true
}

func (m *Manager) CanUndo() bool { return len(m.undo) > 0 }

func (m *Manager) CanRedo() bool { return len(m.redo) > 0 }

// Stacks returns copies of both stacks, oldest first.
func (m *Manager) Stacks() (undo, redo []types.Snapshot) {
	return copyStack(m.undo), copyStack(m.redo)
}

// Restore replaces both stacks, keeping the newest entries when over capacity.
func (m *Manager) Restore(undo, redo []types.Snapshot) {
	m.undo = trim(copyStack(undo), m.capacity)
	m.redo = trim(copyStack(redo), m.capacity)
}

func pushBounded(stack []types.Snapshot, s types.Snapshot, capacity int) []types.Snapshot {
	stack = append(stack, s)
	return trim(stack, capacity)
}

func trim(stack []types.Snapshot, capacity int) []types.Snapshot {
	if len(stack) <= capacity {
		return stack
	}
	return append([]types.Snapshot(nil), stack[len(stack)-capacity:]...)
}

func copySnapshot(s types.Snapshot) types.Snapshot {
	return types.Snapshot{
		TakenAt:           s.TakenAt,
		Answers:           s.Answers.Clone(),
		Messages:          types.CloneMessages(s.Messages),
		PendingQuestionID: s.PendingQuestionID,
	}
}

func copyStack(stack []types.Snapshot) []types.Snapshot {
	if len(stack) == 0 {
		return nil
	}
	out := make([]types.Snapshot, len(stack))
	for i, s := range stack {
		out[i] = copySnapshot(s)
	}
	return out
}
