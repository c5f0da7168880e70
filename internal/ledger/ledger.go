// ABOUTME: In-memory ordered record of every known command and its latest status.
// ABOUTME: Updates by ID happen in place; reads return copies taken under the lock.

package ledger

import (
	"sync"

	"github.com/2389/shellcast/internal/command"
)

// Ledger is the authoritative, process-lifetime list of commands.
// It is safe for concurrent use.
type Ledger struct {
	mu       sync.RWMutex
	commands []command.Command
	index    map[string]int // command ID -> position in commands
}

// New creates an empty Ledger.
func New() *Ledger {
	return &Ledger{
		index: make(map[string]int),
	}
}

// AppendOrUpdate records c. If an entry with the same ID exists its status is
// replaced in place, keeping its position; otherwise c is appended.
func (l *Ledger) AppendOrUpdate(c command.Command) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i, ok := l.index[c.ID]; ok {
		l.commands[i].Status = c.Status
		return
	}

	l.index[c.ID] = len(l.commands)
	l.commands = append(l.commands, c)
}

// Record is AppendOrUpdate that also reports whether the ledger's view of
// c.ID changed. Recording the status an entry already holds is a no-op.
func (l *Ledger) Record(c command.Command) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i, ok := l.index[c.ID]; ok {
		if l.commands[i].Status == c.Status {
			return false
		}
		l.commands[i].Status = c.Status
		return true
	}

	l.index[c.ID] = len(l.commands)
	l.commands = append(l.commands, c)
	return true
}

// Insert appends c only if no entry with its ID exists, reporting whether it did.
func (l *Ledger) Insert(c command.Command) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.index[c.ID]; ok {
		return false
	}
	l.index[c.ID] = len(l.commands)
	l.commands = append(l.commands, c)
	return true
}

// Snapshot returns a copy of all commands in insertion order.
func (l *Ledger) Snapshot() []command.Command {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]command.Command, len(l.commands))
	copy(out, l.commands)
	return out
}

// Get returns the current entry for id.
func (l *Ledger) Get(id string) (command.Command, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i, ok := l.index[id]
	if !ok {
		return command.Command{}, false
	}
	return l.commands[i], true
}

// Len returns the number of distinct commands recorded.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.commands)
}
