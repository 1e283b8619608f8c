package sml

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// ErrAlreadyRegistered and ErrNotRegistered are returned by MemoryHook
var (
	ErrAlreadyRegistered = errors.New("participant already registered in SML")
	ErrNotRegistered     = errors.New("participant not registered in SML")
)

// Operation names recorded by MemoryHook
const (
	OpCreate     = "create"
	OpUndoCreate = "undo-create"
	OpDelete     = "delete"
	OpUndoDelete = "undo-delete"
)

// Call is one recorded hook invocation
type Call struct {
	Op          string
	Participant identifier.Participant
}

// MemoryHook keeps the set of registered participants in memory and records
// every call. Failures can be injected per operation.
type MemoryHook struct {
	mu         sync.Mutex
	registered map[string]identifier.Participant
	calls      []Call
	failures   map[string]error
	logger     *slog.Logger
}

var _ Hook = (*MemoryHook)(nil)

// NewMemoryHook creates an empty MemoryHook
func NewMemoryHook(logger *slog.Logger) *MemoryHook {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryHook{
		registered: make(map[string]identifier.Participant),
		failures:   make(map[string]error),
		logger:     logger.With("component", "sml-memory"),
	}
}

// FailOn makes every following call of op return err. A nil err clears it.
// Undo operations only log injected failures.
func (h *MemoryHook) FailOn(op string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		delete(h.failures, op)
		return
	}
	h.failures[op] = err
}

// Create implements Hook
func (h *MemoryHook) Create(_ context.Context, pid identifier.Participant) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, Call{Op: OpCreate, Participant: pid})
	if err := h.failures[OpCreate]; err != nil {
		return err
	}
	key := pid.URIEncoded()
	if _, ok := h.registered[key]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, key)
	}
	h.registered[key] = pid
	return nil
}

// UndoCreate implements Hook
func (h *MemoryHook) UndoCreate(_ context.Context, pid identifier.Participant) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, Call{Op: OpUndoCreate, Participant: pid})
	if err := h.failures[OpUndoCreate]; err != nil {
		h.logger.Error("undo create failed", "participant", pid.URIEncoded(), "error", err)
		return
	}
	delete(h.registered, pid.URIEncoded())
}

// Delete implements Hook
func (h *MemoryHook) Delete(_ context.Context, pid identifier.Participant) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, Call{Op: OpDelete, Participant: pid})
	if err := h.failures[OpDelete]; err != nil {
		return err
	}
	key := pid.URIEncoded()
	if _, ok := h.registered[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, key)
	}
	delete(h.registered, key)
	return nil
}

// UndoDelete implements Hook
func (h *MemoryHook) UndoDelete(_ context.Context, pid identifier.Participant) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, Call{Op: OpUndoDelete, Participant: pid})
	if err := h.failures[OpUndoDelete]; err != nil {
		h.logger.Error("undo delete failed", "participant", pid.URIEncoded(), "error", err)
		return
	}
	h.registered[pid.URIEncoded()] = pid
}

// Register marks pid as registered without recording a call
func (h *MemoryHook) Register(pid identifier.Participant) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.registered[pid.URIEncoded()] = pid
}

// IsRegistered reports whether pid is currently registered
func (h *MemoryHook) IsRegistered(pid identifier.Participant) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.registered[pid.URIEncoded()]
	return ok
}

// Registered returns the registered participant URIs in sorted order
func (h *MemoryHook) Registered() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	keys := make([]string, 0, len(h.registered))
	for k := range h.registered {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Calls returns a copy of the recorded calls
func (h *MemoryHook) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Call(nil), h.calls...)
}

// CountCalls returns how often op was called
func (h *MemoryHook) CountCalls(op string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}
