package sml

import (
	"context"

	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

//go:generate mockgen -source=hook.go -destination=mocks/mock_hook.go -package=mocks

// Hook registers participants in the SML. Undo methods revert a previous
// successful call; they never fail the caller and log their own errors.
type Hook interface {
	// Create registers the participant
	Create(ctx context.Context, pid identifier.Participant) error

	// UndoCreate reverts a successful Create
	UndoCreate(ctx context.Context, pid identifier.Participant)

	// Delete deregisters the participant
	Delete(ctx context.Context, pid identifier.Participant) error

	// UndoDelete reverts a successful Delete
	UndoDelete(ctx context.Context, pid identifier.Participant)
}

// NoopHook is used when SML integration is disabled
type NoopHook struct{}

var _ Hook = NoopHook{}

func (NoopHook) Create(context.Context, identifier.Participant) error { return nil }
func (NoopHook) UndoCreate(context.Context, identifier.Participant)   {}
func (NoopHook) Delete(context.Context, identifier.Participant) error { return nil }
func (NoopHook) UndoDelete(context.Context, identifier.Participant)   {}
