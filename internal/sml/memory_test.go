package sml

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

func TestMemoryHook(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHook(nil)
	pid := identifier.MustParseParticipant("iso6523-actorid-upis::9915:test")

	require.NoError(t, h.Create(ctx, pid))
	assert.True(t, h.IsRegistered(pid))
	assert.ErrorIs(t, h.Create(ctx, pid), ErrAlreadyRegistered)

	h.UndoCreate(ctx, pid)
	assert.False(t, h.IsRegistered(pid))
	assert.ErrorIs(t, h.Delete(ctx, pid), ErrNotRegistered)

	h.Register(pid)
	require.NoError(t, h.Delete(ctx, pid))
	h.UndoDelete(ctx, pid)
	assert.Equal(t, []string{"iso6523-actorid-upis::9915:test"}, h.Registered())

	assert.Equal(t, 2, h.CountCalls(OpCreate))
	assert.Equal(t, 1, h.CountCalls(OpUndoCreate))
	assert.Equal(t, 2, h.CountCalls(OpDelete))
	assert.Len(t, h.Calls(), 6)
}

func TestMemoryHook_FailOn(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHook(nil)
	pid := identifier.MustParseParticipant("iso6523-actorid-upis::9915:test")
	boom := errors.New("boom")

	h.FailOn(OpCreate, boom)
	assert.ErrorIs(t, h.Create(ctx, pid), boom)
	assert.False(t, h.IsRegistered(pid))

	h.FailOn(OpCreate, nil)
	require.NoError(t, h.Create(ctx, pid))

	// undo failures are swallowed
	h.FailOn(OpUndoCreate, boom)
	h.UndoCreate(ctx, pid)
	assert.True(t, h.IsRegistered(pid))
}
