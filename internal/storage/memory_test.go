package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

var errBackend = errors.New("backend down")

// fakePersister records writes and fails on demand
type fakePersister[T any] struct {
	mu      sync.Mutex
	saved   map[string]T
	saves   int
	removes int
	fail    bool
}

func newFakePersister[T any]() *fakePersister[T] {
	return &fakePersister[T]{saved: make(map[string]T)}
}

func (p *fakePersister[T]) LoadAll(_ context.Context) ([]T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []T
	for _, v := range p.saved {
		out = append(out, v)
	}
	return out, nil
}

func (p *fakePersister[T]) Save(_ context.Context, key string, item T) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errBackend
	}
	p.saves++
	p.saved[key] = item
	return nil
}

func (p *fakePersister[T]) Remove(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errBackend
	}
	p.removes++
	delete(p.saved, key)
	return nil
}

func (p *fakePersister[T]) setFail(v bool) {
	p.mu.Lock()
	p.fail = v
	p.mu.Unlock()
}

func testGroup(value string) *ServiceGroup {
	return &ServiceGroup{
		ParticipantID: identifier.MustParseParticipant("iso6523-actorid-upis::" + value),
		OwnerID:       "alice",
	}
}

func TestMemoryCollection_CRUD(t *testing.T) {
	ctx := context.Background()
	p := newFakePersister[*ServiceGroup]()
	c := NewMemoryCollection[*ServiceGroup](CollectionServiceGroups, p, nil)

	sg := testGroup("9915:a")
	require.NoError(t, c.Create(ctx, sg))
	assert.True(t, c.Contains(sg.Key()))
	assert.Equal(t, 1, c.Count())
	assert.Equal(t, 1, p.saves)

	err := c.Create(ctx, testGroup("9915:a"))
	assert.ErrorIs(t, err, ErrConflict)

	got, ok := c.Get(sg.Key())
	require.True(t, ok)
	assert.Equal(t, "alice", got.OwnerID)

	got.OwnerID = "bob"
	require.NoError(t, c.Update(ctx, got))
	again, _ := c.Get(sg.Key())
	assert.Equal(t, "bob", again.OwnerID)

	err = c.Update(ctx, testGroup("9915:missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	removed, ok, err := c.Delete(ctx, sg.Key())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "bob", removed.OwnerID)
	assert.Equal(t, 0, c.Count())

	_, ok, err = c.Delete(ctx, sg.Key())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCollection_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection[*ServiceInformation](CollectionServiceInformation, nil, nil)

	si := &ServiceInformation{
		ServiceGroupID: identifier.MustParseParticipant("iso6523-actorid-upis::9915:a"),
		DocumentTypeID: identifier.MustParseDocumentType("busdox-docid-qns::D1"),
		Processes: []*Process{{
			ProcessID: identifier.MustParseProcess("cenbii-procid-ubl::P1"),
			Endpoints: []*Endpoint{{TransportProfile: "busdox-transport-as2", EndpointReference: "http://x"}},
		}},
	}
	require.NoError(t, c.Create(ctx, si))

	// mutating the caller's value or a fetched copy must not leak into the store
	si.Processes[0].Endpoints[0].EndpointReference = "http://changed"
	got, _ := c.Get(si.Key())
	got.Processes = nil

	stored, _ := c.Get(si.Key())
	require.Len(t, stored.Processes, 1)
	assert.Equal(t, "http://x", stored.Processes[0].Endpoints[0].EndpointReference)
}

func TestMemoryCollection_GetAllSortedAndFiltered(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection[*ServiceGroup](CollectionServiceGroups, nil, nil)

	for _, v := range []string{"9915:c", "9915:a", "9915:b"} {
		sg := testGroup(v)
		if v == "9915:b" {
			sg.OwnerID = "bob"
		}
		require.NoError(t, c.Create(ctx, sg))
	}

	all := c.GetAll(nil)
	require.Len(t, all, 3)
	assert.Equal(t, "9915:a", all[0].ParticipantID.Value)
	assert.Equal(t, "9915:c", all[2].ParticipantID.Value)

	alice := c.GetAll(func(sg *ServiceGroup) bool { return sg.OwnerID == "alice" })
	assert.Len(t, alice, 2)
}

func TestMemoryCollection_RevertOnPersistenceFailure(t *testing.T) {
	ctx := context.Background()
	p := newFakePersister[*ServiceGroup]()
	c := NewMemoryCollection[*ServiceGroup](CollectionServiceGroups, p, nil)

	sg := testGroup("9915:a")
	require.NoError(t, c.Create(ctx, sg))

	p.setFail(true)

	err := c.Create(ctx, testGroup("9915:b"))
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, errBackend)
	assert.False(t, c.Contains(testGroup("9915:b").Key()))

	upd := sg.Clone()
	upd.OwnerID = "mallory"
	assert.ErrorIs(t, c.Update(ctx, upd), ErrPersistence)
	got, _ := c.Get(sg.Key())
	assert.Equal(t, "alice", got.OwnerID)

	_, ok, err := c.Delete(ctx, sg.Key())
	assert.ErrorIs(t, err, ErrPersistence)
	assert.False(t, ok)
	assert.True(t, c.Contains(sg.Key()))
}

func TestMemoryCollection_PerformWithoutAutoSave(t *testing.T) {
	ctx := context.Background()
	p := newFakePersister[*ServiceGroup]()
	c := NewMemoryCollection[*ServiceGroup](CollectionServiceGroups, p, nil)

	err := c.PerformWithoutAutoSave(ctx, func() error {
		for _, v := range []string{"9915:a", "9915:b", "9915:c"} {
			if err := c.Create(ctx, testGroup(v)); err != nil {
				return err
			}
		}
		if _, _, err := c.Delete(ctx, testGroup("9915:b").Key()); err != nil {
			return err
		}
		assert.Equal(t, 0, p.saves, "writes are deferred while suspended")
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2, p.saves)
	assert.Equal(t, 1, p.removes)
	assert.Len(t, p.saved, 2)
}

func TestMemoryCollection_PerformWithoutAutoSave_FlushFailure(t *testing.T) {
	ctx := context.Background()
	p := newFakePersister[*ServiceGroup]()
	c := NewMemoryCollection[*ServiceGroup](CollectionServiceGroups, p, nil)

	err := c.PerformWithoutAutoSave(ctx, func() error {
		p.setFail(true)
		return c.Create(ctx, testGroup("9915:a"))
	})
	assert.ErrorIs(t, err, ErrPersistence)

	// the failed key stays dirty and is written by the next flush
	p.setFail(false)
	require.NoError(t, c.PerformWithoutAutoSave(ctx, func() error { return nil }))
	assert.Len(t, p.saved, 1)
}

func TestMemoryCollection_DirectWriteClearsStaleDirtyKey(t *testing.T) {
	ctx := context.Background()
	p := newFakePersister[*ServiceGroup]()
	c := NewMemoryCollection[*ServiceGroup](CollectionServiceGroups, p, nil)

	a := testGroup("9915:a")
	require.NoError(t, c.Create(ctx, a))

	// batch delete whose flush fails leaves a pending remove for a
	err := c.PerformWithoutAutoSave(ctx, func() error {
		p.setFail(true)
		_, _, err := c.Delete(ctx, a.Key())
		return err
	})
	require.ErrorIs(t, err, ErrPersistence)
	p.setFail(false)

	// a is restored by a direct write
	require.NoError(t, c.Create(ctx, a))

	// an unrelated batch must not replay the stale remove
	require.NoError(t, c.PerformWithoutAutoSave(ctx, func() error {
		return c.Create(ctx, testGroup("9915:b"))
	}))

	assert.True(t, c.Contains(a.Key()))
	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Contains(t, p.saved, a.Key())
	assert.Len(t, p.saved, 2)
}

func TestMemoryCollection_Load(t *testing.T) {
	ctx := context.Background()
	p := newFakePersister[*ServiceGroup]()
	sg := testGroup("9915:a")
	p.saved[sg.Key()] = sg

	c := NewMemoryCollection[*ServiceGroup](CollectionServiceGroups, p, nil)
	require.NoError(t, c.Load(ctx))
	assert.True(t, c.Contains(sg.Key()))
}

func TestRegistry_Load(t *testing.T) {
	ctx := context.Background()
	sgs := newFakePersister[*ServiceGroup]()
	sg := testGroup("9915:a")
	sgs.saved[sg.Key()] = sg

	r := NewRegistry(Persisters{ServiceGroups: sgs}, nil)
	require.NoError(t, r.Load(ctx))
	assert.Equal(t, 1, r.ServiceGroups.Count())
	assert.Equal(t, 0, r.Redirects.Count())
}
