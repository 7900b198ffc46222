package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testState struct {
	ID      string
	Counter int
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore(ttl time.Duration) (*Store[testState], *clock) {
	c := &clock{t: time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)}
	s := NewStore(ttl, func(id string) *testState { return &testState{ID: id} })
	s.now = c.Now
	return s, c
}

func TestStore_GetOrCreate(t *testing.T) {
	s, _ := newTestStore(time.Minute)

	a := s.Get("a")
	require.NotNil(t, a)
	assert.Equal(t, "a", a.ID)
	a.Counter = 42

	assert.Same(t, a, s.Get("a"))
	b := s.Get("b")
	assert.NotSame(t, a, b)
	assert.Zero(t, b.Counter)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"a", "b"}, s.IDs())
}

func TestStore_Lookup(t *testing.T) {
	s, _ := newTestStore(time.Minute)
	_, ok := s.Lookup("missing")
	assert.False(t, ok)
	assert.Zero(t, s.Len())

	s.Get("x")
	v, ok := s.Lookup("x")
	assert.True(t, ok)
	assert.Equal(t, "x", v.ID)
}

func TestStore_TTL(t *testing.T) {
	s, c := newTestStore(time.Minute)
	var evicted []string
	s.OnEvict(func(id string, v *testState) { evicted = append(evicted, id) })

	s.Get("ephemeral")
	s.Get("keep")
	c.Advance(40 * time.Second)
	s.Lookup("keep")
	c.Advance(40 * time.Second)

	assert.Equal(t, 1, s.Cleanup())
	assert.Equal(t, []string{"ephemeral"}, evicted)
	assert.Equal(t, []string{"keep"}, s.IDs())
}

func TestStore_NoTTL(t *testing.T) {
	s, c := newTestStore(0)
	s.Get("forever")
	c.Advance(365 * 24 * time.Hour)
	assert.Zero(t, s.Cleanup())
	assert.Equal(t, 1, s.Len())
}

func TestStore_LazyCleanup(t *testing.T) {
	s, c := newTestStore(10 * time.Millisecond)
	s.Get("old")
	c.Advance(30 * time.Millisecond)

	for i := 1; i < cleanupInterval; i++ {
		s.Get("trigger")
	}
	assert.Equal(t, []string{"trigger"}, s.IDs())
}

func TestStore_Delete(t *testing.T) {
	s, _ := newTestStore(time.Minute)
	var evicted []string
	s.OnEvict(func(id string, v *testState) { evicted = append(evicted, id) })

	s.Get("a")
	assert.True(t, s.Delete("a"))
	assert.False(t, s.Delete("a"))
	assert.Equal(t, []string{"a"}, evicted)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s, _ := newTestStore(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Get("shared")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, s.Len())
}
