package session

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"
)

func newTestRegistry(t *testing.T, opts RegistryOptions) *Registry {
	t.Helper()
	if opts.Rules.TickInterval == 0 {
		opts.Rules = fastRules(time.Minute)
	}
	r := NewRegistry(context.Background(), opts, zaptest.NewLogger(t))
	t.Cleanup(r.Close)
	return r
}

func TestRegistry_CreateAndGet(t *testing.T) {
	r := newTestRegistry(t, RegistryOptions{})
	s, err := r.Create()
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9A-F]{6}$`), s.Code())

	got, ok := r.Get(s.Code())
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, PhaseLobby, s.Phase())
}

func TestRegistry_LookupUnknown(t *testing.T) {
	r := newTestRegistry(t, RegistryOptions{})
	_, err := r.Lookup("NOPE00")
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestRegistry_CodeLength(t *testing.T) {
	r := newTestRegistry(t, RegistryOptions{CodeLength: 8})
	s, err := r.Create()
	require.NoError(t, err)
	assert.Len(t, s.Code(), 8)
}

func TestRegistry_EndedSessionIsRemovedAndCodeRetired(t *testing.T) {
	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	next := 0
	r := newTestRegistry(t, RegistryOptions{
		Rules: fastRules(10 * time.Millisecond),
		NewCode: func() string {
			c := codes[next%len(codes)]
			next++
			return c
		},
	})

	s, err := r.Create()
	require.NoError(t, err)
	require.Equal(t, "AAAAAA", s.Code())
	joinWithOutbox(t, s, "p1", RolePlayer)
	require.NoError(t, s.Start(context.Background(), "p1"))
	<-s.Done()

	require.Eventually(t, func() bool { return r.Count() == 0 }, time.Second, 5*time.Millisecond)
	_, ok := r.Get("AAAAAA")
	assert.False(t, ok)
	assert.True(t, r.IsRetired("AAAAAA"))

	s2, err := r.Create()
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", s2.Code(), "retired code must not be reissued")
}

func TestRegistry_CreateGivesUpOnExhaustedCodes(t *testing.T) {
	r := newTestRegistry(t, RegistryOptions{NewCode: func() string { return "SAME00" }})
	_, err := r.Create()
	require.NoError(t, err)
	_, err = r.Create()
	assert.Error(t, err)
}

func TestRegistry_SessionOf(t *testing.T) {
	r := newTestRegistry(t, RegistryOptions{})
	a, err := r.Create()
	require.NoError(t, err)
	b, err := r.Create()
	require.NoError(t, err)
	joinWithOutbox(t, a, "p1", RolePlayer)
	joinWithOutbox(t, b, "p2", RoleSpectator)

	got, ok := r.SessionOf("p1")
	require.True(t, ok)
	assert.Same(t, a, got)
	got, ok = r.SessionOf("p2")
	require.True(t, ok)
	assert.Same(t, b, got)
	_, ok = r.SessionOf("ghost")
	assert.False(t, ok)

	require.NoError(t, a.Leave(context.Background(), "p1"))
	_, ok = r.SessionOf("p1")
	assert.False(t, ok)
}

func TestRegistry_EmptyLobbiesAreReaped(t *testing.T) {
	r := newTestRegistry(t, RegistryOptions{})
	var sessions []*Session
	for i := 0; i < 50; i++ {
		s, err := r.Create()
		require.NoError(t, err)
		joinWithOutbox(t, s, "host", RolePlayer)
		require.NoError(t, s.Leave(context.Background(), "host"))
		sessions = append(sessions, s)
	}

	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-time.After(time.Second):
			t.Fatalf("session %s still running", s.Code())
		}
	}
	require.Eventually(t, func() bool { return r.Count() == 0 }, time.Second, 5*time.Millisecond)
	for _, s := range sessions {
		assert.True(t, r.IsRetired(s.Code()))
		_, err := r.Lookup(s.Code())
		assert.ErrorIs(t, err, ErrGameNotFound)
	}
}

func TestRegistry_CloseStopsSessions(t *testing.T) {
	r := NewRegistry(context.Background(), RegistryOptions{Rules: fastRules(time.Minute)}, zaptest.NewLogger(t))
	s, err := r.Create()
	require.NoError(t, err)

	r.Close()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session goroutine did not exit")
	}
	_, err = r.Create()
	assert.Error(t, err)
	r.Close()
}

func TestPropertyRegistryCodesUnique(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pool := rapid.SliceOfNDistinct(rapid.StringMatching(`[A-F]{2}`), 1, 10, rapid.ID[string]).Draw(t, "pool")
		n := rapid.IntRange(1, 40).Draw(t, "creates")
		i := 0
		r := NewRegistry(context.Background(), RegistryOptions{
			Rules: fastRules(time.Minute),
			NewCode: func() string {
				c := pool[i%len(pool)]
				i++
				return c
			},
		}, zap.NewNop())
		defer r.Close()

		seen := map[string]bool{}
		for k := 0; k < n; k++ {
			s, err := r.Create()
			if err != nil {
				if len(seen) < len(pool) {
					t.Fatalf("create failed with %d of %d codes free: %v", len(pool)-len(seen), len(pool), err)
				}
				continue
			}
			if seen[s.Code()] {
				t.Fatalf("code %s issued twice", s.Code())
			}
			seen[s.Code()] = true
		}
		if want := min(n, len(pool)); len(seen) != want {
			t.Fatalf("issued %d codes, want %d", len(seen), want)
		}
	})
}
