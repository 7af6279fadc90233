package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrGameNotFound is returned when no live session has the requested code.
var ErrGameNotFound = errors.New("game not found")

// maxCodeAttempts bounds code generation retries on collision.
const maxCodeAttempts = 32

// RegistryOptions configures the sessions a Registry creates.
type RegistryOptions struct {
	Rules Rules
	// CodeLength is the number of characters in a game code.
	CodeLength int
	// NewCode overrides code generation; nil uses uuid-derived codes.
	NewCode func() string
}

// Registry is the process-wide table of live sessions keyed by code.
// Sessions are removed when they end and their codes are never reissued.
// All methods are safe for concurrent use.
type Registry struct {
	opts   RegistryOptions
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	sessions map[string]*Session
	retired  map[string]struct{}
}

// NewRegistry creates an empty registry. Session goroutines are bound to ctx
// and to Close.
//
// Precondition: opts.Rules must be valid; logger must be non-nil.
func NewRegistry(ctx context.Context, opts RegistryOptions, logger *zap.Logger) *Registry {
	if opts.CodeLength <= 0 {
		opts.CodeLength = 6
	}
	if opts.NewCode == nil {
		n := opts.CodeLength
		opts.NewCode = func() string { return uuidCode(n) }
	}
	rctx, cancel := context.WithCancel(ctx)
	return &Registry{
		opts:     opts,
		logger:   logger,
		ctx:      rctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
		retired:  make(map[string]struct{}),
	}
}

// uuidCode returns the first n hex digits of a random UUID, upper-cased.
func uuidCode(n int) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > len(hex) {
		n = len(hex)
	}
	return strings.ToUpper(hex[:n])
}

// Create starts a new lobby-phase session under a fresh code.
//
// Postcondition: Returns a running session, or an error if the registry is
// closed or no unused code could be generated.
func (r *Registry) Create() (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx.Err() != nil {
		return nil, fmt.Errorf("creating game: %w", r.ctx.Err())
	}

	var code string
	for i := 0; ; i++ {
		if i == maxCodeAttempts {
			return nil, errors.New("creating game: no unused code available")
		}
		code = r.opts.NewCode()
		_, live := r.sessions[code]
		_, used := r.retired[code]
		if !live && !used {
			break
		}
	}

	sess := newSession(r.ctx, code, r.opts.Rules, r.logger, r.retire)
	r.sessions[code] = sess
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		<-sess.Done()
	}()

	r.logger.Info("game created", zap.String("game_id", code), zap.Int("live_games", len(r.sessions)))
	return sess, nil
}

// retire removes an ended session and reserves its code.
func (r *Registry) retire(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[s.Code()] == s {
		delete(r.sessions, s.Code())
	}
	r.retired[s.Code()] = struct{}{}
}

// Get returns the live session with the given code.
func (r *Registry) Get(code string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[code]
	return s, ok
}

// Lookup is Get with an ErrGameNotFound error for unknown codes.
func (r *Registry) Lookup(code string) (*Session, error) {
	if s, ok := r.Get(code); ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrGameNotFound, code)
}

// SessionOf returns the live session that has id as a member.
func (r *Registry) SessionOf(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.Has(id) {
			return s, true
		}
	}
	return nil, false
}

// IsRetired reports whether code belonged to a session that has ended.
func (r *Registry) IsRetired(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.retired[code]
	return ok
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close stops every session goroutine and waits for them to exit.
//
// Postcondition: Create fails after Close returns. Safe to call repeatedly.
func (r *Registry) Close() {
	r.mu.Lock()
	r.cancel()
	r.mu.Unlock()
	r.wg.Wait()
	r.logger.Info("game registry closed")
}
