// Package session keeps per-session conversation memory for the planner.
//
// A Store holds an append-only history per session id with a bounded window:
// when a history grows past MaxMessages the oldest turns are dropped whole, so
// the retained history always starts at a user message and every tool message
// keeps the assistant message that requested it. Sessions can be checkpointed
// to a Checkpointer and restored after a restart. A session dropped by Sweep
// is reloaded from its checkpoint the next time it is touched.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/normanking/zira/internal/llm"
	"github.com/normanking/zira/internal/logging"
)

// ErrNotFound is returned when a session or checkpoint does not exist.
var ErrNotFound = errors.New("session not found")

// reloadTimeout bounds the checkpoint read that revives a swept session.
const reloadTimeout = 5 * time.Second

// Outcome records how the last planning step ended.
type Outcome string

const (
	OutcomeNone               Outcome = ""
	OutcomeToolCallFound      Outcome = "tool_call_found"
	OutcomeNeedsClarification Outcome = "needs_clarification"
	OutcomeFinalAnswer        Outcome = "final_answer"
)

// State is a copy of one session's memory.
type State struct {
	ID          string
	Messages    []llm.Message
	LastOutcome Outcome
	UpdatedAt   time.Time
}

// Options configures a Store.
type Options struct {
	// MaxMessages bounds each history (0 = unbounded).
	MaxMessages int
	// IdleTTL is how long an untouched session survives Sweep (0 = forever).
	IdleTTL time.Duration
	// Checkpointer persists sessions; nil disables Checkpoint and Restore.
	Checkpointer Checkpointer
}

// Store is the in-memory session store. The map is guarded by a mutex;
// serializing turns within one session is the caller's job.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*State
	swept    map[string]struct{}
	opts     Options
	now      func() time.Time
	log      *logging.Logger
}

// NewStore creates an empty store.
func NewStore(opts Options) *Store {
	return &Store{
		sessions: make(map[string]*State),
		swept:    make(map[string]struct{}),
		opts:     opts,
		now:      time.Now,
		log:      logging.Global().WithComponent("Session"),
	}
}

// lookup returns the live state for id, creating it. Caller holds mu.
func (s *Store) lookup(id string) *State {
	st, ok := s.sessions[id]
	if !ok {
		st = &State{ID: id, UpdatedAt: s.now()}
		s.sessions[id] = st
	}
	return st
}

// revive restores a session that Sweep evicted, so the next checkpoint does
// not overwrite the persisted history with an empty one.
func (s *Store) revive(id string) {
	s.mu.Lock()
	_, swept := s.swept[id]
	s.mu.Unlock()
	if !swept {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()
	if _, err := s.Restore(ctx, id); err != nil {
		s.log.Warn("Could not reload swept session %s: %v", id, err)
		s.mu.Lock()
		delete(s.swept, id)
		s.mu.Unlock()
	}
}

// Get returns a copy of the session, creating an empty one if needed.
func (s *Store) Get(id string) State {
	s.revive(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.lookup(id)
	return State{
		ID:          st.ID,
		Messages:    cloneMessages(st.Messages),
		LastOutcome: st.LastOutcome,
		UpdatedAt:   st.UpdatedAt,
	}
}

// History returns a copy of the session's messages.
func (s *Store) History(id string) []llm.Message {
	return s.Get(id).Messages
}

// Append adds msgs to the session in order and enforces the window.
func (s *Store) Append(id string, msgs ...llm.Message) {
	if len(msgs) == 0 {
		return
	}
	s.revive(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.lookup(id)
	st.Messages = append(st.Messages, msgs...)
	st.UpdatedAt = s.now()

	if dropped := trimWindow(st, s.opts.MaxMessages); dropped > 0 {
		s.log.Debug("Trimmed %d messages from session %s", dropped, id)
	}
}

// SetOutcome records the last planning outcome.
func (s *Store) SetOutcome(id string, outcome Outcome) {
	s.revive(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.lookup(id)
	st.LastOutcome = outcome
	st.UpdatedAt = s.now()
}

// Reset clears the session's history in memory.
func (s *Store) Reset(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	delete(s.swept, id)
}

// Forget resets the session and deletes its checkpoint.
func (s *Store) Forget(ctx context.Context, id string) error {
	s.Reset(id)
	if s.opts.Checkpointer == nil {
		return nil
	}
	return s.opts.Checkpointer.Delete(ctx, id)
}

// IDs returns the ids of sessions held in memory, sorted.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sweep drops sessions idle for longer than IdleTTL and returns how many.
// With a Checkpointer configured, a swept session is reloaded on next use.
func (s *Store) Sweep(now time.Time) int {
	if s.opts.IdleTTL <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, st := range s.sessions {
		if now.Sub(st.UpdatedAt) > s.opts.IdleTTL {
			delete(s.sessions, id)
			if s.opts.Checkpointer != nil {
				s.swept[id] = struct{}{}
			}
			removed++
		}
	}
	if removed > 0 {
		s.log.Info("Swept %d idle sessions", removed)
	}
	return removed
}

// Checkpoint saves the session through the configured Checkpointer.
func (s *Store) Checkpoint(ctx context.Context, id string) error {
	if s.opts.Checkpointer == nil {
		return nil
	}

	st := s.Get(id)
	snap := &Snapshot{
		Version:     SnapshotVersion,
		ID:          st.ID,
		Messages:    st.Messages,
		LastOutcome: st.LastOutcome,
		UpdatedAt:   st.UpdatedAt.UTC(),
	}
	if err := s.opts.Checkpointer.Save(ctx, snap); err != nil {
		return fmt.Errorf("checkpoint session %s: %w", id, err)
	}
	s.log.Debug("Checkpointed session %s (%d messages)", id, len(snap.Messages))
	return nil
}

// Restore loads the session from the Checkpointer, replacing any in-memory
// state. It reports false when no checkpoint exists.
func (s *Store) Restore(ctx context.Context, id string) (bool, error) {
	if s.opts.Checkpointer == nil {
		return false, nil
	}

	snap, err := s.opts.Checkpointer.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		s.mu.Lock()
		delete(s.swept, id)
		s.mu.Unlock()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("restore session %s: %w", id, err)
	}

	st := &State{
		ID:          id,
		Messages:    cloneMessages(snap.Messages),
		LastOutcome: snap.LastOutcome,
		UpdatedAt:   s.now(),
	}
	trimWindow(st, s.opts.MaxMessages)

	s.mu.Lock()
	s.sessions[id] = st
	delete(s.swept, id)
	s.mu.Unlock()

	s.log.Info("Restored session %s (%d messages)", id, len(st.Messages))
	return true, nil
}

// trimWindow drops the oldest messages so at most max remain, cutting only at
// a user message. When the newest turn alone exceeds max, the history is cut
// to that turn. Returns the number of dropped messages.
func trimWindow(st *State, max int) int {
	if max <= 0 || len(st.Messages) <= max {
		return 0
	}

	cut := -1
	for i := len(st.Messages) - max; i < len(st.Messages); i++ {
		if st.Messages[i].Role == llm.RoleUser {
			cut = i
			break
		}
	}
	if cut < 0 {
		for i := len(st.Messages) - max - 1; i >= 0; i-- {
			if st.Messages[i].Role == llm.RoleUser {
				cut = i
				break
			}
		}
	}
	if cut <= 0 {
		return 0
	}

	st.Messages = append([]llm.Message(nil), st.Messages[cut:]...)
	return cut
}

func cloneMessages(msgs []llm.Message) []llm.Message {
	if msgs == nil {
		return nil
	}
	out := make([]llm.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m
		if m.ToolCalls != nil {
			out[i].ToolCalls = append([]llm.ToolCall(nil), m.ToolCalls...)
		}
	}
	return out
}
