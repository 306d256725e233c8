// Package session holds in-flight slot-filling conversations. State is
// process-local and in-memory: a restart discards every pending session,
// and the next utterance from an affected user falls back to single-turn
// interpretation.
package session

import (
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"todochat/app/core/interpreter"
)

// DefaultTTL is the fixed inactivity window after which a session is
// treated as absent. Measured from session creation, not last activity.
const DefaultTTL = 600 * time.Second

const shardCount = 16

// Session tracks one underspecified command awaiting follow-up answers.
// Exactly one slot category is outstanding at a time; Missing[0] is the
// one currently being asked for.
type Session struct {
	UserID         string
	ConversationID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Initial        interpreter.Command
	Missing        []string
	Collected      map[string]string
}

// MergeResult reports the outcome of folding a follow-up utterance into a
// session.
type MergeResult struct {
	Complete   bool
	Command    interpreter.Command
	NextSlot   string
	NextPrompt string
}

type sessionKey struct {
	userID         string
	conversationID string
}

type shard struct {
	mu       sync.Mutex
	sessions map[sessionKey]*Session
}

// Store is the exclusive owner of the session table. Keys are sharded so
// conversations never contend on one global lock; critical sections are
// plain map get/set/delete with no parsing or I/O inside.
type Store struct {
	ttl    time.Duration
	now    func() time.Time
	shards [shardCount]*shard
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{ttl: ttl, now: time.Now}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: map[sessionKey]*Session{}}
	}
	return s
}

// SetClock overrides the time source. Test hook only.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Store) shardFor(key sessionKey) *shard {
	h := fnv.New32a()
	h.Write([]byte(key.userID))
	h.Write([]byte{0})
	h.Write([]byte(key.conversationID))
	return s.shards[h.Sum32()%shardCount]
}

func makeKey(userID, conversationID string) sessionKey {
	return sessionKey{
		userID:         strings.TrimSpace(userID),
		conversationID: strings.TrimSpace(conversationID),
	}
}

// Begin opens a session for an underspecified command and returns the
// first slot prompt. An existing session under the same key is replaced:
// the newer utterance supersedes the stale exchange.
func (s *Store) Begin(userID, conversationID string, res interpreter.Result) string {
	if !res.NeedsMoreInfo || len(res.MissingSlots) == 0 {
		return ""
	}
	key := makeKey(userID, conversationID)
	now := s.now()

	missing := make([]string, len(res.MissingSlots))
	copy(missing, res.MissingSlots)

	sess := &Session{
		UserID:         key.userID,
		ConversationID: key.conversationID,
		CreatedAt:      now,
		UpdatedAt:      now,
		Initial:        res.Command,
		Missing:        missing,
		Collected:      map[string]string{},
	}

	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.sessions[key] = sess
	sh.mu.Unlock()

	return interpreter.PromptFor(missing[0])
}

// Active reports whether a live (non-expired) session exists for the key.
// Expired entries are deleted on the way out: expiry is lazy, checked on
// access rather than by timer.
func (s *Store) Active(userID, conversationID string) bool {
	_, ok := s.get(makeKey(userID, conversationID))
	return ok
}

func (s *Store) get(key sessionKey) (*Session, bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess, ok := sh.sessions[key]
	if !ok {
		return nil, false
	}
	if s.now().Sub(sess.CreatedAt) > s.ttl {
		delete(sh.sessions, key)
		return nil, false
	}
	return sess, true
}

// Merge folds a follow-up utterance into the session's outstanding slot.
// Timeframe answers are resolved to a date immediately so the final
// command is deterministic with respect to the merge time. When every
// missing slot has been collected the session finalizes: the collected
// values are merged into the initial command, the session is removed and
// Complete is set. The bool return is false when no live session exists.
func (s *Store) Merge(userID, conversationID, utterance string) (MergeResult, bool) {
	key := makeKey(userID, conversationID)
	answer := strings.TrimSpace(utterance)
	now := s.now()

	sh := s.shardFor(key)
	sh.mu.Lock()
	sess, ok := sh.sessions[key]
	if !ok {
		sh.mu.Unlock()
		return MergeResult{}, false
	}
	if now.Sub(sess.CreatedAt) > s.ttl {
		delete(sh.sessions, key)
		sh.mu.Unlock()
		return MergeResult{}, false
	}

	current := sess.Missing[0]
	sess.Collected[current] = answer
	sess.Missing = sess.Missing[1:]
	sess.UpdatedAt = now

	if len(sess.Missing) > 0 {
		next := sess.Missing[0]
		sh.mu.Unlock()
		return MergeResult{NextSlot: next, NextPrompt: interpreter.PromptFor(next)}, true
	}

	delete(sh.sessions, key)
	snapshot := *sess
	sh.mu.Unlock()

	// finalize outside the lock: date parsing stays out of the critical
	// section
	return MergeResult{Complete: true, Command: finalize(snapshot, now)}, true
}

// Cancel removes the session if present.
func (s *Store) Cancel(userID, conversationID string) bool {
	key := makeKey(userID, conversationID)
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.sessions[key]; !ok {
		return false
	}
	delete(sh.sessions, key)
	return true
}

// Sweep removes every expired session and returns how many were dropped.
// Lazy on-access expiry remains authoritative; the sweep only reclaims
// memory for conversations that never came back.
func (s *Store) Sweep() int {
	now := s.now()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, sess := range sh.sessions {
			if now.Sub(sess.CreatedAt) > s.ttl {
				delete(sh.sessions, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len counts live sessions across all shards, including entries whose
// expiry has not been observed yet.
func (s *Store) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += len(sh.sessions)
		sh.mu.Unlock()
	}
	return total
}

// finalize merges collected answers into the initial command. Timeframe
// becomes the due date when it resolves; everything else lands in the
// Details map for the executor to append.
func finalize(sess Session, now time.Time) interpreter.Command {
	cmd := sess.Initial
	details := map[string]string{}
	for k, v := range cmd.Slots.Details {
		details[k] = v
	}
	for slot, answer := range sess.Collected {
		if answer == "" {
			continue
		}
		if slot == interpreter.SlotTimeframe {
			if due, _, ok := resolveTimeframe(answer, now); ok {
				cmd.Slots.DueDate = due
				continue
			}
		}
		details[slot] = answer
	}
	if len(details) > 0 {
		cmd.Slots.Details = details
	}
	cmd.ProcessedAt = now
	return cmd
}

func resolveTimeframe(answer string, now time.Time) (string, string, bool) {
	if due, ok := interpreter.ResolveDate(answer, now); ok {
		return interpreter.FormatDate(due), answer, true
	}
	if due, phrase, ok := interpreter.FindDate(answer, now); ok {
		return interpreter.FormatDate(due), phrase, true
	}
	return "", "", false
}
