package topic

import "sync"

// Resolution is the outcome of routing one conversation turn.
type Resolution struct {
	// Topic is the manual the turn should search, or Unknown when the
	// assistant must ask the user which tool they mean.
	Topic Topic
	// OriginalQuestion is set when this turn was a bare clarification: it
	// holds the earlier, unresolved question the clarification answers, so
	// the search runs against the real question instead of a one-word reply.
	OriginalQuestion string
}

type record struct {
	resolved Topic
	pending  string
}

// Store remembers the resolved topic and any pending unresolved question per
// thread. It lives in process memory only; a restart re-classifies from
// scratch.
type Store struct {
	mu      sync.RWMutex
	records map[string]*record
}

// NewStore creates an empty conversation topic store.
func NewStore() *Store {
	return &Store{records: make(map[string]*record)}
}

// RecordIfClassified classifies text and, on success, sets the thread's
// resolved topic (last classified message wins) and clears any pending
// question. It returns the classified topic, Unknown if none.
func (s *Store) RecordIfClassified(threadID, text string) Topic {
	t := Classify(text)
	if !t.Known() {
		return Unknown
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.get(threadID)
	rec.resolved = t
	rec.pending = ""
	return t
}

// ResolveTurn routes one incoming message for a thread.
//
// A message that classifies resolves the thread's topic; when it is also a
// bare clarification, the previously pending question is handed back as
// OriginalQuestion. A message that does not classify keeps an already
// resolved topic sticky, or - on an unresolved thread - becomes the new
// pending question (at most one is held; newer overwrites older).
func (s *Store) ResolveTurn(threadID, text string) Resolution {
	t := Classify(text)

	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.get(threadID)

	if t.Known() {
		var original string
		if IsBareClarification(text) {
			original = rec.pending
		}
		rec.resolved = t
		rec.pending = ""
		return Resolution{Topic: t, OriginalQuestion: original}
	}

	if rec.resolved.Known() {
		return Resolution{Topic: rec.resolved}
	}

	rec.pending = text
	return Resolution{}
}

// Resolved returns the thread's resolved topic, Unknown if none yet.
func (s *Store) Resolved(threadID string) Topic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.records[threadID]; ok {
		return rec.resolved
	}
	return Unknown
}

// get returns the thread's record, creating it lazily. Callers hold s.mu.
func (s *Store) get(threadID string) *record {
	rec, ok := s.records[threadID]
	if !ok {
		rec = &record{}
		s.records[threadID] = rec
	}
	return rec
}
