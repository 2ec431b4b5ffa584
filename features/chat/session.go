package chat

import (
	"sync"

	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/prompt"
)

// Session is the transcript of one chat. Turns is only touched while the
// session is held through SessionStore.Acquire.
type Session struct {
	mu    sync.Mutex
	Turns []prompt.Message
}

// Release unlocks a session obtained from Acquire.
func (s *Session) Release() {
	s.mu.Unlock()
}

// History returns a copy of the transcript.
func (s *Session) History() []prompt.Message {
	out := make([]prompt.Message, len(s.Turns))
	copy(out, s.Turns)
	return out
}

// SessionStore keeps transcripts in memory for the life of the process.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Acquire returns the session for id, creating it on first use, and locks
// it. Requests for the same session run one at a time.
func (s *SessionStore) Acquire(id string) *Session {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &Session{}
		s.sessions[id] = sess
	}
	s.mu.Unlock()

	sess.mu.Lock()
	return sess
}

// Len reports the number of known sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
