package session

import (
	"errors"
	"sync"
	"time"

	"scribsy/models"

	"github.com/google/uuid"
)

// ErrSessionNotFound: токен неизвестен или уже истёк
var ErrSessionNotFound = errors.New("session not found or expired")

// Store хранит сессии администраторов: токен → момент истечения.
type Store interface {
	Create(ttl time.Duration) (models.AdminSession, error)
	Lookup(token string) (models.AdminSession, error)
	Revoke(token string)
}

// MemoryStore держит сессии в памяти процесса.
// Истёкшая сессия удаляется сразу при обращении к ней и при периодической очистке.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]time.Time
	now      func() time.Time

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]time.Time),
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(ttl time.Duration) (models.AdminSession, error) {
	if ttl <= 0 {
		return models.AdminSession{}, errors.New("session ttl must be positive")
	}
	sess := models.AdminSession{
		Token:     uuid.NewString(),
		ExpiresAt: s.now().Add(ttl),
	}

	s.mu.Lock()
	s.sessions[sess.Token] = sess.ExpiresAt
	s.mu.Unlock()
	return sess, nil
}

func (s *MemoryStore) Lookup(token string) (models.AdminSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expires, ok := s.sessions[token]
	if !ok {
		return models.AdminSession{}, ErrSessionNotFound
	}
	sess := models.AdminSession{Token: token, ExpiresAt: expires}
	if sess.Expired(s.now()) {
		delete(s.sessions, token)
		return models.AdminSession{}, ErrSessionNotFound
	}
	return sess, nil
}

func (s *MemoryStore) Revoke(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// Sweep удаляет все сессии, истёкшие к моменту now, и возвращает их число.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, expires := range s.sessions {
		if !now.Before(expires) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// Len возвращает число хранимых сессий
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// StartJanitor запускает фоновую очистку с интервалом every.
// Останавливается через Close.
func (s *MemoryStore) StartJanitor(every time.Duration) {
	s.once.Do(func() {
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go func() {
			defer close(s.done)
			ticker := time.NewTicker(every)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					s.Sweep(s.now())
				case <-s.stop:
					return
				}
			}
		}()
	})
}

// Close останавливает фоновую очистку, если она была запущена.
func (s *MemoryStore) Close() {
	if s.stop == nil {
		return
	}
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done
}
