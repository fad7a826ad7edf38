package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/speechloop/speechd/internal/ident"
	"github.com/speechloop/speechd/internal/kvstore"
)

var (
	// ErrNotFound indicates no session record exists for the id.
	ErrNotFound = errors.New("session: not found")

	// ErrExpired indicates the session's expiry has passed, whether or not
	// the store has evicted the key yet.
	ErrExpired = errors.New("session: expired")

	// ErrStorageFailure indicates a write did not confirm; the caller must
	// not assume the record exists.
	ErrStorageFailure = errors.New("session: storage failure")
)

// TTL is the fixed lifetime of session and participant-content records.
// It is not reconfigurable per session.
const TTL = 24 * time.Hour

// CreateSpec describes a session to create. Either Names or Count is set;
// Names wins when both are present.
type CreateSpec struct {
	Names    []string
	Count    int
	Style    SpeechStyle
	Duration int
}

// participantCount resolves the effective participant count.
func (s CreateSpec) participantCount() int {
	if len(s.Names) > 0 {
		return len(s.Names)
	}
	return s.Count
}

// Validate checks the spec against the supported participant range.
func (s CreateSpec) Validate() error {
	n := s.participantCount()
	if n < 1 || n > 10 {
		return fmt.Errorf("session: participant count %d out of range 1-10", n)
	}
	if !s.Style.Valid() {
		return fmt.Errorf("session: unknown speech style %q", s.Style)
	}
	if s.Duration != 0 && (s.Duration < MinSpeechDuration || s.Duration > MaxSpeechDuration) {
		return fmt.Errorf("session: speech duration %d out of range %d-%d",
			s.Duration, MinSpeechDuration, MaxSpeechDuration)
	}
	return nil
}

// Manager owns session creation, retrieval, and expiry semantics.
type Manager struct {
	store  kvstore.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewManager creates a Manager backed by the given store.
func NewManager(store kvstore.Store, logger *zap.Logger) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session: store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:  store,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Available reports whether the backing store is reachable.
func (m *Manager) Available(ctx context.Context) bool {
	return m.store.Ping(ctx) == nil
}

// Create builds and persists a new session from spec.
// Participant names default to 参加者N when only a count was given.
func (m *Manager) Create(ctx context.Context, spec CreateSpec) (*Session, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	id, err := ident.AllocateUnique(ctx, m.store, KeyPrefix, ident.SessionIDLength, ident.DefaultMaxAttempts)
	if err != nil {
		return nil, err
	}

	n := spec.participantCount()
	participants := make([]Participant, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("参加者%d", i+1)
		if i < len(spec.Names) && spec.Names[i] != "" {
			name = spec.Names[i]
		}
		pid, err := ident.Generate(ident.ParticipantIDLength)
		if err != nil {
			return nil, fmt.Errorf("session: participant id: %w", err)
		}
		participants = append(participants, Participant{
			ID:      pid,
			Name:    name,
			TopicID: fmt.Sprintf("topic-%d", i),
		})
	}

	duration := spec.Duration
	if duration == 0 {
		duration = DefaultSpeechDuration
	}

	now := m.now()
	sess := &Session{
		ID:             id,
		Participants:   participants,
		SpeechStyle:    spec.Style,
		SpeechDuration: duration,
		Topics:         map[string]string{},
		CreatedAt:      now,
		ExpiresAt:      now.Add(TTL),
	}

	if err := kvstore.SetJSON(ctx, m.store, Key(id), sess, TTL); err != nil {
		m.logger.Error("session write failed", zap.String("session_id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	m.logger.Info("session created",
		zap.String("session_id", id),
		zap.Int("participants", n),
		zap.String("style", string(spec.Style)))

	return sess, nil
}

// Get fetches a session, enforcing the embedded expiry independent of
// whether the store has evicted the key.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	var sess Session
	if err := kvstore.GetJSON(ctx, m.store, Key(id), &sess); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session: get %s: %w", id, err)
	}

	if sess.Expired(m.now()) {
		return nil, ErrExpired
	}

	return &sess, nil
}

// Put persists an updated session record, preserving the fixed TTL class.
func (m *Manager) Put(ctx context.Context, sess *Session) error {
	if err := kvstore.SetJSON(ctx, m.store, Key(sess.ID), sess, TTL); err != nil {
		m.logger.Error("session write failed", zap.String("session_id", sess.ID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return nil
}

// GetContent fetches a participant's generated content.
// Returns ErrNotFound if no content has been generated yet.
func (m *Manager) GetContent(ctx context.Context, sessionID, participantID string) (*ParticipantContent, error) {
	var content ParticipantContent
	if err := kvstore.GetJSON(ctx, m.store, ContentKey(sessionID, participantID), &content); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session: get content %s/%s: %w", sessionID, participantID, err)
	}
	return &content, nil
}

// PutContent persists a participant's generated content with its own TTL.
func (m *Manager) PutContent(ctx context.Context, sessionID, participantID string, content *ParticipantContent) error {
	if err := kvstore.SetJSON(ctx, m.store, ContentKey(sessionID, participantID), content, TTL); err != nil {
		m.logger.Error("participant content write failed",
			zap.String("session_id", sessionID),
			zap.String("participant_id", participantID),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return nil
}
