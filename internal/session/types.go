// Package session owns the session and participant-content records and
// their lifecycle in the key-value store.
package session

import "time"

// SpeechStyle tags a session with the tone requested for generated content.
type SpeechStyle string

const (
	StyleNone        SpeechStyle = ""
	StyleFunny       SpeechStyle = "funny"
	StyleMoving      SpeechStyle = "moving"
	StyleEducational SpeechStyle = "educational"
	StyleSurprising  SpeechStyle = "surprising"
)

// Valid reports whether s is a known style tag.
func (s SpeechStyle) Valid() bool {
	switch s {
	case StyleNone, StyleFunny, StyleMoving, StyleEducational, StyleSurprising:
		return true
	}
	return false
}

// Speech duration bounds in minutes.
const (
	MinSpeechDuration     = 1
	MaxSpeechDuration     = 3
	DefaultSpeechDuration = 2
)

// Participant is one speaker in a session. The list is fixed at creation;
// participants are never added or removed afterwards.
type Participant struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	TopicID string `json:"topicId"`
}

// Session is a time-boxed practice unit. Topics start empty and are filled
// in by topic generation; the record is otherwise immutable after creation.
type Session struct {
	ID             string            `json:"id"`
	Participants   []Participant     `json:"participants"`
	SpeechStyle    SpeechStyle       `json:"speechStyle,omitempty"`
	SpeechDuration int               `json:"speechDuration,omitempty"`
	Topics         map[string]string `json:"topics"`
	CreatedAt      time.Time         `json:"createdAt"`
	ExpiresAt      time.Time         `json:"expiresAt"`
}

// Participant returns the participant with the given id, or nil.
func (s *Session) Participant(id string) *Participant {
	for i := range s.Participants {
		if s.Participants[i].ID == id {
			return &s.Participants[i]
		}
	}
	return nil
}

// Topic returns the topic assigned to participantID, if any.
func (s *Session) Topic(participantID string) (string, bool) {
	topic, ok := s.Topics[participantID]
	return topic, ok && topic != ""
}

// Ready reports whether every participant has a topic, i.e. whether
// per-participant pages can be served.
func (s *Session) Ready() bool {
	if len(s.Topics) == 0 {
		return false
	}
	for _, p := range s.Participants {
		if _, ok := s.Topic(p.ID); !ok {
			return false
		}
	}
	return true
}

// Expired reports whether the session's embedded expiry has passed.
// The store's own TTL is a second, independent expiry mechanism; Get treats
// either as authoritative.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}

// SpeechBody is the structured draft of a speech.
type SpeechBody struct {
	Opening string   `json:"opening"`
	Body    []string `json:"body"`
	Closing string   `json:"closing"`
}

// SpeechExample is a generated speech draft with delivery tips.
type SpeechExample struct {
	Speech SpeechBody `json:"speech"`
	Tips   []string   `json:"tips"`
}

// ParticipantContent holds per-participant generated content. It is stored
// under its own key with an independent TTL from the Session record.
type ParticipantContent struct {
	Keywords            string         `json:"keywords"`
	KeywordsGeneratedAt *time.Time     `json:"keywordsGeneratedAt"`
	SpeechExample       *SpeechExample `json:"speechExample"`
	SpeechGeneratedAt   *time.Time     `json:"speechGeneratedAt"`
}
