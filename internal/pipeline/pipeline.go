// Package pipeline orchestrates the three content-generation stages of a
// session: topics, per-participant keywords, and per-participant speech
// drafts, plus the stateless association-chain variant.
//
// The pipeline advances strictly forward per session. Regenerating a later
// stage never invalidates an earlier one; regenerating keywords clears any
// speech derived from them. Backend failures are always recovered locally
// with static fallback content and flagged on the result, never surfaced as
// errors to the caller.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/speechloop/speechd/internal/genai"
	"github.com/speechloop/speechd/internal/ratelimit"
	"github.com/speechloop/speechd/internal/session"
)

var (
	// ErrParticipantNotFound indicates the participant id is not part of
	// the session.
	ErrParticipantNotFound = errors.New("pipeline: participant not found")

	// ErrTopicNotFound indicates keyword generation ran before topic
	// generation for the participant.
	ErrTopicNotFound = errors.New("pipeline: topic not found")

	// ErrKeywordsNotFound indicates speech generation ran before keyword
	// generation for the participant.
	ErrKeywordsNotFound = errors.New("pipeline: keywords not found")
)

// TopicsResult is the outcome of the topic stage.
type TopicsResult struct {
	Topics       []string
	FromFallback bool
}

// KeywordsResult is the outcome of the keyword stage.
type KeywordsResult struct {
	Keywords     string
	FromFallback bool
}

// SpeechResult is the outcome of the speech stage.
type SpeechResult struct {
	Speech       *session.SpeechExample
	FromFallback bool
}

// AssociationsResult is the outcome of the stateless association chain.
type AssociationsResult struct {
	Associations string
	FromFallback bool
}

// Pipeline runs generation stages against the backend through the rate
// limiter, persisting results via the session manager.
type Pipeline struct {
	backend  genai.Backend
	sessions *session.Manager
	limiter  *ratelimit.Limiter
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a Pipeline.
func New(backend genai.Backend, sessions *session.Manager, limiter *ratelimit.Limiter, logger *zap.Logger) (*Pipeline, error) {
	if backend == nil {
		return nil, errors.New("pipeline: backend is required")
	}
	if sessions == nil {
		return nil, errors.New("pipeline: session manager is required")
	}
	if limiter == nil {
		return nil, errors.New("pipeline: rate limiter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		backend:  backend,
		sessions: sessions,
		limiter:  limiter,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// generate runs one rate-limited backend call and records actual usage on
// success. A *ratelimit.RateLimitError propagates; backend errors are
// returned for the caller's fallback path.
func (p *Pipeline) generate(ctx context.Context, estimate int, req genai.Request) (*genai.Result, error) {
	if err := p.limiter.Check(ctx, estimate); err != nil {
		return nil, err
	}
	result, err := p.backend.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	p.limiter.Record(ctx, result.Usage)
	return result, nil
}

// GenerateTopics assigns exactly one topic per participant, writing the map
// and the chosen style back onto the session record. On backend failure the
// whole list comes from shuffled fallback topics; on a short response the
// remainder is padded from them. Both degradations set FromFallback.
//
// Not transactional: a crash between generation and persistence loses the
// topics, and the caller retries the whole step. Regeneration overwrites.
func (p *Pipeline) GenerateTopics(ctx context.Context, sessionID string, style session.SpeechStyle) (*TopicsResult, error) {
	sess, err := p.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	n := len(sess.Participants)
	topics, fromFallback, err := p.topicsFromBackend(ctx, n, style)
	if err != nil {
		return nil, err
	}

	if len(topics) < n {
		fromFallback = true
		topics = append(topics, shuffledFallbackTopics(n-len(topics))...)
	}
	topics = topics[:n]

	topicsMap := make(map[string]string, n)
	for i, participant := range sess.Participants {
		topicsMap[participant.ID] = topics[i]
	}
	sess.Topics = topicsMap
	sess.SpeechStyle = style

	if err := p.sessions.Put(ctx, sess); err != nil {
		return nil, err
	}

	return &TopicsResult{Topics: topics, FromFallback: fromFallback}, nil
}

// topicsFromBackend returns up to n non-empty topics, or nil with
// fromFallback=true when the backend call or its output is unusable.
// Only a rate-limit rejection propagates as an error.
func (p *Pipeline) topicsFromBackend(ctx context.Context, n int, style session.SpeechStyle) (topics []string, fromFallback bool, err error) {
	result, err := p.generate(ctx, estTopicsTokens, genai.Request{
		Prompt:      topicsPrompt(n, style),
		Temperature: topicsTemperature,
		MaxTokens:   topicsMaxTokens,
		JSONOutput:  true,
	})
	if err != nil {
		var rle *ratelimit.RateLimitError
		if errors.As(err, &rle) {
			return nil, false, err
		}
		p.logger.Warn("topic generation failed, using fallback", zap.Error(err))
		return nil, true, nil
	}

	var parsed struct {
		Topics []string `json:"topics"`
	}
	if err := json.Unmarshal([]byte(result.Text), &parsed); err != nil || parsed.Topics == nil {
		p.logger.Warn("topic response unparseable, using fallback", zap.Error(err))
		return nil, true, nil
	}

	for _, t := range parsed.Topics {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
		if len(topics) == n {
			break
		}
	}
	return topics, false, nil
}

// GenerateKeywords produces association terms for the participant's topic
// and persists them. Any previously generated speech example is cleared:
// a speech derived from different keywords is no longer valid.
func (p *Pipeline) GenerateKeywords(ctx context.Context, sessionID, participantID string) (*KeywordsResult, error) {
	sess, err := p.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Participant(participantID) == nil {
		return nil, ErrParticipantNotFound
	}
	topic, ok := sess.Topic(participantID)
	if !ok {
		return nil, ErrTopicNotFound
	}

	keywords, fromFallback, err := p.keywordsFromBackend(ctx, topic)
	if err != nil {
		return nil, err
	}

	now := p.now()
	content := &session.ParticipantContent{
		Keywords:            keywords,
		KeywordsGeneratedAt: &now,
	}
	if err := p.sessions.PutContent(ctx, sessionID, participantID, content); err != nil {
		return nil, err
	}

	return &KeywordsResult{Keywords: keywords, FromFallback: fromFallback}, nil
}

func (p *Pipeline) keywordsFromBackend(ctx context.Context, topic string) (keywords string, fromFallback bool, err error) {
	result, err := p.generate(ctx, estKeywordsTokens, genai.Request{
		Prompt:      keywordsPrompt(topic),
		Temperature: keywordsTemperature,
		MaxTokens:   keywordsMaxTokens,
		JSONOutput:  true,
	})
	if err != nil {
		var rle *ratelimit.RateLimitError
		if errors.As(err, &rle) {
			return "", false, err
		}
		p.logger.Warn("keyword generation failed, using fallback",
			zap.String("topic", topic), zap.Error(err))
		return fallbackKeywordsFor(topic), true, nil
	}

	var parsed struct {
		Keywords string `json:"keywords"`
	}
	// A returned string is accepted as-is if non-empty; the requested
	// term count is a request to the backend, not enforced here.
	if err := json.Unmarshal([]byte(result.Text), &parsed); err != nil || parsed.Keywords == "" {
		p.logger.Warn("keyword response unparseable, using fallback",
			zap.String("topic", topic), zap.Error(err))
		return fallbackKeywordsFor(topic), true, nil
	}
	return parsed.Keywords, false, nil
}

func fallbackKeywordsFor(topic string) string {
	if kw, ok := fallbackKeywords[topic]; ok {
		return kw
	}
	return genericKeywords
}

// GenerateSpeech produces a structured speech draft for the participant,
// requiring keywords to already exist. The draft is persisted onto the
// participant content, overwriting prior speech fields.
func (p *Pipeline) GenerateSpeech(ctx context.Context, sessionID, participantID string) (*SpeechResult, error) {
	sess, err := p.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Participant(participantID) == nil {
		return nil, ErrParticipantNotFound
	}
	topic, ok := sess.Topic(participantID)
	if !ok {
		return nil, ErrTopicNotFound
	}

	content, err := p.sessions.GetContent(ctx, sessionID, participantID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrKeywordsNotFound
		}
		return nil, err
	}
	if content.Keywords == "" {
		return nil, ErrKeywordsNotFound
	}

	duration := sess.SpeechDuration
	if duration == 0 {
		duration = session.DefaultSpeechDuration
	}

	speech, fromFallback, err := p.speechFromBackend(ctx, topic, content.Keywords, sess.SpeechStyle, duration)
	if err != nil {
		return nil, err
	}

	now := p.now()
	content.SpeechExample = speech
	content.SpeechGeneratedAt = &now
	if err := p.sessions.PutContent(ctx, sessionID, participantID, content); err != nil {
		return nil, err
	}

	return &SpeechResult{Speech: speech, FromFallback: fromFallback}, nil
}

func (p *Pipeline) speechFromBackend(ctx context.Context, topic, keywords string, style session.SpeechStyle, duration int) (*session.SpeechExample, bool, error) {
	result, err := p.generate(ctx, estSpeechTokens, genai.Request{
		Prompt:      speechPrompt(topic, keywords, style, duration),
		Temperature: speechTemperature,
		MaxTokens:   speechMaxTokens,
		JSONOutput:  true,
	})
	if err != nil {
		var rle *ratelimit.RateLimitError
		if errors.As(err, &rle) {
			return nil, false, err
		}
		p.logger.Warn("speech generation failed, using fallback",
			zap.String("topic", topic), zap.Error(err))
		return fallbackSpeech(topic, keywords), true, nil
	}

	var parsed session.SpeechExample
	if err := json.Unmarshal([]byte(result.Text), &parsed); err != nil || !validSpeech(&parsed) {
		p.logger.Warn("speech response unparseable, using fallback",
			zap.String("topic", topic), zap.Error(err))
		return fallbackSpeech(topic, keywords), true, nil
	}
	return &parsed, false, nil
}

// validSpeech checks the structural contract of a generated draft:
// non-empty opening and closing, at least one body paragraph, at least one
// tip. Length targets are soft and never enforced.
func validSpeech(s *session.SpeechExample) bool {
	if s.Speech.Opening == "" || s.Speech.Closing == "" {
		return false
	}
	if len(s.Speech.Body) == 0 || len(s.Tips) == 0 {
		return false
	}
	for _, para := range s.Speech.Body {
		if para == "" {
			return false
		}
	}
	return true
}

// GenerateSpeechFromAssociations produces a speech draft for a bare topic,
// with an association chain as loose inspiration. Nothing is read from or
// written to the session store; the companion stage to GenerateAssociations.
func (p *Pipeline) GenerateSpeechFromAssociations(ctx context.Context, topic, associations string) (*SpeechResult, error) {
	result, err := p.generate(ctx, estQuickSpeechTokens, genai.Request{
		Prompt:      quickSpeechPrompt(topic, associations),
		Temperature: quickSpeechTemperature,
		MaxTokens:   quickSpeechMaxTokens,
		JSONOutput:  true,
	})
	if err != nil {
		var rle *ratelimit.RateLimitError
		if errors.As(err, &rle) {
			return nil, err
		}
		p.logger.Warn("quick speech generation failed, using fallback",
			zap.String("topic", topic), zap.Error(err))
		return &SpeechResult{Speech: fallbackSpeech(topic, ""), FromFallback: true}, nil
	}

	var parsed session.SpeechExample
	if err := json.Unmarshal([]byte(result.Text), &parsed); err != nil || !validSpeech(&parsed) {
		p.logger.Warn("quick speech response unparseable, using fallback",
			zap.String("topic", topic), zap.Error(err))
		return &SpeechResult{Speech: fallbackSpeech(topic, ""), FromFallback: true}, nil
	}

	return &SpeechResult{Speech: &parsed}, nil
}

// GenerateAssociations produces an eight-term association chain for a bare
// topic, without touching any session state.
func (p *Pipeline) GenerateAssociations(ctx context.Context, topic string) (*AssociationsResult, error) {
	result, err := p.generate(ctx, estAssociationsTokens, genai.Request{
		Prompt:      associationsPrompt(topic),
		Temperature: associationsTemperature,
		MaxTokens:   associationsMaxTokens,
		JSONOutput:  true,
	})
	if err != nil {
		var rle *ratelimit.RateLimitError
		if errors.As(err, &rle) {
			return nil, err
		}
		p.logger.Warn("association generation failed, using fallback",
			zap.String("topic", topic), zap.Error(err))
		return &AssociationsResult{Associations: fallbackAssociations(topic), FromFallback: true}, nil
	}

	var parsed struct {
		Associations string `json:"associations"`
	}
	if err := json.Unmarshal([]byte(result.Text), &parsed); err != nil ||
		!strings.Contains(parsed.Associations, "→") ||
		!strings.HasPrefix(parsed.Associations, topic) {
		p.logger.Warn("association response unparseable, using fallback",
			zap.String("topic", topic))
		return &AssociationsResult{Associations: fallbackAssociations(topic), FromFallback: true}, nil
	}

	return &AssociationsResult{Associations: parsed.Associations}, nil
}
