package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/speechloop/speechd/internal/pipeline"
	"github.com/speechloop/speechd/internal/ratelimit"
	"github.com/speechloop/speechd/internal/session"
)

// ErrorResponse is the JSON error body for all failing routes.
type ErrorResponse struct {
	Error   string `json:"error"`
	ResetIn int    `json:"resetIn,omitempty"`
	Window  string `json:"window,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// CreateSessionRequest is the request body for POST /api/sessions.
// Participants is either an array of names or a bare count.
type CreateSessionRequest struct {
	Participants   json.RawMessage `json:"participants"`
	SpeechStyle    string          `json:"speechStyle"`
	SpeechDuration int             `json:"speechDuration"`
}

// CreateSessionResponse is the response body for POST /api/sessions.
type CreateSessionResponse struct {
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"redirectUrl"`
}

// SessionResponse is the response body for GET /api/sessions/:sessionId.
type SessionResponse struct {
	Session *session.Session `json:"session"`
}

// ContentResponse is the response body for the participant content route.
type ContentResponse struct {
	Content *session.ParticipantContent `json:"content"`
}

// TopicsRequest is the request body for POST /api/generate/topics.
type TopicsRequest struct {
	SessionID   string `json:"sessionId"`
	SpeechStyle string `json:"speechStyle"`
}

// TopicsResponse is the response body for POST /api/generate/topics.
type TopicsResponse struct {
	Topics      []string `json:"topics"`
	IsFromCache bool     `json:"isFromCache,omitempty"`
}

// ParticipantRequest addresses one participant in a session.
type ParticipantRequest struct {
	SessionID     string `json:"sessionId"`
	ParticipantID string `json:"participantId"`
}

// KeywordsResponse is the response body for POST /api/generate/keywords.
type KeywordsResponse struct {
	Keywords string `json:"keywords"`
}

// SpeechResponse is the response body for POST /api/generate/speech.
type SpeechResponse struct {
	Speech *session.SpeechExample `json:"speech"`
}

// QuickSpeechRequest is the request body for POST /api/generate/speech-example.
type QuickSpeechRequest struct {
	Topic        string `json:"topic"`
	Associations string `json:"associations"`
}

// QuickSpeechResponse is the response body for POST /api/generate/speech-example.
// The draft fields are flattened to the top level, unlike the per-participant
// speech route.
type QuickSpeechResponse struct {
	session.SpeechExample
	IsFromCache bool `json:"isFromCache,omitempty"`
}

// AssociationsRequest is the request body for POST /api/generate/associations.
type AssociationsRequest struct {
	Topic string `json:"topic"`
}

// AssociationsResponse is the response body for POST /api/generate/associations.
type AssociationsResponse struct {
	Associations string `json:"associations"`
	IsFromCache  bool   `json:"isFromCache,omitempty"`
}

// QRRequest is the request body for POST /api/qr.
type QRRequest struct {
	URL string `json:"url"`
}

// QRResponse is the response body for POST /api/qr.
type QRResponse struct {
	QRCode string `json:"qrCode"`
}

// LegacyTopic is the enhanced topic shape accepted by the legacy create route.
type LegacyTopic struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// LegacyCreateRequest is the request body for POST /api/sessions/create.
type LegacyCreateRequest struct {
	Topics       []LegacyTopic `json:"topics"`
	Participants int           `json:"participants"`
}

// LegacyCreateResponse is the response body for POST /api/sessions/create.
type LegacyCreateResponse struct {
	SessionID    string                `json:"sessionId"`
	URL          string                `json:"url"`
	Participants []session.Participant `json:"participants"`
}

func (s *Server) handleHealth(c echo.Context) error {
	storeStatus := "ok"
	if !s.sessions.Available(c.Request().Context()) {
		storeStatus = "unavailable"
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Store: storeStatus})
}

func (s *Server) handleCreateSession(c echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid session create request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "リクエストが無効です"})
	}

	spec := session.CreateSpec{
		Style:    session.SpeechStyle(req.SpeechStyle),
		Duration: req.SpeechDuration,
	}

	// participants is either ["name", ...] or a count
	var names []string
	if err := json.Unmarshal(req.Participants, &names); err == nil {
		spec.Names = names
	} else {
		var count int
		if err := json.Unmarshal(req.Participants, &count); err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "リクエストが無効です"})
		}
		spec.Count = count
	}

	if err := spec.Validate(); err != nil {
		s.logger.Warn("invalid session spec", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "リクエストが無効です"})
	}

	if !s.sessions.Available(c.Request().Context()) {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "セッションストレージが利用できません"})
	}

	sess, err := s.sessions.Create(c.Request().Context(), spec)
	if err != nil {
		s.logger.Error("session creation failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "セッションの作成に失敗しました"})
	}

	SessionsCreated.Inc()

	return c.JSON(http.StatusOK, CreateSessionResponse{
		SessionID:   sess.ID,
		RedirectURL: s.share.SessionPath(sess.ID),
	})
}

func (s *Server) handleGetSession(c echo.Context) error {
	if !s.sessions.Available(c.Request().Context()) {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "セッションストレージが利用できません"})
	}

	sess, err := s.sessions.Get(c.Request().Context(), c.Param("sessionId"))
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: "セッションが見つかりません"})
		case errors.Is(err, session.ErrExpired):
			return c.JSON(http.StatusGone, ErrorResponse{Error: "セッションの有効期限が切れています"})
		default:
			s.logger.Error("session fetch failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "セッションの取得に失敗しました"})
		}
	}

	return c.JSON(http.StatusOK, SessionResponse{Session: sess})
}

func (s *Server) handleGetParticipantContent(c echo.Context) error {
	if !s.sessions.Available(c.Request().Context()) {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "セッションストレージが利用できません"})
	}

	content, err := s.sessions.GetContent(c.Request().Context(), c.Param("sessionId"), c.Param("participantId"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			// Absent content is not an error: the participant simply has
			// not generated keywords yet.
			return c.JSON(http.StatusOK, ContentResponse{Content: nil})
		}
		s.logger.Error("content fetch failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "コンテンツの取得に失敗しました"})
	}

	return c.JSON(http.StatusOK, ContentResponse{Content: content})
}

func (s *Server) handleCreateSessionLegacy(c echo.Context) error {
	var req LegacyCreateRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid legacy create request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "リクエストが無効です"})
	}

	spec := session.CreateSpec{Count: req.Participants}
	if err := spec.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "リクエストが無効です"})
	}

	if !s.sessions.Available(c.Request().Context()) {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "セッションストレージが利用できません"})
	}

	sess, err := s.sessions.Create(c.Request().Context(), spec)
	if err != nil {
		s.logger.Error("session creation failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "セッションの作成に失敗しました"})
	}

	// Adapt pre-supplied topics onto the canonical participant→topic map.
	for i, p := range sess.Participants {
		if i < len(req.Topics) && req.Topics[i].Text != "" {
			sess.Topics[p.ID] = req.Topics[i].Text
		}
	}
	if len(sess.Topics) > 0 {
		if err := s.sessions.Put(c.Request().Context(), sess); err != nil {
			s.logger.Error("session update failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "セッションの作成に失敗しました"})
		}
	}

	SessionsCreated.Inc()

	return c.JSON(http.StatusOK, LegacyCreateResponse{
		SessionID:    sess.ID,
		URL:          s.share.SessionURL(sess.ID),
		Participants: sess.Participants,
	})
}

func (s *Server) handleGenerateTopics(c echo.Context) error {
	var req TopicsRequest
	if err := c.Bind(&req); err != nil || req.SessionID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "リクエストが無効です"})
	}

	style := session.SpeechStyle(req.SpeechStyle)
	if !style.Valid() {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "リクエストが無効です"})
	}

	if !s.sessions.Available(c.Request().Context()) {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "セッションストレージが利用できません"})
	}

	result, err := s.pipeline.GenerateTopics(c.Request().Context(), req.SessionID, style)
	if err != nil {
		return s.generationError(c, err, "お題の生成に失敗しました")
	}

	recordGeneration("topics", result.FromFallback)

	return c.JSON(http.StatusOK, TopicsResponse{
		Topics:      result.Topics,
		IsFromCache: result.FromFallback,
	})
}

func (s *Server) handleGenerateKeywords(c echo.Context) error {
	var req ParticipantRequest
	if err := c.Bind(&req); err != nil || req.SessionID == "" || req.ParticipantID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "リクエストが無効です"})
	}

	if !s.sessions.Available(c.Request().Context()) {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "セッションストレージが利用できません"})
	}

	result, err := s.pipeline.GenerateKeywords(c.Request().Context(), req.SessionID, req.ParticipantID)
	if err != nil {
		return s.generationError(c, err, "関連キーワードの生成に失敗しました")
	}

	recordGeneration("keywords", result.FromFallback)

	return c.JSON(http.StatusOK, KeywordsResponse{Keywords: result.Keywords})
}

func (s *Server) handleGenerateSpeech(c echo.Context) error {
	var req ParticipantRequest
	if err := c.Bind(&req); err != nil || req.SessionID == "" || req.ParticipantID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "リクエストが無効です"})
	}

	if !s.sessions.Available(c.Request().Context()) {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "セッションストレージが利用できません"})
	}

	result, err := s.pipeline.GenerateSpeech(c.Request().Context(), req.SessionID, req.ParticipantID)
	if err != nil {
		return s.generationError(c, err, "スピーチ例の生成に失敗しました")
	}

	recordGeneration("speech", result.FromFallback)

	return c.JSON(http.StatusOK, SpeechResponse{Speech: result.Speech})
}

func (s *Server) handleGenerateQuickSpeech(c echo.Context) error {
	var req QuickSpeechRequest
	if err := c.Bind(&req); err != nil || req.Topic == "" || req.Associations == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "お題と連想ワードを指定してください"})
	}

	if !s.sessions.Available(c.Request().Context()) {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "セッションストレージが利用できません"})
	}

	result, err := s.pipeline.GenerateSpeechFromAssociations(c.Request().Context(), req.Topic, req.Associations)
	if err != nil {
		return s.generationError(c, err, "スピーチの生成に失敗しました")
	}

	recordGeneration("speech_example", result.FromFallback)

	return c.JSON(http.StatusOK, QuickSpeechResponse{
		SpeechExample: *result.Speech,
		IsFromCache:   result.FromFallback,
	})
}

func (s *Server) handleGenerateAssociations(c echo.Context) error {
	var req AssociationsRequest
	if err := c.Bind(&req); err != nil || req.Topic == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "お題を指定してください"})
	}

	if !s.sessions.Available(c.Request().Context()) {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "セッションストレージが利用できません"})
	}

	result, err := s.pipeline.GenerateAssociations(c.Request().Context(), req.Topic)
	if err != nil {
		return s.generationError(c, err, "連想ワードの生成に失敗しました")
	}

	recordGeneration("associations", result.FromFallback)

	return c.JSON(http.StatusOK, AssociationsResponse{
		Associations: result.Associations,
		IsFromCache:  result.FromFallback,
	})
}

func (s *Server) handleQR(c echo.Context) error {
	var req QRRequest
	if err := c.Bind(&req); err != nil || req.URL == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "URLが必要です"})
	}

	dataURL, err := s.share.QRDataURL(req.URL)
	if err != nil {
		s.logger.Error("qr generation failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "QRコードの生成に失敗しました"})
	}

	return c.JSON(http.StatusOK, QRResponse{QRCode: dataURL})
}

// generationError maps pipeline errors to HTTP responses. fallback is
// the Japanese message for unexpected failures.
func (s *Server) generationError(c echo.Context, err error, fallback string) error {
	var rle *ratelimit.RateLimitError
	switch {
	case errors.As(err, &rle):
		RateLimitRejections.WithLabelValues(rle.Window).Inc()
		return c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error:   rle.Error(),
			ResetIn: int(rle.ResetIn.Seconds()),
			Window:  rle.Window,
		})
	case errors.Is(err, session.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "セッションが見つかりません"})
	case errors.Is(err, session.ErrExpired):
		return c.JSON(http.StatusGone, ErrorResponse{Error: "セッションの有効期限が切れています"})
	case errors.Is(err, pipeline.ErrParticipantNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "参加者が見つかりません"})
	case errors.Is(err, pipeline.ErrTopicNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "お題が見つかりません"})
	case errors.Is(err, pipeline.ErrKeywordsNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "関連キーワードが見つかりません"})
	default:
		s.logger.Error("generation failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: fallback})
	}
}
