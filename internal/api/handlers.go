// handlers.go — обработчики REST-маршрутов: оценки, цикл одобрения,
// рейтинги, активности, дашборд, токены и WebSocket.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"scorebot/internal/auth"
	"scorebot/internal/common"
	"scorebot/internal/features/activities"
	"scorebot/internal/features/rankings"
	"scorebot/internal/features/scores"
	"scorebot/internal/ws"
)

// --- DTO ---

type scoreResponse struct {
	ID              int64      `json:"id"`
	UserID          *int64     `json:"user_id,omitempty"`
	TeamID          *int64     `json:"team_id,omitempty"`
	ActivityID      int64      `json:"activity_id"`
	SubActivity     string     `json:"sub_activity,omitempty"`
	Value           float64    `json:"value"`
	MaxPossible     float64    `json:"max_possible"`
	NormalizedScore int        `json:"normalized_score"`
	Context         string     `json:"context"`
	Status          string     `json:"status"`
	AwardedBy       int64      `json:"awarded_by"`
	ChatID          int64      `json:"chat_id"`
	MessageID       *int64     `json:"message_id,omitempty"`
	Comment         string     `json:"comment,omitempty"`
	EvidenceURL     string     `json:"evidence_url,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	ReviewedBy      *int64     `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func toScoreResponse(rec *scores.ScoreRecord) scoreResponse {
	return scoreResponse{
		ID:              rec.ID,
		UserID:          rec.UserID,
		TeamID:          rec.TeamID,
		ActivityID:      rec.ActivityID,
		SubActivity:     rec.SubActivity,
		Value:           rec.Value,
		MaxPossible:     rec.MaxPossible,
		NormalizedScore: rec.NormalizedScore,
		Context:         string(rec.Context),
		Status:          string(rec.Status),
		AwardedBy:       rec.AwardedBy,
		ChatID:          rec.ChatID,
		MessageID:       rec.MessageID,
		Comment:         rec.Comment,
		EvidenceURL:     rec.EvidenceURL,
		RejectionReason: rec.RejectionReason,
		ReviewedBy:      rec.ReviewedBy,
		ReviewedAt:      rec.ReviewedAt,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}
}

func toScoreResponses(recs []*scores.ScoreRecord) []scoreResponse {
	out := make([]scoreResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toScoreResponse(rec))
	}
	return out
}

type activityResponse struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	SubActivities []string  `json:"sub_activities,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

func toActivityResponse(a *activities.Activity) activityResponse {
	return activityResponse{
		ID:            a.ID,
		Name:          a.Name,
		Description:   a.Description,
		SubActivities: a.SubActivities,
		IsActive:      a.IsActive,
		CreatedAt:     a.CreatedAt,
	}
}

// --- Оценки ---

type createScoreRequest struct {
	UserID      *int64  `json:"user_id"`
	TeamID      *int64  `json:"team_id"`
	ActivityID  int64   `json:"activity_id" binding:"required"`
	SubActivity string  `json:"sub_activity"`
	Value       float64 `json:"value" binding:"min=0"`
	MaxPossible float64 `json:"max_possible" binding:"omitempty,min=1"`
	Context     string  `json:"context" binding:"omitempty,oneof=individual team group"`
	Status      string  `json:"status" binding:"omitempty,oneof=pending approved rejected"`
	ChatID      int64   `json:"chat_id" binding:"required"`
	MessageID   *int64  `json:"message_id"`
	Comment     string  `json:"comment"`
	EvidenceURL string  `json:"evidence_url" binding:"omitempty,url"`
}

func (s *Server) handleCreateScore(c *gin.Context) {
	var req createScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	subject := currentSubject(c)
	rec, err := s.engine.Create(c.Request.Context(), scores.CreateRequest{
		UserID:      req.UserID,
		TeamID:      req.TeamID,
		ActivityID:  req.ActivityID,
		SubActivity: req.SubActivity,
		Value:       req.Value,
		MaxPossible: req.MaxPossible,
		Context:     scores.ScoreContext(req.Context),
		Status:      scores.Status(req.Status),
		AwardedBy:   subject.ID,
		ChatID:      req.ChatID,
		MessageID:   req.MessageID,
		Comment:     req.Comment,
		EvidenceURL: req.EvidenceURL,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toScoreResponse(rec))
}

type listScoresQuery struct {
	UserID      *int64 `form:"user_id"`
	TeamID      *int64 `form:"team_id"`
	ActivityID  *int64 `form:"activity_id"`
	SubActivity string `form:"sub_activity"`
	ChatID      *int64 `form:"chat_id"`
	Status      string `form:"status" binding:"omitempty,oneof=pending approved rejected disputed"`
	Context     string `form:"context" binding:"omitempty,oneof=individual team group"`
	Period      string `form:"period" binding:"omitempty,period"`
	Limit       int    `form:"limit" binding:"omitempty,min=1,max=200"`
}

func (s *Server) handleListScores(c *gin.Context) {
	var q listScoresQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeBindError(c, err)
		return
	}

	f := scores.Filter{
		UserID:     q.UserID,
		TeamID:     q.TeamID,
		ActivityID: q.ActivityID,
		ChatID:     q.ChatID,
	}
	if q.SubActivity != "" {
		f.SubActivity = &q.SubActivity
	}
	if q.Status != "" {
		st := scores.Status(q.Status)
		f.Status = &st
	}
	if q.Context != "" {
		sc := scores.ScoreContext(q.Context)
		f.Context = &sc
	}
	if q.Period != "" {
		f.Period = common.Period(q.Period)
	}

	limit := q.Limit
	if limit == 0 {
		limit = s.cfg.ScoreHistoryLimit
	}

	records, err := s.engine.History(c.Request.Context(), f, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scores": toScoreResponses(records), "count": len(records)})
}

func (s *Server) handleGetScore(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	rec, err := s.engine.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toScoreResponse(rec))
}

type updateScoreRequest struct {
	Value       *float64 `json:"value" binding:"omitempty,min=0"`
	MaxPossible *float64 `json:"max_possible" binding:"omitempty,min=1"`
	Comment     *string  `json:"comment"`
	EvidenceURL *string  `json:"evidence_url"`
	Status      *string  `json:"status"`
}

func (s *Server) handleUpdateScore(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	patch := scores.UpdatePatch{
		Value:       req.Value,
		MaxPossible: req.MaxPossible,
		Comment:     req.Comment,
		EvidenceURL: req.EvidenceURL,
	}
	if req.Status != nil {
		st := scores.Status(*req.Status)
		patch.Status = &st
	}

	rec, err := s.engine.Update(c.Request.Context(), id, currentSubject(c).ID, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toScoreResponse(rec))
}

func (s *Server) handleDeleteScore(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.engine.Delete(c.Request.Context(), id, currentSubject(c).ID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Цикл одобрения ---

func (s *Server) handleApprove(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	rec, err := s.engine.Approve(c.Request.Context(), id, currentSubject(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toScoreResponse(rec))
}

type rejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (s *Server) handleReject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	rec, err := s.engine.Reject(c.Request.Context(), id, currentSubject(c).ID, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toScoreResponse(rec))
}

func (s *Server) handleDispute(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	rec, err := s.engine.Dispute(c.Request.Context(), id, currentSubject(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toScoreResponse(rec))
}

// --- Рейтинги ---

type rankingsQuery struct {
	Scope       string `form:"scope" binding:"omitempty,oneof=individual team"`
	Period      string `form:"period" binding:"omitempty,period"`
	ActivityID  *int64 `form:"activity_id"`
	SubActivity string `form:"sub_activity"`
	ChatID      *int64 `form:"chat_id"`
	Limit       int    `form:"limit" binding:"omitempty,min=1"`
	Offset      int    `form:"offset" binding:"omitempty,min=0"`
}

func (s *Server) handleRankings(c *gin.Context) {
	var q rankingsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeBindError(c, err)
		return
	}
	if q.Scope == "" {
		q.Scope = string(rankings.ScopeIndividual)
	}
	if q.Period == "" {
		q.Period = string(common.PeriodAll)
	}

	query := rankings.Query{
		Scope:      rankings.Scope(q.Scope),
		Period:     common.Period(q.Period),
		ActivityID: q.ActivityID,
		ChatID:     q.ChatID,
		Limit:      q.Limit,
		Offset:     q.Offset,
	}
	if q.SubActivity != "" {
		query.SubActivity = &q.SubActivity
	}

	result, err := s.rankings.Get(c.Request.Context(), query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// --- Активности ---

func (s *Server) handleListActivities(c *gin.Context) {
	list, err := s.catalog.ListActive(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]activityResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toActivityResponse(a))
	}
	c.JSON(http.StatusOK, gin.H{"activities": out})
}

type createActivityRequest struct {
	Name          string   `json:"name" binding:"required"`
	Description   string   `json:"description"`
	SubActivities []string `json:"sub_activities"`
}

func (s *Server) handleCreateActivity(c *gin.Context) {
	subject := currentSubject(c)
	if subject.Role != auth.RoleAdmin && !s.cfg.IsGlobalAdmin(subject.ID) {
		writeError(c, common.ErrNotAdmin)
		return
	}

	var req createActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	a, err := s.catalog.CreateActivity(c.Request.Context(), req.Name, req.Description, req.SubActivities, subject.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toActivityResponse(a))
}

// --- Дашборд ---

type dashboardQuery struct {
	TeamID *int64 `form:"team_id"`
	Period string `form:"period" binding:"omitempty,period"`
}

func (s *Server) handleDashboard(c *gin.Context) {
	var q dashboardQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeBindError(c, err)
		return
	}

	ref := scores.SubjectRef{TeamID: q.TeamID}
	if q.TeamID == nil {
		id := currentSubject(c).ID
		ref.UserID = &id
	}
	period := common.Period(q.Period)
	if period == "" {
		period = common.PeriodAll
	}

	summary, err := s.engine.Dashboard(c.Request.Context(), ref, period)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total_score":            summary.TotalScore,
		"total_normalized_score": summary.TotalNormalizedScore,
		"approved_count":         summary.ApprovedCount,
		"pending_count":          summary.PendingCount,
	})
}

// --- Токены ---

// handleIssueToken меняет подписанные initData (или действующий токен)
// на свежий JWT.
func (s *Server) handleIssueToken(c *gin.Context) {
	subject, err := s.resolver.Resolve(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrNoCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "требуется аутентификация"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "учётные данные не прошли проверку"})
		return
	}

	token, err := s.issuer.Issue(subject)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(s.cfg.JWTTTL.Seconds()),
	})
}

// --- Служебные ---

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"ws_clients": s.hub.ClientCount(),
	})
}

// handleWS аутентифицирует по token в query (заголовки из браузерного
// WebSocket недоступны) и подключает клиента к хабу событий.
func (s *Server) handleWS(c *gin.Context) {
	if _, err := s.resolver.Resolve(c.Request); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "требуется аутентификация"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("не удалось апгрейдить соединение: %v", err)
		return
	}
	ws.NewClient(s.hub, conn).Run()
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный id"})
		return 0, false
	}
	return id, true
}
