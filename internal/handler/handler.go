package handler

import (
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"classmark/internal/auth"
	"classmark/internal/checkin"
	"classmark/internal/ledger"
	"classmark/internal/metrics"
	"classmark/internal/model"
	"classmark/internal/roster"
	"classmark/internal/session"
)

// Handler exposes the attendance command surface over HTTP.
type Handler struct {
	roster      *roster.Service
	registry    *session.Registry
	ledger      *ledger.Ledger
	coordinator *checkin.Coordinator

	jwtIssuer    string
	jwtKey       string
	organizerKey string
	accessTTL    time.Duration
}

// New wires a handler over the domain services.
func New(r *roster.Service, reg *session.Registry, l *ledger.Ledger, c *checkin.Coordinator,
	jwtIssuer, jwtKey, organizerKey string, accessTTL time.Duration) *Handler {
	return &Handler{
		roster:       r,
		registry:     reg,
		ledger:       l,
		coordinator:  c,
		jwtIssuer:    jwtIssuer,
		jwtKey:       jwtKey,
		organizerKey: organizerKey,
		accessTTL:    accessTTL,
	}
}

// Register mounts all routes on the engine. Organizer routes sit behind
// bearer auth; the check-in and roster endpoints stay open because the
// session token is the participant's only credential.
func (h *Handler) Register(r *gin.Engine) {
	r.POST("/v1/organizer/login", h.Login)
	r.POST("/v1/checkins", h.SubmitCheckin)
	r.GET("/v1/participants", h.ListParticipants)

	org := r.Group("/v1", auth.OrganizerAuth(h.jwtKey, h.jwtIssuer))
	org.POST("/sessions", h.CreateSession)
	org.GET("/sessions", h.ListSessions)
	org.DELETE("/sessions/:id", h.DeleteSession)
	org.GET("/sessions/:id/attendance", h.Attendance)
	org.GET("/sessions/:id/export", h.Export)
	org.GET("/sessions/:id/qr", h.QRPayload)
	org.PUT("/attendance", h.SetStatus)
}

// ---------- Organizer auth ----------

func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Key string `json:"key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Key), []byte(h.organizerKey)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid organizer key"})
		return
	}
	token, err := auth.Issue("organizer", h.jwtIssuer, h.jwtKey, h.accessTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": token.Value,
		"expires_at":   token.ExpiresAt.Unix(),
	})
}

// ---------- Sessions ----------

func (h *Handler) CreateSession(c *gin.Context) {
	var req struct {
		Subject     string `json:"subject"`
		ScheduledAt string `json:"scheduled_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := h.registry.Create(c.Request.Context(), req.Subject, req.ScheduledAt)
	if err != nil {
		respondError(c, err)
		return
	}
	metrics.ObserveSessionCreated()
	c.JSON(http.StatusCreated, sess)
}

func (h *Handler) ListSessions(c *gin.Context) {
	sessions, err := h.registry.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *Handler) DeleteSession(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.registry.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) QRPayload(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	sess, err := h.registry.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payload": h.coordinator.RenderTarget(sess.Token)})
}

// ---------- Attendance ----------

func (h *Handler) Attendance(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	rows, err := h.ledger.Status(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": rows})
}

func (h *Handler) Export(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	rows, err := h.ledger.ExportRows(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

func (h *Handler) SetStatus(c *gin.Context) {
	var req struct {
		ParticipantID int64  `json:"participant_id" binding:"required"`
		SessionID     int64  `json:"session_id" binding:"required"`
		Status        string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.ledger.SetStatus(c.Request.Context(), req.ParticipantID, req.SessionID, model.Status(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ---------- Check-in ----------

func (h *Handler) SubmitCheckin(c *gin.Context) {
	// The session token travels in the body, not the path, so request logs
	// never carry it.
	var req struct {
		Token         string `json:"token" binding:"required"`
		ParticipantID int64  `json:"participant_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.coordinator.SubmitCheckin(c.Request.Context(), req.Token, req.ParticipantID)
	if err != nil {
		metrics.ObserveCheckin(checkinOutcome(err))
		respondError(c, err)
		return
	}
	metrics.ObserveCheckin(metrics.OutcomeOK)
	c.JSON(http.StatusOK, gin.H{
		"participant":   res.Participant,
		"session_id":    res.Session.ID,
		"subject":       res.Session.Subject,
		"checked_in_at": res.CheckedInAt,
	})
}

func (h *Handler) ListParticipants(c *gin.Context) {
	participants, err := h.roster.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": participants})
}

// ---------- Helpers ----------

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return 0, false
	}
	return id, true
}

// respondError maps expected declines to client statuses; everything else is
// a storage failure.
func respondError(c *gin.Context, err error) {
	switch {
	case model.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrAlreadyCheckedIn):
		c.JSON(http.StatusConflict, gin.H{"error": "already checked in"})
	case errors.Is(err, model.ErrInvalidToken):
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid token"})
	case errors.Is(err, model.ErrUnknownParticipant):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown participant"})
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		log.Printf("storage error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func checkinOutcome(err error) string {
	switch {
	case errors.Is(err, model.ErrAlreadyCheckedIn):
		return metrics.OutcomeAlreadyCheckedIn
	case errors.Is(err, model.ErrInvalidToken):
		return metrics.OutcomeInvalidToken
	case errors.Is(err, model.ErrUnknownParticipant):
		return metrics.OutcomeUnknownParticipant
	default:
		return metrics.OutcomeError
	}
}
