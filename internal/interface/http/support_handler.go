package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/bank-support/internal/domain/support"
)

type registerRequest struct {
	UserID *int64       `json:"userId" binding:"required"`
	Role   support.Role `json:"role"`
}

type messageRequest struct {
	Text string `json:"text"`
}

type rateRequest struct {
	Score int `json:"score"`
}

// Register creates or resets a dialogue session.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	if req.Role == "" {
		req.Role = support.RoleUser
	}
	session, err := h.supportSvc.Register(c.Request.Context(), *req.UserID, req.Role)
	if err != nil {
		abortWithError(c, domainError(err))
		return
	}
	c.JSON(http.StatusOK, session)
}

// Message hands one user message to the orchestrator.
func (h *Handler) Message(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	reply, err := h.supportSvc.HandleMessage(c.Request.Context(), userID, req.Text)
	if err != nil {
		abortWithError(c, domainError(err))
		return
	}
	if reply.Kind == support.ReplyUnavailable {
		h.logger.Warn("reply degraded", "userID", userID, "code", reply.Code, "error", reply.Cause)
	}
	c.JSON(http.StatusOK, reply)
}

// CallOperator opens a handoff ticket.
func (h *Handler) CallOperator(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	ticket, err := h.supportSvc.CallOperator(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, domainError(err))
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

// EndDialog returns the user to the bot.
func (h *Handler) EndDialog(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	session, err := h.supportSvc.EndDialog(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, domainError(err))
		return
	}
	c.JSON(http.StatusOK, session)
}

// Rate stores a grade of the last answer.
func (h *Handler) Rate(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	var req rateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	rating, err := h.supportSvc.Rate(c.Request.Context(), userID, req.Score)
	if err != nil {
		abortWithError(c, domainError(err))
		return
	}
	c.JSON(http.StatusCreated, rating)
}

// Tickets lists recent handoff tickets.
func (h *Handler) Tickets(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "limit must be a positive integer", err))
			return
		}
		limit = parsed
	}
	tickets, err := h.supportSvc.Tickets(c.Request.Context(), limit)
	if err != nil {
		abortWithError(c, domainError(err))
		return
	}
	if tickets == nil {
		tickets = []support.Ticket{}
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

// RatingSummary aggregates stored ratings.
func (h *Handler) RatingSummary(c *gin.Context) {
	summary, err := h.supportSvc.RatingSummary(c.Request.Context())
	if err != nil {
		abortWithError(c, domainError(err))
		return
	}
	c.JSON(http.StatusOK, summary)
}
