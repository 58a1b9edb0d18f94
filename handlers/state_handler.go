package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"uxcellence/middleware"
	"uxcellence/models"
	"uxcellence/services"
)

// StateHandler serves the whole-collection state endpoints used by the
// dashboard clients.
type StateHandler struct {
	engine *services.Engine
}

func NewStateHandler(engine *services.Engine) *StateHandler {
	return &StateHandler{engine: engine}
}

type currentRoundRequest struct {
	CurrentRound int `json:"currentRound" binding:"required,min=1"`
}

func (h *StateHandler) GetState(c *gin.Context) {
	state, err := h.engine.State(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// GetSessionState hides question descriptions from participants.
func (h *StateHandler) GetSessionState(c *gin.Context) {
	state, err := h.engine.State(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if session := middleware.SessionFrom(c); session == nil || !session.IsAdmin() {
		state = state.WithoutDescriptions()
	}
	c.JSON(http.StatusOK, state)
}

func (h *StateHandler) ReplaceTeams(c *gin.Context) {
	var teams []models.Team
	if err := c.ShouldBindJSON(&teams); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": string(services.KindValidation)})
		return
	}
	if err := h.engine.ReplaceTeams(c.Request.Context(), teams); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *StateHandler) ReplaceQuestions(c *gin.Context) {
	var questions []models.Question
	if err := c.ShouldBindJSON(&questions); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": string(services.KindValidation)})
		return
	}
	if err := h.engine.ReplaceQuestions(c.Request.Context(), questions); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *StateHandler) SetCurrentRound(c *gin.Context) {
	var req currentRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": string(services.KindValidation)})
		return
	}
	if err := h.engine.SetCurrentRound(c.Request.Context(), req.CurrentRound); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *StateHandler) ReplaceRounds(c *gin.Context) {
	var rounds []models.Round
	if err := c.ShouldBindJSON(&rounds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": string(services.KindValidation)})
		return
	}
	if err := h.engine.ReplaceRounds(c.Request.Context(), rounds); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
