package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"uxcellence/middleware"
	"uxcellence/models"
	"uxcellence/services"
)

type AuthHandler struct {
	sessions *services.SessionService
	engine   *services.Engine
	gate     *services.RevealGate
}

func NewAuthHandler(sessions *services.SessionService, engine *services.Engine, gate *services.RevealGate) *AuthHandler {
	return &AuthHandler{sessions: sessions, engine: engine, gate: gate}
}

type meResponse struct {
	Session   services.Session          `json:"session"`
	Token     string                    `json:"token,omitempty"`
	Team      *models.Team              `json:"team,omitempty"`
	Round     *models.Round             `json:"round,omitempty"`
	Question  *models.Question          `json:"question,omitempty"`
	Countdown *services.CountdownStatus `json:"countdown,omitempty"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": string(services.KindValidation)})
		return
	}

	resp, err := h.sessions.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Me resolves the caller's session and returns their team and assignment.
// The assigned question's description is only included once revealed.
func (h *AuthHandler) Me(c *gin.Context) {
	ctx := c.Request.Context()
	session, token, err := h.sessions.Resolve(ctx, middleware.SessionFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := meResponse{Session: *session, Token: token}
	if !session.Registered || session.IsAdmin() {
		c.JSON(http.StatusOK, resp)
		return
	}

	state, err := h.engine.State(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	team, ok := state.FindTeam(session.TeamID)
	if !ok {
		respondError(c, services.ErrTeamNotFound)
		return
	}
	resp.Team = team
	resp.Round, _ = state.FindRound(team.Round)

	countdown, err := h.gate.Status(ctx, team.Round)
	if err != nil {
		respondError(c, err)
		return
	}
	resp.Countdown = countdown

	if team.AssignedQuestionID != nil {
		if q, ok := state.FindQuestion(*team.AssignedQuestionID); ok {
			question := *q
			if !countdown.Revealed {
				question.Description = ""
			}
			resp.Question = &question
		}
	}
	c.JSON(http.StatusOK, resp)
}
