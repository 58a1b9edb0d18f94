package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"uxcellence/middleware"
	"uxcellence/services"
)

// GameHandler serves the live actions: spinning and the reveal countdown.
type GameHandler struct {
	engine   *services.Engine
	gate     *services.RevealGate
	sessions *services.SessionService
}

func NewGameHandler(engine *services.Engine, gate *services.RevealGate, sessions *services.SessionService) *GameHandler {
	return &GameHandler{engine: engine, gate: gate, sessions: sessions}
}

func (h *GameHandler) Spin(c *gin.Context) {
	ctx := c.Request.Context()
	session, token, err := h.sessions.Resolve(ctx, middleware.SessionFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if !session.Registered {
		respondError(c, services.ErrNotRegistered)
		return
	}

	question, err := h.engine.Spin(ctx, session.TeamID)
	if err != nil {
		respondError(c, err)
		return
	}

	revealed, err := h.gate.Revealed(ctx, question.Round)
	if err != nil {
		respondError(c, err)
		return
	}
	if !revealed {
		question.Description = ""
	}

	resp := gin.H{"question": question}
	if token != "" {
		resp["token"] = token
	}
	c.JSON(http.StatusOK, resp)
}

func (h *GameHandler) StartCountdown(c *gin.Context) {
	round, ok := roundParam(c)
	if !ok {
		return
	}
	status, err := h.gate.Start(c.Request.Context(), round)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *GameHandler) StopCountdown(c *gin.Context) {
	round, ok := roundParam(c)
	if !ok {
		return
	}
	status, err := h.gate.Stop(c.Request.Context(), round)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *GameHandler) CountdownStatus(c *gin.Context) {
	round, ok := roundParam(c)
	if !ok {
		return
	}
	status, err := h.gate.Status(c.Request.Context(), round)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
