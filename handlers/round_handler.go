package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"uxcellence/services"
)

type RoundHandler struct {
	engine *services.Engine
	gate   *services.RevealGate
}

func NewRoundHandler(engine *services.Engine, gate *services.RevealGate) *RoundHandler {
	return &RoundHandler{engine: engine, gate: gate}
}

type advanceRequest struct {
	TeamIDs []string `json:"teamIds" binding:"required"`
}

type capacityRequest struct {
	MaxTeams *int `json:"maxTeams" binding:"required,min=0"`
}

func (h *RoundHandler) AdvanceRound(c *gin.Context) {
	var req advanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": string(services.KindValidation)})
		return
	}

	next, err := h.engine.AdvanceRound(c.Request.Context(), req.TeamIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currentRound": next})
}

// ResetRound clears the round's assignments and disarms its countdown.
func (h *RoundHandler) ResetRound(c *gin.Context) {
	round, ok := roundParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.engine.ResetRound(ctx, round); err != nil {
		respondError(c, err)
		return
	}
	if _, err := h.gate.Stop(ctx, round); err != nil {
		log.Error().Err(err).Int("round", round).Msg("failed to stop countdown after reset")
	}
	c.JSON(http.StatusOK, gin.H{"message": "Round reset"})
}

func (h *RoundHandler) ResetAll(c *gin.Context) {
	if err := h.engine.ResetAll(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	h.gate.CancelAll()
	c.JSON(http.StatusOK, gin.H{"message": "Game reset", "currentRound": 1})
}

func (h *RoundHandler) UpdateCapacity(c *gin.Context) {
	round, ok := roundParam(c)
	if !ok {
		return
	}
	var req capacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": string(services.KindValidation)})
		return
	}

	if err := h.engine.UpdateRoundCapacity(c.Request.Context(), round, *req.MaxTeams); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"round": round, "maxTeams": *req.MaxTeams})
}

func (h *RoundHandler) Status(c *gin.Context) {
	round, ok := roundParam(c)
	if !ok {
		return
	}
	status, err := h.engine.RoundStatus(c.Request.Context(), round)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Assignments lists bindings for ?round=, defaulting to the current round.
func (h *RoundHandler) Assignments(c *gin.Context) {
	round, ok := roundQuery(c)
	if !ok {
		return
	}
	assignments, err := h.engine.Assignments(c.Request.Context(), round)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, assignments)
}

func (h *RoundHandler) Spins(c *gin.Context) {
	round, ok := roundParam(c)
	if !ok {
		return
	}
	spins, err := h.engine.SpinHistory(c.Request.Context(), round)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, spins)
}

func (h *RoundHandler) Export(c *gin.Context) {
	round, ok := roundQuery(c)
	if !ok {
		return
	}
	format := c.DefaultQuery("format", services.FormatCSV)

	state, err := h.engine.State(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if round == 0 {
		round = state.CurrentRound
	}

	var buf bytes.Buffer
	if err := services.ExportRound(&buf, state, round, format); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"round-%d.%s\"", round, format))
	c.Data(http.StatusOK, services.ExportContentType(format), buf.Bytes())
}

func roundQuery(c *gin.Context) (int, bool) {
	raw := c.Query("round")
	if raw == "" {
		return 0, true
	}
	round, err := strconv.Atoi(raw)
	if err != nil || round < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid round number", "code": string(services.KindValidation)})
		return 0, false
	}
	return round, true
}
