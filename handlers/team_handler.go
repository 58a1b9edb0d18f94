package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"uxcellence/services"
)

type TeamHandler struct {
	engine *services.Engine
}

func NewTeamHandler(engine *services.Engine) *TeamHandler {
	return &TeamHandler{engine: engine}
}

type marksRequest struct {
	Marks  *int   `json:"marks" binding:"omitempty,min=0,max=100"`
	Reason string `json:"reason"`
}

func (h *TeamHandler) CreateTeam(c *gin.Context) {
	var req services.CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": string(services.KindValidation)})
		return
	}

	team, err := h.engine.CreateTeam(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, team)
}

func (h *TeamHandler) DeleteTeam(c *gin.Context) {
	if err := h.engine.DeleteTeam(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Team deleted successfully"})
}

func (h *TeamHandler) RecordMarks(c *gin.Context) {
	var req marksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": string(services.KindValidation)})
		return
	}

	if err := h.engine.RecordMarks(c.Request.Context(), c.Param("id"), req.Marks, req.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Marks recorded"})
}
