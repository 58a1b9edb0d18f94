package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"uxcellence/services"
)

type QuestionHandler struct {
	engine *services.Engine
}

func NewQuestionHandler(engine *services.Engine) *QuestionHandler {
	return &QuestionHandler{engine: engine}
}

func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	var req services.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": string(services.KindValidation)})
		return
	}

	question, err := h.engine.CreateQuestion(c.Request.Context(), req.Question, req.Description, req.Round)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, question)
}

func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	if err := h.engine.DeleteQuestion(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Question deleted successfully"})
}
