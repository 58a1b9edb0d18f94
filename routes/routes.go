package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"uxcellence/handlers"
	"uxcellence/middleware"
	"uxcellence/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Handlers struct {
	State    *handlers.StateHandler
	Auth     *handlers.AuthHandler
	Team     *handlers.TeamHandler
	Question *handlers.QuestionHandler
	Round    *handlers.RoundHandler
	Game     *handlers.GameHandler
}

func SetupRoutes(
	router *gin.Engine,
	h Handlers,
	hub *services.Hub,
	sessions *services.SessionService,
	apiKey string,
) {
	// Whole-collection state endpoints behind the shared API key
	state := router.Group("/", middleware.APIKey(apiKey))
	{
		state.GET("/state", h.State.GetState)
		state.POST("/teams", h.State.ReplaceTeams)
		state.POST("/questions", h.State.ReplaceQuestions)
		state.POST("/currentRound", h.State.SetCurrentRound)
		state.POST("/rounds", h.State.ReplaceRounds)
	}

	api := router.Group("/api")
	{
		api.POST("/auth/login", h.Auth.Login)

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(sessions))
		{
			protected.GET("/me", h.Auth.Me)
			protected.GET("/state", h.State.GetSessionState)
			protected.POST("/spin", middleware.RequireParticipant(), h.Game.Spin)
			protected.GET("/rounds/:number/countdown", h.Game.CountdownStatus)
			protected.GET("/rounds/:number/status", h.Round.Status)

			admin := protected.Group("/")
			admin.Use(middleware.RequireAdmin())
			{
				admin.POST("/teams", h.Team.CreateTeam)
				admin.DELETE("/teams/:id", h.Team.DeleteTeam)
				admin.PUT("/teams/:id/marks", h.Team.RecordMarks)

				admin.POST("/questions", h.Question.CreateQuestion)
				admin.DELETE("/questions/:id", h.Question.DeleteQuestion)

				admin.POST("/rounds/advance", h.Round.AdvanceRound)
				admin.POST("/rounds/:number/reset", h.Round.ResetRound)
				admin.PUT("/rounds/:number/capacity", h.Round.UpdateCapacity)
				admin.POST("/rounds/:number/countdown/start", h.Game.StartCountdown)
				admin.POST("/rounds/:number/countdown/stop", h.Game.StopCountdown)
				admin.GET("/rounds/:number/spins", h.Round.Spins)
				admin.POST("/reset", h.Round.ResetAll)
				admin.GET("/assignments", h.Round.Assignments)
				admin.GET("/export", h.Round.Export)
			}
		}
	}

	// WebSocket endpoint for push notifications; token is passed as ?token=
	router.GET("/ws", middleware.AuthMiddleware(sessions), func(c *gin.Context) {
		session := middleware.SessionFrom(c)

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Str("team_id", session.TeamID).Msg("websocket upgrade failed")
			return
		}

		log.Info().Str("role", session.Role).Str("team_id", session.TeamID).Msg("websocket connected")
		hub.RegisterClient(conn, *session)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
