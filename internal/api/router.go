package api

import (
	"github.com/gin-gonic/gin"

	"alert-service/internal/config"
	"alert-service/internal/hub"
	"alert-service/internal/logging"
)

func NewRouter(logger *logging.Logger, cfg config.Config, h *Handler, eventHub *hub.Hub) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	api := r.Group(cfg.API.BasePath)
	{
		// Alerts
		api.POST("/alerts", h.CreateAlert)
		api.GET("/alerts/nearby", h.FindNearbyAlerts)
		api.GET("/alerts/:id", h.GetAlert)
		api.PATCH("/alerts/:id/status", h.UpdateAlertStatus)
		api.GET("/alerts/user/:user_id", h.GetAlertsByRequester)

		// OTP
		api.POST("/otp", h.IssueOTP)
		api.POST("/otp/verify", h.VerifyOTP)
		api.POST("/otp/resend", h.ResendOTP)

		// Emergency contacts
		api.POST("/contacts", h.CreateContact)
		api.GET("/contacts/user/:user_id", h.GetContactsByOwner)
		api.PUT("/contacts/:id", h.UpdateContact)
		api.DELETE("/contacts/:id", h.DeleteContact)
	}

	r.GET("/ws", hub.ServeWS(eventHub, logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
