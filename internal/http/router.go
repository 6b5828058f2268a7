package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"studyspace/internal/domain"
	"studyspace/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	jwtSvc *service.JWTService,
	userH *UserHandler,
	messageH *MessageHandler,
	waitlistH *WaitlistHandler,
	notificationH *NotificationHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	auth := r.Group("/auth")
	auth.POST("/register", userH.Register)
	auth.POST("/login", userH.Login)
	auth.POST("/refresh", userH.RefreshToken)
	auth.POST("/logout", userH.Logout)
	auth.POST("/password-reset/request", userH.RequestPasswordReset)
	auth.POST("/password-reset/confirm", userH.ConfirmPasswordReset)
	auth.GET("/me", JWTAuthMiddleware(jwtSvc), userH.Me)

	authed := r.Group("", JWTAuthMiddleware(jwtSvc))

	messages := authed.Group("/messages")
	messages.POST("/send", messageH.SendMessage)
	messages.GET("/conversations", messageH.ListConversations)
	messages.POST("/conversations/start", messageH.StartConversation)
	messages.GET("/conversations/:id/messages", messageH.ListMessages)
	messages.PUT("/conversations/:id/read", messageH.MarkConversationRead)
	messages.PUT("/:id/read", messageH.MarkMessageRead)
	messages.GET("/unread-count", messageH.UnreadCount)

	waitlist := authed.Group("/waitlist")
	waitlist.POST("", waitlistH.Join)
	waitlist.GET("/me", waitlistH.ListMine)
	waitlist.DELETE("/:id", waitlistH.Leave)

	notifications := authed.Group("/notifications")
	notifications.GET("", notificationH.List)
	notifications.PUT("/:id/read", notificationH.MarkRead)

	authed.GET("/users/:id", userH.GetUser)

	admin := authed.Group("", RequireRole(domain.RoleAdmin, domain.RoleSuperAdmin))
	admin.GET("/users", userH.ListUsers)
	admin.PUT("/cabins/:id/release", waitlistH.ReleaseCabin)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
