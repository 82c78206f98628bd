package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	accessKey       = "access"
	requestIDHeader = "X-Request-ID"
)

// AuthMiddleware valida o bearer token e anexa a credencial do chamador ao contexto
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, appErr := bearerToken(c.GetHeader("Authorization"))
		if appErr != nil {
			c.AbortWithStatusJSON(appErr.Status, Envelope{Success: false, Error: appErr.Message})
			return
		}

		user, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			appErr := unauthorizedStatus(err)
			zap.L().Warn("authentication failed", zap.Error(err), zap.String("url", c.Request.URL.Path))
			c.AbortWithStatusJSON(appErr.Status, Envelope{Success: false, Error: appErr.Message})
			return
		}

		c.Set(accessKey, Access{UserID: user.ID})
		c.Next()
	}
}

// accessFrom retorna a credencial do chamador; vazia significa credencial do serviço
func accessFrom(c *gin.Context) Access {
	if v, ok := c.Get(accessKey); ok {
		if access, ok := v.(Access); ok {
			return access
		}
	}
	return Access{}
}

// RequestLogger registra uma linha estruturada por requisição ao final dela.
// Reaproveita o X-Request-ID recebido ou gera um novo.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		url := c.Request.URL.String()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		zap.L().Info("http_request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("url", url),
			zap.Int("status", c.Writer.Status()),
			zap.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
			zap.String("ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		)
	}
}
