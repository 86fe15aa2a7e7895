package server

import (
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"contract-flow/pkg/apperr"
	"contract-flow/pkg/config"
	"contract-flow/pkg/logging"
	"contract-flow/pkg/models"
)

const (
	headerRequestID = "X-Request-ID"
	headerUserEmail = "X-User-Email"

	sessionLLMKey      = "llm_key"
	sessionDocuSignKey = "docusign_key"

	ctxRequestConfig = "request_config"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(headerRequestID, id)
		c.Set(headerRequestID, id)
		c.Next()
	}
}

// requestLogger puts a logger tagged with the request id into the request
// context and logs each completed request.
func requestLogger(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		log := base.With(zap.String("request_id", c.GetString(headerRequestID)))
		c.Request = c.Request.WithContext(logging.WithLogger(c.Request.Context(), log))

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= 500:
			log.Error("request", fields...)
		case c.Writer.Status() >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// requestConfig derives the configuration for this request from the base
// config and any keys saved in the session.
func requestConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		llmKey, _ := sess.Get(sessionLLMKey).(string)
		dsKey, _ := sess.Get(sessionDocuSignKey).(string)
		c.Set(ctxRequestConfig, cfg.ForRequest(llmKey, dsKey))
		c.Next()
	}
}

func reqConfig(c *gin.Context) config.Request {
	rc, _ := c.MustGet(ctxRequestConfig).(config.Request)
	return rc
}

// currentUser resolves the caller from the X-User-Email header, falling back
// to the configured default user.
func (s *Server) currentUser(c *gin.Context) (*models.User, error) {
	email := strings.TrimSpace(c.GetHeader(headerUserEmail))
	if email == "" {
		email = s.Config.Server.DefaultUserEmail
	}
	if email == "" {
		return nil, apperr.New("UNAUTHORIZED", "No user identified", apperr.ErrUnauthorized)
	}
	return s.Contracts.EnsureUser(c.Request.Context(), email, "")
}

// fail writes the error response for err.
func fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	code, msg := apperr.Public(err)
	if status >= 500 {
		logging.FromContext(c.Request.Context(), nil).Error("request failed", zap.String("code", code), zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}
