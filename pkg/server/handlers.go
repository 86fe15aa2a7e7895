package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"contract-flow/pkg/apperr"
	"contract-flow/pkg/database"
	"contract-flow/pkg/esign"
	"contract-flow/pkg/logging"
	"contract-flow/pkg/signing"
)

func (s *Server) health(c *gin.Context) {
	if err := database.HealthCheck(c.Request.Context(), s.DB, 2*time.Second); err != nil {
		logging.FromContext(c.Request.Context(), s.Logger).Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type settingsRequest struct {
	OpenAIKey   string `json:"openaiKey"`
	DocuSignKey string `json:"docusignKey"`
}

// saveSettings stores key overrides in the caller's session.
func (s *Server) saveSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Invalid("No data provided"))
		return
	}
	sess := sessions.Default(c)
	if req.OpenAIKey != "" {
		sess.Set(sessionLLMKey, req.OpenAIKey)
	}
	if req.DocuSignKey != "" {
		sess.Set(sessionDocuSignKey, req.DocuSignKey)
	}
	if err := sess.Save(); err != nil {
		fail(c, apperr.New("SESSION_ERROR", "Could not save settings", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) docuSignConfig(c *gin.Context) {
	ds := reqConfig(c).DocuSign
	c.JSON(http.StatusOK, gin.H{
		"authUri":      esign.AuthURI(ds.AuthHost),
		"responseType": "code",
		"scopes":       []string{"signature", "impersonation"},
		"clientId":     ds.IntegrationKey,
		"redirectUri":  ds.RedirectURI,
		"consentUrl":   esign.ConsentURL(ds),
	})
}

// upload extracts text from a multipart "file" and returns it under key.
func (s *Server) upload(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit := s.Config.Server.MaxUploadBytes; limit > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		fh, err := c.FormFile("file")
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				fail(c, apperr.Invalid("File is too large"))
				return
			}
			fail(c, apperr.Invalid("No file provided"))
			return
		}
		if fh.Filename == "" {
			fail(c, apperr.Invalid("No file selected"))
			return
		}
		f, err := fh.Open()
		if err != nil {
			fail(c, apperr.New("UPLOAD_FAILED", "Could not read upload", err))
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			fail(c, apperr.New("UPLOAD_FAILED", "Could not read upload", err))
			return
		}

		text, err := s.Extract.Extract(c.Request.Context(), fh.Filename, data)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{key: text})
	}
}

type contentRequest struct {
	Content string `json:"content"`
}

func bindContent(c *gin.Context) (string, bool) {
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Invalid("No content provided"))
		return "", false
	}
	return req.Content, true
}

func (s *Server) analyze(c *gin.Context) {
	content, ok := bindContent(c)
	if !ok {
		return
	}
	sections, err := s.Analysis.Analyze(c.Request.Context(), reqConfig(c), content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sections": sections})
}

func (s *Server) risks(c *gin.Context) {
	content, ok := bindContent(c)
	if !ok {
		return
	}
	report, err := s.Analysis.Risks(c.Request.Context(), reqConfig(c), content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) compliance(c *gin.Context) {
	content, ok := bindContent(c)
	if !ok {
		return
	}
	if content == "" {
		fail(c, apperr.Invalid("No content provided"))
		return
	}
	c.JSON(http.StatusOK, s.Policy.Check(content))
}

func (s *Server) simplify(c *gin.Context) {
	content, ok := bindContent(c)
	if !ok {
		return
	}
	out, err := s.Analysis.Simplify(c.Request.Context(), reqConfig(c), content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type rewriteRequest struct {
	Content      string `json:"content"`
	Instructions string `json:"instructions"`
}

func (s *Server) rewrite(c *gin.Context) {
	var req rewriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Invalid("Missing content or instructions"))
		return
	}
	out, err := s.Analysis.Rewrite(c.Request.Context(), reqConfig(c), req.Content, req.Instructions)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "rewritten": out})
}

type signaturePositionsRequest struct {
	ContractText string `json:"contract_text"`
}

func (s *Server) signaturePositions(c *gin.Context) {
	var req signaturePositionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Invalid("contract_text is required"))
		return
	}
	locs, err := s.Signing.Locations(c.Request.Context(), reqConfig(c), req.ContractText)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "locations": locs})
}

type sendRequest struct {
	Contract         string           `json:"contract"`
	Signers          []signing.Signer `json:"signers"`
	UseAIPositioning bool             `json:"use_ai_positioning"`
	Subject          string           `json:"subject"`
	Status           string           `json:"status"`
	ContractID       string           `json:"contract_id"`
}

func (s *Server) send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Invalid("No JSON data provided"))
		return
	}
	ctx := c.Request.Context()
	res, err := s.Signing.Send(ctx, reqConfig(c), signing.SendRequest{
		Contract:         req.Contract,
		Signers:          req.Signers,
		UseAIPositioning: req.UseAIPositioning,
		Subject:          req.Subject,
		Status:           signing.Status(req.Status),
	})
	if err != nil {
		fail(c, err)
		return
	}
	if req.ContractID != "" {
		s.recordEnvelope(ctx, req.ContractID, res.EnvelopeID)
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     fmt.Sprintf("Contract sent successfully to %d signers", res.Signers),
		"envelope_id": res.EnvelopeID,
		"ai_placed":   res.AIPlaced,
	})
}

// recordEnvelope links a dispatched envelope to its stored contract. The
// envelope already exists, so a failure here is only logged.
func (s *Server) recordEnvelope(ctx context.Context, contractID, envelopeID string) {
	if err := s.Contracts.RecordEnvelope(ctx, contractID, envelopeID); err != nil {
		logging.FromContext(ctx, s.Logger).Warn("could not record envelope on contract",
			zap.String("contract_id", contractID), zap.String("envelope_id", envelopeID), zap.Error(err))
	}
}
