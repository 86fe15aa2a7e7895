package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"contract-flow/pkg/apperr"
	"contract-flow/pkg/services/contracts"
)

type templateRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
}

func (r templateRequest) input() contracts.TemplateInput {
	return contracts.TemplateInput{
		Name: r.Name, Description: r.Description, Content: r.Content, Category: r.Category, Tags: r.Tags,
	}
}

func (s *Server) listTemplates(c *gin.Context) {
	list, err := s.Contracts.ListTemplates(c.Request.Context(), contracts.TemplateFilter{
		Category: c.Query("category"),
		Tag:      c.Query("tag"),
		Query:    c.Query("q"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for i := range list {
		out = append(out, templateView(&list[i], false))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getTemplate(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	t, err := s.Contracts.GetTemplate(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, templateView(t, true))
}

func (s *Server) createTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Invalid("No data provided"))
		return
	}
	user, err := s.currentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	t, err := s.Contracts.CreateTemplate(c.Request.Context(), req.input(), &user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, templateView(t, true))
}

func (s *Server) updateTemplate(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Invalid("No data provided"))
		return
	}
	t, err := s.Contracts.UpdateTemplate(c.Request.Context(), id, req.input())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, templateView(t, true))
}

func (s *Server) deleteTemplate(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := s.Contracts.DeleteTemplate(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
