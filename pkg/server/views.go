package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"contract-flow/pkg/models"
	"contract-flow/pkg/services/contracts"
)

func userView(u *models.User) gin.H {
	if u == nil || u.ID == 0 {
		return nil
	}
	return gin.H{"id": u.ID, "name": u.Name, "email": u.Email}
}

func contractView(c *models.Contract) gin.H {
	collabs := make([]gin.H, 0, len(c.Collaborators))
	for _, cc := range c.Collaborators {
		collabs = append(collabs, collaboratorView(cc))
	}
	return gin.H{
		"id":            c.ID,
		"title":         c.Title,
		"content":       c.Content,
		"status":        c.Status,
		"version":       c.Version,
		"envelope_id":   c.EnvelopeID,
		"owner":         userView(c.Owner),
		"template_id":   c.TemplateID,
		"collaborators": collabs,
		"created_at":    c.CreatedAt.Format(time.RFC3339),
		"updated_at":    c.UpdatedAt.Format(time.RFC3339),
	}
}

func collaboratorView(cc models.ContractCollaborator) gin.H {
	return gin.H{"user": userView(&cc.User), "role": cc.Role, "added_at": cc.CreatedAt.Format(time.RFC3339)}
}

func templateView(t *models.Template, withContent bool) gin.H {
	tags := make([]gin.H, 0, len(t.Tags))
	for _, tag := range t.Tags {
		tags = append(tags, gin.H{"id": tag.ID, "name": tag.Name})
	}
	v := gin.H{
		"id":          t.ID,
		"name":        t.Name,
		"description": t.Description,
		"category":    t.Category,
		"tags":        tags,
	}
	if withContent {
		v["content"] = t.Content
	}
	return v
}

func commentView(c *models.Comment) gin.H {
	return gin.H{
		"id":         c.ID,
		"content":    c.Content,
		"user":       userView(&c.User),
		"created_at": c.CreatedAt.Format(time.RFC3339),
		"resolved":   c.Resolved,
		"parent_id":  c.ParentID,
	}
}

func versionView(v *models.ContractVersion, withContent bool) gin.H {
	out := gin.H{
		"version":    v.Version,
		"created_at": v.CreatedAt.Format(time.RFC3339),
		"created_by": userView(&v.CreatedBy),
	}
	if withContent {
		out["content"] = v.Content
	}
	return out
}

func comparisonView(cmp *contracts.Comparison) gin.H {
	return gin.H{
		"version1": versionView(cmp.From, true),
		"version2": versionView(cmp.To, true),
		"diff":     cmp.Lines,
		"added":    cmp.Added,
		"removed":  cmp.Removed,
	}
}

func invitationView(inv *models.Invitation) gin.H {
	return gin.H{
		"id":         inv.ID,
		"email":      inv.Email,
		"role":       inv.Role,
		"status":     inv.Status,
		"message":    inv.Message,
		"created_at": inv.CreatedAt.Format(time.RFC3339),
		"expires_at": inv.ExpiresAt.Format(time.RFC3339),
	}
}

func eventView(e *models.CalendarEvent) gin.H {
	return gin.H{
		"id":          e.ID,
		"title":       e.Title,
		"description": e.Description,
		"event_type":  e.EventType,
		"date":        e.Date.Format(time.RFC3339),
	}
}
