package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"contract-flow/pkg/apperr"
	"contract-flow/pkg/services/contracts"
)

func uintParam(c *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		fail(c, apperr.Invalidf("Invalid %s", name))
		return 0, false
	}
	return uint(n), true
}

type createContractRequest struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Status     string `json:"status"`
	TemplateID *uint  `json:"template_id"`
}

func (s *Server) createContract(c *gin.Context) {
	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Invalid("No data provided"))
		return
	}
	user, err := s.currentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	ctx := c.Request.Context()
	if req.TemplateID != nil && req.Content == "" {
		t, err := s.Contracts.GetTemplate(ctx, *req.TemplateID)
		if err != nil {
			fail(c, err)
			return
		}
		req.Content = t.Content
	}
	ct, err := s.Contracts.CreateContract(ctx, user.ID, contracts.ContractInput{
		Title: req.Title, Content: req.Content, Status: req.Status, TemplateID: req.TemplateID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ct.Owner = user
	c.JSON(http.StatusCreated, contractView(ct))
}

func (s *Server) listContracts(c *gin.Context) {
	list, err := s.Contracts.ListContracts(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for i := range list {
		v := contractView(&list[i])
		delete(v, "content")
		out = append(out, v)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getContract(c *gin.Context) {
	ct, err := s.Contracts.GetContract(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, contractView(ct))
}

func (s *Server) exportContracts(c *gin.Context) {
	data, err := s.Contracts.ExportXLSX(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	name := "contracts-" + time.Now().UTC().Format("20060102") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (s *Server) listComments(c *gin.Context) {
	include := c.DefaultQuery("include_resolved", "false") == "true"
	list, err := s.Contracts.Comments(c.Request.Context(), c.Param("id"), include)
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for i := range list {
		out = append(out, commentView(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}

type addCommentRequest struct {
	Content  string `json:"content"`
	ParentID *uint  `json:"parent_id"`
}

func (s *Server) addComment(c *gin.Context) {
	var req addCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Invalid("No comment content provided"))
		return
	}
	user, err := s.currentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	cm, err := s.Contracts.AddComment(c.Request.Context(), c.Param("id"), user.ID, req.Content, req.ParentID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, commentView(cm))
}

func (s *Server) resolveComment(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := s.Contracts.ResolveComment(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) listVersions(c *gin.Context) {
	list, err := s.Contracts.Versions(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for i := range list {
		out = append(out, versionView(&list[i], false))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createVersion(c *gin.Context) {
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Invalid("No content provided"))
		return
	}
	user, err := s.currentUser(c)
	if err != nil {
		fail(c, err)
		return
	}
	v, err := s.Contracts.CreateVersion(c.Request.Context(), c.Param("id"), req.Content, user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, versionView(v, false))
}

func (s *Server) compareVersions(c *gin.Context) {
	v1, err1 := strconv.Atoi(c.Query("v1"))
	v2, err2 := strconv.Atoi(c.Query("v2"))
	if err1 != nil || err2 != nil {
		fail(c, apperr.Invalid("Both versions must be specified"))
		return
	}
	cmp, err := s.Contracts.CompareVersions(c.Request.Context(), c.Param("id"), v1, v2)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, comparisonView(cmp))
}

type inviteRequest struct {
	Email   string `json:"email"`
	Role    string `json:"role"`
	Message string `json:"message"`
}

func (s *Server) invite(c *gin.Context) {
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Invalid("Email is required"))
		return
	}
	inv, err := s.Contracts.Invite(c.Request.Context(), c.Param("id"), req.Email, req.Role, req.Message)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, invitationView(inv))
}

func (s *Server) listInvitations(c *gin.Context) {
	list, err := s.Contracts.Invitations(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for i := range list {
		out = append(out, invitationView(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) acceptInvitation(c *gin.Context) {
	ct, err := s.Contracts.AcceptInvitation(c.Request.Context(), c.Param("token"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Invitation accepted successfully", "contract_id": ct.ID})
}

func (s *Server) acceptInvitationPage(c *gin.Context) {
	data := gin.H{"DashboardURL": s.Config.Server.AppURL}
	_, err := s.Contracts.AcceptInvitation(c.Request.Context(), c.Param("token"))
	switch {
	case err == nil:
		data["Title"] = "Invitation Accepted!"
		data["Class"] = "success"
		data["Lines"] = []string{"You can now collaborate on the contract."}
		c.HTML(http.StatusOK, "accept", data)
	case apperr.HTTPStatus(err) < 500:
		data["Title"] = "Invalid or Expired Invitation"
		data["Class"] = "error"
		data["Lines"] = []string{"This invitation link is either invalid or has expired."}
		c.HTML(apperr.HTTPStatus(err), "accept", data)
	default:
		_ = c.Error(err)
		data["Title"] = "Error"
		data["Class"] = "error"
		data["Lines"] = []string{"An error occurred while processing your invitation."}
		c.HTML(http.StatusInternalServerError, "accept", data)
	}
}

const acceptPage = `<!DOCTYPE html>
<html>
<head>
<title>{{.Title}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 40px; }
.container { max-width: 600px; margin: 0 auto; text-align: center; }
.success { color: #28a745; }
.error { color: #dc3545; }
</style>
</head>
<body>
<div class="container">
<h1 class="{{.Class}}">{{.Title}}</h1>
{{range .Lines}}<p>{{.}}</p>
{{end}}<p><a href="{{.DashboardURL}}">Return to Dashboard</a></p>
</div>
</body>
</html>
`

func (s *Server) listCollaborators(c *gin.Context) {
	list, err := s.Contracts.Collaborators(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, cc := range list {
		out = append(out, collaboratorView(cc))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) removeCollaborator(c *gin.Context) {
	uid, ok := uintParam(c, "userId")
	if !ok {
		return
	}
	if err := s.Contracts.RemoveCollaborator(c.Request.Context(), c.Param("id"), uid); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type eventRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	EventType   string    `json:"event_type"`
	Date        time.Time `json:"date"`
}

func (s *Server) addEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Invalid("Title and an RFC 3339 date are required"))
		return
	}
	ev, err := s.Contracts.AddEvent(c.Request.Context(), c.Param("id"), contracts.EventInput{
		Title: req.Title, Description: req.Description, EventType: req.EventType, Date: req.Date,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, eventView(ev))
}

func (s *Server) listEvents(c *gin.Context) {
	list, err := s.Contracts.Events(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for i := range list {
		out = append(out, eventView(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}
