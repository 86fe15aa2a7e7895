package server

import (
	"html/template"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"contract-flow/pkg/config"
	"contract-flow/pkg/services/analysis"
	"contract-flow/pkg/services/contracts"
	"contract-flow/pkg/services/extract"
	"contract-flow/pkg/services/policy"
	"contract-flow/pkg/signing"
)

const sessionName = "contract_flow"

// Deps are the services the HTTP layer dispatches to.
type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Extract   *extract.Service
	Analysis  *analysis.Service
	Policy    *policy.Checker
	Signing   *signing.Service
	Contracts *contracts.Service
	Logger    *zap.Logger
}

// Server holds the router and its dependencies.
type Server struct {
	Deps
	engine *gin.Engine
}

// New builds the router with all middleware and routes installed.
func New(d Deps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID(), requestLogger(d.Logger))
	if origins := d.Config.Server.CORSOrigins; len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", headerRequestID, headerUserEmail},
			ExposeHeaders:    []string{headerRequestID, "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	store := cookie.NewStore([]byte(d.Config.Server.SessionSecret))
	store.Options(sessions.Options{Path: "/", MaxAge: 86400 * 7, HttpOnly: true})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(requestConfig(d.Config))
	r.SetHTMLTemplate(template.Must(template.New("accept").Parse(acceptPage)))

	s := &Server{Deps: d, engine: r}
	s.routes()
	return s
}

// Handler returns the http.Handler to serve.
func (s *Server) Handler() *gin.Engine {
	return s.engine
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/healthz", s.health)
	r.GET("/invitations/:token/accept", s.acceptInvitationPage)
	r.GET("/docusign/accept-invitation/:token", s.acceptInvitationPage)

	api := r.Group("/api")
	api.POST("/settings", s.saveSettings)
	api.POST("/settings/save", s.saveSettings)
	api.GET("/auth/docusign-config", s.docuSignConfig)

	api.POST("/upload", s.upload("content"))
	api.POST("/contracts/upload", s.upload("text"))

	api.POST("/analyze", s.analyze)
	api.POST("/analyze/risks", s.risks)
	api.POST("/analyze/compliance", s.compliance)
	api.POST("/analyze/signature-positions", s.signaturePositions)
	api.POST("/analyze-signature-positions", s.signaturePositions)
	api.POST("/simplify", s.simplify)
	api.POST("/rewrite", s.rewrite)
	api.POST("/send", s.send)

	api.GET("/contracts", s.listContracts)
	api.POST("/contracts", s.createContract)
	api.GET("/contracts/export", s.exportContracts)
	api.GET("/contracts/:id", s.getContract)
	api.GET("/contracts/:id/comments", s.listComments)
	api.POST("/contracts/:id/comments", s.addComment)
	api.POST("/comments/:id/resolve", s.resolveComment)
	api.GET("/contracts/:id/versions", s.listVersions)
	api.POST("/contracts/:id/versions", s.createVersion)
	api.GET("/contracts/:id/versions/compare", s.compareVersions)
	api.GET("/contracts/:id/invitations", s.listInvitations)
	api.POST("/contracts/:id/invitations", s.invite)
	api.POST("/invitations/:token/accept", s.acceptInvitation)
	api.GET("/contracts/:id/collaborators", s.listCollaborators)
	api.DELETE("/contracts/:id/collaborators/:userId", s.removeCollaborator)
	api.GET("/contracts/:id/events", s.listEvents)
	api.POST("/contracts/:id/events", s.addEvent)

	api.GET("/templates", s.listTemplates)
	api.POST("/templates", s.createTemplate)
	api.GET("/templates/:id", s.getTemplate)
	api.PUT("/templates/:id", s.updateTemplate)
	api.DELETE("/templates/:id", s.deleteTemplate)
}
