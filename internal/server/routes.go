package server

import (
	"net/http"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"signflow/internal/server/routes"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := gin.Default()

	// Set up sessions
	store := cookie.NewStore([]byte(os.Getenv("SESSION_SECRET")))
	r.Use(sessions.Sessions("signflow-session", store))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.GET("/", s.HelloWorldHandler)
	r.GET("/health", s.healthHandler)
	r.GET("/operator", s.operatorHandler)

	routes.NewSignatureRequestRoutes(s).RegisterRoutes(r)
	routes.NewDocumentRoutes(s).RegisterRoutes(r)

	return r
}

func (s *Server) HelloWorldHandler(c *gin.Context) {
	resp := make(map[string]string)
	resp["message"] = "Hello World"
	c.JSON(http.StatusOK, resp)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.sqlDB.Health())
}

// operatorHandler returns the operator display name remembered from
// the last submission in this session.
func (s *Server) operatorHandler(c *gin.Context) {
	session := sessions.Default(c)
	operatorName := session.Get("operator_name")

	if operatorName == nil {
		c.JSON(http.StatusOK, gin.H{"operator_name": ""})
		return
	}

	c.JSON(http.StatusOK, gin.H{"operator_name": operatorName})
}
