package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username, email and password are required")
		return
	}

	u, err := s.users.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newUserResponse(u))
}

// token implements the OAuth2 password flow: form fields username and
// password.
func (s *Server) token(c *gin.Context) {
	username, password := c.PostForm("username"), c.PostForm("password")
	if username == "" || password == "" {
		badRequest(c, "username and password are required")
		return
	}

	tok, err := s.users.Login(c.Request.Context(), username, password)
	if err != nil {
		c.Header("WWW-Authenticate", "Bearer")
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{AccessToken: tok, TokenType: "bearer"})
}

func (s *Server) me(c *gin.Context) {
	u, err := s.users.Me(c.Request.Context(), currentUser(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(u))
}
