package httpapi

import (
	"errors"
	"strings"

	"github.com/dmitrijs2005/modzart/internal/server/blobstore"
	"github.com/gin-gonic/gin"
)

// serveFile streams an object of the local blob store. Keys that resolve
// outside the storage root are refused.
func (s *Server) serveFile(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	path, err := s.files.Open(key)
	if err != nil {
		if errors.Is(err, blobstore.ErrInvalidKey) {
			s.logger.Warn(c.Request.Context(), "rejected download key", "key", key)
			badRequest(c, "invalid path")
			return
		}
		s.writeError(c, err)
		return
	}
	c.File(path)
}
