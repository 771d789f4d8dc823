package httpapi

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/modzart/internal/server/models"
	"github.com/dmitrijs2005/modzart/internal/server/services"
	"github.com/gin-gonic/gin"
)

func (s *Server) createMod(c *gin.Context) {
	file, header, ok := s.formFile(c)
	if !ok {
		return
	}
	defer file.Close()

	in := services.ModInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
	}
	ctx := c.Request.Context()

	if s.mods.Async() {
		job, err := s.mods.EnqueueMod(ctx, currentUser(c), in, file, header.Filename)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.Header("Location", "/uploads/"+job.ID)
		c.JSON(http.StatusAccepted, newJobResponse(job))
		return
	}

	mod, err := s.mods.CreateMod(ctx, currentUser(c), in, file, header.Filename)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newModResponse(mod))
}

func (s *Server) createProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name and url are required")
		return
	}

	mod, err := s.mods.CreateProject(c.Request.Context(), currentUser(c), services.ProjectInput{
		Name:       req.Name,
		URL:        req.URL,
		Visibility: req.Visibility,
		Summary:    req.Summary,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newModResponse(mod))
}

func (s *Server) listMods(c *gin.Context) {
	filter := models.ModFilter{Search: c.Query("search")}
	var err error
	if filter.Skip, err = queryInt(c, "skip", 0); err != nil {
		badRequest(c, "skip must be an integer")
		return
	}
	if filter.Limit, err = queryInt(c, "limit", services.MaxListLimit); err != nil {
		badRequest(c, "limit must be an integer")
		return
	}
	if v := c.Query("user_id"); v != "" {
		if filter.UserID, err = strconv.ParseInt(v, 10, 64); err != nil {
			badRequest(c, "user_id must be an integer")
			return
		}
	}

	mods, err := s.mods.List(c.Request.Context(), filter)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newModListResponse(mods))
}

func (s *Server) getMod(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	mod, err := s.mods.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newModResponse(mod))
}

func (s *Server) updateMod(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req modUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body")
		return
	}

	mod, err := s.mods.Update(c.Request.Context(), currentUser(c), id, services.ModPatch{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newModResponse(mod))
}

func (s *Server) deleteMod(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.mods.DeleteMod(c.Request.Context(), currentUser(c), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) downloadMod(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	link, err := s.mods.Download(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"download_url": link})
}

func (s *Server) uploadVersion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	file, header, ok := s.formFile(c)
	if !ok {
		return
	}
	defer file.Close()

	v, err := s.mods.UploadVersion(c.Request.Context(), currentUser(c), id, services.VersionInput{
		Number:    c.PostForm("version_number"),
		Changelog: c.PostForm("changelog"),
	}, file, header.Filename)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (s *Server) listVersions(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	versions, err := s.mods.ListVersions(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

func (s *Server) getJob(c *gin.Context) {
	job, err := s.mods.GetJob(c.Request.Context(), currentUser(c), c.Param("job"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newJobResponse(job))
}

// formFile opens the "file" part of a multipart request. On failure the
// response is already written.
func (s *Server) formFile(c *gin.Context) (multipart.File, *multipart.FileHeader, bool) {
	if s.maxBody > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBody)
	}
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "upload too large"})
			return nil, nil, false
		}
		badRequest(c, "file is required")
		return nil, nil, false
	}
	file, err := header.Open()
	if err != nil {
		s.writeError(c, err)
		return nil, nil, false
	}
	return file, header, true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
