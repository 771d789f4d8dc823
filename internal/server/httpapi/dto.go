package httpapi

import (
	"time"

	"github.com/dmitrijs2005/modzart/internal/server/models"
)

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{ID: u.ID, Username: u.UserName, Email: u.Email}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// modResponse keeps the column name "filename" for the encoded file
// reference and adds the decoded kind.
type modResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Filename    string    `json:"filename"`
	FileKind    string    `json:"file_kind"`
	ProjectURL  string    `json:"project_url,omitempty"`
	Downloads   int64     `json:"downloads"`
	Visibility  string    `json:"project_visibility"`
	UserID      int64     `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newModResponse(m *models.Mod) modResponse {
	return modResponse{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Filename:    models.EncodeFileRef(m.File),
		FileKind:    m.File.Kind.String(),
		ProjectURL:  m.File.URL,
		Downloads:   m.DownloadCount,
		Visibility:  m.Visibility,
		UserID:      m.UserID,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func newModListResponse(mods []*models.Mod) []modResponse {
	out := make([]modResponse, 0, len(mods))
	for _, m := range mods {
		out = append(out, newModResponse(m))
	}
	return out
}

type modUpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type projectRequest struct {
	Name       string `json:"name" binding:"required"`
	URL        string `json:"url" binding:"required"`
	Visibility string `json:"visibility"`
	Summary    string `json:"summary"`
}

type jobResponse struct {
	ID        string    `json:"id"`
	ModID     int64     `json:"mod_id"`
	Filename  string    `json:"filename"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newJobResponse(j *models.UploadJob) jobResponse {
	return jobResponse{
		ID:        j.ID,
		ModID:     j.ModID,
		Filename:  j.Filename,
		Status:    string(j.Status),
		Reason:    j.Reason,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
