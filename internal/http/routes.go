package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ryom080502-dev/audioGIJI6/internal/config"
	"github.com/ryom080502-dev/audioGIJI6/internal/domain"
	"github.com/ryom080502-dev/audioGIJI6/internal/logger"
	"github.com/ryom080502-dev/audioGIJI6/internal/services"
	"github.com/ryom080502-dev/audioGIJI6/internal/storage"
)

// MinutesRunner runs the analysis pipeline for one upload job.
type MinutesRunner interface {
	Run(ctx context.Context, job domain.UploadJob) (domain.MergedResult, error)
}

// DocumentRenderer writes an export request to disk and returns the
// download filename.
type DocumentRenderer interface {
	Render(req domain.ExportRequest, outPath string) (string, error)
}

type API struct {
	cfg      config.Config
	files    *storage.FileManager
	auth     *services.AuthService
	links    *services.UploadLinkService
	pipeline MinutesRunner
	exporter DocumentRenderer
	log      *logger.Logger
}

func NewAPI(cfg config.Config, fm *storage.FileManager, auth *services.AuthService, links *services.UploadLinkService, pipeline MinutesRunner, exporter DocumentRenderer, log *logger.Logger) *API {
	return &API{
		cfg:      cfg,
		files:    fm,
		auth:     auth,
		links:    links,
		pipeline: pipeline,
		exporter: exporter,
		log:      log.WithComponent("api"),
	}
}

func registerRoutes(r *gin.Engine, api *API) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", api.handleHealth)
		apiGroup.POST("/auth/login", api.handleLogin)

		// Raw uploads are guarded by their link signature, not a bearer token.
		apiGroup.PUT("/uploads/raw/:id", api.handleRawUpload)

		authed := apiGroup.Group("")
		authed.Use(AuthRequired(api.auth))
		{
			authed.POST("/auth/password", api.handleChangePassword)
			authed.POST("/uploads/link", api.handleCreateUploadLink)
			authed.POST("/upload", api.handleUpload)
			authed.POST("/export", api.handleExport)
		}
	}
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "audioGIJI"})
}

func (a *API) handleLogin(c *gin.Context) {
	var payload struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	user, err := a.auth.Authenticate(payload.Username, payload.Password)
	if err != nil {
		respondMessage(c, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, expiresAt, err := a.auth.CreateToken(user.Username)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"expires_at":   expiresAt.UTC(),
	})
}

func (a *API) handleChangePassword(c *gin.Context) {
	var payload struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	err := a.auth.ChangePassword(currentUser(c), payload.CurrentPassword, payload.NewPassword)
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		respondMessage(c, http.StatusUnauthorized, "current password is incorrect")
	case errors.Is(err, domain.ErrInvalidInput):
		respondMessage(c, http.StatusBadRequest, err.Error())
	case err != nil:
		respondError(c, http.StatusInternalServerError, err)
	default:
		c.JSON(http.StatusOK, gin.H{"message": "password updated"})
	}
}

func (a *API) handleCreateUploadLink(c *gin.Context) {
	id := uuid.NewString()
	url, expiresAt := a.links.Generate(id)

	c.JSON(http.StatusCreated, gin.H{
		"upload_id":  id,
		"url":        url,
		"expires_at": expiresAt.UTC(),
	})
}

func (a *API) handleRawUpload(c *gin.Context) {
	expiresParam := c.Query("exp")
	signature := c.Query("sig")

	if expiresParam == "" || signature == "" {
		respondMessage(c, http.StatusBadRequest, "missing signature")
		return
	}

	expires, err := strconv.ParseInt(expiresParam, 10, 64)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid expiration")
		return
	}

	if expires < time.Now().Unix() {
		respondMessage(c, http.StatusGone, "link expired")
		return
	}

	if !a.links.Validate(c.Request.URL.Path, expires, signature) {
		respondMessage(c, http.StatusForbidden, "invalid signature")
		return
	}

	id := c.Param("id")
	filename := c.Query("filename")
	if filename == "" {
		filename = id
	}

	saved, err := a.files.SaveAudio(c.Request.Body, filename)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	a.files.PutPending(id, saved, filename)
	a.log.WithField("upload_id", id).WithField("size", saved.Size).Info("raw upload stored")

	c.JSON(http.StatusCreated, gin.H{"upload_id": id, "size": saved.Size})
}

func (a *API) handleUpload(c *gin.Context) {
	meta := domain.Metadata{
		CreatedDate:  strings.TrimSpace(c.PostForm("created_date")),
		Creator:      strings.TrimSpace(c.PostForm("creator")),
		CustomerName: strings.TrimSpace(c.PostForm("customer_name")),
		MeetingPlace: strings.TrimSpace(c.PostForm("meeting_place")),
	}

	job, err := a.resolveUploadJob(c, meta)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	defer a.files.Remove(job.Path)

	a.log.WithField("user", currentUser(c)).
		WithField("filename", job.Filename).
		WithField("size", job.Size).
		Info("minutes generation started")

	result, err := a.pipeline.Run(c.Request.Context(), job)
	if err != nil {
		a.log.WithError(err).Error("minutes generation failed")
		respondStatusFor(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// resolveUploadJob accepts either a multipart file part or the upload_id of
// a recording previously streamed over a signed link.
func (a *API) resolveUploadJob(c *gin.Context, meta domain.Metadata) (domain.UploadJob, error) {
	if uploadID := strings.TrimSpace(c.PostForm("upload_id")); uploadID != "" {
		saved, filename, ok := a.files.TakePending(uploadID)
		if !ok {
			return domain.UploadJob{}, fmt.Errorf("unknown or already consumed upload_id")
		}
		return domain.UploadJob{
			Path:     saved.Path,
			Filename: filename,
			MIMEType: saved.MIMEType,
			Size:     saved.Size,
			Meta:     meta,
		}, nil
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return domain.UploadJob{}, fmt.Errorf("missing audio file")
	}

	upload, err := fileHeader.Open()
	if err != nil {
		return domain.UploadJob{}, fmt.Errorf("unable to read uploaded file")
	}
	defer upload.Close()

	saved, err := a.files.SaveAudio(upload, fileHeader.Filename)
	if err != nil {
		return domain.UploadJob{}, err
	}

	return domain.UploadJob{
		Path:     saved.Path,
		Filename: fileHeader.Filename,
		MIMEType: saved.MIMEType,
		Size:     saved.Size,
		Meta:     meta,
	}, nil
}

func (a *API) handleExport(c *gin.Context) {
	var req domain.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	format := strings.ToLower(strings.TrimSpace(req.Format))
	ext, mediaType, ok := exportContentType(format)
	if !ok {
		respondMessage(c, http.StatusBadRequest, fmt.Sprintf("unsupported export format %q", req.Format))
		return
	}
	req.Format = format

	outPath := a.files.ExportPath(uuid.NewString() + ext)
	downloadName, err := a.exporter.Render(req, outPath)
	if err != nil {
		a.log.WithError(err).Error("export failed")
		respondStatusFor(c, err)
		return
	}
	defer a.files.Remove(outPath)

	a.log.WithField("user", currentUser(c)).
		WithField("format", format).
		WithField("filename", downloadName).
		Info("minutes exported")

	c.Header("Content-Type", mediaType)
	c.FileAttachment(outPath, downloadName)
}

func exportContentType(format string) (ext, mediaType string, ok bool) {
	switch format {
	case domain.FormatWord:
		return ".docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", true
	case domain.FormatPDF:
		return ".pdf", "application/pdf", true
	default:
		return "", "", false
	}
}

// respondStatusFor maps pipeline and export failures onto HTTP statuses.
func respondStatusFor(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		respondMessage(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrDecode):
		respondMessage(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrAnalysis):
		respondMessage(c, http.StatusBadGateway, err.Error())
	default:
		respondMessage(c, http.StatusInternalServerError, err.Error())
	}
}

func respondError(c *gin.Context, status int, err error) {
	respondMessage(c, status, err.Error())
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
