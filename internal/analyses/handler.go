package analyses

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-ats/internal/extract"
	"resume-ats/internal/segment"
	"resume-ats/internal/shared/server/middleware"
	"resume-ats/internal/shared/server/respond"
	"resume-ats/internal/usage"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	// maxUploadBytes leaves room for the multipart envelope around the file.
	maxUploadBytes = extract.MaxBytes + 64<<10
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc  *Service
	poll *pollLimiter
}

// NewHandler constructs a Handler. Status polls are limited to one per second
// per analysis.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc, poll: newPollLimiter(pollLimitWindow, nil)}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.createAnalysis)
	rg.POST("/analyses/upload", h.uploadAnalysis)
	rg.GET("/analyses", h.listAnalyses)
	rg.GET("/analyses/:id", h.getAnalysis)
	rg.POST("/segment", h.segment)
}

type createRequest struct {
	ResumeText     string `json:"resumeText"`
	JobDescription string `json:"jobDescription"`
}

func (h *Handler) createAnalysis(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "invalid JSON body", nil)
		return
	}
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	a, err := h.Svc.Create(ctx, CreateInput{
		UserID:         middleware.UserIDFromContext(c),
		ResumeText:     req.ResumeText,
		JobDescription: req.JobDescription,
	})
	if err != nil {
		h.createError(c, err)
		return
	}
	c.Set(middleware.AnalysisIDKey, a.ID)
	respond.Accepted(c, gin.H{"analysisId": a.ID, "status": a.Status})
}

func (h *Handler) uploadAnalysis(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, respond.CodeValidation, "file exceeds the upload limit", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "multipart field \"file\" is required", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "unreadable upload", nil)
		return
	}
	defer f.Close()

	force, _ := strconv.ParseBool(c.PostForm("force"))
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	a, v, err := h.Svc.Upload(ctx, UploadInput{
		UserID:         middleware.UserIDFromContext(c),
		FileName:       fh.Filename,
		ContentType:    fh.Header.Get("Content-Type"),
		Body:           f,
		JobDescription: c.PostForm("jobDescription"),
		Force:          force,
	})
	switch {
	case errors.Is(err, extract.ErrNotResume):
		respond.Error(c, http.StatusUnprocessableEntity, respond.CodeNotResume,
			"This document does not look like a resume. Resubmit with force=true to analyze it anyway.",
			gin.H{"validation": v, "canForce": true})
		return
	case errors.Is(err, extract.ErrUnsupported):
		respond.Error(c, http.StatusUnsupportedMediaType, respond.CodeUnsupported, "supported formats are PDF, DOCX, TXT and HTML", nil)
		return
	case errors.Is(err, extract.ErrTooLarge):
		respond.Error(c, http.StatusRequestEntityTooLarge, respond.CodeValidation, "file exceeds the upload limit", nil)
		return
	case errors.Is(err, extract.ErrEmpty):
		respond.Error(c, http.StatusUnprocessableEntity, respond.CodeValidation, "no text could be extracted from the file", nil)
		return
	case err != nil:
		h.createError(c, err)
		return
	}
	c.Set(middleware.AnalysisIDKey, a.ID)
	respond.Accepted(c, gin.H{"analysisId": a.ID, "status": a.Status, "validation": v})
}

func (h *Handler) createError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": "), nil)
	case errors.Is(err, usage.ErrLimitReached):
		respond.Error(c, http.StatusTooManyRequests, respond.CodeLimitReached, "You've used all your free analyses for this period.", []map[string]string{
			{"field": "usage", "issue": "limit_reached"},
		})
	default:
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to start analysis", nil)
	}
}

func (h *Handler) getAnalysis(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	id := c.Param("id")
	c.Set(middleware.AnalysisIDKey, id)

	if !h.poll.Allow(userID, id) {
		c.Header("Retry-After", strconv.Itoa(h.poll.RetryAfterSeconds()))
		respond.Error(c, http.StatusTooManyRequests, respond.CodeRateLimited, "polling too fast", nil)
		return
	}

	a, err := h.Svc.Get(c.Request.Context(), userID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "analysis not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to fetch analysis", nil)
		return
	}

	resp := gin.H{
		"id":        a.ID,
		"status":    a.Status,
		"source":    a.Source,
		"createdAt": a.CreatedAt,
	}
	if a.FileName != "" {
		resp["fileName"] = a.FileName
	}
	if a.Status == StatusFailed {
		resp["error"] = gin.H{"code": a.ErrorCode, "message": a.ErrorMessage}
	}
	if a.Status == StatusCompleted && a.Result != nil {
		if c.Query("view") == "full" {
			resp["result"] = a.Result
		} else {
			resp["preview"] = a.Result.Preview()
		}
	}
	respond.OK(c, resp)
}

func (h *Handler) listAnalyses(c *gin.Context) {
	limit := queryInt(c, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	list, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to list analyses", nil)
		return
	}

	items := make([]gin.H, 0, len(list))
	for _, a := range list {
		item := gin.H{
			"analysisId": a.ID,
			"status":     a.Status,
			"source":     a.Source,
			"createdAt":  a.CreatedAt,
		}
		if a.FileName != "" {
			item["fileName"] = a.FileName
		}
		if a.Status == StatusCompleted && a.Result != nil {
			item["atsScore"] = a.Result.ATSScore
			item["detectedRole"] = a.Result.DetectedRole
		}
		items = append(items, item)
	}
	respond.OK(c, gin.H{"items": items, "limit": limit, "offset": offset})
}

type segmentRequest struct {
	ResumeText string `json:"resumeText"`
}

func (h *Handler) segment(c *gin.Context) {
	var req segmentRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ResumeText) == "" {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "resumeText is required", nil)
		return
	}
	if h.Svc.Engine == nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "segmenter not configured", nil)
		return
	}
	res := h.Svc.Engine.Segmenter().Detailed(req.ResumeText)
	found := res.Sections.Found()
	sections := make(map[string]string, len(found))
	names := make([]string, 0, len(found))
	for _, s := range found {
		sections[string(s)] = res.Sections[s]
		names = append(names, string(s))
	}
	headers := res.Headers
	if headers == nil {
		headers = []segment.Header{}
	}
	respond.OK(c, gin.H{
		"sections":      sections,
		"sectionsFound": names,
		"headers":       headers,
		"fallback":      res.Fallback,
		"twoColumn":     res.TwoColumn,
	})
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
