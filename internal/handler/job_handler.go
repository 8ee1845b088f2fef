package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"policonv/internal/domain"
	"policonv/internal/port"
	"policonv/internal/service"
)

// JobHandler handles job registration, mapping, and bundle endpoints.
type JobHandler struct {
	jobService     service.JobService
	mappingService service.MappingService
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(jobService service.JobService, mappingService service.MappingService) *JobHandler {
	return &JobHandler{jobService: jobService, mappingService: mappingService}
}

// createJobRequest is the JSON body for POST /api/v1/jobs. Callers send
// pre-extracted pages, raw document bytes via multipart, or both.
type createJobRequest struct {
	Filename           string                  `json:"filename"`
	ContentType        string                  `json:"contentType"`
	DocumentCategories []string                `json:"documentCategories"`
	PageCategories     map[int][]string        `json:"pageCategories"`
	Pages              []domain.PageExtraction `json:"pages"`
}

// Create handles POST /api/v1/jobs
func (h *JobHandler) Create(c *gin.Context) {
	input, ok := h.parseCreateRequest(c)
	if !ok {
		return
	}

	job, err := h.jobService.CreateJob(c.Request.Context(), input)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, job)
}

func (h *JobHandler) parseCreateRequest(c *gin.Context) (service.CreateJobInput, bool) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		return h.parseMultipartCreate(c)
	}

	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body: "+err.Error())
		return service.CreateJobInput{}, false
	}

	return service.CreateJobInput{
		Filename:           req.Filename,
		ContentType:        req.ContentType,
		Pages:              req.Pages,
		DocumentCategories: req.DocumentCategories,
		PageCategories:     req.PageCategories,
	}, true
}

func (h *JobHandler) parseMultipartCreate(c *gin.Context) (service.CreateJobInput, bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return service.CreateJobInput{}, false
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_FILE", "failed to read uploaded file")
		return service.CreateJobInput{}, false
	}

	input := service.CreateJobInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		FileBytes:   data,
	}

	if raw := c.PostForm("documentCategories"); raw != "" {
		for _, category := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(category); trimmed != "" {
				input.DocumentCategories = append(input.DocumentCategories, trimmed)
			}
		}
	}

	if raw := c.PostForm("pages"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &input.Pages); err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_PAGES", "pages field is not valid JSON")
			return service.CreateJobInput{}, false
		}
	}

	if raw := c.PostForm("pageCategories"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &input.PageCategories); err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_PAGE_CATEGORIES", "pageCategories field is not valid JSON")
			return service.CreateJobInput{}, false
		}
	}

	return input, true
}

// GetByID handles GET /api/v1/jobs/:id
func (h *JobHandler) GetByID(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid job ID")
		return
	}

	job, err := h.jobService.GetJob(c.Request.Context(), jobID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, job)
}

// List handles GET /api/v1/jobs
func (h *JobHandler) List(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	filter := port.JobFilter{Offset: offset, Limit: limit}
	if raw := c.Query("status"); raw != "" {
		status := domain.JobStatus(raw)
		switch status {
		case domain.JobStatusQueued, domain.JobStatusProcessing, domain.JobStatusMapping,
			domain.JobStatusCompleted, domain.JobStatusFailed:
			filter.Status = &status
		default:
			RespondError(c, http.StatusBadRequest, "INVALID_STATUS", "unknown job status: "+raw)
			return
		}
	}

	jobs, total, err := h.jobService.ListJobs(c.Request.Context(), filter)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, jobs, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// TriggerMapping handles POST /api/v1/jobs/:id/map
func (h *JobHandler) TriggerMapping(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid job ID")
		return
	}

	job, err := h.mappingService.TriggerMapping(c.Request.Context(), jobID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, job)
}

// GetBundle handles GET /api/v1/jobs/:id/bundle
func (h *JobHandler) GetBundle(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid job ID")
		return
	}

	bundle, err := h.jobService.GetBundle(c.Request.Context(), jobID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, bundle)
}

// ExportXLSX handles GET /api/v1/jobs/:id/export.xlsx
func (h *JobHandler) ExportXLSX(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid job ID")
		return
	}

	data, filename, err := h.jobService.ExportBundleXLSX(c.Request.Context(), jobID)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
