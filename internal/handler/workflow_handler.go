package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/dto"
	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/service"
	appErrors "github.com/BSSE23008/PHD-Research-Tracking-sub000/pkg/errors"
	"github.com/BSSE23008/PHD-Research-Tracking-sub000/pkg/response"
)

// WorkflowHandler wires HTTP endpoints to the stage advancement engine.
type WorkflowHandler struct {
	service *service.WorkflowService
}

// NewWorkflowHandler creates a new handler.
func NewWorkflowHandler(svc *service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{service: svc}
}

// Status godoc
// @Summary Workflow status
// @Description Return the caller's stage progress and advancement readiness
// @Tags Workflow
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /workflow/status [get]
func (h *WorkflowHandler) Status(c *gin.Context) {
	res, err := h.service.Status(c.Request.Context(), claimsFromContext(c), "")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// StatusFor godoc
// @Summary Workflow status for a student
// @Description Return a specific student's stage progress
// @Tags Workflow
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /workflow/status/{studentId} [get]
func (h *WorkflowHandler) StatusFor(c *gin.Context) {
	res, err := h.service.Status(c.Request.Context(), claimsFromContext(c), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Advance godoc
// @Summary Advance to next stage
// @Description Commit the transition to the next workflow stage
// @Tags Workflow
// @Accept json
// @Produce json
// @Param payload body dto.AdvanceRequest false "Advance payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /workflow/advance [post]
func (h *WorkflowHandler) Advance(c *gin.Context) {
	var req dto.AdvanceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid advance payload"))
			return
		}
	}

	res, err := h.service.Advance(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// UpdateSemester godoc
// @Summary Update semester counters
// @Description Set the semester and academic year on a student's progress
// @Tags Workflow
// @Accept json
// @Produce json
// @Param payload body dto.UpdateSemesterRequest true "Semester payload"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /workflow/semester [put]
func (h *WorkflowHandler) UpdateSemester(c *gin.Context) {
	var req dto.UpdateSemesterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid semester payload"))
		return
	}

	if err := h.service.UpdateSemester(c.Request.Context(), claimsFromContext(c), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Analytics godoc
// @Summary Per-stage analytics
// @Description Aggregate student distribution and pending approvals per stage
// @Tags Workflow
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /workflow/analytics [get]
func (h *WorkflowHandler) Analytics(c *gin.Context) {
	res, err := h.service.Analytics(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Attention godoc
// @Summary Students requiring attention
// @Description List students stuck in a stage past the threshold
// @Tags Workflow
// @Produce json
// @Param threshold_days query int false "Override threshold in days"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /workflow/attention [get]
func (h *WorkflowHandler) Attention(c *gin.Context) {
	threshold, _ := strconv.Atoi(c.Query("threshold_days"))
	res, err := h.service.StudentsRequiringAttention(c.Request.Context(), claimsFromContext(c), threshold)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// ExportReport godoc
// @Summary Export attention report
// @Description Render the attention list as CSV or PDF
// @Tags Workflow
// @Produce text/csv
// @Param format query string false "csv or pdf"
// @Success 200 {file} byte
// @Failure 403 {object} response.Envelope
// @Router /workflow/report/export [get]
func (h *WorkflowHandler) ExportReport(c *gin.Context) {
	threshold, _ := strconv.Atoi(c.Query("threshold_days"))
	payload, contentType, err := h.service.ExportReport(c.Request.Context(), claimsFromContext(c), c.DefaultQuery("format", "csv"), threshold)
	if err != nil {
		response.Error(c, err)
		return
	}

	ext := "csv"
	if contentType == "application/pdf" {
		ext = "pdf"
	}
	filename := fmt.Sprintf("attention-report-%s.%s", time.Now().UTC().Format("20060102"), ext)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, payload)
}
