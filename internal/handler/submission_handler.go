package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/dto"
	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/service"
	appErrors "github.com/BSSE23008/PHD-Research-Tracking-sub000/pkg/errors"
	"github.com/BSSE23008/PHD-Research-Tracking-sub000/pkg/response"
)

// SubmissionHandler wires HTTP endpoints to the submission ledger.
type SubmissionHandler struct {
	service *service.SubmissionService
}

// NewSubmissionHandler creates a new handler.
func NewSubmissionHandler(svc *service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{service: svc}
}

// Forms godoc
// @Summary Available forms
// @Description List catalog forms annotated with the caller's submission state
// @Tags Submissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /workflow/forms [get]
func (h *SubmissionHandler) Forms(c *gin.Context) {
	res, err := h.service.AvailableForms(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Prerequisites godoc
// @Summary Check prerequisites
// @Description Report whether a form's prerequisite forms are approved
// @Tags Submissions
// @Produce json
// @Param formCode path string true "Form code"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /workflow/prerequisites/{formCode} [get]
func (h *SubmissionHandler) Prerequisites(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	res, err := h.service.CheckPrerequisites(c.Request.Context(), claims.UserID, c.Param("formCode"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Submit godoc
// @Summary Submit a form
// @Description Create a new form submission after prerequisite and quota checks
// @Tags Submissions
// @Accept json
// @Produce json
// @Param payload body dto.SubmitFormRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /workflow/submissions [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	var req dto.SubmitFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}

	res, err := h.service.Submit(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// List godoc
// @Summary List own submissions
// @Description List the caller's submissions, newest first
// @Tags Submissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /workflow/submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	res, err := h.service.ListOwn(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Get godoc
// @Summary Get one submission
// @Description Fetch a submission visible to its owner or approver roles
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /workflow/submissions/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	res, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Decide godoc
// @Summary Record a decision
// @Description Record an approval-channel decision on a submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.DecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /workflow/submissions/{id}/decision [post]
func (h *SubmissionHandler) Decide(c *gin.Context) {
	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	res, err := h.service.RecordDecision(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// SaveDraft godoc
// @Summary Save a draft
// @Description Store in-progress form content, one draft per student and form
// @Tags Submissions
// @Accept json
// @Produce json
// @Param formCode path string true "Form code"
// @Param payload body dto.SaveDraftRequest true "Draft payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /workflow/drafts/{formCode} [put]
func (h *SubmissionHandler) SaveDraft(c *gin.Context) {
	var req dto.SaveDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid draft payload"))
		return
	}

	res, err := h.service.SaveDraft(c.Request.Context(), claimsFromContext(c), c.Param("formCode"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// GetDraft godoc
// @Summary Get a draft
// @Description Return the caller's saved draft for a form
// @Tags Submissions
// @Produce json
// @Param formCode path string true "Form code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /workflow/drafts/{formCode} [get]
func (h *SubmissionHandler) GetDraft(c *gin.Context) {
	res, err := h.service.GetDraft(c.Request.Context(), claimsFromContext(c), c.Param("formCode"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
