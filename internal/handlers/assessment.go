package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bussola-digital/bussola-backend/internal/services"
)

type AssessmentHandler struct {
	assessmentService services.AssessmentService
}

func NewAssessmentHandler(assessmentService services.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{assessmentService: assessmentService}
}

func assessmentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "invalid_assessment_id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *AssessmentHandler) Start(c *gin.Context) {
	assessment, err := h.assessmentService.Start(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, assessment)
}

func (h *AssessmentHandler) GetCurrent(c *gin.Context) {
	assessment, err := h.assessmentService.GetCurrent(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, assessment)
}

func (h *AssessmentHandler) GetResults(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	results, err := h.assessmentService.GetResults(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, results)
}

func (h *AssessmentHandler) UpsertAnswers(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	var req struct {
		Answers []services.AnswerInput `json:"answers"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "invalid_body")
		return
	}
	if err := h.assessmentService.UpsertAnswers(c.Request.Context(), id, req.Answers); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"saved": len(req.Answers)})
}

func (h *AssessmentHandler) Submit(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	results, err := h.assessmentService.Submit(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, results)
}

func (h *AssessmentHandler) ClassifyCause(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	gapID := c.Param("gap_id")
	var req struct {
		Answers map[string]int `json:"answers"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "invalid_body")
		return
	}
	result, err := h.assessmentService.ClassifyCause(c.Request.Context(), id, gapID, req.Answers)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *AssessmentHandler) GetSuggestedActions(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	suggestions, err := h.assessmentService.GetSuggestedActions(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"suggestions": suggestions})
}

func (h *AssessmentHandler) StartNewVersion(c *gin.Context) {
	assessment, err := h.assessmentService.StartNewVersion(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, assessment)
}
