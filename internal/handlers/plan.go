package handlers

import (
	"github.com/gin-gonic/gin"

	types "github.com/bussola-digital/bussola-backend/internal/domain"
	"github.com/bussola-digital/bussola-backend/internal/services"
)

type PlanHandler struct {
	planService services.PlanService
}

func NewPlanHandler(planService services.PlanService) *PlanHandler {
	return &PlanHandler{planService: planService}
}

func (h *PlanHandler) SelectPlan(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	var req struct {
		Slots []services.PlanSlotInput `json:"slots"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "invalid_body")
		return
	}
	slots, err := h.planService.SelectPlan(c.Request.Context(), id, req.Slots)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"slots": slots})
}

func (h *PlanHandler) GetPlan(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	view, err := h.planService.GetPlan(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, view)
}

func (h *PlanHandler) ConfirmDod(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	var req struct {
		Items []string `json:"items"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "invalid_body")
		return
	}
	confirmation, err := h.planService.ConfirmDod(c.Request.Context(), id, c.Param("action_key"), req.Items)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, confirmation)
}

func (h *PlanHandler) RecordEvidence(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	var req services.EvidenceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "invalid_body")
		return
	}
	req.ActionKey = c.Param("action_key")
	evidence, err := h.planService.RecordEvidence(c.Request.Context(), id, req)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, evidence)
}

func (h *PlanHandler) SetActionStatus(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	var req struct {
		Status        string `json:"status"`
		DroppedReason string `json:"dropped_reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "invalid_body")
		return
	}
	slot, err := h.planService.SetActionStatus(c.Request.Context(), id, c.Param("action_key"), types.SlotStatus(req.Status), req.DroppedReason)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, slot)
}

func (h *PlanHandler) CloseCycle(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	assessment, err := h.planService.CloseCycle(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, assessment)
}

func (h *PlanHandler) StartNewCycle(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	assessment, err := h.planService.StartNewCycle(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, assessment)
}
