package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bussola-digital/bussola-backend/internal/services"
)

type SnapshotHandler struct {
	snapshotService services.SnapshotService
}

func NewSnapshotHandler(snapshotService services.SnapshotService) *SnapshotHandler {
	return &SnapshotHandler{snapshotService: snapshotService}
}

func (h *SnapshotHandler) GetSnapshot(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	snapshot, err := h.snapshotService.Get(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, snapshot)
}

func (h *SnapshotHandler) CompareVersions(c *gin.Context) {
	from, err := strconv.Atoi(c.Query("from"))
	if err != nil {
		RespondBadRequest(c, "invalid_from_version")
		return
	}
	to, err := strconv.Atoi(c.Query("to"))
	if err != nil {
		RespondBadRequest(c, "invalid_to_version")
		return
	}
	comparison, err := h.snapshotService.CompareVersions(c.Request.Context(), from, to)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, comparison)
}
