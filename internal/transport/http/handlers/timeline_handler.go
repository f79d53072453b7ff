package handlers

import (
	"strconv"

	"github.com/campusrun/backend/internal/core/ports"
	"github.com/campusrun/backend/internal/transport/http/dto"
	"github.com/gofiber/fiber/v2"
)

type TimelineHandler struct {
	repo ports.TimelineRepository
}

func NewTimelineHandler(repo ports.TimelineRepository) *TimelineHandler {
	return &TimelineHandler{repo: repo}
}

// GetEvents replays the status history of one task from since_sequence,
// ordered by sequence. Clients use it for display and for gap repair.
func (h *TimelineHandler) GetEvents(c *fiber.Ctx) error {
	taskID := c.Params("id")

	var since uint64
	if sinceStr := c.Query("since_sequence"); sinceStr != "" {
		parsed, err := strconv.ParseUint(sinceStr, 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid since_sequence"})
		}
		since = parsed
	}

	events, err := h.repo.ReadFrom(c.Context(), taskID, since)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.EventsToChanges(events))
}
