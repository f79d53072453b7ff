package handlers

import (
	"errors"

	"github.com/campusrun/backend/internal/core/ports"
	"github.com/campusrun/backend/internal/core/services"
	"github.com/campusrun/backend/internal/infrastructure/logger"
	"github.com/campusrun/backend/internal/transport/http/dto"
	"github.com/campusrun/backend/internal/transport/http/middleware"
	"github.com/gofiber/fiber/v2"
)

// LifecycleHandler exposes accept and transition. Every error is typed so
// clients can branch: NoLongerAvailable -> refresh the list, Conflict ->
// retry once, IllegalTransition -> caller defect, do not retry.
type LifecycleHandler struct {
	acceptance  ports.AcceptanceService
	transitions ports.TransitionService
	logger      *logger.Logger
}

func NewLifecycleHandler(acceptance ports.AcceptanceService, transitions ports.TransitionService, logger *logger.Logger) *LifecycleHandler {
	return &LifecycleHandler{
		acceptance:  acceptance,
		transitions: transitions,
		logger:      logger,
	}
}

func (h *LifecycleHandler) Accept(c *fiber.Ctx) error {
	taskID := c.Params("id")
	actorID := middleware.ActorID(c)

	h.logger.Infow("task_accept_request", "id", taskID, "actor", actorID)
	task, err := h.acceptance.Accept(c.Context(), taskID, actorID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTaskNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: "task not found",
			})
		case errors.Is(err, services.ErrTaskNotAuthorized):
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: "cannot accept your own task",
			})
		case errors.Is(err, services.ErrTaskNoLongerAvailable):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: "task no longer available",
			})
		}
		h.logger.Errorw("task_accept_failed", "id", taskID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(dto.TaskToResponse(task))
}

func (h *LifecycleHandler) Transition(c *fiber.Ctx) error {
	taskID := c.Params("id")
	actorID := middleware.ActorID(c)

	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warnw("task_transition_body_parse_failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
		})
	}
	if errs := req.Validate(); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "validation failed",
			Details: errs,
		})
	}

	h.logger.Infow("task_transition_request", "id", taskID, "actor", actorID, "requested", req.RequestedStatus)
	task, err := h.transitions.Transition(c.Context(), taskID, actorID, req.Status())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTaskNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: "task not found",
			})
		case errors.Is(err, services.ErrTaskNotAuthorized):
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: "not authorized for this transition",
			})
		case errors.Is(err, services.ErrTaskIllegalTransition):
			// The wrapped message names the current and requested status.
			return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{
				Error: err.Error(),
			})
		case errors.Is(err, services.ErrTaskConflict):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Error: "conflicting concurrent update, try again",
			})
		case errors.Is(err, services.ErrTaskInvalidInput):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: err.Error(),
			})
		}
		h.logger.Errorw("task_transition_failed", "id", taskID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(dto.TaskToResponse(task))
}
