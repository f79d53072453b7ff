package handlers

import (
	"context"
	"strconv"

	"github.com/campusrun/backend/internal/core/ports"
	"github.com/campusrun/backend/internal/core/services"
	"github.com/campusrun/backend/internal/infrastructure/logger"
	"github.com/gofiber/contrib/websocket"
)

// EventsHandler streams change events over websocket. The transport makes no
// delivery promises beyond best effort: replayed and live events may overlap
// or arrive out of order, and the client reconciler restores order from the
// sequence numbers.
type EventsHandler struct {
	propagator *services.Propagator
	timeline   ports.TimelineRepository
	logger     *logger.Logger
}

func NewEventsHandler(propagator *services.Propagator, timeline ports.TimelineRepository, logger *logger.Logger) *EventsHandler {
	return &EventsHandler{
		propagator: propagator,
		timeline:   timeline,
		logger:     logger,
	}
}

// HandleTask serves one task's stream. since_sequence triggers a timeline
// replay before live delivery, which is how reconnecting clients catch up.
func (h *EventsHandler) HandleTask(c *websocket.Conn) {
	taskID := c.Params("id")

	var since uint64
	if sinceStr := c.Query("since_sequence"); sinceStr != "" {
		parsed, err := strconv.ParseUint(sinceStr, 10, 64)
		if err != nil {
			h.logger.Warnw("events_invalid_since_sequence", "task_id", taskID, "value", sinceStr)
			c.Close()
			return
		}
		since = parsed
	}

	// Subscribe before replaying so the window between the two holds
	// duplicates, not gaps.
	sub := h.propagator.SubscribeTask(taskID)
	defer sub.Close()

	events, err := h.timeline.ReadFrom(context.Background(), taskID, since)
	if err != nil {
		h.logger.Errorw("events_replay_failed", "task_id", taskID, "error", err)
		c.Close()
		return
	}
	for i := range events {
		if err := c.WriteJSON(events[i].Change()); err != nil {
			return
		}
	}

	h.logger.Infow("events_task_stream_open", "task_id", taskID, "since", since)
	h.pump(c, sub)
}

// HandleParticipant streams every event addressed to one participant, for
// cross-surface consumers. Cold-start catch-up goes through the per-task
// timeline endpoint instead of a replay here.
func (h *EventsHandler) HandleParticipant(c *websocket.Conn) {
	participantID := c.Params("id")

	sub := h.propagator.SubscribeParticipant(participantID)
	defer sub.Close()

	h.logger.Infow("events_participant_stream_open", "participant", participantID)
	h.pump(c, sub)
}

func (h *EventsHandler) pump(c *websocket.Conn, sub services.Subscription) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := c.WriteJSON(event); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
