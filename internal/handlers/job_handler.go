package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/events"
	"github.com/MLSAKIIT/Showcase/internal/models"
	"github.com/MLSAKIIT/Showcase/internal/services"
)

type JobHandler struct {
	jobs services.JobService
	bus  events.Bus
	log  *slog.Logger
}

func NewJobHandler(jobs services.JobService, bus events.Bus, log *slog.Logger) *JobHandler {
	return &JobHandler{
		jobs: jobs,
		bus:  bus,
		log:  log.With("component", "job_handler"),
	}
}

// HandleGetStatus handles GET /jobs/:job_id
func (h *JobHandler) HandleGetStatus(c *fiber.Ctx) error {
	status, err := h.jobs.GetStatus(c.UserContext(), c.Params("job_id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, status)
}

// RequireUpgrade rejects plain HTTP requests on websocket routes.
func RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// HandleStream serves GET /jobs/:job_id/ws. The current status is sent
// first, then every published event until the job reaches a terminal status
// or the client goes away. If the bus drops the subscription the latest
// status is sent once more before closing.
func (h *JobHandler) HandleStream(conn *websocket.Conn) {
	defer conn.Close()
	jobID := conn.Params("job_id")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Subscribe before reading the snapshot so no transition falls in between.
	stream, unsubscribe, err := h.bus.Subscribe(ctx, jobID)
	if err != nil {
		h.log.Error("❌ Failed to subscribe to job events", "job_id", jobID, "error", err)
		writeWSError(conn, err)
		return
	}
	defer unsubscribe()

	status, err := h.jobs.GetStatus(ctx, jobID)
	if err != nil {
		writeWSError(conn, err)
		return
	}
	snapshot := snapshotEvent(status)
	if err := conn.WriteJSON(snapshot); err != nil || snapshot.Terminal() {
		return
	}

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-stream:
			if !ok {
				// Dropped by the bus; finish with a fresh snapshot.
				h.resendSnapshot(ctx, conn, jobID)
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				h.log.Debug("🔌 Job stream closed", "job_id", jobID, "error", err)
				return
			}
			if event.Terminal() {
				return
			}
		}
	}
}

func (h *JobHandler) resendSnapshot(ctx context.Context, conn *websocket.Conn, jobID string) {
	if ctx.Err() != nil {
		return
	}
	status, err := h.jobs.GetStatus(ctx, jobID)
	if err != nil {
		writeWSError(conn, err)
		return
	}
	_ = conn.WriteJSON(snapshotEvent(status))
}

func snapshotEvent(status *models.JobStatusResponse) events.JobEvent {
	return events.JobEvent{
		JobID:              status.JobID,
		Status:             status.Status,
		ProgressPercentage: status.ProgressPercentage,
		CurrentStage:       status.CurrentStage,
		ErrorMessage:       status.ErrorMessage,
		PortfolioID:        status.PortfolioID,
		Timestamp:          status.UpdatedAt,
	}
}

func writeWSError(conn *websocket.Conn, err error) {
	body := ErrorBody{ErrorType: string(apperrors.KindInternal), Message: apperrors.ScrubbedMessage}
	if e, ok := apperrors.As(err); ok {
		body = ErrorBody{ErrorType: string(e.Kind), Message: e.Message, Field: e.Field}
	}
	_ = conn.WriteJSON(Envelope{Success: false, Error: &body, Meta: Meta{Timestamp: time.Now().UTC()}})
}
