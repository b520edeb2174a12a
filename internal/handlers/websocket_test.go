package handlers

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	wsclient "github.com/fasthttp/websocket"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/events"
	"github.com/MLSAKIIT/Showcase/internal/models"
	"github.com/MLSAKIIT/Showcase/internal/services"
)

type stubChatModel struct {
	services.GeminiService
}

func (stubChatModel) StartChat(context.Context, string, []services.ChatTurn) (services.ChatSession, error) {
	return stubChatSession{}, nil
}

type stubChatSession struct{}

func (stubChatSession) Stream(_ context.Context, message string, onChunk func(string) error) error {
	if message == "fail" {
		return apperrors.ExternalService("gemini", 503, "Model provider is unavailable", nil)
	}
	if err := onChunk("Hello, "); err != nil {
		return err
	}
	return onChunk(message)
}

// serveWS starts app on a loopback port and returns the ws:// base URL.
func serveWS(t *testing.T, app *fiber.App) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "ws://" + ln.Addr().String()
}

func dialWS(t *testing.T, url string) *wsclient.Conn {
	t.Helper()
	conn, _, err := wsclient.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func readText(t *testing.T, conn *wsclient.Conn) string {
	t.Helper()
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(msg)
}

func TestChatStream(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewChatHandler(stubChatModel{}, log)

	app := fiber.New()
	app.Get("/chat/ws", RequireUpgrade, websocket.New(h.HandleStream))
	conn := dialWS(t, serveWS(t, app)+"/chat/ws")

	require.NoError(t, conn.WriteMessage(wsclient.TextMessage, []byte("world")))
	assert.Equal(t, "Hello, ", readText(t, conn))
	assert.Equal(t, "world", readText(t, conn))
	assert.Equal(t, EndOfStream, readText(t, conn))

	require.NoError(t, conn.WriteMessage(wsclient.TextMessage, []byte("fail")))
	assert.Equal(t, "Error: Model provider is unavailable", readText(t, conn))
	assert.Equal(t, EndOfStream, readText(t, conn), "a failed turn still ends with the sentinel")

	require.NoError(t, conn.WriteMessage(wsclient.TextMessage, []byte("again")))
	assert.Equal(t, "Hello, ", readText(t, conn))
	assert.Equal(t, "again", readText(t, conn))
	assert.Equal(t, EndOfStream, readText(t, conn))
}

func TestJobStream(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := events.NewMemoryBus()
	jobs := &stubJobs{status: func(jobID string) (*models.JobStatusResponse, error) {
		return &models.JobStatusResponse{
			JobID:              jobID,
			Status:             string(models.JobStatusProcessing),
			ProgressPercentage: 5,
			CurrentStage:       models.StageStarting,
		}, nil
	}}
	h := NewJobHandler(jobs, bus, log)

	app := fiber.New()
	app.Get("/jobs/:job_id/ws", RequireUpgrade, websocket.New(h.HandleStream))
	conn := dialWS(t, serveWS(t, app)+"/jobs/job-7/ws")

	var snapshot events.JobEvent
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, "job-7", snapshot.JobID)
	assert.Equal(t, string(models.JobStatusProcessing), snapshot.Status)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, events.JobEvent{JobID: "job-7", Status: string(models.JobStatusAIGenerating), ProgressPercentage: 40}))
	require.NoError(t, bus.Publish(ctx, events.JobEvent{JobID: "job-7", Status: string(models.JobStatusCompleted), ProgressPercentage: 100}))

	var ev events.JobEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, 40, ev.ProgressPercentage)
	require.NoError(t, conn.ReadJSON(&ev))
	assert.True(t, ev.Terminal())

	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "the server closes the stream after a terminal event")
}
