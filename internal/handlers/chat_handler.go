package handlers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gofiber/contrib/websocket"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/services"
)

// EndOfStream follows the last chunk of every streamed reply.
const EndOfStream = "__END_OF_STREAM__"

type ChatHandler struct {
	model services.GeminiService
	log   *slog.Logger
}

func NewChatHandler(model services.GeminiService, log *slog.Logger) *ChatHandler {
	return &ChatHandler{
		model: model,
		log:   log.With("component", "chat_handler"),
	}
}

// HandleStream serves GET /chat/ws. Each text frame from the client is one
// user turn; the conversation history lives for the connection. Every turn,
// failed or not, ends with an EndOfStream frame.
func (h *ChatHandler) HandleStream(conn *websocket.Conn) {
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := h.model.StartChat(ctx, services.ChatSystemPrompt, nil)
	if err != nil {
		h.log.Error("❌ Failed to start chat session", "error", err)
		_ = writeChatError(conn, err)
		return
	}

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			h.log.Debug("🔌 Chat connection closed", "error", err)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		message := strings.TrimSpace(string(msg))
		if message == "" {
			continue
		}

		err = session.Stream(ctx, message, func(chunk string) error {
			return conn.WriteMessage(websocket.TextMessage, []byte(chunk))
		})
		if err != nil {
			h.log.Warn("⚠️ Chat reply failed", "error", err)
			if werr := writeChatError(conn, err); werr != nil {
				return
			}
			continue
		}

		if err := conn.WriteMessage(websocket.TextMessage, []byte(EndOfStream)); err != nil {
			return
		}
	}
}

// writeChatError reports err and still terminates the reply with EndOfStream.
func writeChatError(conn *websocket.Conn, err error) error {
	if werr := conn.WriteMessage(websocket.TextMessage, []byte("Error: "+chatErrorMessage(err))); werr != nil {
		return werr
	}
	return conn.WriteMessage(websocket.TextMessage, []byte(EndOfStream))
}

func chatErrorMessage(err error) string {
	if e, ok := apperrors.As(err); ok {
		return e.Message
	}
	return apperrors.ScrubbedMessage
}
