package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"haven/internal/command"
	"haven/internal/middleware"
	"haven/internal/models"
	"haven/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// wsFrame is an incoming WebSocket frame. Frames of type "message" carry
// chat text; frames of type "command" carry slash-command input. Plain
// message frames starting with "/" are treated as commands.
type wsFrame struct {
	Type      string `json:"type"`
	ChannelID uint   `json:"channel_id"`
	Content   string `json:"content"`
}

// WebSocketChatHandler handles WebSocket connections for real-time chat
func (s *Server) WebSocketChatHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		ctx := context.Background()

		// Get userID from context locals (set by AuthRequired middleware)
		userIDVal := conn.Locals("userID")
		if userIDVal == nil {
			log.Printf("WebSocket: Unauthenticated connection attempt")
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"message":"unauthorized"}}`))
			_ = conn.Close()
			return
		}
		userID := userIDVal.(uint)

		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			log.Printf("WebSocket: Failed to get user %d: %v", userID, err)
			_ = conn.Close()
			return
		}
		username := user.Username

		client, err := s.roomHub.Register(userID, conn)
		if err != nil {
			log.Printf("WebSocket: Failed to register user %d: %v", userID, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"message":"`+err.Error()+`"}}`))
			_ = conn.Close()
			return
		}

		// Subscriptions mirror persisted membership, not a join protocol:
		// the store is the truth and the hub follows it.
		channelIDs, err := s.membershipRepo.ListChannelIDsByUser(ctx, userID)
		if err != nil {
			log.Printf("WebSocket: Failed to load memberships for user %d: %v", userID, err)
		}
		for _, channelID := range channelIDs {
			s.roomHub.JoinRoom(userID, channelID)
		}

		s.connMgr.Register(ctx, userID)

		client.IncomingHandler = func(c *notifications.Client, message []byte) {
			s.handleIncomingFrame(ctx, c, userID, username, message)
		}

		welcome := notifications.Event{
			Type: "connected",
			Payload: map[string]interface{}{
				"user_id":     userID,
				"username":    username,
				"channel_ids": channelIDs,
			},
		}
		if welcomeJSON, err := json.Marshal(welcome); err == nil {
			client.TrySend(welcomeJSON)
		}

		go client.WritePump()

		// Read pump runs in the main handler goroutine (blocking)
		client.ReadPump()

		s.connMgr.Unregister(ctx, userID)
	})
}

func (s *Server) handleIncomingFrame(ctx context.Context, c *notifications.Client, userID uint, username string, raw []byte) {
	s.connMgr.Touch(ctx, userID)

	var frame wsFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.sendClientError(c, 0, models.NewValidationError("Invalid frame format"))
		return
	}

	switch frame.Type {
	case "command":
		s.handleCommandFrame(ctx, c, userID, frame)
	case "message":
		if cmd, err := command.Parse(frame.Content); err == nil {
			s.runCommand(ctx, c, userID, frame.ChannelID, cmd)
			return
		} else if !errors.Is(err, command.ErrNotCommand) {
			s.sendClientError(c, frame.ChannelID, models.NewValidationError(err.Error()))
			return
		}
		s.handleMessageFrame(ctx, c, userID, username, frame)
	default:
		s.sendClientError(c, frame.ChannelID, models.NewValidationError("Unknown frame type"))
	}
}

func (s *Server) handleCommandFrame(ctx context.Context, c *notifications.Client, userID uint, frame wsFrame) {
	cmd, err := command.Parse(frame.Content)
	if err != nil {
		if errors.Is(err, command.ErrNotCommand) {
			err = fmt.Errorf("command frames must start with /")
		}
		s.sendClientError(c, frame.ChannelID, models.NewValidationError(err.Error()))
		return
	}
	s.runCommand(ctx, c, userID, frame.ChannelID, cmd)
}

// runCommand executes a parsed command and reports the outcome to the
// issuing client. Errors go only to the issuer, never to the room.
func (s *Server) runCommand(ctx context.Context, c *notifications.Client, userID, channelID uint, cmd *command.Command) {
	result, err := s.dispatcher.Execute(ctx, userID, channelID, cmd)
	if err != nil {
		s.sendClientError(c, channelID, err)
		return
	}

	s.publishCommandEvents(ctx, userID, result)

	ack := notifications.Event{
		Type:      "command_result",
		ChannelID: channelID,
		UserID:    userID,
		Payload:   result,
	}
	if ackJSON, err := json.Marshal(ack); err == nil {
		c.TrySend(ackJSON)
	}
}

func (s *Server) handleMessageFrame(ctx context.Context, c *notifications.Client, userID uint, username string, frame wsFrame) {
	if frame.ChannelID == 0 {
		s.sendClientError(c, 0, models.NewValidationError("channel_id is required"))
		return
	}

	// Same rate limit as the HTTP endpoint.
	id := fmt.Sprintf("user:%d", userID)
	allowed, _ := middleware.CheckRateLimit(ctx, s.redis, "send_message", id, 30, time.Minute)
	if !allowed {
		s.sendClientError(c, frame.ChannelID,
			models.NewValidationError("Rate limit exceeded. Please wait a moment."))
		return
	}

	message, err := s.chat.PostMessage(ctx, userID, frame.ChannelID, frame.Content)
	if err != nil {
		s.sendClientError(c, frame.ChannelID, err)
		return
	}

	s.publishRoomEvent(frame.ChannelID, notifications.Event{
		Type:     notifications.EventMessage,
		UserID:   userID,
		Username: username,
		Payload:  message,
	})
}

// sendClientError delivers an error event to the issuing client only.
func (s *Server) sendClientError(c *notifications.Client, channelID uint, err error) {
	var appErr *models.AppError
	code := models.CodeInternal
	if errors.As(err, &appErr) {
		code = appErr.Code
	}

	event := notifications.Event{
		Type:      notifications.EventError,
		ChannelID: channelID,
		Payload: map[string]interface{}{
			"code":    code,
			"message": err.Error(),
		},
	}
	if eventJSON, marshalErr := json.Marshal(event); marshalErr == nil {
		c.TrySend(eventJSON)
	}
}
