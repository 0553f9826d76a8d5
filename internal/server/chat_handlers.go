package server

import (
	"blueroom/internal/models"

	"github.com/gofiber/fiber/v2"
)

// SendMessageRequest is the body of POST /api/rooms/:id/messages.
type SendMessageRequest struct {
	Content     string             `json:"content"`
	MessageType models.MessageType `json:"message_type"`
}

// GetRoomMessages handles GET /api/rooms/:id/messages
// @Summary Room chat history
// @Tags chat
// @Produce json
// @Param id path int true "Room ID"
// @Success 200 {array} models.ChatEntry
// @Security BearerAuth
// @Router /rooms/{id}/messages [get]
func (s *Server) GetRoomMessages(c *fiber.Ctx) error {
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	history, err := s.chatService.History(c.UserContext(), roomID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if history == nil {
		history = []models.ChatEntry{}
	}
	return c.JSON(history)
}

// SendRoomMessage handles POST /api/rooms/:id/messages. The message is
// broadcast to the room's sockets like one sent over the websocket.
// @Summary Send a chat message
// @Tags chat
// @Accept json
// @Produce json
// @Param id path int true "Room ID"
// @Param request body SendMessageRequest true "Message"
// @Success 201 {object} models.ChatEntry
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /rooms/{id}/messages [post]
func (s *Server) SendRoomMessage(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.MessageType == "" {
		req.MessageType = models.MessageText
	}

	entry, err := s.chatService.Send(c.UserContext(), userID, roomID, req.Content, req.MessageType)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

// ShareRoomFile handles POST /api/rooms/:id/share
// @Summary Share a file into a room
// @Tags chat
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Room ID"
// @Param file formData file true "File to share"
// @Success 201 {object} service.SharedFile
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /rooms/{id}/share [post]
func (s *Server) ShareRoomFile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	filename, content, err := readFormFile(c, "file")
	if err != nil {
		return nil
	}

	shared, err := s.chatService.ShareFile(c.UserContext(), userID, roomID, filename, content)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(shared)
}
