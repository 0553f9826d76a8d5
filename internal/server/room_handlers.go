package server

import (
	"blueroom/internal/models"
	"blueroom/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateRoomRequest is the body of POST /api/rooms.
type CreateRoomRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	IsPrivate    bool   `json:"is_private"`
	EnableMic    bool   `json:"enable_mic"`
	BackgroundID *uint  `json:"background_id"`
	SubjectIDs   []uint `json:"subjects"`
}

// UpdateRoomRequest is the body of PUT /api/rooms/:id. Omitted fields are kept.
type UpdateRoomRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	IsPrivate    *bool   `json:"is_private"`
	EnableMic    *bool   `json:"enable_mic"`
	BackgroundID *uint   `json:"background_id"`
	SubjectIDs   []uint  `json:"subjects"`
}

// UpdateParticipantRequest is the body of PUT /api/rooms/:id/participants/:userId.
type UpdateParticipantRequest struct {
	MicAllow  *bool `json:"mic_allow"`
	ChatAllow *bool `json:"chat_allow"`
	IsBlocked bool  `json:"is_blocked"`
}

// GetActiveRooms handles GET /api/rooms/active
// @Summary List active rooms
// @Description Active rooms newest first, optionally filtered by title or subject
// @Tags rooms
// @Produce json
// @Param q query string false "Title or subject search"
// @Success 200 {array} models.Room
// @Security BearerAuth
// @Router /rooms/active [get]
func (s *Server) GetActiveRooms(c *fiber.Ctx) error {
	rooms, err := s.roomService.ListActive(c.UserContext(), c.Query("q"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if rooms == nil {
		rooms = []models.Room{}
	}
	return c.JSON(rooms)
}

// CreateRoom handles POST /api/rooms
// @Summary Create a room
// @Description Create a room owned by the caller, who joins it immediately
// @Tags rooms
// @Accept json
// @Produce json
// @Param request body CreateRoomRequest true "Room settings"
// @Success 201 {object} models.Room
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /rooms [post]
func (s *Server) CreateRoom(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	room, err := s.roomService.CreateRoom(c.UserContext(), userID, service.CreateRoomInput{
		Title:        req.Title,
		Description:  req.Description,
		IsPrivate:    req.IsPrivate,
		EnableMic:    req.EnableMic,
		BackgroundID: req.BackgroundID,
		SubjectIDs:   req.SubjectIDs,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(room)
}

// GetRoom handles GET /api/rooms/:id
// @Summary Get room
// @Tags rooms
// @Produce json
// @Param id path int true "Room ID"
// @Success 200 {object} models.Room
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /rooms/{id} [get]
func (s *Server) GetRoom(c *fiber.Ctx) error {
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	room, err := s.roomService.Get(c.UserContext(), roomID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(room)
}

// UpdateRoom handles PUT /api/rooms/:id
// @Summary Update room settings
// @Tags rooms
// @Accept json
// @Produce json
// @Param id path int true "Room ID"
// @Param request body UpdateRoomRequest true "Changed settings"
// @Success 200 {object} models.Room
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /rooms/{id} [put]
func (s *Server) UpdateRoom(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req UpdateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	room, err := s.roomService.UpdateRoom(c.UserContext(), userID, roomID, service.UpdateRoomInput{
		Title:        req.Title,
		Description:  req.Description,
		IsPrivate:    req.IsPrivate,
		EnableMic:    req.EnableMic,
		BackgroundID: req.BackgroundID,
		SubjectIDs:   req.SubjectIDs,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(room)
}

// GetRoomMembers handles GET /api/rooms/:id/members
// @Summary List room members
// @Tags rooms
// @Produce json
// @Param id path int true "Room ID"
// @Success 200 {array} models.Member
// @Security BearerAuth
// @Router /rooms/{id}/members [get]
func (s *Server) GetRoomMembers(c *fiber.Ctx) error {
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	members, err := s.roomService.Members(c.UserContext(), roomID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if members == nil {
		members = []models.Member{}
	}
	return c.JSON(members)
}

// JoinRoom handles POST /api/rooms/:id/join
// @Summary Join a room
// @Tags rooms
// @Produce json
// @Param id path int true "Room ID"
// @Success 200 {object} models.Participation
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /rooms/{id}/join [post]
func (s *Server) JoinRoom(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	participation, err := s.roomService.Join(c.UserContext(), userID, roomID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(participation)
}

// LeaveRoom handles POST /api/rooms/:id/leave. An owner leaving closes the room.
// @Summary Leave a room
// @Tags rooms
// @Produce json
// @Param id path int true "Room ID"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /rooms/{id}/leave [post]
func (s *Server) LeaveRoom(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.roomService.Leave(c.UserContext(), userID, roomID); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Left room"})
}

// ToggleMic handles POST /api/rooms/:id/mic
// @Summary Toggle own microphone
// @Tags rooms
// @Produce json
// @Param id path int true "Room ID"
// @Success 200 {object} object{mic_allow=bool}
// @Security BearerAuth
// @Router /rooms/{id}/mic [post]
func (s *Server) ToggleMic(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	micAllow, err := s.roomService.ToggleMic(c.UserContext(), userID, roomID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"mic_allow": micAllow})
}

// UpdateParticipant handles PUT /api/rooms/:id/participants/:userId
// @Summary Change a participant's permissions
// @Tags rooms
// @Accept json
// @Produce json
// @Param id path int true "Room ID"
// @Param userId path int true "Participant user ID"
// @Param request body UpdateParticipantRequest true "Permissions"
// @Success 200 {object} models.Participation
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /rooms/{id}/participants/{userId} [put]
func (s *Server) UpdateParticipant(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	var req UpdateParticipantRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	participation, err := s.roomService.SetPermissions(c.UserContext(), userID, roomID, targetID, service.PermissionsInput{
		MicAllow:  req.MicAllow,
		ChatAllow: req.ChatAllow,
		Blocked:   req.IsBlocked,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(participation)
}

// BlockParticipant handles POST /api/rooms/:id/participants/:userId/block
// @Summary Block a participant
// @Description Removes the participant; a blocked user cannot rejoin
// @Tags rooms
// @Produce json
// @Param id path int true "Room ID"
// @Param userId path int true "Participant user ID"
// @Success 200 {object} object{message=string}
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /rooms/{id}/participants/{userId}/block [post]
func (s *Server) BlockParticipant(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.roomService.Block(c.UserContext(), userID, roomID, targetID); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Participant blocked"})
}
