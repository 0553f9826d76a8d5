package server

import (
	"strings"

	"blueroom/internal/models"
	"blueroom/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// GetSubjects handles GET /api/subjects
// @Summary List subjects
// @Tags catalog
// @Produce json
// @Success 200 {array} models.Subject
// @Router /subjects [get]
func (s *Server) GetSubjects(c *fiber.Ctx) error {
	subjects, err := s.store.Catalog.ListSubjects(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	if subjects == nil {
		subjects = []models.Subject{}
	}
	return c.JSON(subjects)
}

// GetBackgrounds handles GET /api/backgrounds
// @Summary List room backgrounds
// @Tags catalog
// @Produce json
// @Success 200 {array} models.Background
// @Router /backgrounds [get]
func (s *Server) GetBackgrounds(c *fiber.Ctx) error {
	backgrounds, err := s.store.Catalog.ListBackgrounds(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	if backgrounds == nil {
		backgrounds = []models.Background{}
	}
	return c.JSON(backgrounds)
}

// CreateSubject handles POST /api/admin/subjects
// @Summary Create subject
// @Tags admin
// @Accept json
// @Produce json
// @Param request body object{name=string} true "Subject"
// @Success 201 {object} models.Subject
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/subjects [post]
func (s *Server) CreateSubject(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validation.ValidateSubjectName(req.Name); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}

	subject := &models.Subject{Name: req.Name}
	if err := s.store.Catalog.CreateSubject(c.UserContext(), subject); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(subject)
}

// CreateBackground handles POST /api/admin/backgrounds
// @Summary Upload room background
// @Tags admin
// @Accept multipart/form-data
// @Produce json
// @Param name formData string true "Background name"
// @Param image formData file true "Background image"
// @Success 201 {object} models.Background
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/backgrounds [post]
func (s *Server) CreateBackground(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" || len(name) > 100 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Background name must be between 1 and 100 characters"))
	}

	_, content, err := readFormFile(c, "image")
	if err != nil {
		return nil
	}

	url, err := s.imageService.SaveBackground(content)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	background := &models.Background{Name: name, ImageURL: url}
	if err := s.store.Catalog.CreateBackground(c.UserContext(), background); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(background)
}
