package server

import (
	"blueroom/internal/models"
	"blueroom/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetAccountsReport handles GET /api/admin/reports/accounts
// @Summary Account report
// @Tags reports
// @Produce json
// @Success 200 {object} service.AccountReport
// @Security BearerAuth
// @Router /admin/reports/accounts [get]
func (s *Server) GetAccountsReport(c *fiber.Ctx) error {
	report, err := s.reportService.Accounts(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(report)
}

// GetRoomTypesReport handles GET /api/admin/reports/rooms/types
// @Summary Public and private room counts
// @Tags reports
// @Produce json
// @Success 200 {object} service.RoomTypeReport
// @Security BearerAuth
// @Router /admin/reports/rooms/types [get]
func (s *Server) GetRoomTypesReport(c *fiber.Ctx) error {
	report, err := s.reportService.RoomTypes(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(report)
}

// GetRoomActivityReport handles GET /api/admin/reports/rooms/active
// @Summary Active and inactive room counts
// @Tags reports
// @Produce json
// @Success 200 {object} service.RoomActivityReport
// @Security BearerAuth
// @Router /admin/reports/rooms/active [get]
func (s *Server) GetRoomActivityReport(c *fiber.Ctx) error {
	report, err := s.reportService.RoomActivity(c.UserContext())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(report)
}

// GetRoomsCreatedReport handles GET /api/admin/reports/rooms/created
// @Summary Rooms created in a date range
// @Tags reports
// @Produce json
// @Param start_date query string true "First day, YYYY-MM-DD"
// @Param end_date query string true "Last day, YYYY-MM-DD"
// @Success 200 {object} service.RoomsCreatedReport
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/reports/rooms/created [get]
func (s *Server) GetRoomsCreatedReport(c *fiber.Ctx) error {
	report, err := s.reportService.RoomsCreated(c.UserContext(), c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(report)
}

// GetPopularRoomsReport handles GET /api/admin/reports/rooms/popular
// @Summary Most attended rooms
// @Tags reports
// @Produce json
// @Param n query int false "Number of rooms (1-100)" default(10)
// @Success 200 {object} service.PopularRoomsReport
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/reports/rooms/popular [get]
func (s *Server) GetPopularRoomsReport(c *fiber.Ctx) error {
	report, err := s.reportService.PopularRooms(c.UserContext(), c.QueryInt("n", service.DefaultPopularRooms))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(report)
}
