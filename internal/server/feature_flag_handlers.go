package server

import (
	"blueroom/internal/featureflags"

	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags handles GET /api/admin/feature-flags
// @Summary Feature flags
// @Description Configured flags, their value for the caller and the disconnect grace period
// @Tags admin
// @Produce json
// @Success 200 {object} object{raw=map[string]string,evaluated=map[string]bool,disconnect_grace_seconds=int}
// @Security BearerAuth
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)

	raw := map[string]string{}
	evaluated := map[string]bool{}
	if s.featureFlags != nil {
		raw = s.featureFlags.Raw()
		evaluated = s.featureFlags.Snapshot(userID)
	}
	// report the disconnect flag even when it is not configured
	if _, ok := evaluated[featureflags.AutoLeaveOnDisconnect]; !ok {
		evaluated[featureflags.AutoLeaveOnDisconnect] = false
	}

	return c.JSON(fiber.Map{
		"raw":                      raw,
		"evaluated":                evaluated,
		"disconnect_grace_seconds": int(s.config.DisconnectGrace().Seconds()),
	})
}
