package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags returns the known flags and their state for the current user.
// @Summary Feature flags
// @Tags flags
// @Produce json
// @Success 200 {object} object{flags=[]string,evaluated=map[string]bool}
// @Router /feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID := currentUserID(c)

	if s.featureFlags == nil {
		return c.JSON(fiber.Map{
			"flags":     []string{},
			"evaluated": map[string]bool{},
		})
	}

	return c.JSON(fiber.Map{
		"flags":     s.featureFlags.Names(),
		"evaluated": s.featureFlags.Snapshot(userID),
	})
}
