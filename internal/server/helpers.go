package server

import (
	"errors"
	"log/slog"
	"strings"
	"unicode"

	"snapfeed/internal/middleware"
	"snapfeed/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "post" -> "post ID", "commentId" -> "comment ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	param = strings.TrimSuffix(param, "Id")
	return strings.ToLower(strings.Join(splitCamel(param), " ")) + " ID"
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// pageParams reads ?page= and ?per_page=. Services clamp the values.
func pageParams(c *fiber.Ctx) (page, perPage int) {
	return c.QueryInt("page", 1), c.QueryInt("per_page", 0)
}

// respondAppError writes err with the status its code maps to. Internal
// errors are logged since their details never reach the client.
func respondAppError(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status == fiber.StatusInternalServerError {
		slog.ErrorContext(c.UserContext(), "request failed",
			"method", c.Method(), "path", c.Path(), "err", err)
		if models.ErrorCode(err) == "" {
			err = models.NewInternalError(err)
		}
	}
	return models.RespondWithError(c, status, err)
}

// localUserID returns the id AuthRequired or LoadSession stored.
func localUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals(middleware.LocalUserID).(uint)
	return id
}

// actor loads the authenticated API caller.
func (s *Server) actor(c *fiber.Ctx) (*models.User, error) {
	id := localUserID(c)
	if id == 0 {
		return nil, models.NewAuthenticationError("Unauthenticated.")
	}
	return s.userRepo.GetByID(c.UserContext(), id)
}

// optionalString trims a pointer field and leaves nil alone.
func optionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	return &trimmed
}
