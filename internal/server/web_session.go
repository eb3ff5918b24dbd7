package server

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"snapfeed/internal/cache"
	"snapfeed/internal/middleware"
	"snapfeed/internal/models"

	"github.com/gofiber/fiber/v2"
)

// SessionCookie carries the opaque session id of the web surface.
const SessionCookie = "snapfeed_session"

// Locals keys set by the session middleware.
const (
	localSession = "session"
	localWebUser = "webUser"
)

// Flash kinds rendered by the views.
const (
	flashSuccess = "success"
	flashError   = "error"
	flashInfo    = "info"
)

// methodOverride lets HTML forms send PUT, PATCH and DELETE as a POST with a
// _method field. It has to run before any route handler so the router
// resumes in the overridden method's stack at the same position.
func methodOverride() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodPost {
			switch m := strings.ToUpper(c.FormValue("_method")); m {
			case fiber.MethodPut, fiber.MethodPatch, fiber.MethodDelete:
				c.Method(m)
			}
		}
		return c.Next()
	}
}

// LoadSession resolves the session cookie. A user bound to the session is
// exposed the same way AuthRequired exposes a token's user.
func (s *Server) LoadSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := s.webAuthService.Session(c.UserContext(), c.Cookies(SessionCookie))
		if err != nil {
			slog.WarnContext(c.UserContext(), "session lookup failed", "err", err)
		}
		if sess == nil {
			return c.Next()
		}
		c.Locals(localSession, sess)
		if sess.Authenticated() {
			c.Locals(middleware.LocalUserID, sess.UserID)
			c.SetUserContext(context.WithValue(c.UserContext(), middleware.UserIDKey, sess.UserID))
		}
		return c.Next()
	}
}

// SessionRequired sends guests to the login page and loads the signed-in user.
func (s *Server) SessionRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess := currentSession(c)
		if !sess.Authenticated() {
			return c.Redirect("/login", fiber.StatusSeeOther)
		}
		user, err := s.webAuthService.User(c.UserContext(), sess)
		if err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				// account is gone, drop the dangling session
				s.clearSessionCookie(c)
				return c.Redirect("/login", fiber.StatusSeeOther)
			}
			return s.renderError(c, err)
		}
		c.Locals(localWebUser, user)
		return c.Next()
	}
}

// VerifiedRequired sends signed-in but unverified users to the notice page.
// Must be placed after SessionRequired.
func (s *Server) VerifiedRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := webUser(c)
		if user == nil || !user.HasVerifiedEmail() {
			return c.Redirect("/email/verify", fiber.StatusSeeOther)
		}
		return c.Next()
	}
}

// GuestOnly sends signed-in users to the feed.
func (s *Server) GuestOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if currentSession(c).Authenticated() {
			return c.Redirect("/feed", fiber.StatusSeeOther)
		}
		return c.Next()
	}
}

func currentSession(c *fiber.Ctx) *cache.Session {
	sess, _ := c.Locals(localSession).(*cache.Session)
	return sess
}

func webUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(localWebUser).(*models.User)
	return user
}

func (s *Server) setSessionCookie(c *fiber.Ctx, sess *cache.Session) {
	c.Locals(localSession, sess)
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(c *fiber.Ctx) {
	c.Locals(localSession, nil)
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// redirectWithFlash stores a one-shot message and answers 303. Guests get a
// session just to carry the message.
func (s *Server) redirectWithFlash(c *fiber.Ctx, location, kind, message string) error {
	ctx := c.UserContext()
	sess := currentSession(c)
	if sess == nil {
		guest, err := s.webAuthService.GuestSession(ctx)
		if err != nil {
			slog.WarnContext(ctx, "flash dropped, no session", "err", err)
			return c.Redirect(location, fiber.StatusSeeOther)
		}
		s.setSessionCookie(c, guest)
		sess = guest
	}
	sess.SetFlash(kind, message)
	if err := s.webAuthService.SaveSession(ctx, sess); err != nil {
		slog.WarnContext(ctx, "flash dropped", "err", err)
	}
	return c.Redirect(location, fiber.StatusSeeOther)
}

// backURL is the same-origin referer, or fallback.
func backURL(c *fiber.Ctx, fallback string) string {
	ref := c.Get(fiber.HeaderReferer)
	if ref == "" {
		return fallback
	}
	u, err := url.Parse(ref)
	if err != nil {
		return fallback
	}
	if u.Host != "" && u.Host != string(c.Request().Host()) {
		return fallback
	}
	if u.Path == "" || !strings.HasPrefix(u.Path, "/") {
		return fallback
	}
	return u.RequestURI()
}

// back redirects to the referer with a flash message.
func (s *Server) back(c *fiber.Ctx, fallback, kind, message string) error {
	return s.redirectWithFlash(c, backURL(c, fallback), kind, message)
}

// render writes a view-model: the view name, pending flash messages and
// the handler's data.
func (s *Server) render(c *fiber.Ctx, status int, view string, data fiber.Map) error {
	body := fiber.Map{"view": view, "flash": s.takeFlash(c)}
	if user := webUser(c); user != nil {
		body["auth_user"] = user.Summary()
	}
	for k, v := range data {
		body[k] = v
	}
	return c.Status(status).JSON(body)
}

func (s *Server) takeFlash(c *fiber.Ctx) map[string]string {
	sess := currentSession(c)
	if sess == nil || len(sess.Flash) == 0 {
		return map[string]string{}
	}
	flash := sess.TakeFlash()
	if err := s.webAuthService.SaveSession(c.UserContext(), sess); err != nil {
		slog.WarnContext(c.UserContext(), "failed to clear flash", "err", err)
	}
	return flash
}

// renderError turns a service error into the web surface's response:
// forbidden and missing resources render error views, everything else
// goes back with the message as a flash.
func (s *Server) renderError(c *fiber.Ctx, err error) error {
	switch models.ErrorCode(err) {
	case models.CodeAuthorization:
		return s.render(c, fiber.StatusForbidden, "errors.forbidden", fiber.Map{"message": messageOf(err)})
	case models.CodeNotFound:
		return s.render(c, fiber.StatusNotFound, "errors.not-found", fiber.Map{"message": messageOf(err)})
	case models.CodeValidation, models.CodeDuplicate, models.CodeAuthentication:
		return s.back(c, "/feed", flashError, messageOf(err))
	default:
		slog.ErrorContext(c.UserContext(), "web request failed",
			"method", c.Method(), "path", c.Path(), "err", err)
		return s.back(c, "/feed", flashError, "Something went wrong. Please try again.")
	}
}

func messageOf(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
