package server

import (
	"log/slog"
	"strings"

	"snapfeed/internal/models"
	"snapfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

type webLoginForm struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	Remember string `form:"remember" json:"remember"`
}

type webRegisterForm struct {
	Name                 string `form:"name" json:"name"`
	Username             string `form:"username" json:"username"`
	Email                string `form:"email" json:"email"`
	Password             string `form:"password" json:"password"`
	PasswordConfirmation string `form:"password_confirmation" json:"password_confirmation"`
}

// checkbox reports whether an HTML checkbox value is ticked.
func checkbox(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "off":
		return false
	default:
		return true
	}
}

// WebWelcome handles GET /
func (s *Server) WebWelcome(c *fiber.Ctx) error {
	if sess := currentSession(c); sess.Authenticated() {
		user, err := s.webAuthService.User(c.UserContext(), sess)
		if err == nil && user.HasVerifiedEmail() {
			return c.Redirect("/feed", fiber.StatusSeeOther)
		}
	}
	return s.render(c, fiber.StatusOK, "welcome", nil)
}

// WebShowLogin handles GET /login
func (s *Server) WebShowLogin(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "auth.login", nil)
}

// WebShowRegister handles GET /register
func (s *Server) WebShowRegister(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "auth.register", nil)
}

// WebLogin handles POST /login
func (s *Server) WebLogin(c *fiber.Ctx) error {
	var form webLoginForm
	if err := c.BodyParser(&form); err != nil {
		return s.back(c, "/login", flashError, "Invalid form submission.")
	}

	var currentID string
	if sess := currentSession(c); sess != nil {
		currentID = sess.ID
	}
	_, sess, err := s.webAuthService.Login(c.UserContext(), service.WebLoginInput{
		Email:    form.Email,
		Password: form.Password,
		Remember: checkbox(form.Remember),
	}, currentID)
	if err != nil {
		return s.renderError(c, err)
	}

	s.setSessionCookie(c, sess)
	return s.redirectWithFlash(c, "/feed", flashSuccess, "Welcome back!")
}

// WebRegister handles POST /register
func (s *Server) WebRegister(c *fiber.Ctx) error {
	var form webRegisterForm
	if err := c.BodyParser(&form); err != nil {
		return s.back(c, "/register", flashError, "Invalid form submission.")
	}
	if form.Password != form.PasswordConfirmation {
		return s.back(c, "/register", flashError, "The password field confirmation does not match.")
	}

	var currentID string
	if sess := currentSession(c); sess != nil {
		currentID = sess.ID
	}
	_, sess, err := s.webAuthService.Register(c.UserContext(), service.WebRegisterInput{
		Name:     form.Name,
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
	}, currentID)
	if err != nil {
		return s.renderError(c, err)
	}

	s.setSessionCookie(c, sess)
	return s.redirectWithFlash(c, "/email/verify", flashSuccess,
		"Registration successful! Please verify your email address.")
}

// WebVerifyNotice handles GET /email/verify
func (s *Server) WebVerifyNotice(c *fiber.Ctx) error {
	user := webUser(c)
	if user.HasVerifiedEmail() {
		return s.redirectWithFlash(c, "/feed", flashInfo, "Your email is already verified.")
	}
	return s.render(c, fiber.StatusOK, "auth.verify-email", fiber.Map{"user": user.Summary()})
}

// WebVerifyEmail handles GET /email/verify/:id/:hash
func (s *Server) WebVerifyEmail(c *fiber.Ctx) error {
	user := webUser(c)
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 || uint(id) != user.ID {
		return s.renderError(c, models.NewAuthorizationError("Invalid or expired verification link."))
	}

	already, err := s.verification.Verify(c.UserContext(), user.ID, c.Params("hash"), c.Query("signature"))
	if err != nil {
		return s.renderError(c, err)
	}
	if already {
		return s.redirectWithFlash(c, "/feed", flashInfo, "Your email is already verified.")
	}
	return s.redirectWithFlash(c, "/feed", flashSuccess, "Your email has been verified!")
}

// WebResendVerification handles POST /email/verification-notification
func (s *Server) WebResendVerification(c *fiber.Ctx) error {
	already, err := s.verification.Resend(c.UserContext(), webUser(c), service.SurfaceWeb)
	if err != nil {
		return s.renderError(c, err)
	}
	if already {
		return s.redirectWithFlash(c, "/feed", flashInfo, "Your email is already verified.")
	}
	return s.back(c, "/email/verify", flashSuccess, "Verification link has been sent to your email!")
}

// WebLogout handles POST /logout
func (s *Server) WebLogout(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if err := s.webAuthService.Logout(ctx, webUser(c), currentSession(c).ID); err != nil {
		return s.renderError(c, err)
	}
	s.clearSessionCookie(c)

	// a fresh guest session carries the goodbye message
	guest, err := s.webAuthService.GuestSession(ctx)
	if err != nil {
		slog.WarnContext(ctx, "logout flash dropped", "err", err)
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	s.setSessionCookie(c, guest)
	return s.redirectWithFlash(c, "/", flashSuccess, "You have been logged out successfully.")
}
