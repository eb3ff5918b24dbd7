package server

import (
	"time"

	"snapfeed/internal/middleware"
	"snapfeed/internal/models"
	"snapfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

type registerRequest struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Register handles POST /api/register
// @Summary Register
// @Description Create an unverified account and email a verification link
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{name=string,email=string,password=string} true "Registration request"
// @Success 201 {object} object{message=string,user=models.UserSummary,token=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	result, err := s.authService.Register(c.UserContext(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return respondAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Registration successful. Please verify your email.",
		"user":    result.User.Summary(),
		"token":   result.Token,
	})
}

// Login handles POST /api/login
// @Summary Login
// @Description Exchange credentials of a verified account for a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string} true "Login credentials"
// @Success 200 {object} object{message=string,user=models.UserSummary,token=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	result, err := s.authService.Login(c.UserContext(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return respondAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Login successful.",
		"user":    result.User.Summary(),
		"token":   result.Token,
	})
}

// Logout handles POST /api/logout
// @Summary Logout
// @Description Revoke the presented bearer token
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	user, err := s.actor(c)
	if err != nil {
		return respondAppError(c, err)
	}
	jti, _ := c.Locals(middleware.LocalTokenID).(string)
	expiresAt, _ := c.Locals(middleware.LocalTokenExpiresAt).(time.Time)
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(service.TokenTTL)
	}

	if err := s.authService.Logout(c.UserContext(), user, jti, expiresAt); err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Logout successful."})
}

// GetCurrentUser handles GET /api/user
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{user=models.User}
// @Failure 401 {object} models.ErrorResponse
// @Router /user [get]
func (s *Server) GetCurrentUser(c *fiber.Ctx) error {
	user, err := s.authService.CurrentUser(c.UserContext(), localUserID(c))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"user": user})
}

// VerifyEmail handles GET /api/email/verify/:id/:hash
// @Summary Verify email
// @Description Consume a signed verification link
// @Tags auth
// @Produce json
// @Param id path int true "User ID"
// @Param hash path string true "sha1 of the email address"
// @Param signature query string true "Link signature"
// @Success 200 {object} object{message=string}
// @Failure 403 {object} models.ErrorResponse
// @Router /email/verify/{id}/{hash} [get]
func (s *Server) VerifyEmail(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	already, err := s.verification.Verify(c.UserContext(), id, c.Params("hash"), c.Query("signature"))
	if err != nil {
		return respondAppError(c, err)
	}
	if already {
		return c.JSON(fiber.Map{"message": "Email already verified."})
	}
	return c.JSON(fiber.Map{"message": "Email verified successfully."})
}

// ResendVerification handles POST /api/email/verification-notification
// @Summary Resend verification email
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /email/verification-notification [post]
func (s *Server) ResendVerification(c *fiber.Ctx) error {
	user, err := s.actor(c)
	if err != nil {
		return respondAppError(c, err)
	}

	already, err := s.verification.Resend(c.UserContext(), user, service.SurfaceAPI)
	if err != nil {
		return respondAppError(c, err)
	}
	if already {
		return c.JSON(fiber.Map{"message": "Email already verified."})
	}
	return c.JSON(fiber.Map{"message": "Verification email sent."})
}
