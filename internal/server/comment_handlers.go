package server

import (
	"snapfeed/internal/models"
	"snapfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

type commentRequest struct {
	Content string `json:"content" form:"content"`
}

// GetComments handles GET /api/posts/:post/comments
// @Summary List comments
// @Description Comments on a post, newest first
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param post path int true "Post ID"
// @Success 200 {object} object{comments=[]models.Comment}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{post}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "post")
	if err != nil {
		return nil
	}
	comments, err := s.commentService.ListForPost(c.UserContext(), postID)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"comments": comments})
}

// CreateComment handles POST /api/posts/:post/comments
// @Summary Add comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param post path int true "Post ID"
// @Param request body object{content=string} true "Comment content"
// @Success 201 {object} object{message=string,comment=models.Comment}
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /posts/{post}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "post")
	if err != nil {
		return nil
	}
	var req commentRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	user, err := s.actor(c)
	if err != nil {
		return respondAppError(c, err)
	}

	comment, err := s.commentService.Create(c.UserContext(), service.CreateCommentInput{
		Actor:   user,
		PostID:  postID,
		Content: req.Content,
	})
	if err != nil {
		return respondAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Comment added successfully.",
		"comment": comment,
	})
}

// UpdateComment handles PUT /api/comments/:comment
// @Summary Update comment
// @Description Author only
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param comment path int true "Comment ID"
// @Param request body object{content=string} true "New content"
// @Success 200 {object} object{message=string,comment=models.Comment}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /comments/{comment} [put]
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "comment")
	if err != nil {
		return nil
	}
	var req commentRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	user, err := s.actor(c)
	if err != nil {
		return respondAppError(c, err)
	}

	comment, err := s.commentService.Update(c.UserContext(), service.UpdateCommentInput{
		Actor:     user,
		CommentID: commentID,
		Content:   req.Content,
	})
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Comment updated successfully.",
		"comment": comment,
	})
}

// DeleteComment handles DELETE /api/comments/:comment
// @Summary Delete comment
// @Description Author only
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param comment path int true "Comment ID"
// @Success 200 {object} object{message=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /comments/{comment} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "comment")
	if err != nil {
		return nil
	}
	user, err := s.actor(c)
	if err != nil {
		return respondAppError(c, err)
	}

	if _, err := s.commentService.Delete(c.UserContext(), service.DeleteCommentInput{
		Actor:     user,
		CommentID: commentID,
	}); err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Comment deleted successfully."})
}
