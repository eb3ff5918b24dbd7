package server

import (
	"snapfeed/internal/models"
	"snapfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createPostRequest struct {
	Caption *string `json:"caption" form:"caption"`
	Image   string  `json:"image" form:"image"`
}

type updatePostRequest struct {
	Caption *string `json:"caption" form:"caption"`
	Image   *string `json:"image" form:"image"`
}

// GetPosts handles GET /api/posts
// @Summary Feed
// @Description Newest posts first, 15 per page
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param per_page query int false "Page size"
// @Success 200 {object} object{posts=[]models.Post,pagination=models.Pagination}
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page, perPage := pageParams(c)
	result, err := s.postService.List(c.UserContext(), service.ListPostsInput{
		Page:     page,
		PerPage:  perPage,
		ViewerID: localUserID(c),
	})
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"posts":      result.Items,
		"pagination": result.Pagination,
	})
}

// CreatePost handles POST /api/posts
// @Summary Create post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{caption=string,image=string} true "Base64 data URI image and optional caption"
// @Success 201 {object} object{message=string,post=models.Post}
// @Failure 422 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req createPostRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	user, err := s.actor(c)
	if err != nil {
		return respondAppError(c, err)
	}

	post, err := s.postService.Create(c.UserContext(), service.CreatePostInput{
		Actor:   user,
		Caption: req.Caption,
		Image:   req.Image,
	})
	if err != nil {
		return respondAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Post created successfully.",
		"post":    post,
	})
}

// GetPost handles GET /api/posts/:post
// @Summary Get post
// @Description One post with its comments
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param post path int true "Post ID"
// @Success 200 {object} object{post=models.Post}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{post} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "post")
	if err != nil {
		return nil
	}
	post, err := s.postService.Get(c.UserContext(), id, localUserID(c))
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"post": post})
}

// GetPostActivity handles GET /api/posts/:post/activity
// @Summary Post activity
// @Description Owner only. Every activity log row that refers to the post, newest first, 20 per page
// @Tags activity
// @Produce json
// @Security BearerAuth
// @Param post path int true "Post ID"
// @Param page query int false "Page number"
// @Param per_page query int false "Page size"
// @Success 200 {object} object{activity_logs=[]models.ActivityLog,pagination=models.Pagination}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{post}/activity [get]
func (s *Server) GetPostActivity(c *fiber.Ctx) error {
	id, err := s.parseID(c, "post")
	if err != nil {
		return nil
	}
	viewerID := localUserID(c)
	post, err := s.postService.Find(c.UserContext(), id, viewerID)
	if err != nil {
		return respondAppError(c, err)
	}
	if err := service.Authorize(viewerID, post, service.ActionViewActivity); err != nil {
		return respondAppError(c, err)
	}

	page, perPage := pageParams(c)
	result, err := s.activity.ListForSubject(c.UserContext(), models.PostSubject(post.ID), page, perPage)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"activity_logs": result.Items,
		"pagination":    result.Pagination,
	})
}

// UpdatePost handles PUT /api/posts/:post
// @Summary Update post
// @Description Owner only. Omitted fields keep their value.
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param post path int true "Post ID"
// @Param request body object{caption=string,image=string} true "Fields to change"
// @Success 200 {object} object{message=string,post=models.Post}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{post} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "post")
	if err != nil {
		return nil
	}
	var req updatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	user, err := s.actor(c)
	if err != nil {
		return respondAppError(c, err)
	}

	post, err := s.postService.Update(c.UserContext(), service.UpdatePostInput{
		Actor:   user,
		PostID:  id,
		Caption: req.Caption,
		Image:   req.Image,
	})
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Post updated successfully.",
		"post":    post,
	})
}

// DeletePost handles DELETE /api/posts/:post
// @Summary Delete post
// @Description Owner only. Likes and comments go with it.
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param post path int true "Post ID"
// @Success 200 {object} object{message=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{post} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "post")
	if err != nil {
		return nil
	}
	user, err := s.actor(c)
	if err != nil {
		return respondAppError(c, err)
	}

	if _, err := s.postService.Delete(c.UserContext(), service.DeletePostInput{
		Actor:  user,
		PostID: id,
	}); err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post deleted successfully."})
}

// LikePost handles POST /api/posts/:post/like
// @Summary Like post
// @Tags likes
// @Produce json
// @Security BearerAuth
// @Param post path int true "Post ID"
// @Success 201 {object} object{message=string,like=models.Like}
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /posts/{post}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "post")
	if err != nil {
		return nil
	}
	user, err := s.actor(c)
	if err != nil {
		return respondAppError(c, err)
	}

	like, err := s.likeService.Like(c.UserContext(), user, id)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Post liked successfully.",
		"like":    like,
	})
}

// UnlikePost handles DELETE /api/posts/:post/unlike
// @Summary Unlike post
// @Tags likes
// @Produce json
// @Security BearerAuth
// @Param post path int true "Post ID"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{post}/unlike [delete]
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "post")
	if err != nil {
		return nil
	}
	user, err := s.actor(c)
	if err != nil {
		return respondAppError(c, err)
	}

	if _, err := s.likeService.Unlike(c.UserContext(), user, id); err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post unliked successfully."})
}

// GetActivityLogs handles GET /api/activity-logs
// @Summary Own activity
// @Description The caller's audit trail, newest first, 20 per page
// @Tags activity
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param per_page query int false "Page size"
// @Success 200 {object} object{activity_logs=[]models.ActivityLog,pagination=models.Pagination}
// @Router /activity-logs [get]
func (s *Server) GetActivityLogs(c *fiber.Ctx) error {
	page, perPage := pageParams(c)
	result, err := s.activity.ListForUser(c.UserContext(), localUserID(c), page, perPage)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"activity_logs": result.Items,
		"pagination":    result.Pagination,
	})
}
