package server

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"snapfeed/internal/models"
	"snapfeed/internal/service"
	"snapfeed/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// webParamID reads a positive route id or renders the not-found view.
func (s *Server) webParamID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = s.renderError(c, models.NewNotFoundMessage("Not found."))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// nullableForm treats a blank form value as absent.
func nullableForm(c *fiber.Ctx, key string) *string {
	v := strings.TrimSpace(c.FormValue(key))
	if v == "" {
		return nil
	}
	return &v
}

// formImage accepts either an uploaded file or a base64 data URI field and
// returns the data URI. An empty result means no image was sent.
func formImage(c *fiber.Ctx, field string) (string, error) {
	if fh, err := c.FormFile(field); err == nil {
		if fh.Size > validation.MaxImageBytes {
			return "", models.NewValidationError(fmt.Sprintf("The %s may not be greater than %dMB.", field, validation.MaxImageBytes>>20))
		}
		f, err := fh.Open()
		if err != nil {
			return "", models.NewInternalError(err)
		}
		defer func() { _ = f.Close() }()
		data, err := io.ReadAll(io.LimitReader(f, validation.MaxImageBytes+1))
		if err != nil {
			return "", models.NewInternalError(err)
		}
		mime := http.DetectContentType(data)
		return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
	}
	return strings.TrimSpace(c.FormValue(field)), nil
}

// WebFeed handles GET /feed
func (s *Server) WebFeed(c *fiber.Ctx) error {
	page, perPage := pageParams(c)
	result, err := s.postService.List(c.UserContext(), service.ListPostsInput{
		Page:     page,
		PerPage:  perPage,
		ViewerID: webUser(c).ID,
	})
	if err != nil {
		return s.renderError(c, err)
	}
	return s.render(c, fiber.StatusOK, "feed.index", fiber.Map{
		"posts":      result.Items,
		"pagination": result.Pagination,
	})
}

// WebCreatePostForm handles GET /posts/create
func (s *Server) WebCreatePostForm(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "posts.create", nil)
}

// WebCreatePost handles POST /posts
func (s *Server) WebCreatePost(c *fiber.Ctx) error {
	image, err := formImage(c, "image")
	if err != nil {
		return s.renderError(c, err)
	}
	if _, err := s.postService.Create(c.UserContext(), service.CreatePostInput{
		Actor:   webUser(c),
		Caption: nullableForm(c, "caption"),
		Image:   image,
	}); err != nil {
		return s.renderError(c, err)
	}
	return s.redirectWithFlash(c, "/feed", flashSuccess, "Post created successfully!")
}

// WebShowPost handles GET /posts/:post
func (s *Server) WebShowPost(c *fiber.Ctx) error {
	id, err := s.webParamID(c, "post")
	if err != nil {
		return nil
	}
	post, err := s.postService.Get(c.UserContext(), id, webUser(c).ID)
	if err != nil {
		return s.renderError(c, err)
	}
	return s.render(c, fiber.StatusOK, "posts.show", fiber.Map{"post": post})
}

// WebEditPostForm handles GET /posts/:post/edit
func (s *Server) WebEditPostForm(c *fiber.Ctx) error {
	id, err := s.webParamID(c, "post")
	if err != nil {
		return nil
	}
	user := webUser(c)
	post, err := s.postService.Find(c.UserContext(), id, user.ID)
	if err != nil {
		return s.renderError(c, err)
	}
	if err := service.Authorize(user.ID, post, service.ActionUpdate); err != nil {
		return s.renderError(c, err)
	}
	return s.render(c, fiber.StatusOK, "posts.edit", fiber.Map{"post": post})
}

// WebUpdatePost handles PUT /posts/:post
func (s *Server) WebUpdatePost(c *fiber.Ctx) error {
	id, err := s.webParamID(c, "post")
	if err != nil {
		return nil
	}
	image, err := formImage(c, "image")
	if err != nil {
		return s.renderError(c, err)
	}
	in := service.UpdatePostInput{
		Actor:   webUser(c),
		PostID:  id,
		Caption: optionalString(formPtr(c, "caption")),
	}
	if image != "" {
		in.Image = &image
	}

	if _, err := s.postService.Update(c.UserContext(), in); err != nil {
		if models.IsCode(err, models.CodeAuthorization) {
			return s.back(c, "/posts/"+strconv.Itoa(int(id)), flashError,
				"You are not authorized to update this post.")
		}
		return s.renderError(c, err)
	}
	return s.redirectWithFlash(c, "/posts/"+strconv.Itoa(int(id)), flashSuccess, "Post updated successfully!")
}

// WebDeletePost handles DELETE /posts/:post
func (s *Server) WebDeletePost(c *fiber.Ctx) error {
	id, err := s.webParamID(c, "post")
	if err != nil {
		return nil
	}
	if _, err := s.postService.Delete(c.UserContext(), service.DeletePostInput{
		Actor:  webUser(c),
		PostID: id,
	}); err != nil {
		if models.IsCode(err, models.CodeAuthorization) {
			return s.back(c, "/feed", flashError, "You are not authorized to delete this post.")
		}
		return s.renderError(c, err)
	}
	return s.redirectWithFlash(c, "/feed", flashSuccess, "Post deleted successfully!")
}

// WebLikePost handles POST /posts/:post/like
func (s *Server) WebLikePost(c *fiber.Ctx) error {
	id, err := s.webParamID(c, "post")
	if err != nil {
		return nil
	}
	if _, err := s.likeService.Like(c.UserContext(), webUser(c), id); err != nil {
		return s.renderError(c, err)
	}
	return s.back(c, "/feed", flashSuccess, "Post liked successfully.")
}

// WebUnlikePost handles DELETE /posts/:post/unlike
func (s *Server) WebUnlikePost(c *fiber.Ctx) error {
	id, err := s.webParamID(c, "post")
	if err != nil {
		return nil
	}
	if _, err := s.likeService.Unlike(c.UserContext(), webUser(c), id); err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return s.back(c, "/feed", flashError, messageOf(err))
		}
		return s.renderError(c, err)
	}
	return s.back(c, "/feed", flashSuccess, "Post unliked successfully.")
}

// WebCreateComment handles POST /posts/:post/comments
func (s *Server) WebCreateComment(c *fiber.Ctx) error {
	id, err := s.webParamID(c, "post")
	if err != nil {
		return nil
	}
	if _, err := s.commentService.Create(c.UserContext(), service.CreateCommentInput{
		Actor:   webUser(c),
		PostID:  id,
		Content: c.FormValue("content"),
	}); err != nil {
		return s.renderError(c, err)
	}
	return s.back(c, "/posts/"+strconv.Itoa(int(id)), flashSuccess, "Comment added successfully.")
}

// WebUpdateComment handles PUT /comments/:comment
func (s *Server) WebUpdateComment(c *fiber.Ctx) error {
	id, err := s.webParamID(c, "comment")
	if err != nil {
		return nil
	}
	comment, err := s.commentService.Update(c.UserContext(), service.UpdateCommentInput{
		Actor:     webUser(c),
		CommentID: id,
		Content:   c.FormValue("content"),
	})
	if err != nil {
		return s.renderError(c, err)
	}
	return s.back(c, "/posts/"+strconv.Itoa(int(comment.PostID)), flashSuccess, "Comment updated successfully.")
}

// WebDeleteComment handles DELETE /comments/:comment
func (s *Server) WebDeleteComment(c *fiber.Ctx) error {
	id, err := s.webParamID(c, "comment")
	if err != nil {
		return nil
	}
	if _, err := s.commentService.Delete(c.UserContext(), service.DeleteCommentInput{
		Actor:     webUser(c),
		CommentID: id,
	}); err != nil {
		return s.renderError(c, err)
	}
	return s.back(c, "/feed", flashSuccess, "Comment deleted successfully.")
}

// WebShowProfile handles GET /profile/:user
func (s *Server) WebShowProfile(c *fiber.Ctx) error {
	id, err := s.webParamID(c, "user")
	if err != nil {
		return nil
	}
	ctx := c.UserContext()
	profile, err := s.profileService.Get(ctx, id)
	if err != nil {
		return s.renderError(c, err)
	}
	page, perPage := pageParams(c)
	posts, err := s.postService.ListByUser(ctx, id, page, perPage, webUser(c).ID)
	if err != nil {
		return s.renderError(c, err)
	}
	return s.render(c, fiber.StatusOK, "profile.show", fiber.Map{
		"user":       profile,
		"posts":      posts.Items,
		"pagination": posts.Pagination,
	})
}

// WebEditProfileForm handles GET /profile/edit
func (s *Server) WebEditProfileForm(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "profile.edit", fiber.Map{"user": webUser(c)})
}

// WebUpdateProfile handles PUT /profile
func (s *Server) WebUpdateProfile(c *fiber.Ctx) error {
	user := webUser(c)
	image, err := formImage(c, "profile_image")
	if err != nil {
		return s.renderError(c, err)
	}
	in := service.UpdateProfileInput{
		UserID: user.ID,
		Name:   c.FormValue("name"),
		Bio:    optionalString(formPtr(c, "bio")),
	}
	if image != "" {
		in.ProfileImage = &image
	}

	if _, err := s.profileService.Update(c.UserContext(), in); err != nil {
		return s.renderError(c, err)
	}
	return s.redirectWithFlash(c, "/profile/"+strconv.Itoa(int(user.ID)), flashSuccess, "Profile updated successfully!")
}

// WebActivity handles GET /activity
func (s *Server) WebActivity(c *fiber.Ctx) error {
	page, perPage := pageParams(c)
	result, err := s.activity.ListForUser(c.UserContext(), webUser(c).ID, page, perPage)
	if err != nil {
		return s.renderError(c, err)
	}
	return s.render(c, fiber.StatusOK, "activity.index", fiber.Map{
		"activities": result.Items,
		"pagination": result.Pagination,
	})
}

// formPtr returns nil when the field was not submitted at all.
func formPtr(c *fiber.Ctx, key string) *string {
	if c.Request().PostArgs().Has(key) {
		v := c.FormValue(key)
		return &v
	}
	if form, err := c.MultipartForm(); err == nil {
		if vals, ok := form.Value[key]; ok && len(vals) > 0 {
			return &vals[0]
		}
	}
	return nil
}
