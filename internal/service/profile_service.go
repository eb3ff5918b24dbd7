package service

import (
	"context"

	"snapfeed/internal/models"
	"snapfeed/internal/repository"
	"snapfeed/internal/validation"
)

// UpdateProfileInput changes name always and bio or image when non-nil.
type UpdateProfileInput struct {
	UserID       uint
	Name         string
	Bio          *string
	ProfileImage *string
}

// ProfileService edits the public profile. Profile edits are not audited.
type ProfileService struct {
	users repository.UserRepository
}

func NewProfileService(users repository.UserRepository) *ProfileService {
	return &ProfileService{users: users}
}

func (s *ProfileService) Get(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *ProfileService) Update(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	if err := validation.ValidateName(in.Name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	fields := map[string]interface{}{"name": trimmedName(in.Name)}

	if in.Bio != nil {
		if err := validation.ValidateBio(*in.Bio); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		fields["bio"] = *in.Bio
	}
	if in.ProfileImage != nil {
		if _, err := validation.ValidateEncodedImage(*in.ProfileImage); err != nil {
			return nil, models.NewValidationError("The profile " + err.Error() + ".")
		}
		fields["profile_image"] = *in.ProfileImage
	}

	if err := s.users.UpdateProfile(ctx, in.UserID, fields); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, in.UserID)
}
