package service

import (
	"fmt"

	"snapfeed/internal/models"
)

// Owned is implemented by resources that belong to exactly one user.
type Owned interface {
	OwnerID() uint
	ResourceName() string
}

// Action is a mutation guarded by ownership.
type Action string

const (
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	// ActionViewActivity reads the audit trail of a resource.
	ActionViewActivity Action = "view the activity of"
)

// Authorize allows the action only when actorID owns resource.
// There are no roles: ownership is the whole policy.
func Authorize(actorID uint, resource Owned, action Action) error {
	if resource == nil {
		return models.NewAuthorizationError(fmt.Sprintf("You can only %s your own resources.", action))
	}
	if actorID == 0 || resource.OwnerID() != actorID {
		return models.NewAuthorizationError(fmt.Sprintf("You can only %s your own %s.", action, resource.ResourceName()))
	}
	return nil
}
