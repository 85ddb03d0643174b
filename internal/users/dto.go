package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/privilegia/privilegia-backend/pkg/db/models"
	"github.com/privilegia/privilegia-backend/pkg/enums"
)

// UserDTO is the transport shape of a user.
type UserDTO struct {
	ID                uuid.UUID      `json:"id"`
	Email             string         `json:"email"`
	FirstName         string         `json:"first_name"`
	LastName          string         `json:"last_name"`
	Role              enums.UserRole `json:"role"`
	PointsBalance     int            `json:"points_balance"`
	LastLatitude      *float64       `json:"last_latitude,omitempty"`
	LastLongitude     *float64       `json:"last_longitude,omitempty"`
	LocationUpdatedAt *time.Time     `json:"location_updated_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// CreateUserDTO holds the data required to persist a new user.
type CreateUserDTO struct {
	Email     string
	FirstName string
	LastName  string
	Role      enums.UserRole
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:                u.ID,
		Email:             u.Email,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		Role:              u.Role,
		PointsBalance:     u.PointsBalance,
		LastLatitude:      u.LastLatitude,
		LastLongitude:     u.LastLongitude,
		LocationUpdatedAt: u.LocationUpdatedAt,
		CreatedAt:         u.CreatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	role := c.Role
	if !role.IsValid() {
		role = enums.UserRoleMember
	}
	return &models.User{
		Email:     c.Email,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Role:      role,
	}
}
