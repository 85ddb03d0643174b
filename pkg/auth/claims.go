package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/privilegia/privilegia-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID    uuid.UUID
	Role      enums.UserRole
	PartnerID *uuid.UUID
	JTI       string
}

// AccessTokenClaims represents the typed JWT issued to clients. PartnerID is
// set for partner accounts and names the business they operate.
type AccessTokenClaims struct {
	UserID    uuid.UUID      `json:"user_id"`
	Role      enums.UserRole `json:"role"`
	PartnerID *uuid.UUID     `json:"partner_id,omitempty"`
	jwt.RegisteredClaims
}
