package models

import (
	"time"

	"github.com/google/uuid"
)

// FavoritePartner links a member to a partner they follow.
type FavoritePartner struct {
	MemberID  uuid.UUID `gorm:"column:member_id;type:uuid;primaryKey;index:favorite_partners_member_id_idx"`
	PartnerID uuid.UUID `gorm:"column:partner_id;type:uuid;primaryKey;index:favorite_partners_partner_id_idx"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
