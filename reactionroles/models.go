package reactionroles

import (
	"time"
)

// RoleConfig is one reaction-role message. MessageID is zero while the config
// is still a draft; once the message is posted the config is live and looked
// up by it.
type RoleConfig struct {
	ID             int64  `gorm:"primary_key"`
	GuildID        int64  `gorm:"index"`
	ChannelID      int64
	MessageID      int64  `gorm:"index"`
	MessageContent string `gorm:"type:text"`
	IsSingleRole   bool
	CreatedBy      int64
	Active         *bool

	Mappings []RoleMapping `gorm:"foreignKey:ConfigID;references:ID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *RoleConfig) TableName() string {
	return "reaction_role_configs"
}

// RoleMapping maps one emoji on the config's message to a role. EmojiID is
// zero for unicode emoji.
type RoleMapping struct {
	ID             int64  `gorm:"primary_key"`
	ConfigID       int64  `gorm:"unique_index:idx_config_emoji"`
	EmojiName      string `gorm:"unique_index:idx_config_emoji"`
	EmojiID        int64  `gorm:"unique_index:idx_config_emoji"`
	RoleID         int64
	NicknamePrefix string

	CreatedAt time.Time
}

func (m *RoleMapping) TableName() string {
	return "reaction_role_mappings"
}

// RoleAssignment records that the engine granted RoleID to UserID because of
// this config. It is a cache of platform state, not the authority; the
// reconciler rebuilds it from live reactions.
type RoleAssignment struct {
	ID       int64 `gorm:"primary_key"`
	ConfigID int64 `gorm:"unique_index:idx_config_user_role"`
	UserID   int64 `gorm:"unique_index:idx_config_user_role"`
	RoleID   int64 `gorm:"unique_index:idx_config_user_role"`

	CreatedAt time.Time
}

func (a *RoleAssignment) TableName() string {
	return "reaction_role_assignments"
}
