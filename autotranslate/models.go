package autotranslate

import (
	"time"
)

// ChannelConfig ties a mirror channel to the source channel it translates.
// One row per mirror channel; several mirrors may watch the same source.
type ChannelConfig struct {
	ID              int64 `gorm:"primary_key"`
	GuildID         int64 `gorm:"index"`
	ChannelID       int64 `gorm:"unique_index"`
	SourceChannelID int64 `gorm:"index"`
	TargetLanguage  string

	WebhookID    int64
	WebhookToken string

	Active *bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *ChannelConfig) TableName() string {
	return "auto_translate_channels"
}

// RelayedMessage is one row in the relay ledger. The unique index on
// (original_message_id, target_channel_id) is what makes relaying idempotent.
type RelayedMessage struct {
	ID                int64 `gorm:"primary_key"`
	OriginalMessageID int64 `gorm:"unique_index:idx_original_target"`
	TargetChannelID   int64 `gorm:"unique_index:idx_original_target"`
	RelayedMessageID  int64 `gorm:"index"`
	SourceChannelID   int64
	ConfigID          int64
	IsAutoTranslation bool

	CreatedAt time.Time
}

func (r *RelayedMessage) TableName() string {
	return "relayed_messages"
}

// Translation records a flag-reaction translation so repeat requests for the
// same message and language are ignored instead of hitting the backend again.
type Translation struct {
	ID             int64  `gorm:"primary_key"`
	MessageID      int64  `gorm:"unique_index:idx_message_lang"`
	TargetLanguage string `gorm:"unique_index:idx_message_lang"`
	TranslatedText string `gorm:"type:text"`
	RequestedBy    int64

	CreatedAt time.Time
}

func (t *Translation) TableName() string {
	return "message_translations"
}
