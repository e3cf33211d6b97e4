package autotranslate

import (
	"github.com/AlekSi/pointer"
	"github.com/botlabs-gg/yagpdb/v2/common"
	"github.com/jinzhu/gorm"
)

// gormStore implements ConfigStore and Ledger on the shared database handle.
type gormStore struct {
	db *gorm.DB
}

func newGormStore() *gormStore {
	return &gormStore{db: common.GORM}
}

func (s *gormStore) MirrorByChannel(channelID int64) (*ChannelConfig, error) {
	var cfg ChannelConfig
	err := s.db.Where("channel_id = ? AND active = ?", channelID, true).First(&cfg).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	return &cfg, nil
}

func (s *gormStore) MirrorsBySource(sourceChannelID int64) ([]*ChannelConfig, error) {
	var configs []*ChannelConfig
	err := s.db.Where("source_channel_id = ? AND active = ?", sourceChannelID, true).Find(&configs).Error
	return configs, err
}

func (s *gormStore) MirrorsByGuild(guildID int64) ([]*ChannelConfig, error) {
	var configs []*ChannelConfig
	err := s.db.Where("guild_id = ? AND active = ?", guildID, true).Find(&configs).Error
	return configs, err
}

func (s *gormStore) CreateMirror(cfg *ChannelConfig) error {
	cfg.Active = pointer.ToBool(true)
	return s.db.Create(cfg).Error
}

func (s *gormStore) UpdateWebhook(channelID int64, webhookID int64, webhookToken string) error {
	return s.db.Model(&ChannelConfig{}).Where("channel_id = ?", channelID).
		Updates(map[string]interface{}{"webhook_id": webhookID, "webhook_token": webhookToken}).Error
}

func (s *gormStore) Deactivate(channelID int64) error {
	return s.db.Model(&ChannelConfig{}).Where("channel_id = ?", channelID).
		Update("active", false).Error
}

func (s *gormStore) IsRelayed(originalMessageID, targetChannelID int64) (bool, error) {
	var count int
	err := s.db.Model(&RelayedMessage{}).
		Where("original_message_id = ? AND target_channel_id = ?", originalMessageID, targetChannelID).
		Count(&count).Error
	return count > 0, err
}

func (s *gormStore) IsRelayMessage(messageID int64) (bool, error) {
	var count int
	err := s.db.Model(&RelayedMessage{}).
		Where("relayed_message_id = ? AND is_auto_translation = ?", messageID, true).
		Count(&count).Error
	return count > 0, err
}

func (s *gormStore) RecordRelay(entry *RelayedMessage) error {
	err := s.db.Create(entry).Error
	if err != nil && common.ErrPQIsUniqueViolation(err) {
		// Another handler already recorded this pair, which is exactly the
		// state we wanted
		return nil
	}

	return err
}

func (s *gormStore) TranslationExists(messageID int64, targetLanguage string) (bool, error) {
	var count int
	err := s.db.Model(&Translation{}).
		Where("message_id = ? AND target_language = ?", messageID, targetLanguage).
		Count(&count).Error
	return count > 0, err
}

func (s *gormStore) RecordTranslation(t *Translation) error {
	err := s.db.Create(t).Error
	if err != nil && common.ErrPQIsUniqueViolation(err) {
		return nil
	}

	return err
}
