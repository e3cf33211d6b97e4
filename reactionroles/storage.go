package reactionroles

import (
	"github.com/AlekSi/pointer"
	"github.com/botlabs-gg/yagpdb/v2/common"
	"github.com/jinzhu/gorm"
)

type gormStore struct {
	db *gorm.DB
}

func newGormStore() *gormStore {
	return &gormStore{db: common.GORM}
}

func (s *gormStore) ConfigByMessage(messageID int64) (*RoleConfig, error) {
	var cfg RoleConfig
	err := s.db.Where("message_id = ? AND active = ?", messageID, true).First(&cfg).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	return &cfg, nil
}

// ActiveConfigs returns the live configs for a guild, or for every guild when
// guildID is zero.
func (s *gormStore) ActiveConfigs(guildID int64) ([]*RoleConfig, error) {
	var configs []*RoleConfig
	q := s.db.Where("active = ?", true)
	if guildID != 0 {
		q = q.Where("guild_id = ?", guildID)
	}

	err := q.Order("created_at desc").Find(&configs).Error
	return configs, err
}

func (s *gormStore) CreateConfig(cfg *RoleConfig, mappings []*RoleMapping) error {
	cfg.Active = pointer.ToBool(true)

	tx := s.db.Begin()
	if err := tx.Create(cfg).Error; err != nil {
		tx.Rollback()
		return err
	}

	for _, m := range mappings {
		m.ConfigID = cfg.ID
		if err := tx.Create(m).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit().Error
}

func (s *gormStore) UpdateConfig(cfg *RoleConfig) error {
	return s.db.Model(&RoleConfig{}).Where("id = ?", cfg.ID).
		Updates(map[string]interface{}{
			"message_content": cfg.MessageContent,
			"is_single_role":  cfg.IsSingleRole,
		}).Error
}

// ReplaceMappings swaps the config's mapping set wholesale.
func (s *gormStore) ReplaceMappings(configID int64, mappings []*RoleMapping) error {
	tx := s.db.Begin()
	if err := tx.Where("config_id = ?", configID).Delete(&RoleMapping{}).Error; err != nil {
		tx.Rollback()
		return err
	}

	for _, m := range mappings {
		m.ConfigID = configID
		if err := tx.Create(m).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit().Error
}

func (s *gormStore) DeactivateConfig(configID int64) error {
	return s.db.Model(&RoleConfig{}).Where("id = ?", configID).
		Update("active", false).Error
}

func (s *gormStore) Mappings(configID int64) ([]*RoleMapping, error) {
	var mappings []*RoleMapping
	err := s.db.Where("config_id = ?", configID).Find(&mappings).Error
	return mappings, err
}

func (s *gormStore) MappingByEmoji(configID int64, emojiName string, emojiID int64) (*RoleMapping, error) {
	var mapping RoleMapping
	q := s.db.Where("config_id = ?", configID)
	if emojiID != 0 {
		q = q.Where("emoji_id = ?", emojiID)
	} else {
		q = q.Where("emoji_name = ? AND emoji_id = 0", emojiName)
	}

	err := q.First(&mapping).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	return &mapping, nil
}

func (s *gormStore) Assignments(configID, userID int64) ([]*RoleAssignment, error) {
	var assignments []*RoleAssignment
	err := s.db.Where("config_id = ? AND user_id = ?", configID, userID).Find(&assignments).Error
	return assignments, err
}

func (s *gormStore) AddAssignment(configID, userID, roleID int64) error {
	err := s.db.Create(&RoleAssignment{ConfigID: configID, UserID: userID, RoleID: roleID}).Error
	if err != nil && common.ErrPQIsUniqueViolation(err) {
		// Duplicate gateway event, already recorded
		return nil
	}

	return err
}

func (s *gormStore) RemoveAssignment(configID, userID, roleID int64) error {
	return s.db.Where("config_id = ? AND user_id = ? AND role_id = ?", configID, userID, roleID).
		Delete(&RoleAssignment{}).Error
}
