package reactionroles

import (
	"fmt"
)

// SyncStats summarizes one reconciliation run.
type SyncStats struct {
	ConfigsProcessed int
	ConfigsSkipped   int
	UsersProcessed   int
	Errors           int
}

func (s *SyncStats) String() string {
	return fmt.Sprintf("processed %d config(s), skipped %d, touched %d member(s), %d error(s)",
		s.ConfigsProcessed, s.ConfigsSkipped, s.UsersProcessed, s.Errors)
}

// ReconcileGuild re-derives ledger and role state for every live config in
// the guild from the message's current reactions. The platform is the
// authority; the run is idempotent and safe at any time.
func (e *Engine) ReconcileGuild(guildID int64) (*SyncStats, error) {
	configs, err := e.store.ActiveConfigs(guildID)
	if err != nil {
		return nil, err
	}

	stats := &SyncStats{}
	for _, cfg := range configs {
		if cfg.MessageID == 0 {
			// Draft that never went live
			stats.ConfigsSkipped++
			continue
		}

		e.reconcileConfig(cfg, stats)
	}

	return stats, nil
}

func (e *Engine) reconcileConfig(cfg *RoleConfig, stats *SyncStats) {
	if !e.session.GuildExists(cfg.GuildID) {
		stats.ConfigsSkipped++
		return
	}

	msg, err := e.session.FetchMessage(cfg.ChannelID, cfg.MessageID)
	if err != nil || msg == nil {
		logger.WithField("config", cfg.ID).WithField("message", cfg.MessageID).Info("backing message gone, deactivating config")
		if err = e.store.DeactivateConfig(cfg.ID); err != nil {
			logger.WithError(err).WithField("config", cfg.ID).Error("failed deactivating config")
		}
		e.protected.forget(cfg.MessageID)
		stats.ConfigsSkipped++
		return
	}

	mappings, err := e.store.Mappings(cfg.ID)
	if err != nil {
		logger.WithError(err).WithField("config", cfg.ID).Error("failed fetching mappings")
		stats.Errors++
		return
	}

	// Collect the ground truth: per user, every configured reaction they
	// currently hold, in the order the message reports them
	userMappings := make(map[int64][]*RoleMapping)
	var userOrder []int64

	for _, reaction := range msg.Reactions {
		mapping := matchMapping(mappings, reaction.Emoji.Name, reaction.Emoji.ID)
		if mapping == nil {
			continue
		}

		users, err := e.session.ReactionUsers(cfg.ChannelID, cfg.MessageID, emojiAPIName(mapping.EmojiName, mapping.EmojiID))
		if err != nil {
			logger.WithError(err).WithField("emoji", mapping.EmojiName).Warn("failed fetching reaction users")
			stats.Errors++
			continue
		}

		for _, user := range users {
			if user.Bot {
				continue
			}

			if _, seen := userMappings[user.ID]; !seen {
				userOrder = append(userOrder, user.ID)
			}

			userMappings[user.ID] = append(userMappings[user.ID], mapping)
		}
	}

	for _, userID := range userOrder {
		member, err := e.session.Member(cfg.GuildID, userID)
		if err != nil || member == nil {
			// Left the guild since reacting
			continue
		}

		reacted := userMappings[userID]
		if cfg.IsSingleRole {
			// Multiple simultaneous reactions are drift, keep the first
			// encountered and let applyMapping revoke the rest
			reacted = reacted[:1]
		}

		for _, mapping := range reacted {
			e.applyMapping(cfg, member, mapping, cfg.ChannelID, cfg.MessageID)
		}

		stats.UsersProcessed++
	}

	stats.ConfigsProcessed++
}

func matchMapping(mappings []*RoleMapping, emojiName string, emojiID int64) *RoleMapping {
	for _, m := range mappings {
		if m.EmojiID != 0 {
			if m.EmojiID == emojiID {
				return m
			}
		} else if m.EmojiID == 0 && emojiID == 0 && m.EmojiName == emojiName {
			return m
		}
	}

	return nil
}
