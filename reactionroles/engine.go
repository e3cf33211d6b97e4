package reactionroles

import (
	"strconv"
	"unicode/utf8"

	"github.com/botlabs-gg/yagpdb/v2/lib/discordgo"
)

// Discord caps nicknames at 32 characters.
const nicknameMaxLen = 32

// Store is the durable record of configs, mappings and granted roles.
type Store interface {
	ConfigByMessage(messageID int64) (*RoleConfig, error)
	ActiveConfigs(guildID int64) ([]*RoleConfig, error)
	DeactivateConfig(configID int64) error
	Mappings(configID int64) ([]*RoleMapping, error)
	MappingByEmoji(configID int64, emojiName string, emojiID int64) (*RoleMapping, error)
	Assignments(configID, userID int64) ([]*RoleAssignment, error)
	AddAssignment(configID, userID, roleID int64) error
	RemoveAssignment(configID, userID, roleID int64) error
}

// MemberInfo is the slice of member state the engine needs.
type MemberInfo struct {
	ID       int64
	Username string
	Nick     string
	Roles    []int64
	Bot      bool
}

func (m *MemberInfo) hasRole(roleID int64) bool {
	for _, v := range m.Roles {
		if v == roleID {
			return true
		}
	}

	return false
}

func (m *MemberInfo) displayName() string {
	if m.Nick != "" {
		return m.Nick
	}

	return m.Username
}

// RoleSession is the slice of the platform the assignment engine talks to.
// Every call reflects server truth at call time, nothing here is assumed to
// be a coherent shared cache.
type RoleSession interface {
	GuildExists(guildID int64) bool
	Member(guildID, userID int64) (*MemberInfo, error)
	BotMember(guildID int64) (*MemberInfo, error)
	Role(guildID, roleID int64) (*discordgo.Role, error)
	AddRole(guildID, userID, roleID int64) error
	RemoveRole(guildID, userID, roleID int64) error
	SetNickname(guildID, userID int64, nick string) error
	RemoveReaction(channelID, messageID int64, emoji string, userID int64) error
	ReactionUsers(channelID, messageID int64, emoji string) ([]*discordgo.User, error)
	FetchMessage(channelID, messageID int64) (*discordgo.Message, error)
}

// Engine applies reaction-role assignments and keeps the local assignment
// ledger in step with the member's actual roles.
type Engine struct {
	store     Store
	session   RoleSession
	protected *protectionList
}

func NewEngine(store Store, session RoleSession) *Engine {
	return &Engine{
		store:     store,
		session:   session,
		protected: newProtectionList(),
	}
}

// HandleReactionAdd resolves the reacted emoji against the message's config
// and grants the mapped role. Reactions with emoji outside the configured set
// are removed from protected messages.
func (e *Engine) HandleReactionAdd(guildID, channelID, messageID, userID int64, emoji *discordgo.Emoji) {
	cfg, err := e.store.ConfigByMessage(messageID)
	if err != nil {
		logger.WithError(err).WithField("message", messageID).Error("failed looking up reaction role config")
		return
	}

	if cfg == nil {
		return
	}

	if protected, allowed := e.protected.allows(messageID, emoji.Name, emoji.ID); protected && !allowed {
		err = e.session.RemoveReaction(channelID, messageID, emojiAPIName(emoji.Name, emoji.ID), userID)
		if err != nil {
			logger.WithError(err).WithField("message", messageID).Warn("failed removing unauthorized reaction")
		}
		return
	}

	mapping, err := e.store.MappingByEmoji(cfg.ID, emoji.Name, emoji.ID)
	if err != nil {
		logger.WithError(err).WithField("config", cfg.ID).Error("failed looking up emoji mapping")
		return
	}

	if mapping == nil {
		return
	}

	member, err := e.session.Member(guildID, userID)
	if err != nil || member == nil || member.Bot {
		return
	}

	e.applyMapping(cfg, member, mapping, channelID, messageID)
}

// applyMapping is the shared grant path for live reactions and the
// reconciler. In single-role mode every other recorded role is revoked first,
// along with its reaction on the message.
func (e *Engine) applyMapping(cfg *RoleConfig, member *MemberInfo, mapping *RoleMapping, channelID, messageID int64) {
	role, err := e.session.Role(cfg.GuildID, mapping.RoleID)
	if err != nil || role == nil {
		logger.WithField("role", mapping.RoleID).WithField("guild", cfg.GuildID).Error("mapped role not found")
		return
	}

	if !e.canManageRole(cfg.GuildID, role) {
		logger.WithField("role", role.ID).WithField("guild", cfg.GuildID).Error("missing permissions to manage mapped role")
		return
	}

	if cfg.IsSingleRole {
		if !e.revokeOtherAssignments(cfg, member, mapping.RoleID, channelID, messageID) {
			return
		}
	}

	if !member.hasRole(role.ID) {
		if err = e.session.AddRole(cfg.GuildID, member.ID, role.ID); err != nil {
			logger.WithError(err).WithField("role", role.ID).WithField("user", member.ID).Error("failed granting role")
			return
		}
	}

	if err = e.store.AddAssignment(cfg.ID, member.ID, role.ID); err != nil {
		logger.WithError(err).WithField("config", cfg.ID).WithField("user", member.ID).Error("failed recording assignment")
	}

	e.applyNicknamePrefix(cfg.GuildID, member, mapping)
}

// revokeOtherAssignments clears every recorded role other than keepRoleID for
// this user, removing their now-stale reactions best-effort. Returns false
// when a platform revoke failed and the grant should not proceed.
func (e *Engine) revokeOtherAssignments(cfg *RoleConfig, member *MemberInfo, keepRoleID, channelID, messageID int64) bool {
	assignments, err := e.store.Assignments(cfg.ID, member.ID)
	if err != nil {
		logger.WithError(err).WithField("config", cfg.ID).Error("failed fetching assignments")
		return false
	}

	var mappings []*RoleMapping
	for _, assignment := range assignments {
		if assignment.RoleID == keepRoleID {
			continue
		}

		if member.hasRole(assignment.RoleID) {
			if err = e.session.RemoveRole(cfg.GuildID, member.ID, assignment.RoleID); err != nil {
				logger.WithError(err).WithField("role", assignment.RoleID).WithField("user", member.ID).Error("failed revoking previous role")
				return false
			}
		}

		if mappings == nil {
			mappings, err = e.store.Mappings(cfg.ID)
			if err != nil {
				logger.WithError(err).WithField("config", cfg.ID).Error("failed fetching mappings")
				mappings = []*RoleMapping{}
			}
		}

		for _, m := range mappings {
			if m.RoleID != assignment.RoleID {
				continue
			}

			err = e.session.RemoveReaction(channelID, messageID, emojiAPIName(m.EmojiName, m.EmojiID), member.ID)
			if err != nil {
				logger.WithError(err).WithField("user", member.ID).Warn("failed removing stale reaction")
			}
		}

		if err = e.store.RemoveAssignment(cfg.ID, member.ID, assignment.RoleID); err != nil {
			logger.WithError(err).WithField("config", cfg.ID).Error("failed deleting assignment record")
		}
	}

	return true
}

// HandleReactionRemove revokes the mapped role and its nickname prefix. Any
// failed lookup makes this a no-op.
func (e *Engine) HandleReactionRemove(guildID, messageID, userID int64, emoji *discordgo.Emoji) {
	cfg, err := e.store.ConfigByMessage(messageID)
	if err != nil || cfg == nil {
		return
	}

	mapping, err := e.store.MappingByEmoji(cfg.ID, emoji.Name, emoji.ID)
	if err != nil || mapping == nil {
		return
	}

	member, err := e.session.Member(guildID, userID)
	if err != nil || member == nil || member.Bot {
		return
	}

	role, err := e.session.Role(guildID, mapping.RoleID)
	if err != nil || role == nil {
		return
	}

	if member.hasRole(role.ID) {
		if err = e.session.RemoveRole(guildID, member.ID, role.ID); err != nil {
			logger.WithError(err).WithField("role", role.ID).WithField("user", member.ID).Error("failed revoking role")
			return
		}
	}

	e.stripNicknamePrefix(guildID, member, mapping)

	if err = e.store.RemoveAssignment(cfg.ID, member.ID, role.ID); err != nil {
		logger.WithError(err).WithField("config", cfg.ID).Error("failed deleting assignment record")
	}
}

func (e *Engine) applyNicknamePrefix(guildID int64, member *MemberInfo, mapping *RoleMapping) {
	if mapping.NicknamePrefix == "" || !e.botHasPermission(guildID, discordgo.PermissionManageNicknames) {
		return
	}

	current := member.displayName()
	if prefix, _ := splitNickname(current); prefix == mapping.NicknamePrefix {
		return
	}

	newNick := withPrefix(mapping.NicknamePrefix, current)
	if utf8.RuneCountInString(newNick) > nicknameMaxLen {
		return
	}

	// Role grant already succeeded, a nickname failure is not rolled back
	if err := e.session.SetNickname(guildID, member.ID, newNick); err != nil {
		logger.WithError(err).WithField("user", member.ID).Warn("failed setting nickname prefix")
	}
}

func (e *Engine) stripNicknamePrefix(guildID int64, member *MemberInfo, mapping *RoleMapping) {
	if mapping.NicknamePrefix == "" || !e.botHasPermission(guildID, discordgo.PermissionManageNicknames) {
		return
	}

	base, stripped := stripPrefix(mapping.NicknamePrefix, member.displayName())
	if !stripped {
		return
	}

	if err := e.session.SetNickname(guildID, member.ID, base); err != nil {
		logger.WithError(err).WithField("user", member.ID).Warn("failed stripping nickname prefix")
	}
}

// canManageRole reports whether the bot holds manage-roles and sits above the
// target role in the hierarchy.
func (e *Engine) canManageRole(guildID int64, role *discordgo.Role) bool {
	highest, perms, err := e.botRoleState(guildID)
	if err != nil {
		return false
	}

	if perms&discordgo.PermissionAdministrator == 0 && perms&discordgo.PermissionManageRoles == 0 {
		return false
	}

	return role.Position < highest
}

func (e *Engine) botHasPermission(guildID int64, perm int64) bool {
	_, perms, err := e.botRoleState(guildID)
	if err != nil {
		return false
	}

	return perms&discordgo.PermissionAdministrator != 0 || perms&perm != 0
}

func (e *Engine) botRoleState(guildID int64) (highestPosition int, perms int64, err error) {
	botMember, err := e.session.BotMember(guildID)
	if err != nil || botMember == nil {
		return 0, 0, err
	}

	for _, roleID := range botMember.Roles {
		role, roleErr := e.session.Role(guildID, roleID)
		if roleErr != nil || role == nil {
			continue
		}

		if role.Position > highestPosition {
			highestPosition = role.Position
		}

		perms |= role.Permissions
	}

	return highestPosition, perms, nil
}

// emojiAPIName renders an emoji the way the REST endpoints expect it: custom
// emoji as "name:id", unicode emoji as-is.
func emojiAPIName(name string, id int64) string {
	if id != 0 {
		return name + ":" + strconv.FormatInt(id, 10)
	}

	return name
}
