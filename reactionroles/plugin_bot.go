package reactionroles

import (
	"github.com/botlabs-gg/yagpdb/v2/bot"
	"github.com/botlabs-gg/yagpdb/v2/bot/eventsystem"
	"github.com/botlabs-gg/yagpdb/v2/common"
	"github.com/botlabs-gg/yagpdb/v2/lib/discordgo"
)

var logger = common.GetPluginLogger(&Plugin{})

type Plugin struct{}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Reaction roles",
		SysName:  "reaction_roles",
		Category: common.PluginCategoryMisc,
	}
}

func RegisterPlugin() {
	common.RegisterPlugin(&Plugin{})

	common.GORM.AutoMigrate(&RoleConfig{}, &RoleMapping{}, &RoleAssignment{})
}

var (
	engine *Engine
	store  *gormStore
)

var _ bot.BotInitHandler = (*Plugin)(nil)

func (p *Plugin) BotInit() {
	store = newGormStore()
	engine = NewEngine(store, &liveSession{})
	engine.loadProtection()

	eventsystem.AddHandlerAsyncLastLegacy(p, bot.ConcurrentEventHandler(handleReaction),
		eventsystem.EventMessageReactionAdd, eventsystem.EventMessageReactionRemove)
}

func handleReaction(evt *eventsystem.EventData) {
	var reaction *discordgo.MessageReaction
	added := false

	switch e := evt.EvtInterface.(type) {
	case *discordgo.MessageReactionAdd:
		reaction = e.MessageReaction
		added = true
	case *discordgo.MessageReactionRemove:
		reaction = e.MessageReaction
	}

	if reaction.GuildID == 0 || reaction.UserID == common.BotUser.ID {
		return
	}

	if added {
		engine.HandleReactionAdd(reaction.GuildID, reaction.ChannelID, reaction.MessageID, reaction.UserID, &reaction.Emoji)
	} else {
		engine.HandleReactionRemove(reaction.GuildID, reaction.MessageID, reaction.UserID, &reaction.Emoji)
	}
}

// liveSession adapts the shared bot session and state tracker to the
// RoleSession interface.
type liveSession struct{}

func (*liveSession) GuildExists(guildID int64) bool {
	return bot.State.GetGuild(guildID) != nil
}

func (*liveSession) Member(guildID, userID int64) (*MemberInfo, error) {
	ms, err := bot.GetMember(guildID, userID)
	if err != nil {
		return nil, err
	}

	info := &MemberInfo{
		ID:       ms.User.ID,
		Username: ms.User.Username,
		Bot:      ms.User.Bot,
	}

	if ms.Member != nil {
		info.Nick = ms.Member.Nick
		info.Roles = ms.Member.Roles
	}

	return info, nil
}

func (s *liveSession) BotMember(guildID int64) (*MemberInfo, error) {
	return s.Member(guildID, common.BotUser.ID)
}

func (*liveSession) Role(guildID, roleID int64) (*discordgo.Role, error) {
	gs := bot.State.GetGuild(guildID)
	if gs == nil {
		return nil, nil
	}

	return gs.GetRole(roleID), nil
}

func (*liveSession) AddRole(guildID, userID, roleID int64) error {
	return common.BotSession.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (*liveSession) RemoveRole(guildID, userID, roleID int64) error {
	return common.BotSession.GuildMemberRoleRemove(guildID, userID, roleID)
}

func (*liveSession) SetNickname(guildID, userID int64, nick string) error {
	return common.BotSession.GuildMemberNickname(guildID, userID, nick)
}

func (*liveSession) RemoveReaction(channelID, messageID int64, emoji string, userID int64) error {
	return common.BotSession.MessageReactionRemove(channelID, messageID, emoji, userID)
}

func (*liveSession) ReactionUsers(channelID, messageID int64, emoji string) ([]*discordgo.User, error) {
	return common.BotSession.MessageReactions(channelID, messageID, emoji, 100, 0, 0)
}

func (*liveSession) FetchMessage(channelID, messageID int64) (*discordgo.Message, error) {
	return common.BotSession.ChannelMessage(channelID, messageID)
}
