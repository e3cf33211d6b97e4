package autotranslate

import (
	"github.com/botlabs-gg/yagpdb/v2/bot"
	"github.com/botlabs-gg/yagpdb/v2/bot/eventsystem"
	"github.com/botlabs-gg/yagpdb/v2/common"
	"github.com/botlabs-gg/yagpdb/v2/lib/discordgo"
)

var (
	relayEngine *Engine
	store       *gormStore
)

var _ bot.BotInitHandler = (*Plugin)(nil)

func (p *Plugin) BotInit() {
	store = newGormStore()
	relayEngine = NewEngine(store, store, &liveSession{}, NewHTTPTranslator())

	eventsystem.AddHandlerAsyncLastLegacy(p, bot.ConcurrentEventHandler(handleMessageCreate), eventsystem.EventMessageCreate)
	eventsystem.AddHandlerAsyncLastLegacy(p, bot.ConcurrentEventHandler(handleReactionAdd), eventsystem.EventMessageReactionAdd)
}

func handleMessageCreate(evt *eventsystem.EventData) {
	msg := evt.MessageCreate()
	if msg.Author == nil || msg.Author.Bot || msg.GuildID == 0 {
		return
	}

	meta := &MessageMeta{
		UserID:    msg.Author.ID,
		Username:  msg.Author.Username,
		GuildID:   evt.GS.ID,
		GuildName: evt.GS.Name,
		ChannelID: msg.ChannelID,
	}

	if channel := evt.GS.GetChannelOrThread(msg.ChannelID); channel != nil {
		meta.ChannelName = channel.Name
	}

	relayEngine.HandleMessage(msg.Message, meta)
}

func handleReactionAdd(evt *eventsystem.EventData) {
	ra := evt.MessageReactionAdd()
	if ra.GuildID == 0 || ra.UserID == common.BotUser.ID {
		return
	}

	lang, ok := flagLanguage(ra.Emoji.Name)
	if !ok {
		return
	}

	member, err := bot.GetMember(ra.GuildID, ra.UserID)
	if err != nil || member.User.Bot {
		return
	}

	conf, err := GetConfig(ra.GuildID)
	if err != nil {
		logger.WithError(err).WithField("guild", ra.GuildID).Error("failed fetching guild config")
		return
	}

	if conf.IsIgnoredChannel(ra.ChannelID) {
		return
	}

	handleFlagTranslation(evt.GS, ra.MessageReaction, &member.User, lang)
}

// liveSession adapts the shared bot session to the RelaySession interface.
type liveSession struct{}

func (*liveSession) ChannelExists(channelID int64) bool {
	_, err := common.BotSession.Channel(channelID)
	return err == nil
}

func (*liveSession) Typing(channelID int64) {
	_ = common.BotSession.ChannelTyping(channelID)
}

func (*liveSession) CreateWebhook(channelID int64) (int64, string, error) {
	hook, err := common.BotSession.WebhookCreate(channelID, "Auto-Translate", "")
	if err != nil {
		return 0, "", err
	}

	return hook.ID, hook.Token, nil
}

func (*liveSession) FetchWebhook(id int64, token string) error {
	_, err := common.BotSession.WebhookWithToken(id, token)
	return err
}

func (*liveSession) ExecuteWebhook(id int64, token string, params *discordgo.WebhookParams) (*discordgo.Message, error) {
	return common.BotSession.WebhookExecute(id, token, true, params)
}
