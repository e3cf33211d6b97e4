package autotranslate

import (
	"fmt"
	"strings"

	"github.com/botlabs-gg/yagpdb/v2/common"
	"github.com/botlabs-gg/yagpdb/v2/lib/discordgo"
	"github.com/botlabs-gg/yagpdb/v2/lib/dstate"
)

// handleFlagTranslation translates a message into the language of the flag a
// member reacted with and posts the result as a reply. Each (message,
// language) pair is translated at most once, repeat requests are ignored.
func handleFlagTranslation(gs *dstate.GuildSet, reaction *discordgo.MessageReaction, user *discordgo.User, targetLang string) {
	msg, err := common.BotSession.ChannelMessage(reaction.ChannelID, reaction.MessageID)
	if err != nil {
		logger.WithError(err).WithField("message", reaction.MessageID).Warn("failed fetching reacted message")
		return
	}

	if msg.Author == nil || msg.Author.Bot {
		return
	}

	if strings.TrimSpace(msg.Content) == "" {
		return
	}

	exists, err := store.TranslationExists(msg.ID, targetLang)
	if err != nil {
		logger.WithError(err).WithField("message", msg.ID).Error("failed checking translation ledger")
		return
	}

	if exists {
		return
	}

	meta := &MessageMeta{
		UserID:    user.ID,
		Username:  user.Username,
		GuildID:   gs.ID,
		GuildName: gs.Name,
		ChannelID: reaction.ChannelID,
	}

	if channel := gs.GetChannelOrThread(reaction.ChannelID); channel != nil {
		meta.ChannelName = channel.Name
	}

	translated, err := relayEngine.translator.Translate(msg.Content, "detect", targetLang, meta)
	if err != nil {
		logger.WithError(err).WithField("message", msg.ID).WithField("lang", targetLang).Warn("flag translation failed")
		return
	}

	err = store.RecordTranslation(&Translation{
		MessageID:      msg.ID,
		TargetLanguage: targetLang,
		TranslatedText: translated,
		RequestedBy:    user.ID,
	})
	if err != nil {
		logger.WithError(err).WithField("message", msg.ID).Error("failed recording translation")
	}

	embed := translationEmbed(translated, targetLang, reaction.Emoji.Name, user)
	_, err = common.BotSession.ChannelMessageSendComplex(reaction.ChannelID, &discordgo.MessageSend{
		Embeds:    []*discordgo.MessageEmbed{embed},
		Reference: msg.Reference(),
	})
	if err != nil {
		logger.WithError(err).WithField("channel", reaction.ChannelID).Error("failed posting translation reply")
	}
}

func translationEmbed(translated, targetLang, flag string, user *discordgo.User) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Color:       0x50fa7b,
		Description: translated,
		Author: &discordgo.MessageEmbedAuthor{
			Name: fmt.Sprintf("Translated to %s %s", strings.ToUpper(targetLang), flag),
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text:    fmt.Sprintf("Requested by %s", user.Username),
			IconURL: discordgo.EndpointUserAvatar(user.ID, user.Avatar),
		},
	}
}
