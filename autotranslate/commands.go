package autotranslate

import (
	"fmt"
	"strings"

	"emperror.dev/errors"
	"github.com/botlabs-gg/yagpdb/v2/commands"
	"github.com/botlabs-gg/yagpdb/v2/common"
	"github.com/botlabs-gg/yagpdb/v2/lib/dcmd"
	"github.com/botlabs-gg/yagpdb/v2/lib/discordgo"
	"github.com/botlabs-gg/yagpdb/v2/lib/dstate"
)

func (p *Plugin) AddCommands() {
	commands.AddRootCommands(p,
		CreateMirror,
		DeleteMirror,
		ListMirrors,
		CleanupMirrors,
		RetryTranslate,
		TranslateStatus,
	)
}

var (
	CreateMirror = &commands.YAGCommand{
		CmdCategory:               commands.CategoryTool,
		Name:                      "CreateMirror",
		Description:               "Creates a channel that mirrors a source channel in another language",
		RequiredArgs:              2,
		ApplicationCommandEnabled: true,
		IsResponseEphemeral:       true,
		RequireDiscordPerms:       []int64{discordgo.PermissionManageChannels},
		RequiredDiscordPermsHelp:  "ManageChannels",
		Arguments: []*dcmd.ArgDef{
			{Name: "Source", Help: "Channel to watch and translate from", Type: dcmd.Channel},
			{Name: "Language", Help: "Target language code (es, fr, ja, ...)", Type: dcmd.String},
		},
		ArgSwitches: []*dcmd.ArgDef{
			{Name: "Name", Help: "Name for the mirror channel", Type: dcmd.String},
		},
		RunFunc: createMirror,
	}
	DeleteMirror = &commands.YAGCommand{
		CmdCategory:               commands.CategoryTool,
		Name:                      "DeleteMirror",
		Description:               "Removes the auto-translate setup from a mirror channel",
		RequiredArgs:              1,
		ApplicationCommandEnabled: true,
		IsResponseEphemeral:       true,
		RequireDiscordPerms:       []int64{discordgo.PermissionManageChannels},
		RequiredDiscordPermsHelp:  "ManageChannels",
		Arguments: []*dcmd.ArgDef{
			{Name: "Channel", Help: "Mirror channel to remove", Type: dcmd.Channel},
		},
		RunFunc: deleteMirror,
	}
	ListMirrors = &commands.YAGCommand{
		CmdCategory:               commands.CategoryTool,
		Name:                      "ListMirrors",
		Description:               "Lists all auto-translate mirror channels in this server",
		ApplicationCommandEnabled: true,
		IsResponseEphemeral:       true,
		RunFunc:                   listMirrors,
	}
	CleanupMirrors = &commands.YAGCommand{
		CmdCategory:               commands.CategoryTool,
		Name:                      "CleanupMirrors",
		Description:               "Deactivates mirror configs whose channel was deleted",
		ApplicationCommandEnabled: true,
		IsResponseEphemeral:       true,
		RequireDiscordPerms:       []int64{discordgo.PermissionManageChannels},
		RequiredDiscordPermsHelp:  "ManageChannels",
		RunFunc:                   cleanupMirrors,
	}
	RetryTranslate = &commands.YAGCommand{
		CmdCategory:               commands.CategoryTool,
		Name:                      "RetryTranslate",
		Description:               "Manually retries a translation for a message in this channel",
		RequiredArgs:              2,
		ApplicationCommandEnabled: true,
		Arguments: []*dcmd.ArgDef{
			{Name: "MessageID", Help: "Message to translate", Type: dcmd.BigInt},
			{Name: "Language", Help: "Language code (e.g. es, ja)", Type: dcmd.String},
		},
		RunFunc: retryTranslate,
	}
	TranslateStatus = &commands.YAGCommand{
		CmdCategory:               commands.CategoryTool,
		Name:                      "TranslateStatus",
		Description:               "Checks the translation systems",
		ApplicationCommandEnabled: true,
		IsResponseEphemeral:       true,
		RunFunc:                   translateStatus,
	}
)

func createMirror(data *dcmd.Data) (interface{}, error) {
	source := data.Args[0].Value.(*dstate.ChannelState)
	language := strings.ToLower(data.Args[1].Str())

	if !isSupportedMirrorLanguage(language) {
		return fmt.Sprintf("Unsupported language `%s`. Supported: %s", language, strings.Join(mirrorLanguages, ", ")), nil
	}

	if existing, _ := store.MirrorByChannel(source.ID); existing != nil {
		return "That channel is itself a mirror channel, pick its source instead.", nil
	}

	name := fmt.Sprintf("%s-%s", source.Name, language)
	if data.Switch("Name").Value != nil {
		name = data.Switch("Name").Str()
	}

	channel, err := common.BotSession.GuildChannelCreateComplex(data.GuildData.GS.ID, discordgo.GuildChannelCreateData{
		Name:     name,
		Type:     discordgo.ChannelTypeGuildText,
		ParentID: source.ParentID,
		Topic:    fmt.Sprintf("Auto-translates messages from #%s to %s", source.Name, strings.ToUpper(language)),
	})
	if err != nil {
		return nil, errors.WrapIf(err, "failed creating mirror channel")
	}

	hook, err := common.BotSession.WebhookCreate(channel.ID, fmt.Sprintf("Auto-Translate (%s)", strings.ToUpper(language)), "")
	if err != nil {
		common.BotSession.ChannelDelete(channel.ID)
		return nil, errors.WrapIf(err, "failed creating mirror webhook")
	}

	cfg := &ChannelConfig{
		GuildID:         data.GuildData.GS.ID,
		ChannelID:       channel.ID,
		SourceChannelID: source.ID,
		TargetLanguage:  language,
		WebhookID:       hook.ID,
		WebhookToken:    hook.Token,
	}

	if err = store.CreateMirror(cfg); err != nil {
		common.BotSession.ChannelDelete(channel.ID)
		return nil, errors.WrapIf(err, "failed saving mirror config")
	}

	return fmt.Sprintf("Created mirror channel <#%d>.\n\n**Source:** <#%d>\n**Language:** %s\n\nMessages in the source are translated there, replies there are translated back.",
		channel.ID, source.ID, strings.ToUpper(language)), nil
}

func deleteMirror(data *dcmd.Data) (interface{}, error) {
	channel := data.Args[0].Value.(*dstate.ChannelState)

	cfg, err := store.MirrorByChannel(channel.ID)
	if err != nil {
		return nil, errors.WrapIf(err, "failed looking up mirror config")
	}

	if cfg == nil {
		return fmt.Sprintf("<#%d> is not a mirror channel.", channel.ID), nil
	}

	relayEngine.deactivate(cfg.ChannelID)

	return fmt.Sprintf("Removed the auto-translate configuration from <#%d>. The channel itself still exists.", channel.ID), nil
}

func listMirrors(data *dcmd.Data) (interface{}, error) {
	configs, err := store.MirrorsByGuild(data.GuildData.GS.ID)
	if err != nil {
		return nil, errors.WrapIf(err, "failed listing mirrors")
	}

	if len(configs) == 0 {
		return "No auto-translate mirror channels configured in this server.", nil
	}

	var out strings.Builder
	fmt.Fprintf(&out, "**Auto-translate mirrors (%d)**\n\n", len(configs))
	for _, cfg := range configs {
		out.WriteString("• " + relayDescription(cfg) + "\n")
	}

	return out.String(), nil
}

func cleanupMirrors(data *dcmd.Data) (interface{}, error) {
	removed, err := relayEngine.CleanupDeadMirrors(data.GuildData.GS.ID)
	if err != nil {
		return nil, errors.WrapIf(err, "cleanup failed")
	}

	if removed == 0 {
		return "All mirror channels are alive.", nil
	}

	return fmt.Sprintf("Deactivated %d mirror config(s) with deleted channels.", removed), nil
}

func retryTranslate(data *dcmd.Data) (interface{}, error) {
	messageID := data.Args[0].Int64()
	language := strings.ToLower(data.Args[1].Str())

	msg, err := common.BotSession.ChannelMessage(data.ChannelID, messageID)
	if err != nil {
		return "Message not found in this channel.", nil
	}

	if msg.Author == nil || msg.Author.Bot {
		return "Can't translate bot messages.", nil
	}

	translated, err := relayEngine.translator.Translate(msg.Content, "detect", language, &MessageMeta{
		UserID:   data.Author.ID,
		Username: data.Author.Username,
		GuildID:  data.GuildData.GS.ID,
	})
	if err != nil {
		if err == ErrEmptyTranslation {
			return "Nothing to translate in that message.", nil
		}
		return nil, errors.WrapIf(err, "translation failed")
	}

	_, err = common.BotSession.ChannelMessageSend(data.ChannelID,
		fmt.Sprintf("**(Manual retry) Translated to %s by %s:**\n%s", strings.ToUpper(language), data.Author.Username, translated))
	if err != nil {
		return nil, errors.WrapIf(err, "failed sending translation")
	}

	return "Translation sent.", nil
}

func translateStatus(data *dcmd.Data) (interface{}, error) {
	sqlStatus := "SQL: online"
	if err := common.GORM.DB().Ping(); err != nil {
		sqlStatus = "SQL: " + err.Error()
	}

	configs, _ := store.MirrorsByGuild(data.GuildData.GS.ID)

	return fmt.Sprintf("**Status**\n\n%s\nTranslator API: %s\nActive mirrors here: %d",
		sqlStatus, confTranslateAPIURL.GetString(), len(configs)), nil
}
