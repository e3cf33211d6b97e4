package reactionroles

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"emperror.dev/errors"
	"github.com/botlabs-gg/yagpdb/v2/bot"
	"github.com/botlabs-gg/yagpdb/v2/commands"
	"github.com/botlabs-gg/yagpdb/v2/common"
	"github.com/botlabs-gg/yagpdb/v2/lib/dcmd"
	"github.com/botlabs-gg/yagpdb/v2/lib/discordgo"
	"github.com/botlabs-gg/yagpdb/v2/lib/dstate"
)

func (p *Plugin) AddCommands() {
	commands.AddRootCommands(p,
		ReactionRolesCreate,
		ReactionRolesAddMapping,
		ReactionRolesPublish,
		ReactionRolesEdit,
		ReactionRolesList,
		ReactionRolesSync,
	)
}

// draft is an in-progress reaction-role config, one per creating user. It
// only hits the store when published.
type draft struct {
	GuildID       int64
	ChannelID     int64
	Content       string
	SingleRole    bool
	CreatedBy     int64
	EditConfigID  int64
	EditMessageID int64
	Mappings      []*RoleMapping
}

var (
	draftsMu sync.Mutex
	drafts   = make(map[int64]*draft)
)

var (
	ReactionRolesCreate = &commands.YAGCommand{
		CmdCategory:               commands.CategoryTool,
		Name:                      "ReactionRolesCreate",
		Description:               "Starts a reaction role message draft, add mappings then publish it",
		RequiredArgs:              3,
		ApplicationCommandEnabled: true,
		IsResponseEphemeral:       true,
		RequireDiscordPerms:       []int64{discordgo.PermissionManageRoles},
		RequiredDiscordPermsHelp:  "ManageRoles",
		Arguments: []*dcmd.ArgDef{
			{Name: "Channel", Help: "Channel the message will be posted in", Type: dcmd.Channel},
			{Name: "Mode", Help: "single or multiple", Type: dcmd.String},
			{Name: "Message", Help: "The message content", Type: dcmd.String},
		},
		RunFunc: createDraft,
	}
	ReactionRolesAddMapping = &commands.YAGCommand{
		CmdCategory:               commands.CategoryTool,
		Name:                      "ReactionRolesAddMapping",
		Description:               "Adds an emoji to role mapping to your current draft",
		RequiredArgs:              2,
		ApplicationCommandEnabled: true,
		IsResponseEphemeral:       true,
		RequireDiscordPerms:       []int64{discordgo.PermissionManageRoles},
		RequiredDiscordPermsHelp:  "ManageRoles",
		Arguments: []*dcmd.ArgDef{
			{Name: "Emoji", Help: "Unicode emoji or <:name:id>", Type: dcmd.String},
			{Name: "Role", Help: "Exact role name", Type: dcmd.String},
		},
		ArgSwitches: []*dcmd.ArgDef{
			{Name: "Prefix", Help: "Nickname prefix, becomes [Prefix] Username", Type: dcmd.String},
		},
		RunFunc: addDraftMapping,
	}
	ReactionRolesPublish = &commands.YAGCommand{
		CmdCategory:               commands.CategoryTool,
		Name:                      "ReactionRolesPublish",
		Description:               "Posts your draft and makes it live",
		ApplicationCommandEnabled: true,
		IsResponseEphemeral:       true,
		RequireDiscordPerms:       []int64{discordgo.PermissionManageRoles},
		RequiredDiscordPermsHelp:  "ManageRoles",
		RunFunc:                   publishDraft,
	}
	ReactionRolesEdit = &commands.YAGCommand{
		CmdCategory:               commands.CategoryTool,
		Name:                      "ReactionRolesEdit",
		Description:               "Loads a live reaction role message into a draft for editing",
		RequiredArgs:              1,
		ApplicationCommandEnabled: true,
		IsResponseEphemeral:       true,
		RequireDiscordPerms:       []int64{discordgo.PermissionManageRoles},
		RequiredDiscordPermsHelp:  "ManageRoles",
		Arguments: []*dcmd.ArgDef{
			{Name: "MessageID", Help: "The live reaction role message", Type: dcmd.BigInt},
		},
		ArgSwitches: []*dcmd.ArgDef{
			{Name: "Message", Help: "New message content", Type: dcmd.String},
			{Name: "Mode", Help: "single or multiple", Type: dcmd.String},
		},
		RunFunc: editConfig,
	}
	ReactionRolesList = &commands.YAGCommand{
		CmdCategory:               commands.CategoryTool,
		Name:                      "ReactionRolesList",
		Description:               "Lists the reaction role messages in this server",
		ApplicationCommandEnabled: true,
		IsResponseEphemeral:       true,
		RunFunc:                   listConfigs,
	}
	ReactionRolesSync = &commands.YAGCommand{
		CmdCategory:               commands.CategoryTool,
		Name:                      "ReactionRolesSync",
		Description:               "Re-derives role assignments from the live reactions on every reaction role message",
		ApplicationCommandEnabled: true,
		IsResponseEphemeral:       true,
		RequireDiscordPerms:       []int64{discordgo.PermissionManageRoles},
		RequiredDiscordPermsHelp:  "ManageRoles",
		RunFunc:                   syncConfigs,
	}
)

func parseMode(s string) (singleRole bool, err error) {
	switch strings.ToLower(s) {
	case "single":
		return true, nil
	case "multiple", "multi":
		return false, nil
	default:
		return false, fmt.Errorf("mode must be single or multiple, got %q", s)
	}
}

func createDraft(data *dcmd.Data) (interface{}, error) {
	channel := data.Args[0].Value.(*dstate.ChannelState)
	singleRole, err := parseMode(data.Args[1].Str())
	if err != nil {
		return err.Error(), nil
	}

	draftsMu.Lock()
	drafts[data.Author.ID] = &draft{
		GuildID:    data.GuildData.GS.ID,
		ChannelID:  channel.ID,
		Content:    data.Args[2].Str(),
		SingleRole: singleRole,
		CreatedBy:  data.Author.ID,
	}
	draftsMu.Unlock()

	return fmt.Sprintf("Draft started for <#%d> in %s mode. Add mappings with `ReactionRolesAddMapping`, then `ReactionRolesPublish`.",
		channel.ID, data.Args[1].Str()), nil
}

// addMapping appends a mapping to the draft, rejecting duplicate emoji and
// duplicate roles. Callers hold draftsMu.
func (d *draft) addMapping(m *RoleMapping) error {
	for _, existing := range d.Mappings {
		if existing.EmojiName == m.EmojiName && existing.EmojiID == m.EmojiID {
			return errors.New("that emoji is already mapped in this draft")
		}
		if existing.RoleID == m.RoleID {
			return errors.New("that role is already mapped in this draft")
		}
	}

	d.Mappings = append(d.Mappings, m)
	return nil
}

func addDraftMapping(data *dcmd.Data) (interface{}, error) {
	emojiName, emojiID, ok := parseEmojiInput(data.Args[0].Str())
	if !ok {
		return "Couldn't parse that emoji. Use a unicode emoji or the `<:name:id>` form.", nil
	}

	role := findRoleByName(data.GuildData.GS, data.Args[1].Str())
	if role == nil {
		return fmt.Sprintf("No role named `%s` in this server.", data.Args[1].Str()), nil
	}

	prefix := ""
	if data.Switch("Prefix").Value != nil {
		prefix = data.Switch("Prefix").Str()
	}

	draftsMu.Lock()
	defer draftsMu.Unlock()

	d := drafts[data.Author.ID]
	if d == nil {
		return "No draft in progress. Start one with `ReactionRolesCreate` or `ReactionRolesEdit`.", nil
	}

	err := d.addMapping(&RoleMapping{
		EmojiName:      emojiName,
		EmojiID:        emojiID,
		RoleID:         role.ID,
		NicknamePrefix: prefix,
	})
	if err != nil {
		return err.Error(), nil
	}

	return fmt.Sprintf("Mapped %s → `%s`. Draft has %d mapping(s).", data.Args[0].Str(), role.Name, len(d.Mappings)), nil
}

func publishDraft(data *dcmd.Data) (interface{}, error) {
	draftsMu.Lock()
	d := drafts[data.Author.ID]
	draftsMu.Unlock()

	if d == nil {
		return "No draft in progress.", nil
	}

	if len(d.Mappings) == 0 {
		return "Add at least one mapping before publishing.", nil
	}

	if unmanageable := unmanageableRoles(data.GuildData.GS, d.Mappings); len(unmanageable) > 0 {
		return fmt.Sprintf("I can't manage these roles (above my highest role): %s", strings.Join(unmanageable, ", ")), nil
	}

	if d.EditConfigID != 0 {
		return applyEditDraft(data, d)
	}

	msg, err := common.BotSession.ChannelMessageSend(d.ChannelID, d.Content)
	if err != nil {
		return nil, errors.WrapIf(err, "failed posting reaction role message")
	}

	cfg := &RoleConfig{
		GuildID:        d.GuildID,
		ChannelID:      d.ChannelID,
		MessageID:      msg.ID,
		MessageContent: d.Content,
		IsSingleRole:   d.SingleRole,
		CreatedBy:      d.CreatedBy,
	}

	if err = store.CreateConfig(cfg, d.Mappings); err != nil {
		common.BotSession.ChannelMessageDelete(d.ChannelID, msg.ID)
		return nil, errors.WrapIf(err, "failed saving reaction role config")
	}

	seedReactions(d.ChannelID, msg.ID, d.Mappings)
	engine.protected.set(msg.ID, d.Mappings)

	draftsMu.Lock()
	delete(drafts, data.Author.ID)
	draftsMu.Unlock()

	return fmt.Sprintf("Reaction role message created in <#%d>. Unauthorized reactions on it will be removed automatically.", d.ChannelID), nil
}

// applyEditDraft replaces a live config's content, mode and mapping set
// wholesale with the draft's.
func applyEditDraft(data *dcmd.Data, d *draft) (interface{}, error) {
	cfg := &RoleConfig{
		ID:             d.EditConfigID,
		MessageContent: d.Content,
		IsSingleRole:   d.SingleRole,
	}

	if err := store.UpdateConfig(cfg); err != nil {
		return nil, errors.WrapIf(err, "failed updating reaction role config")
	}

	if err := store.ReplaceMappings(d.EditConfigID, d.Mappings); err != nil {
		return nil, errors.WrapIf(err, "failed replacing mappings")
	}

	_, err := common.BotSession.ChannelMessageEdit(d.ChannelID, d.EditMessageID, d.Content)
	if err != nil {
		logger.WithError(err).WithField("message", d.EditMessageID).Warn("failed editing backing message")
	}

	seedReactions(d.ChannelID, d.EditMessageID, d.Mappings)
	engine.protected.set(d.EditMessageID, d.Mappings)

	draftsMu.Lock()
	delete(drafts, data.Author.ID)
	draftsMu.Unlock()

	return "Reaction role message updated.", nil
}

func editConfig(data *dcmd.Data) (interface{}, error) {
	messageID := data.Args[0].Int64()

	cfg, err := store.ConfigByMessage(messageID)
	if err != nil {
		return nil, errors.WrapIf(err, "failed looking up config")
	}

	if cfg == nil || cfg.GuildID != data.GuildData.GS.ID {
		return "No live reaction role message with that id in this server.", nil
	}

	d := &draft{
		GuildID:       cfg.GuildID,
		ChannelID:     cfg.ChannelID,
		Content:       cfg.MessageContent,
		SingleRole:    cfg.IsSingleRole,
		CreatedBy:     data.Author.ID,
		EditConfigID:  cfg.ID,
		EditMessageID: cfg.MessageID,
	}

	if data.Switch("Message").Value != nil {
		d.Content = data.Switch("Message").Str()
	}

	if data.Switch("Mode").Value != nil {
		single, err := parseMode(data.Switch("Mode").Str())
		if err != nil {
			return err.Error(), nil
		}
		d.SingleRole = single
	}

	draftsMu.Lock()
	drafts[data.Author.ID] = d
	draftsMu.Unlock()

	return "Loaded the config into a draft. Re-add the full mapping set with `ReactionRolesAddMapping` (it replaces the old one), then `ReactionRolesPublish`.", nil
}

func listConfigs(data *dcmd.Data) (interface{}, error) {
	configs, err := store.ActiveConfigs(data.GuildData.GS.ID)
	if err != nil {
		return nil, errors.WrapIf(err, "failed listing configs")
	}

	if len(configs) == 0 {
		return "No reaction role messages in this server.", nil
	}

	var out strings.Builder
	fmt.Fprintf(&out, "**Reaction role messages (%d)**\n\n", len(configs))
	for _, cfg := range configs {
		mode := "multiple"
		if cfg.IsSingleRole {
			mode = "single"
		}

		preview := cfg.MessageContent
		if len(preview) > 60 {
			preview = preview[:60] + "..."
		}

		fmt.Fprintf(&out, "• <#%d> (%s, message %d): %s\n", cfg.ChannelID, mode, cfg.MessageID, preview)
	}

	return out.String(), nil
}

func syncConfigs(data *dcmd.Data) (interface{}, error) {
	stats, err := engine.ReconcileGuild(data.GuildData.GS.ID)
	if err != nil {
		return nil, errors.WrapIf(err, "reconciliation failed")
	}

	return "Sync complete: " + stats.String(), nil
}

func seedReactions(channelID, messageID int64, mappings []*RoleMapping) {
	for _, m := range mappings {
		err := common.BotSession.MessageReactionAdd(channelID, messageID, emojiAPIName(m.EmojiName, m.EmojiID))
		if err != nil {
			logger.WithError(err).WithField("emoji", m.EmojiName).Warn("failed seeding reaction")
		}
	}
}

func findRoleByName(gs *dstate.GuildSet, name string) *discordgo.Role {
	for i := range gs.Roles {
		if strings.EqualFold(gs.Roles[i].Name, name) {
			return &gs.Roles[i]
		}
	}

	return nil
}

func unmanageableRoles(gs *dstate.GuildSet, mappings []*RoleMapping) []string {
	botMember, err := bot.GetMember(gs.ID, common.BotUser.ID)
	if err != nil {
		return nil
	}

	highest := 0
	if botMember.Member != nil {
		for _, roleID := range botMember.Member.Roles {
			if role := gs.GetRole(roleID); role != nil && role.Position > highest {
				highest = role.Position
			}
		}
	}

	var names []string
	for _, m := range mappings {
		if role := gs.GetRole(m.RoleID); role != nil && role.Position >= highest {
			names = append(names, "`"+role.Name+"`")
		}
	}

	return names
}

// parseEmojiInput understands plain unicode emoji and the <:name:id> /
// <a:name:id> custom emoji forms.
func parseEmojiInput(input string) (name string, id int64, ok bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", 0, false
	}

	if !strings.HasPrefix(input, "<") {
		return input, 0, true
	}

	trimmed := strings.Trim(input, "<>")
	trimmed = strings.TrimPrefix(trimmed, "a")
	parts := strings.Split(trimmed, ":")
	if len(parts) != 3 || parts[1] == "" {
		return "", 0, false
	}

	parsed, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", 0, false
	}

	return parts[1], parsed, true
}
