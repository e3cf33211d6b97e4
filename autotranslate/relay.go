package autotranslate

import (
	"fmt"
	"strconv"
	"time"

	"github.com/botlabs-gg/yagpdb/v2/lib/discordgo"
	"github.com/patrickmn/go-cache"
)

// MessageMeta is the context forwarded to the translation backend for
// logging/telemetry on its side.
type MessageMeta struct {
	UserID      int64
	Username    string
	GuildID     int64
	GuildName   string
	ChannelID   int64
	ChannelName string
}

type Translator interface {
	Translate(content, fromLang, targetLang string, meta *MessageMeta) (string, error)
}

// ConfigStore is the durable record of mirror channels.
type ConfigStore interface {
	MirrorByChannel(channelID int64) (*ChannelConfig, error)
	MirrorsBySource(sourceChannelID int64) ([]*ChannelConfig, error)
	MirrorsByGuild(guildID int64) ([]*ChannelConfig, error)
	UpdateWebhook(channelID int64, webhookID int64, webhookToken string) error
	Deactivate(channelID int64) error
}

// Ledger tracks which messages have been relayed where. Relays are skipped
// when a matching entry exists, which is what keeps the relay graph loop-free.
type Ledger interface {
	IsRelayed(originalMessageID, targetChannelID int64) (bool, error)
	IsRelayMessage(messageID int64) (bool, error)
	RecordRelay(entry *RelayedMessage) error
}

// RelaySession is the slice of the platform the relay engine talks to.
type RelaySession interface {
	ChannelExists(channelID int64) bool
	Typing(channelID int64)
	CreateWebhook(channelID int64) (id int64, token string, err error)
	FetchWebhook(id int64, token string) error
	ExecuteWebhook(id int64, token string, params *discordgo.WebhookParams) (*discordgo.Message, error)
}

type webhookCreds struct {
	ID    int64
	Token string
}

// Engine relays messages between a source channel and its mirror channels,
// impersonating the original author through per-channel webhooks.
type Engine struct {
	store      ConfigStore
	ledger     Ledger
	session    RelaySession
	translator Translator
	webhooks   *cache.Cache
}

func NewEngine(store ConfigStore, ledger Ledger, session RelaySession, translator Translator) *Engine {
	return &Engine{
		store:      store,
		ledger:     ledger,
		session:    session,
		translator: translator,
		webhooks:   cache.New(time.Hour, 10*time.Minute),
	}
}

// HandleMessage classifies the channel the message arrived in and runs the
// matching relay case. A mirror channel is handled as a leaf: after relaying
// back to the source it never falls through to the watched-source case.
func (e *Engine) HandleMessage(msg *discordgo.Message, meta *MessageMeta) {
	if msg.Author == nil || msg.Author.Bot || msg.GuildID == 0 {
		return
	}

	mirrorCfg, err := e.store.MirrorByChannel(msg.ChannelID)
	if err != nil {
		logger.WithError(err).WithField("channel", msg.ChannelID).Error("failed looking up mirror config")
		return
	}

	if mirrorCfg != nil {
		e.handleMirrorMessage(msg, meta, mirrorCfg)
		return
	}

	watchers, err := e.store.MirrorsBySource(msg.ChannelID)
	if err != nil {
		logger.WithError(err).WithField("channel", msg.ChannelID).Error("failed looking up watching mirrors")
		return
	}

	if len(watchers) > 0 {
		e.broadcastToMirrors(msg, meta, watchers, 0)
	}
}

// handleMirrorMessage translates a message posted in a mirror channel back to
// English and relays it into the source channel, then fans the original out to
// the sibling mirrors watching the same source.
func (e *Engine) handleMirrorMessage(msg *discordgo.Message, meta *MessageMeta, cfg *ChannelConfig) {
	isRelay, err := e.ledger.IsRelayMessage(msg.ID)
	if err != nil {
		logger.WithError(err).WithField("message", msg.ID).Error("failed checking relay ledger")
		return
	}

	if isRelay {
		// Our own echo arriving back through the gateway
		return
	}

	relayed, err := e.ledger.IsRelayed(msg.ID, cfg.SourceChannelID)
	if err != nil {
		logger.WithError(err).WithField("message", msg.ID).Error("failed checking relay ledger")
		return
	}

	// A duplicate gateway delivery skips the source send but still walks the
	// siblings, each of which is ledger-gated on its own
	if !relayed && !e.relayToSource(msg, meta, cfg) {
		return
	}

	siblings, err := e.store.MirrorsBySource(cfg.SourceChannelID)
	if err != nil {
		logger.WithError(err).WithField("channel", cfg.SourceChannelID).Error("failed looking up sibling mirrors")
		return
	}

	e.broadcastToMirrors(msg, meta, siblings, cfg.ChannelID)
}

// relayToSource translates the mirror message to english and delivers it into
// the source channel, returning whether the relay went through.
func (e *Engine) relayToSource(msg *discordgo.Message, meta *MessageMeta, cfg *ChannelConfig) bool {
	e.session.Typing(cfg.SourceChannelID)

	translated, err := e.translator.Translate(msg.Content, "detect", "en", meta)
	if err != nil {
		logger.WithError(err).WithField("message", msg.ID).Warn("translation to english failed, skipping relay")
		return false
	}

	if translated == "" {
		return false
	}

	if !e.session.ChannelExists(cfg.SourceChannelID) {
		logger.WithField("channel", cfg.SourceChannelID).Info("source channel gone, deactivating mirror")
		e.deactivate(cfg.ChannelID)
		return false
	}

	sent, err := e.sendAsUser(cfg.SourceChannelID, translated, msg.Author, msg.Attachments, nil)
	if err != nil {
		logger.WithError(err).WithField("channel", cfg.SourceChannelID).Error("failed relaying to source channel")
		return false
	}

	e.recordRelay(&RelayedMessage{
		OriginalMessageID: msg.ID,
		RelayedMessageID:  sent.ID,
		SourceChannelID:   msg.ChannelID,
		TargetChannelID:   cfg.SourceChannelID,
		ConfigID:          cfg.ID,
		IsAutoTranslation: true,
	})

	return true
}

// broadcastToMirrors relays a message into every given mirror channel in its
// configured language. A failure on one mirror never stops the others.
func (e *Engine) broadcastToMirrors(msg *discordgo.Message, meta *MessageMeta, configs []*ChannelConfig, skipChannelID int64) {
	for _, cfg := range configs {
		if cfg.ChannelID == skipChannelID {
			continue
		}

		relayed, err := e.ledger.IsRelayed(msg.ID, cfg.ChannelID)
		if err != nil {
			logger.WithError(err).WithField("channel", cfg.ChannelID).Error("failed checking relay ledger")
			continue
		}

		if relayed {
			continue
		}

		if !e.session.ChannelExists(cfg.ChannelID) {
			logger.WithField("channel", cfg.ChannelID).Info("mirror channel gone, deactivating")
			e.deactivate(cfg.ChannelID)
			continue
		}

		e.session.Typing(cfg.ChannelID)

		translated, err := e.translator.Translate(msg.Content, "detect", cfg.TargetLanguage, meta)
		if err != nil {
			logger.WithError(err).WithField("channel", cfg.ChannelID).WithField("lang", cfg.TargetLanguage).Warn("translation failed, skipping mirror")
			continue
		}

		if translated == "" {
			continue
		}

		sent, err := e.sendAsUser(cfg.ChannelID, translated, msg.Author, msg.Attachments, cfg)
		if err != nil {
			logger.WithError(err).WithField("channel", cfg.ChannelID).Error("failed relaying to mirror channel")
			continue
		}

		e.recordRelay(&RelayedMessage{
			OriginalMessageID: msg.ID,
			RelayedMessageID:  sent.ID,
			SourceChannelID:   msg.ChannelID,
			TargetChannelID:   cfg.ChannelID,
			ConfigID:          cfg.ID,
			IsAutoTranslation: true,
		})
	}
}

// sendAsUser posts content into a channel impersonating the author. Mirror
// channels use the webhook stored on their config, rotating it in place when
// the stored one is gone. Other channels get a lazily created webhook that
// lives in the cache only.
func (e *Engine) sendAsUser(channelID int64, content string, author *discordgo.User, attachments []*discordgo.MessageAttachment, cfg *ChannelConfig) (*discordgo.Message, error) {
	creds, err := e.resolveWebhook(channelID, cfg)
	if err != nil {
		return nil, err
	}

	for _, attachment := range attachments {
		content += "\n" + attachment.URL
	}

	params := &discordgo.WebhookParams{
		Content:   content,
		Username:  author.Username,
		AvatarURL: discordgo.EndpointUserAvatar(author.ID, author.Avatar),
		AllowedMentions: &discordgo.AllowedMentions{
			Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers, discordgo.AllowedMentionTypeRoles},
		},
	}

	sent, err := e.session.ExecuteWebhook(creds.ID, creds.Token, params)
	if err == nil {
		return sent, nil
	}

	// The cached webhook may have been deleted out from under us, rotate once
	e.webhooks.Delete(webhookCacheKey(channelID))
	creds, rotateErr := e.rotateWebhook(channelID, cfg)
	if rotateErr != nil {
		return nil, err
	}

	return e.session.ExecuteWebhook(creds.ID, creds.Token, params)
}

func (e *Engine) resolveWebhook(channelID int64, cfg *ChannelConfig) (*webhookCreds, error) {
	key := webhookCacheKey(channelID)
	if cached, ok := e.webhooks.Get(key); ok {
		return cached.(*webhookCreds), nil
	}

	if cfg != nil && cfg.WebhookID != 0 && cfg.WebhookToken != "" {
		if err := e.session.FetchWebhook(cfg.WebhookID, cfg.WebhookToken); err == nil {
			creds := &webhookCreds{ID: cfg.WebhookID, Token: cfg.WebhookToken}
			e.webhooks.SetDefault(key, creds)
			return creds, nil
		}

		logger.WithField("webhook", cfg.WebhookID).Info("stored webhook gone, creating a replacement")
	}

	return e.rotateWebhook(channelID, cfg)
}

// rotateWebhook creates a fresh webhook for the channel and, for mirror
// channels, persists the new credentials on the config.
func (e *Engine) rotateWebhook(channelID int64, cfg *ChannelConfig) (*webhookCreds, error) {
	id, token, err := e.session.CreateWebhook(channelID)
	if err != nil {
		return nil, err
	}

	creds := &webhookCreds{ID: id, Token: token}
	e.webhooks.SetDefault(webhookCacheKey(channelID), creds)

	if cfg != nil {
		if err = e.store.UpdateWebhook(cfg.ChannelID, id, token); err != nil {
			logger.WithError(err).WithField("channel", cfg.ChannelID).Error("failed persisting rotated webhook")
		}
	}

	return creds, nil
}

func (e *Engine) recordRelay(entry *RelayedMessage) {
	// The message is already delivered at this point, a failed ledger write
	// only costs us duplicate suppression for this one entry
	if err := e.ledger.RecordRelay(entry); err != nil {
		logger.WithError(err).WithField("message", entry.OriginalMessageID).Error("failed recording relay")
	}
}

func (e *Engine) deactivate(channelID int64) {
	if err := e.store.Deactivate(channelID); err != nil {
		logger.WithError(err).WithField("channel", channelID).Error("failed deactivating mirror config")
	}

	e.webhooks.Delete(webhookCacheKey(channelID))
}

// CleanupDeadMirrors deactivates every mirror config in the guild whose
// channel no longer exists, returning how many were removed.
func (e *Engine) CleanupDeadMirrors(guildID int64) (int, error) {
	configs, err := e.store.MirrorsByGuild(guildID)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, cfg := range configs {
		if !e.session.ChannelExists(cfg.ChannelID) {
			e.deactivate(cfg.ChannelID)
			removed++
		}
	}

	return removed, nil
}

func webhookCacheKey(channelID int64) string {
	return strconv.FormatInt(channelID, 10)
}

func relayDescription(cfg *ChannelConfig) string {
	return fmt.Sprintf("<#%d> → <#%d> (%s)", cfg.SourceChannelID, cfg.ChannelID, cfg.TargetLanguage)
}
