package reactionroles

import (
	"sync"
)

type allowedEmoji struct {
	Name string
	ID   int64
}

// protectionList is the in-memory allow-list of configured emoji per live
// reaction-role message. Reactions outside the list get removed on sight.
type protectionList struct {
	mu      sync.RWMutex
	allowed map[int64][]allowedEmoji
}

func newProtectionList() *protectionList {
	return &protectionList{allowed: make(map[int64][]allowedEmoji)}
}

func (p *protectionList) set(messageID int64, mappings []*RoleMapping) {
	emojis := make([]allowedEmoji, 0, len(mappings))
	for _, m := range mappings {
		emojis = append(emojis, allowedEmoji{Name: m.EmojiName, ID: m.EmojiID})
	}

	p.mu.Lock()
	p.allowed[messageID] = emojis
	p.mu.Unlock()
}

func (p *protectionList) forget(messageID int64) {
	p.mu.Lock()
	delete(p.allowed, messageID)
	p.mu.Unlock()
}

// allows reports whether the message is protected at all and, if so, whether
// the emoji is on its list. Custom emoji match by id, unicode by name.
func (p *protectionList) allows(messageID int64, emojiName string, emojiID int64) (protected bool, allowed bool) {
	p.mu.RLock()
	emojis, ok := p.allowed[messageID]
	p.mu.RUnlock()

	if !ok {
		return false, true
	}

	for _, e := range emojis {
		if e.ID != 0 {
			if e.ID == emojiID {
				return true, true
			}
		} else if e.Name == emojiName {
			return true, true
		}
	}

	return true, false
}

// loadProtection seeds the allow-list from every live config, called once the
// bot comes up.
func (e *Engine) loadProtection() {
	configs, err := e.store.ActiveConfigs(0)
	if err != nil {
		logger.WithError(err).Error("failed loading reaction role configs for protection")
		return
	}

	count := 0
	for _, cfg := range configs {
		if cfg.MessageID == 0 {
			continue
		}

		mappings, err := e.store.Mappings(cfg.ID)
		if err != nil {
			logger.WithError(err).WithField("config", cfg.ID).Error("failed loading mappings for protection")
			continue
		}

		e.protected.set(cfg.MessageID, mappings)
		count++
	}

	logger.Infof("loaded reaction protection for %d messages", count)
}
