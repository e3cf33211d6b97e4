package reactionroles

import (
	"errors"
	"fmt"
	"testing"

	"github.com/botlabs-gg/yagpdb/v2/lib/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testGuildID   = 10
	testChannelID = 20
	testMessageID = 30
	testConfigID  = 1
	testUserID    = 7
	testBotID     = 5

	fireRoleID  = 100
	waterRoleID = 101
	botRoleID   = 999
)

type fakeStore struct {
	configs     []*RoleConfig
	mappings    map[int64][]*RoleMapping
	assignments []*RoleAssignment
	deactivated []int64
}

func (s *fakeStore) ConfigByMessage(messageID int64) (*RoleConfig, error) {
	for _, cfg := range s.configs {
		if cfg.MessageID == messageID {
			return cfg, nil
		}
	}

	return nil, nil
}

func (s *fakeStore) ActiveConfigs(guildID int64) ([]*RoleConfig, error) {
	var out []*RoleConfig
	for _, cfg := range s.configs {
		if guildID == 0 || cfg.GuildID == guildID {
			out = append(out, cfg)
		}
	}

	return out, nil
}

func (s *fakeStore) DeactivateConfig(configID int64) error {
	s.deactivated = append(s.deactivated, configID)
	return nil
}

func (s *fakeStore) Mappings(configID int64) ([]*RoleMapping, error) {
	return s.mappings[configID], nil
}

func (s *fakeStore) MappingByEmoji(configID int64, emojiName string, emojiID int64) (*RoleMapping, error) {
	return matchMapping(s.mappings[configID], emojiName, emojiID), nil
}

func (s *fakeStore) Assignments(configID, userID int64) ([]*RoleAssignment, error) {
	var out []*RoleAssignment
	for _, a := range s.assignments {
		if a.ConfigID == configID && a.UserID == userID {
			out = append(out, a)
		}
	}

	return out, nil
}

func (s *fakeStore) AddAssignment(configID, userID, roleID int64) error {
	for _, a := range s.assignments {
		if a.ConfigID == configID && a.UserID == userID && a.RoleID == roleID {
			return nil
		}
	}

	s.assignments = append(s.assignments, &RoleAssignment{ConfigID: configID, UserID: userID, RoleID: roleID})
	return nil
}

func (s *fakeStore) RemoveAssignment(configID, userID, roleID int64) error {
	filtered := s.assignments[:0]
	for _, a := range s.assignments {
		if a.ConfigID == configID && a.UserID == userID && a.RoleID == roleID {
			continue
		}
		filtered = append(filtered, a)
	}

	s.assignments = filtered
	return nil
}

type fakeSession struct {
	members          map[int64]*MemberInfo
	roles            map[int64]*discordgo.Role
	messages         map[int64]*discordgo.Message
	reactionUsers    map[string][]*discordgo.User
	removedReactions []string
	nicknames        map[int64]string
	addRoleCalls     int
	guildGone        bool
	failRemoveRole   bool
}

func (s *fakeSession) GuildExists(guildID int64) bool {
	return !s.guildGone
}

func (s *fakeSession) Member(guildID, userID int64) (*MemberInfo, error) {
	return s.members[userID], nil
}

func (s *fakeSession) BotMember(guildID int64) (*MemberInfo, error) {
	return s.members[testBotID], nil
}

func (s *fakeSession) Role(guildID, roleID int64) (*discordgo.Role, error) {
	return s.roles[roleID], nil
}

func (s *fakeSession) AddRole(guildID, userID, roleID int64) error {
	s.addRoleCalls++
	member := s.members[userID]
	if !member.hasRole(roleID) {
		member.Roles = append(member.Roles, roleID)
	}

	return nil
}

func (s *fakeSession) RemoveRole(guildID, userID, roleID int64) error {
	if s.failRemoveRole {
		return errors.New("missing permissions")
	}

	member := s.members[userID]
	filtered := member.Roles[:0]
	for _, r := range member.Roles {
		if r != roleID {
			filtered = append(filtered, r)
		}
	}

	member.Roles = filtered
	return nil
}

func (s *fakeSession) SetNickname(guildID, userID int64, nick string) error {
	if s.nicknames == nil {
		s.nicknames = make(map[int64]string)
	}

	s.nicknames[userID] = nick
	s.members[userID].Nick = nick
	return nil
}

func (s *fakeSession) RemoveReaction(channelID, messageID int64, emoji string, userID int64) error {
	s.removedReactions = append(s.removedReactions, fmt.Sprintf("%s/%d", emoji, userID))
	return nil
}

func (s *fakeSession) ReactionUsers(channelID, messageID int64, emoji string) ([]*discordgo.User, error) {
	return s.reactionUsers[emoji], nil
}

func (s *fakeSession) FetchMessage(channelID, messageID int64) (*discordgo.Message, error) {
	return s.messages[messageID], nil
}

func newTestEngine(singleRole bool) (*Engine, *fakeStore, *fakeSession) {
	mappings := []*RoleMapping{
		{ID: 1, ConfigID: testConfigID, EmojiName: "🔥", RoleID: fireRoleID},
		{ID: 2, ConfigID: testConfigID, EmojiName: "💧", RoleID: waterRoleID, NicknamePrefix: "Water"},
	}

	store := &fakeStore{
		configs: []*RoleConfig{{
			ID:           testConfigID,
			GuildID:      testGuildID,
			ChannelID:    testChannelID,
			MessageID:    testMessageID,
			IsSingleRole: singleRole,
		}},
		mappings: map[int64][]*RoleMapping{testConfigID: mappings},
	}

	session := &fakeSession{
		members: map[int64]*MemberInfo{
			testUserID: {ID: testUserID, Username: "alice"},
			testBotID:  {ID: testBotID, Username: "babel", Bot: true, Roles: []int64{botRoleID}},
		},
		roles: map[int64]*discordgo.Role{
			fireRoleID:  {ID: fireRoleID, Name: "Fire", Position: 1},
			waterRoleID: {ID: waterRoleID, Name: "Water", Position: 2},
			botRoleID: {ID: botRoleID, Name: "Babel", Position: 50,
				Permissions: discordgo.PermissionManageRoles | discordgo.PermissionManageNicknames},
		},
	}

	engine := NewEngine(store, session)
	engine.protected.set(testMessageID, mappings)

	return engine, store, session
}

func TestReactionAddGrantsRole(t *testing.T) {
	engine, store, session := newTestEngine(false)

	engine.HandleReactionAdd(testGuildID, testChannelID, testMessageID, testUserID, &discordgo.Emoji{Name: "🔥"})

	assert.True(t, session.members[testUserID].hasRole(fireRoleID))
	require.Len(t, store.assignments, 1)
	assert.Equal(t, int64(fireRoleID), store.assignments[0].RoleID)
}

func TestReactionAddIdempotent(t *testing.T) {
	engine, store, session := newTestEngine(false)

	engine.HandleReactionAdd(testGuildID, testChannelID, testMessageID, testUserID, &discordgo.Emoji{Name: "🔥"})
	engine.HandleReactionAdd(testGuildID, testChannelID, testMessageID, testUserID, &discordgo.Emoji{Name: "🔥"})

	assert.Equal(t, 1, session.addRoleCalls)
	assert.Len(t, store.assignments, 1)
}

func TestMultiRoleAccumulates(t *testing.T) {
	engine, store, session := newTestEngine(false)

	engine.HandleReactionAdd(testGuildID, testChannelID, testMessageID, testUserID, &discordgo.Emoji{Name: "🔥"})
	engine.HandleReactionAdd(testGuildID, testChannelID, testMessageID, testUserID, &discordgo.Emoji{Name: "💧"})

	assert.True(t, session.members[testUserID].hasRole(fireRoleID))
	assert.True(t, session.members[testUserID].hasRole(waterRoleID))
	assert.Len(t, store.assignments, 2)
}

func TestSingleRoleExclusive(t *testing.T) {
	engine, store, session := newTestEngine(true)

	engine.HandleReactionAdd(testGuildID, testChannelID, testMessageID, testUserID, &discordgo.Emoji{Name: "🔥"})
	engine.HandleReactionAdd(testGuildID, testChannelID, testMessageID, testUserID, &discordgo.Emoji{Name: "💧"})

	member := session.members[testUserID]
	assert.False(t, member.hasRole(fireRoleID))
	assert.True(t, member.hasRole(waterRoleID))

	require.Len(t, store.assignments, 1)
	assert.Equal(t, int64(waterRoleID), store.assignments[0].RoleID)

	// The stale fire reaction got cleared off the message
	assert.Contains(t, session.removedReactions, fmt.Sprintf("🔥/%d", testUserID))
}

func TestSingleRoleRevokeFailureBlocksGrant(t *testing.T) {
	engine, store, session := newTestEngine(true)

	engine.HandleReactionAdd(testGuildID, testChannelID, testMessageID, testUserID, &discordgo.Emoji{Name: "🔥"})

	session.failRemoveRole = true
	engine.HandleReactionAdd(testGuildID, testChannelID, testMessageID, testUserID, &discordgo.Emoji{Name: "💧"})

	member := session.members[testUserID]
	assert.True(t, member.hasRole(fireRoleID))
	assert.False(t, member.hasRole(waterRoleID))

	require.Len(t, store.assignments, 1)
	assert.Equal(t, int64(fireRoleID), store.assignments[0].RoleID)
}

func TestReactionRemoveRevokesRole(t *testing.T) {
	engine, store, session := newTestEngine(false)

	engine.HandleReactionAdd(testGuildID, testChannelID, testMessageID, testUserID, &discordgo.Emoji{Name: "💧"})
	assert.Equal(t, "[Water] alice", session.nicknames[testUserID])

	engine.HandleReactionRemove(testGuildID, testMessageID, testUserID, &discordgo.Emoji{Name: "💧"})

	assert.False(t, session.members[testUserID].hasRole(waterRoleID))
	assert.Empty(t, store.assignments)
	assert.Equal(t, "alice", session.nicknames[testUserID])
}

func TestUnmappedReactionRemovedFromProtectedMessage(t *testing.T) {
	engine, store, session := newTestEngine(false)

	engine.HandleReactionAdd(testGuildID, testChannelID, testMessageID, testUserID, &discordgo.Emoji{Name: "🎉"})

	assert.Contains(t, session.removedReactions, fmt.Sprintf("🎉/%d", testUserID))
	assert.Empty(t, store.assignments)
	assert.Empty(t, session.members[testUserID].Roles)
}

func TestReactionOnUnconfiguredMessageIgnored(t *testing.T) {
	engine, store, session := newTestEngine(false)

	engine.HandleReactionAdd(testGuildID, testChannelID, 999999, testUserID, &discordgo.Emoji{Name: "🔥"})

	assert.Empty(t, session.removedReactions)
	assert.Empty(t, store.assignments)
}

func TestBotReactionIgnored(t *testing.T) {
	engine, store, session := newTestEngine(false)

	engine.HandleReactionAdd(testGuildID, testChannelID, testMessageID, testBotID, &discordgo.Emoji{Name: "🔥"})

	assert.Empty(t, store.assignments)
	assert.Equal(t, 0, session.addRoleCalls)
}

func TestNicknamePrefixSkippedWhenTooLong(t *testing.T) {
	engine, _, session := newTestEngine(false)
	session.members[testUserID].Nick = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" // 30 runes

	engine.HandleReactionAdd(testGuildID, testChannelID, testMessageID, testUserID, &discordgo.Emoji{Name: "💧"})

	assert.True(t, session.members[testUserID].hasRole(waterRoleID))
	assert.Empty(t, session.nicknames)
}

func TestReconcileGrantsFromLiveReactions(t *testing.T) {
	engine, store, session := newTestEngine(false)

	session.messages = map[int64]*discordgo.Message{
		testMessageID: {
			ID: testMessageID,
			Reactions: []*discordgo.MessageReactions{
				{Emoji: &discordgo.Emoji{Name: "🔥"}},
				{Emoji: &discordgo.Emoji{Name: "💧"}},
			},
		},
	}
	session.reactionUsers = map[string][]*discordgo.User{
		"🔥": {{ID: testUserID}},
		"💧": {{ID: testUserID}},
	}

	stats, err := engine.ReconcileGuild(testGuildID)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ConfigsProcessed)
	assert.Equal(t, 1, stats.UsersProcessed)
	assert.True(t, session.members[testUserID].hasRole(fireRoleID))
	assert.True(t, session.members[testUserID].hasRole(waterRoleID))
	assert.Len(t, store.assignments, 2)

	// Second run converges to the same state without re-granting
	calls := session.addRoleCalls
	_, err = engine.ReconcileGuild(testGuildID)
	require.NoError(t, err)
	assert.Equal(t, calls, session.addRoleCalls)
	assert.Len(t, store.assignments, 2)
}

func TestReconcileSingleRoleKeepsFirstReaction(t *testing.T) {
	engine, store, session := newTestEngine(true)

	session.messages = map[int64]*discordgo.Message{
		testMessageID: {
			ID: testMessageID,
			Reactions: []*discordgo.MessageReactions{
				{Emoji: &discordgo.Emoji{Name: "🔥"}},
				{Emoji: &discordgo.Emoji{Name: "💧"}},
			},
		},
	}
	session.reactionUsers = map[string][]*discordgo.User{
		"🔥": {{ID: testUserID}},
		"💧": {{ID: testUserID}},
	}

	_, err := engine.ReconcileGuild(testGuildID)
	require.NoError(t, err)

	member := session.members[testUserID]
	assert.True(t, member.hasRole(fireRoleID))
	assert.False(t, member.hasRole(waterRoleID))
	require.Len(t, store.assignments, 1)
	assert.Equal(t, int64(fireRoleID), store.assignments[0].RoleID)
}

func TestReconcileDeactivatesWhenMessageGone(t *testing.T) {
	engine, store, session := newTestEngine(false)
	session.messages = map[int64]*discordgo.Message{}

	stats, err := engine.ReconcileGuild(testGuildID)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ConfigsSkipped)
	assert.Equal(t, []int64{testConfigID}, store.deactivated)

	// The allow-list entry went with it
	protected, _ := engine.protected.allows(testMessageID, "🎉", 0)
	assert.False(t, protected)
}

func TestReconcileSkipsDrafts(t *testing.T) {
	engine, store, _ := newTestEngine(false)
	store.configs[0].MessageID = 0

	stats, err := engine.ReconcileGuild(testGuildID)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ConfigsSkipped)
	assert.Equal(t, 0, stats.ConfigsProcessed)
}
