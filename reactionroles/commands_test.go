package reactionroles

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftAddMappingRejectsDuplicates(t *testing.T) {
	d := &draft{}

	require.NoError(t, d.addMapping(&RoleMapping{EmojiName: "🔥", RoleID: 1}))

	assert.Error(t, d.addMapping(&RoleMapping{EmojiName: "🔥", RoleID: 2}))
	assert.Error(t, d.addMapping(&RoleMapping{EmojiName: "💧", RoleID: 1}))
	assert.Len(t, d.Mappings, 1)

	require.NoError(t, d.addMapping(&RoleMapping{EmojiName: "💧", RoleID: 2}))
	assert.Len(t, d.Mappings, 2)
}

func TestDraftMappingAddsSerialized(t *testing.T) {
	draftsMu.Lock()
	drafts[1] = &draft{}
	draftsMu.Unlock()
	defer func() {
		draftsMu.Lock()
		delete(drafts, 1)
		draftsMu.Unlock()
	}()

	var wg sync.WaitGroup
	for i := int64(0); i < 16; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()

			draftsMu.Lock()
			defer draftsMu.Unlock()
			_ = drafts[1].addMapping(&RoleMapping{EmojiName: "e", EmojiID: n + 1, RoleID: n + 1})
		}(i)
	}
	wg.Wait()

	draftsMu.Lock()
	defer draftsMu.Unlock()
	assert.Len(t, drafts[1].Mappings, 16)
}

func TestParseEmojiInput(t *testing.T) {
	cases := []struct {
		input string
		name  string
		id    int64
		ok    bool
	}{
		{"🔥", "🔥", 0, true},
		{"<:blob:123456>", "blob", 123456, true},
		{"<a:party:789>", "party", 789, true},
		{"<:broken>", "", 0, false},
		{"<::123>", "", 0, false},
		{"<:blob:notanumber>", "", 0, false},
		{"", "", 0, false},
	}

	for _, tc := range cases {
		name, id, ok := parseEmojiInput(tc.input)
		assert.Equal(t, tc.ok, ok, tc.input)
		if tc.ok {
			assert.Equal(t, tc.name, name, tc.input)
			assert.Equal(t, tc.id, id, tc.input)
		}
	}
}
