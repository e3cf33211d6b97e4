package autotranslate

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBackendURL = "https://translate.test/post"

func newTestTranslator() *HTTPTranslator {
	return &HTTPTranslator{
		client: cleanhttp.DefaultPooledClient(),
		url:    testBackendURL,
		apiKey: "test-key",
	}
}

func TestTranslateSuccess(t *testing.T) {
	tr := newTestTranslator()
	httpmock.ActivateNonDefault(tr.client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", testBackendURL,
		httpmock.NewStringResponder(200, `{"translated": "bonjour"}`))

	out, err := tr.Translate("hello", "detect", "fr", nil)
	require.NoError(t, err)
	assert.Equal(t, "bonjour", out)
}

func TestTranslateOutputTextFallback(t *testing.T) {
	tr := newTestTranslator()
	httpmock.ActivateNonDefault(tr.client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", testBackendURL,
		httpmock.NewStringResponder(200, `{"outputText": "hola"}`))

	out, err := tr.Translate("hello", "detect", "es", nil)
	require.NoError(t, err)
	assert.Equal(t, "hola", out)
}

func TestTranslateBackendError(t *testing.T) {
	tr := newTestTranslator()
	httpmock.ActivateNonDefault(tr.client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", testBackendURL,
		httpmock.NewStringResponder(502, "bad gateway"))

	_, err := tr.Translate("hello", "detect", "fr", nil)
	assert.Error(t, err)
}

func TestTranslateEmptyResponse(t *testing.T) {
	tr := newTestTranslator()
	httpmock.ActivateNonDefault(tr.client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", testBackendURL,
		httpmock.NewStringResponder(200, `{"translated": ""}`))

	_, err := tr.Translate("hello", "detect", "fr", nil)
	assert.ErrorIs(t, err, ErrEmptyTranslation)
}

func TestTranslateBlankContentSkipsBackend(t *testing.T) {
	tr := newTestTranslator()
	httpmock.ActivateNonDefault(tr.client)
	defer httpmock.DeactivateAndReset()

	_, err := tr.Translate("   ", "detect", "fr", nil)
	assert.ErrorIs(t, err, ErrEmptyTranslation)
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestTranslateSendsMeta(t *testing.T) {
	tr := newTestTranslator()
	httpmock.ActivateNonDefault(tr.client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", testBackendURL,
		func(req *http.Request) (*http.Response, error) {
			var body translateRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				return nil, err
			}

			assert.Equal(t, "42", body.DiscordUserID)
			assert.Equal(t, "alice", body.UserName)
			assert.Equal(t, "discord", body.Platform)
			assert.Equal(t, "test-key", req.Header.Get("x-openai-key"))

			return httpmock.NewStringResponse(200, `{"translated": "ok"}`), nil
		})

	meta := &MessageMeta{UserID: 42, Username: "alice", GuildID: 1, ChannelID: 2}
	out, err := tr.Translate("hello", "detect", "fr", meta)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}
