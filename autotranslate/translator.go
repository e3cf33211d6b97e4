package autotranslate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"emperror.dev/errors"
	"github.com/botlabs-gg/yagpdb/v2/common/config"
	"github.com/hashicorp/go-cleanhttp"
)

var (
	confTranslateAPIURL = config.RegisterOption("babel.translate.api_url", "Translation backend endpoint", "https://mxn.au/translate/post")
	confTranslateAPIKey = config.RegisterOption("babel.translate.api_key", "API key forwarded to the translation backend", "")
)

// ErrEmptyTranslation is returned when the backend answered but produced no
// usable text. Callers treat it the same as any other translation failure.
var ErrEmptyTranslation = errors.New("translation backend returned no text")

type translateRequest struct {
	Content       string `json:"content"`
	FromLang      string `json:"fromLang"`
	TargetLang    string `json:"targetLang"`
	Platform      string `json:"platform"`
	DiscordUserID string `json:"discordUserId,omitempty"`
	UserName      string `json:"userName,omitempty"`
	GuildID       string `json:"guildId,omitempty"`
	GuildName     string `json:"guildName,omitempty"`
	ChannelID     string `json:"channelId,omitempty"`
	ChannelName   string `json:"channelName,omitempty"`
}

type translateResponse struct {
	Translated string `json:"translated"`
	OutputText string `json:"outputText"`
}

// HTTPTranslator calls the remote translation backend. The zero value is not
// usable, construct it with NewHTTPTranslator.
type HTTPTranslator struct {
	client *http.Client
	url    string
	apiKey string
}

func NewHTTPTranslator() *HTTPTranslator {
	return &HTTPTranslator{
		client: cleanhttp.DefaultPooledClient(),
		url:    confTranslateAPIURL.GetString(),
		apiKey: confTranslateAPIKey.GetString(),
	}
}

func (t *HTTPTranslator) Translate(content, fromLang, targetLang string, meta *MessageMeta) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyTranslation
	}

	reqBody := translateRequest{
		Content:    content,
		FromLang:   fromLang,
		TargetLang: targetLang,
		Platform:   "discord",
	}

	if meta != nil {
		reqBody.DiscordUserID = strconv.FormatInt(meta.UserID, 10)
		reqBody.UserName = meta.Username
		reqBody.GuildID = strconv.FormatInt(meta.GuildID, 10)
		reqBody.GuildName = meta.GuildName
		reqBody.ChannelID = strconv.FormatInt(meta.ChannelID, 10)
		reqBody.ChannelName = meta.ChannelName
	}

	serialized, err := json.Marshal(reqBody)
	if err != nil {
		return "", errors.WrapIf(err, "failed marshaling translate request")
	}

	req, err := http.NewRequest("POST", t.url, bytes.NewReader(serialized))
	if err != nil {
		return "", errors.WrapIf(err, "failed building translate request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-openai-key", t.apiKey)
	req.Header.Set("x-discord-bot", "true")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", errors.WrapIf(err, "translate request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("translation backend responded with status %d", resp.StatusCode)
	}

	var decoded translateResponse
	if err = json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", errors.WrapIf(err, "failed decoding translate response")
	}

	translated := decoded.Translated
	if translated == "" {
		translated = decoded.OutputText
	}

	if translated == "" {
		return "", ErrEmptyTranslation
	}

	return translated, nil
}
