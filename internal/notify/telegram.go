package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Telegram sends messages through the Bot API. Zero retries: a missed
// ping is not worth holding a timer tick for.
type Telegram struct {
	client *http.Client
	apiURL string
	token  string
	chatID string
}

// NewTelegram returns a client for the given bot token and chat.
func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		client: &http.Client{Timeout: 10 * time.Second},
		apiURL: "https://api.telegram.org",
		token:  token,
		chatID: chatID,
	}
}

// Notify sends text to the configured chat with HTML formatting.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	payload := map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	return t.call(ctx, "sendMessage", payload, nil)
}

// Check verifies the token against getMe and returns the bot username.
func (t *Telegram) Check(ctx context.Context) (string, error) {
	var me struct {
		Username string `json:"username"`
	}
	if err := t.call(ctx, "getMe", nil, &me); err != nil {
		return "", err
	}
	return me.Username, nil
}

// call performs one Bot API method. Every response carries the same
// envelope; a 4xx still decodes, with ok=false and a description.
func (t *Telegram) call(ctx context.Context, method string, payload, result any) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", t.apiURL, t.token, method)
	verb := http.MethodGet
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("telegram: %s: %w", method, err)
		}
		verb = http.MethodPost
		body = bytes.NewReader(data)
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, verb, endpoint, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, verb, endpoint, nil)
	}
	if err != nil {
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		// The request URL embeds the bot token, so the url.Error wrapper
		// is stripped before the error surfaces anywhere loggable.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()

	var env struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description"`
		Result      json.RawMessage `json:"result"`
	}
	if derr := json.NewDecoder(resp.Body).Decode(&env); derr != nil {
		if resp.StatusCode >= 400 {
			return fmt.Errorf("telegram: %s: HTTP %d", method, resp.StatusCode)
		}
		return fmt.Errorf("telegram: %s: decode response: %w", method, derr)
	}
	if !env.OK {
		return fmt.Errorf("telegram: %s: %s", method, env.Description)
	}
	if result != nil {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return fmt.Errorf("telegram: %s: decode result: %w", method, err)
		}
	}
	return nil
}
