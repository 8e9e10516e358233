// Package bot bridges a Telegram-style messaging bot to the moderation
// gateway. The relay validates that commands come from the single
// designated moderator identity and forwards them as authenticated HTTP
// calls; the chat core itself only ever trusts the shared secret.
package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultAPIBase is the production bot API endpoint. Tests point the
// relay at a local stand-in.
const DefaultAPIBase = "https://api.telegram.org"

const (
	pollTimeout    = 30 * time.Second
	requestTimeout = 45 * time.Second
	retryDelay     = 3 * time.Second
)

// Config wires a relay instance.
type Config struct {
	APIBase    string // bot API base URL; empty means DefaultAPIBase
	Token      string // bot credential
	Moderator  string // designated moderator username, without sigil
	GatewayURL string // local moderation gateway base URL
	Secret     string // shared moderation secret
	PublicURL  string // public chat origin, rendered as the deep link
}

// Relay long-polls the bot API and turns moderator commands into
// gateway calls.
type Relay struct {
	cfg    Config
	client *http.Client
	offset int64
}

// New creates a relay. The zero APIBase falls back to DefaultAPIBase.
func New(cfg Config) *Relay {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	return &Relay{
		cfg:    cfg,
		client: &http.Client{Timeout: requestTimeout},
	}
}

// Bot API payload shapes, reduced to the fields the relay reads.
type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		From *struct {
			Username string `json:"username"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

type updatesResponse struct {
	OK     bool     `json:"ok"`
	Result []update `json:"result"`
}

// Run polls until the context is cancelled. Poll failures are logged and
// retried after a short delay; they never bring the process down.
func (r *Relay) Run(ctx context.Context) {
	log.Printf("[bot] relay started (moderator=%s)", r.cfg.Moderator)
	for {
		if err := r.poll(ctx); err != nil {
			if ctx.Err() != nil {
				log.Println("[bot] relay stopped")
				return
			}
			log.Printf("[bot] poll failed: %v", err)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				log.Println("[bot] relay stopped")
				return
			}
		}
		if ctx.Err() != nil {
			log.Println("[bot] relay stopped")
			return
		}
	}
}

func (r *Relay) poll(ctx context.Context) error {
	q := url.Values{}
	q.Set("timeout", fmt.Sprintf("%d", int(pollTimeout.Seconds())))
	q.Set("offset", fmt.Sprintf("%d", r.offset))

	endpoint := fmt.Sprintf("%s/bot%s/getUpdates?%s", r.cfg.APIBase, r.cfg.Token, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var updates updatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&updates); err != nil {
		return fmt.Errorf("failed to decode updates: %w", err)
	}
	if !updates.OK {
		return fmt.Errorf("bot API returned not-ok (status %d)", resp.StatusCode)
	}

	for _, u := range updates.Result {
		if u.UpdateID >= r.offset {
			r.offset = u.UpdateID + 1
		}
		r.handleUpdate(ctx, u)
	}
	return nil
}

func (r *Relay) handleUpdate(ctx context.Context, u update) {
	if u.Message == nil || u.Message.Text == "" {
		return
	}
	chatID := u.Message.Chat.ID

	// The relay is the one place that decides "who is the moderator";
	// the core only trusts the secret.
	if u.Message.From == nil || !strings.EqualFold(u.Message.From.Username, r.cfg.Moderator) {
		r.reply(ctx, chatID, "access denied")
		return
	}

	cmd, arg := splitCommand(u.Message.Text)
	switch cmd {
	case "/start":
		r.reply(ctx, chatID, fmt.Sprintf("Chat is live: %s\nCommands: /ban <user>, /unban <user>, /delete <id>", r.cfg.PublicURL))
	case "/ban":
		r.moderate(ctx, chatID, "/moderator/ban", map[string]string{"user": arg}, "user required: /ban <user>", arg)
	case "/unban":
		r.moderate(ctx, chatID, "/moderator/unban", map[string]string{"user": arg}, "user required: /unban <user>", arg)
	case "/delete":
		r.moderate(ctx, chatID, "/moderator/delete", map[string]string{"id": arg}, "id required: /delete <id>", arg)
	default:
		r.reply(ctx, chatID, "unknown command")
	}
}

// moderate forwards one command to the gateway and relays the outcome as
// plain text. Failures are reported to the operator, never retried.
func (r *Relay) moderate(ctx context.Context, chatID int64, path string, payload map[string]string, usage, arg string) {
	if arg == "" {
		r.reply(ctx, chatID, usage)
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		r.reply(ctx, chatID, fmt.Sprintf("error: %v", err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.GatewayURL+path, bytes.NewReader(body))
	if err != nil {
		r.reply(ctx, chatID, fmt.Sprintf("error: %v", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-MOD-SECRET", r.cfg.Secret)
	req.Header.Set("X-MOD-ACTOR", r.cfg.Moderator)

	resp, err := r.client.Do(req)
	if err != nil {
		r.reply(ctx, chatID, fmt.Sprintf("error: %v", err))
		return
	}
	defer resp.Body.Close()

	var result struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		r.reply(ctx, chatID, fmt.Sprintf("error: unexpected gateway response (status %d)", resp.StatusCode))
		return
	}

	if result.OK {
		r.reply(ctx, chatID, "done")
	} else {
		r.reply(ctx, chatID, fmt.Sprintf("failed: %s", result.Error))
	}
}

func (r *Relay) reply(ctx context.Context, chatID int64, text string) {
	body, err := json.Marshal(map[string]any{"chat_id": chatID, "text": text})
	if err != nil {
		log.Printf("[bot] reply marshal failed: %v", err)
		return
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", r.cfg.APIBase, r.cfg.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		log.Printf("[bot] reply build failed: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		log.Printf("[bot] reply send failed: %v", err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
}

// splitCommand separates "/ban  @user" into "/ban" and "@user", dropping
// a bot-name suffix ("/ban@mybot") the way group chats append it.
func splitCommand(text string) (cmd, arg string) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return "", ""
	}
	cmd = fields[0]
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	if len(fields) > 1 {
		arg = strings.Join(fields[1:], " ")
	}
	return cmd, arg
}
