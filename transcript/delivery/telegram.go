package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// DefaultTelegramURL is the Bot API endpoint.
const DefaultTelegramURL = "https://api.telegram.org"

// Telegram sends the artifact as a document to one chat through the Bot API.
type Telegram struct {
	Token string
	// ChatID is a numeric chat id or an @channel username.
	ChatID string
	// BaseURL defaults to DefaultTelegramURL.
	BaseURL string
	Client  *http.Client
	Retry   Retry
}

// APIError is a non-ok Bot API reply.
type APIError struct {
	Method      string
	StatusCode  int
	Description string
	// RetryAfter is the server-requested wait in seconds on 429 replies.
	RetryAfter int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.StatusCode, e.Description)
}

func (t Telegram) Name() string { return "telegram" }

// Configured reports whether both the token and the chat id are set.
func (t Telegram) Configured() bool {
	return strings.TrimSpace(t.Token) != "" && strings.TrimSpace(t.ChatID) != ""
}

// Deliver uploads path with sendDocument and a "File sent: <name>" caption. 429 and 5xx
// replies are retried per t.Retry.
func (t Telegram) Deliver(ctx context.Context, path string) error {
	if !t.Configured() {
		return fmt.Errorf("telegram: %w: token and chat id are required", ErrNotConfigured)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("telegram: read artifact: %w", err)
	}
	name := filepath.Base(path)

	doc := tgbotapi.NewDocument(0, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.BaseChat = chatTarget(t.ChatID)
	doc.Caption = "File sent: " + name

	return t.do(ctx, "sendDocument", func(bot *tgbotapi.BotAPI) error {
		_, err := bot.Request(doc)
		return err
	})
}

// LookupChatID returns the chat id of the most recent update the bot received. It needs only
// the token; someone must have messaged the bot first.
func (t Telegram) LookupChatID(ctx context.Context) (string, error) {
	if strings.TrimSpace(t.Token) == "" {
		return "", fmt.Errorf("telegram: %w: token is required", ErrNotConfigured)
	}
	var updates []tgbotapi.Update
	err := t.do(ctx, "getUpdates", func(bot *tgbotapi.BotAPI) error {
		var err error
		updates, err = bot.GetUpdates(tgbotapi.NewUpdate(0))
		return err
	})
	if err != nil {
		return "", err
	}

	for i := len(updates) - 1; i >= 0; i-- {
		if id, ok := updateChatID(updates[i]); ok {
			return strconv.FormatInt(id, 10), nil
		}
	}
	return "", fmt.Errorf("telegram: no messages found; send a message to the bot first")
}

// do opens a bot session bound to ctx and runs fn, retrying per t.Retry. Opening the session
// calls getMe, so a bad token fails there.
func (t Telegram) do(ctx context.Context, method string, fn func(bot *tgbotapi.BotAPI) error) error {
	return t.Retry.Do(ctx, func() error {
		client := &boundClient{ctx: ctx, client: t.Client}
		bot, err := tgbotapi.NewBotAPIWithClient(t.Token, t.endpoint(), client)
		if err != nil {
			return t.wrapErr("getMe", client.status, err)
		}
		if err := fn(bot); err != nil {
			return t.wrapErr(method, client.status, err)
		}
		return nil
	})
}

func (t Telegram) endpoint() string {
	base := strings.TrimRight(t.BaseURL, "/")
	if base == "" {
		base = DefaultTelegramURL
	}
	return base + "/bot%s/%s"
}

// wrapErr turns a client error into an *APIError when the server answered, so Retry can
// classify it. The token is part of every URL and is kept out of the message.
func (t Telegram) wrapErr(method string, status int, err error) error {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		code := tgErr.Code
		if code == 0 {
			code = status
		}
		return &APIError{Method: method, StatusCode: code, Description: tgErr.Message, RetryAfter: tgErr.RetryAfter}
	}
	msg := err.Error()
	if t.Token != "" {
		msg = strings.ReplaceAll(msg, t.Token, "<token>")
	}
	if status >= http.StatusBadRequest {
		return &APIError{Method: method, StatusCode: status, Description: msg}
	}
	return fmt.Errorf("telegram %s: %s", method, msg)
}

func chatTarget(chatID string) tgbotapi.BaseChat {
	chatID = strings.TrimSpace(chatID)
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		return tgbotapi.BaseChat{ChatID: id}
	}
	return tgbotapi.BaseChat{ChannelUsername: chatID}
}

func updateChatID(u tgbotapi.Update) (int64, bool) {
	for _, m := range []*tgbotapi.Message{u.Message, u.EditedMessage, u.ChannelPost, u.EditedChannelPost} {
		if m != nil && m.Chat != nil {
			return m.Chat.ID, true
		}
	}
	if u.MyChatMember != nil {
		return u.MyChatMember.Chat.ID, true
	}
	return 0, false
}

// boundClient attaches ctx to every Bot API request and remembers the last HTTP status.
type boundClient struct {
	ctx    context.Context
	client *http.Client
	status int
}

func (c *boundClient) Do(req *http.Request) (*http.Response, error) {
	client := c.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req.WithContext(c.ctx))
	if resp != nil {
		c.status = resp.StatusCode
	}
	return resp, err
}
