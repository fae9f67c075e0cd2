// Package telegram is the chat transport: it polls the Bot API for
// messages, answers bot commands, routes everything else through the
// agent, and sends outbound messages for replies, reminders and the
// messaging tool.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MaxMessageLen is the longest chunk sent in one message. The Bot API
// limit is 4096.
const MaxMessageLen = 4000

// Bot is the subset of the Bot API the transport uses.
type Bot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetSelf() tgbotapi.User
}

type botAPI struct {
	*tgbotapi.BotAPI
}

func (b botAPI) GetSelf() tgbotapi.User { return b.Self }

// BotFactory creates a Bot. Tests substitute a fake.
type BotFactory func(token, apiEndpoint string, client *http.Client) (Bot, error)

// DefaultBotFactory connects to the real Bot API.
func DefaultBotFactory(token, apiEndpoint string, client *http.Client) (Bot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, client)
	if err != nil {
		return nil, err
	}
	return botAPI{bot}, nil
}

// Client sends messages and chat actions through a Bot.
type Client struct {
	bot    Bot
	logger *slog.Logger
}

// Dial authorizes token with the Bot API and returns a Client. A nil
// factory selects DefaultBotFactory.
func Dial(token string, factory BotFactory, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if token == "" {
		return nil, errors.New("telegram token is required")
	}
	if factory == nil {
		factory = DefaultBotFactory
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	bot, err := factory(token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	c := NewClient(bot, logger)
	c.logger.Info("telegram authorized", "username", bot.GetSelf().UserName)
	return c, nil
}

// NewClient wraps an already authorized bot.
func NewClient(bot Bot, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{bot: bot, logger: logger}
}

// Send delivers text to chatID, split into MaxMessageLen chunks.
func (c *Client) Send(ctx context.Context, chatID int64, text string) error {
	return c.send(ctx, chatID, text, "")
}

func (c *Client) send(ctx context.Context, chatID int64, text, parseMode string) error {
	chunks := SplitMessage(text, MaxMessageLen)
	if len(chunks) == 0 {
		return errors.New("telegram: empty message")
	}
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = parseMode
		if _, err := c.bot.Send(msg); err != nil {
			if parseMode == "" {
				return fmt.Errorf("telegram: send to %d (chunk %d/%d): %w", chatID, i+1, len(chunks), err)
			}
			// Formatting was rejected; retry the chunk as plain text.
			msg.ParseMode = ""
			if _, err := c.bot.Send(msg); err != nil {
				return fmt.Errorf("telegram: send to %d: %w", chatID, err)
			}
		}
	}
	c.logger.Debug("telegram message sent", "chat", chatID, "len", len(text), "chunks", len(chunks))
	return nil
}

// SendTyping shows the typing indicator in chatID.
func (c *Client) SendTyping(ctx context.Context, chatID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("telegram: typing: %w", err)
	}
	return nil
}

// SplitMessage cuts text into pieces of at most max bytes, preferring
// to break after the last newline in each window. Pieces never split a
// UTF-8 sequence. Blank input yields no pieces.
func SplitMessage(text string, max int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var chunks []string
	for len(text) > max {
		cut := strings.LastIndex(text[:max], "\n")
		if cut <= 0 {
			cut = max
			for cut > 0 && !utf8Start(text[cut]) {
				cut--
			}
		}
		chunks = append(chunks, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }
