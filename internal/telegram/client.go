// Package telegram delivers run summaries and health alerts via the
// Telegram Bot API. Messages use MarkdownV2 and are sent with a small
// linear-backoff retry to ride out rate limiting and network blips.
package telegram

import (
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mokoia/spawatch/internal/models"
)

// Client sends notifications to a single chat.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a Telegram client for the given bot token and chat.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SendReport notifies the chat about a completed run: totals per horizon
// plus any units that failed terminally.
func (c *Client) SendReport(report *models.RunReport) error {
	return c.send(formatReport(report))
}

// SendError notifies the chat that the pipeline is failing.
func (c *Client) SendError(subject string, err error) error {
	message := fmt.Sprintf("🚨 *Spa Watch Alert*\n\n%s\n%s",
		escapeMarkdownV2(subject), escapeMarkdownV2(err.Error()))
	return c.send(message)
}

// SendRecovery notifies the chat that the pipeline is healthy again.
func (c *Client) SendRecovery(subject string) error {
	message := fmt.Sprintf("✅ *Spa Watch Recovered*\n\n%s", escapeMarkdownV2(subject))
	return c.send(message)
}

func (c *Client) send(message string) error {
	msg := tgbotapi.NewMessage(c.chatID, message)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatReport renders a run report as a MarkdownV2 message.
func formatReport(report *models.RunReport) string {
	icon := "✅"
	if !report.Succeeded() {
		icon = "⚠️"
	}

	message := fmt.Sprintf("%s *Spa Watch Run Complete*\n\n", icon)
	message += fmt.Sprintf("📅 %s\n", escapeMarkdownV2(report.StartedAt.Format("2006-01-02 15:04:05")))
	message += fmt.Sprintf("⏱ Duration: %s\n", escapeMarkdownV2(report.Duration.Round(time.Second).String()))
	message += fmt.Sprintf("🔢 Units: %d, Observations: %d, Unknown slots: %d\n",
		len(report.Units), report.TotalObservations(), report.TotalAnomalies())

	failures := report.Failures()
	if len(failures) > 0 {
		message += fmt.Sprintf("\n🚨 *%d units failed:*\n", len(failures))
		for _, u := range failures {
			line := fmt.Sprintf("%s (%s): %s", u.Date.Format("2006-01-02"), u.Horizon, u.ErrText)
			message += fmt.Sprintf("• %s\n", escapeMarkdownV2(line))
		}
	}

	return message
}

// escapeMarkdownV2 escapes the characters Telegram's MarkdownV2 parser
// treats as markup: _ * [ ] ( ) ~ ` > # + - = | { } . !
func escapeMarkdownV2(text string) string {
	result := ""
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			result += "\\" + string(char)
		default:
			result += string(char)
		}
	}
	return result
}
