// Package telegram provides a client for sending busy-spot notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rewired-gh/salesmap/internal/logger"
	"github.com/rewired-gh/salesmap/internal/models"
)

var log = logger.Named("telegram")

// SummaryFunc returns the analysis the /tiers command replies with.
type SummaryFunc func(ctx context.Context) (*models.AnalysisResult, error)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	summary        SummaryFunc
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
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

// SetSummaryFunc wires the provider used by /tiers.
func (c *Client) SetSummaryFunc(f SummaryFunc) {
	c.summary = f
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(ctx, update.Message)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	var reply tgbotapi.MessageConfig
	switch msg.Command() {
	case "ping":
		reply = tgbotapi.NewMessage(msg.Chat.ID, "Pong")
	case "tiers":
		if c.summary == nil {
			return
		}
		result, err := c.summary(ctx)
		if err != nil {
			log.Warn("Failed to build summary for /tiers: %v", err)
			reply = tgbotapi.NewMessage(msg.Chat.ID, "Analysis unavailable, try again later")
			break
		}
		reply = tgbotapi.NewMessage(msg.Chat.ID, formatSummary(result))
		reply.ParseMode = "MarkdownV2"
	default:
		return
	}
	c.bot.Send(reply) //nolint:errcheck
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends an import error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Import error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Import recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// SendShift announces a new or moved busy spot.
func (c *Client) SendShift(shift models.Shift) error {
	return c.sendMarkdownV2(formatShift(shift))
}

func formatShift(shift models.Shift) string {
	var b strings.Builder
	if shift.Previous == nil {
		b.WriteString("🔥 *New busy spot*\n\n")
	} else {
		b.WriteString("🔥 *Busy spot moved*\n\n")
	}

	b.WriteString(fmt.Sprintf("📍 %s\n", mapLink(shift.Busy.Lat, shift.Busy.Lng)))
	b.WriteString(fmt.Sprintf("💰 Revenue: *%s* from %d transactions\n",
		escapeMarkdownV2(formatRupiah(shift.Busy.TotalRevenue)), shift.Busy.PointCount))
	if shift.Busy.RadiusMeters > 0 {
		b.WriteString(fmt.Sprintf("📏 Radius: %s\n", escapeMarkdownV2(formatDistance(shift.Busy.RadiusMeters))))
	}
	if shift.Previous != nil {
		b.WriteString(fmt.Sprintf("↪️ Moved %s from %s\n",
			escapeMarkdownV2(formatDistance(shift.DistanceMeters)),
			mapLink(shift.Previous.Lat, shift.Previous.Lng)))
	}
	if shift.RevenueZScore >= 2 {
		b.WriteString(fmt.Sprintf("📈 Unusually strong: %s σ above recent runs\n",
			escapeMarkdownV2(fmt.Sprintf("%.1f", shift.RevenueZScore))))
	}
	b.WriteString(fmt.Sprintf("\n🕒 %s \\(%s\\)",
		escapeMarkdownV2(shift.DetectedAt.Format("2006-01-02 15:04")),
		escapeMarkdownV2(shift.Mode)))
	return b.String()
}

func formatSummary(result *models.AnalysisResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🗺 *Sales map* \\(%s\\)\n\n", escapeMarkdownV2(result.Mode)))

	if len(result.Tiers) == 0 {
		b.WriteString(fmt.Sprintf("Not enough located transactions to rank areas \\(%d analyzed\\)\\.",
			result.Diagnostics.Analyzed))
		return b.String()
	}

	for _, tier := range result.Tiers {
		b.WriteString(fmt.Sprintf("%s *%s* \\- %d trx\n   %s\n",
			escapeMarkdownV2(tier.Label),
			escapeMarkdownV2(formatRupiah(tier.TotalRevenue)),
			tier.PointCount,
			mapLink(tier.Lat, tier.Lng)))
	}

	d := result.Diagnostics
	b.WriteString(fmt.Sprintf("\n%d of %d transactions analyzed", d.Analyzed, d.TotalInput))
	if dropped := d.DroppedInvalidDate + d.DroppedInvalidLocation + d.DroppedOutOfBounds; dropped > 0 {
		b.WriteString(fmt.Sprintf(", %d dropped", dropped))
	}
	return b.String()
}

func mapLink(lat, lng float64) string {
	coords := fmt.Sprintf("%.5f,%.5f", lat, lng)
	return fmt.Sprintf("[%s](https://www.google.com/maps?q=%s)", escapeMarkdownV2(coords), coords)
}

// formatRupiah renders an amount with dot thousand separators, e.g. Rp 1.250.000.
func formatRupiah(amount float64) string {
	s := strconv.FormatInt(int64(amount+0.5), 10)
	var b strings.Builder
	b.WriteString("Rp ")
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatDistance(meters float64) string {
	if meters >= 1000 {
		return fmt.Sprintf("%.1f km", meters/1000)
	}
	return fmt.Sprintf("%.0f m", meters)
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
