// Package telegram sends analysis summaries and failures via the Telegram Bot API.
package telegram

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/stableyield/internal/analysis"
	"github.com/rewired-gh/stableyield/internal/models"
	"github.com/rewired-gh/stableyield/internal/report"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
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

// SendError reports a failed analysis run.
func (c *Client) SendError(runErr error) error {
	text := fmt.Sprintf("⚠️ *Analysis failed*\n`%s`", escapeMarkdownV2(runErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendSummary sends the headline numbers of a finished run.
func (c *Client) SendSummary(res *analysis.Result, meta report.Meta) error {
	return c.sendMarkdownV2(formatSummary(res, meta))
}

// formatSummary formats the key statistics of a run into a MarkdownV2 message.
func formatSummary(res *analysis.Result, meta report.Meta) string {
	var b strings.Builder
	b.WriteString("📊 *Stablecoin Market Cap vs\\. Treasury Yields*\n\n")
	fmt.Fprintf(&b, "📅 %s → %s \\(%d rows\\)\n",
		escapeMarkdownV2(meta.Start.String()), escapeMarkdownV2(meta.End.String()), res.Table().Len())
	if meta.RunID != "" {
		fmt.Fprintf(&b, "🆔 `%s`\n", escapeMarkdownV2(meta.RunID))
	}
	b.WriteString("\n")

	ten := string(models.Tenor10Y)
	if r := res.Correlation.At(analysis.MarketCapColumn, ten); !math.IsNaN(r) {
		fmt.Fprintf(&b, "Correlation with %s: *%s*\n", escapeMarkdownV2(ten), escapeMarkdownV2(fmt.Sprintf("%.3f", r)))
	}
	if finding, ok := report.KeyFinding(res); ok {
		fmt.Fprintf(&b, "%s\n", escapeMarkdownV2(finding))
	}

	var lines []string
	for _, pair := range res.Granger {
		to, from, ok := pair.MaxLag()
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("   %s lag %d: yield→cap p=%s, cap→yield p=%s",
			pair.Column, to.Lag, pvalue(to.PValue), pvalue(from.PValue)))
	}
	if len(lines) > 0 {
		b.WriteString("\n*Granger causality*\n")
		for _, line := range lines {
			b.WriteString(escapeMarkdownV2(line))
			b.WriteString("\n")
		}
	}

	if n := len(res.Warnings); n > 0 {
		fmt.Fprintf(&b, "\n⚠️ %d warning\\(s\\), see the full report\n", n)
	}
	return b.String()
}

func pvalue(p float64) string {
	if math.IsNaN(p) {
		return "NaN"
	}
	return fmt.Sprintf("%.4f", p)
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
