package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"golang.org/x/time/rate"

	"alert-service/internal/config"
	"alert-service/internal/logging"
	"alert-service/internal/utils"
)

// OpsChannel broadcasts to a single operations Telegram chat. Optional:
// configured only when a bot token and chat id are present.
type OpsChannel struct {
	token   string
	chatID  int64
	limiter *rate.Limiter
	logger  *logging.Logger
}

func NewOpsChannel(cfg config.Config, logger *logging.Logger) (*OpsChannel, error) {
	if cfg.Telegram.BotToken == "" || cfg.Telegram.OpsChatID == 0 {
		return nil, fmt.Errorf("missing Telegram configuration: BotToken or OpsChatID is empty")
	}
	return &OpsChannel{
		token:  cfg.Telegram.BotToken,
		chatID: cfg.Telegram.OpsChatID,
		// Telegram caps bots around 30 msg/s; one per second is plenty here.
		limiter: rate.NewLimiter(rate.Limit(1), 5),
		logger:  logger,
	}, nil
}

// Broadcast posts one message to the ops chat, retrying transient errors.
func (o *OpsChannel) Broadcast(ctx context.Context, text string) error {
	if err := o.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit: %w", err)
	}

	return utils.Retry(o.logger, 3, time.Second, func() error {
		b, err := bot.New(o.token)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram bot: %w", err)
		}
		params := &bot.SendMessageParams{
			ChatID:    o.chatID,
			Text:      text,
			ParseMode: "Markdown",
		}
		if _, err := b.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send Telegram message to chat %d: %w", o.chatID, err)
		}
		return nil
	})
}
