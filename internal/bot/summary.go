package bot

import (
	"context"
	"errors"
	"fmt"

	"vyvoz/internal/report"
)

// SendDailySummary отправляет сводку за день в чат администратора.
func (b *Bot) SendDailySummary(ctx context.Context, summary *report.Summary, attachment string) error {
	admin := b.config.Telegram.AdminChatID
	if admin == 0 {
		return errors.New("admin chat is not configured")
	}
	if summary == nil {
		return errors.New("empty summary")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := b.tgService.SendMessage(admin, summary.Text(b.catalog)); err != nil {
		return fmt.Errorf("failed to send summary: %w", err)
	}
	if attachment == "" {
		return nil
	}
	if _, err := b.tgService.SendDocument(admin, attachment, "Заказы за "+summary.Date); err != nil {
		return fmt.Errorf("failed to send summary export: %w", err)
	}
	return nil
}
