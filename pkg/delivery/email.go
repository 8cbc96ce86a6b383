package delivery

import (
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/go-mail/mail"
	"go.uber.org/zap"

	"AlertRadar/pkg/clock"
	"AlertRadar/pkg/config"
	"AlertRadar/pkg/model"
)

var ErrSMTPNotConfigured = errors.New("smtp not configured")

const smtpTimeout = 10 * time.Second

// EmailStore 邮件渠道需要的查询，由 database.DB 实现
type EmailStore interface {
	GetNotificationPreferences(userID string) (*model.NotificationPreferences, error)
	GetUserEmail(userID string) (*model.UserEmail, error)
	GetTodayEmailCount(userID string) (int, error)
}

// EmailDelivery 通过 SMTP 发送提醒邮件
type EmailDelivery struct {
	cfg    config.SMTPConfig
	webURL string
	store  EmailStore
	clock  clock.Clock
	logger *zap.Logger
	sendFn func(m *mail.Message) error
}

func NewEmailDelivery(cfg config.SMTPConfig, webURL string, store EmailStore, clk clock.Clock, logger *zap.Logger) *EmailDelivery {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &EmailDelivery{
		cfg:    cfg,
		webURL: webURL,
		store:  store,
		clock:  clk,
		logger: logger.Named("email"),
	}
	d.sendFn = d.dialAndSend
	return d
}

// Send 发送提醒邮件。SMTP 未配置、用户关闭或未验证邮箱、处于免打扰时段、
// 超过每日上限时跳过并返回 false。
func (d *EmailDelivery) Send(alert *model.AlertRule, alertLog *model.AlertLog, quote *model.SymbolQuote) (bool, error) {
	if !d.cfg.Configured() {
		d.logger.Debug("SMTP 未配置，跳过邮件", zap.String("alert_id", alert.ID))
		return false, nil
	}

	prefs, err := d.store.GetNotificationPreferences(alert.UserID)
	if err != nil {
		return false, fmt.Errorf("获取通知设置失败: %w", err)
	}

	if prefs != nil {
		if !prefs.EmailEnabled || !prefs.EmailVerified {
			return false, nil
		}

		if prefs.QuietHoursEnabled {
			quiet, err := isInQuietHours(prefs, d.clock.Now())
			if err != nil {
				d.logger.Warn("免打扰时段判断失败，继续发送", zap.String("user_id", alert.UserID), zap.Error(err))
			} else if quiet {
				d.logger.Info("用户处于免打扰时段，跳过邮件", zap.String("alert_id", alert.ID))
				return false, nil
			}
		}

		if prefs.MaxEmailsPerDay > 0 {
			count, err := d.store.GetTodayEmailCount(alert.UserID)
			if err != nil {
				d.logger.Warn("获取今日邮件数失败", zap.String("user_id", alert.UserID), zap.Error(err))
			} else if count >= prefs.MaxEmailsPerDay {
				d.logger.Info("超过每日邮件上限，跳过",
					zap.String("alert_id", alert.ID),
					zap.Int("count", count),
					zap.Int("limit", prefs.MaxEmailsPerDay))
				return false, nil
			}
		}
	}

	user, err := d.store.GetUserEmail(alert.UserID)
	if err != nil {
		return false, fmt.Errorf("获取用户邮箱失败: %w", err)
	}

	to := user.Email
	if prefs != nil && prefs.EmailAddress != nil && *prefs.EmailAddress != "" {
		to = *prefs.EmailAddress
	}

	subject := fmt.Sprintf("Alert: %s %s", alert.Symbol, alertTypeLabel(alert.AlertType))
	body := formatAlertEmailBody(alert, quote, user.FullName, d.webURL)
	if err := d.sendFn(d.newMessage(to, subject, body)); err != nil {
		return false, fmt.Errorf("发送邮件失败: %w", err)
	}

	d.logger.Info("提醒邮件已发送", zap.String("alert_id", alert.ID), zap.String("to", sanitizeHeader(to)))
	return true, nil
}

// SendTest 发送一封测试邮件，用于线上巡检
func (d *EmailDelivery) SendTest(to, name string) error {
	if !d.cfg.Configured() {
		return ErrSMTPNotConfigured
	}
	body := formatCanaryEmailBody(name, d.clock.Now().UTC())
	if err := d.sendFn(d.newMessage(to, "Canary Test - AlertRadar Notifications", body)); err != nil {
		return fmt.Errorf("发送测试邮件失败: %w", err)
	}
	return nil
}

func (d *EmailDelivery) newMessage(to, subject, htmlBody string) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", sanitizeHeader(d.cfg.From))
	m.SetHeader("To", sanitizeHeader(to))
	m.SetHeader("Subject", sanitizeHeader(subject))
	m.SetBody("text/html", htmlBody)
	return m
}

func (d *EmailDelivery) dialAndSend(m *mail.Message) error {
	dialer := mail.NewDialer(d.cfg.Host, d.cfg.Port, d.cfg.Username, d.cfg.Password.Value())
	dialer.Timeout = smtpTimeout
	return dialer.DialAndSend(m)
}

// formatAlertEmailBody 提醒邮件 HTML 正文
func formatAlertEmailBody(alert *model.AlertRule, quote *model.SymbolQuote, userName, webURL string) string {
	watchlistURL := fmt.Sprintf("%s/watchlist/%s", webURL, alert.WatchListID)
	name := html.EscapeString(alert.Name)

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="margin-top: 0;">Alert Triggered: %s</h2>
  <p>Hi %s,</p>
  <p>Your alert <strong>%s</strong> has been triggered.</p>
  <table style="width: 100%%; border-collapse: collapse;">
    <tr><td><strong>Symbol</strong></td><td style="text-align: right;">%s</td></tr>
    <tr><td><strong>Current Price</strong></td><td style="text-align: right;">$%.2f</td></tr>
    <tr><td><strong>Change</strong></td><td style="text-align: right;">%.2f%%</td></tr>
    <tr><td><strong>Volume</strong></td><td style="text-align: right;">%s</td></tr>
  </table>
  <p><a href="%s">View Watchlist</a></p>
  <p style="color: #888; font-size: 12px;">
    You received this email because email alerts are enabled for this watchlist.
    Manage notification preferences in your <a href="%s/settings">account settings</a>.
  </p>
</body>
</html>`,
		name,
		html.EscapeString(userName),
		name,
		html.EscapeString(alert.Symbol),
		quote.Price,
		quote.ChangePct,
		formatVolume(float64(quote.Volume)),
		watchlistURL,
		webURL,
	)
}

func formatCanaryEmailBody(name string, sentAt time.Time) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="margin-top: 0;">Canary Test</h2>
  <p>Hi %s,</p>
  <p>This is a canary test email from the AlertRadar notification service.
     If you received it, email delivery is working.</p>
  <p><strong>Sent At (UTC):</strong> %s</p>
</body>
</html>`, html.EscapeString(name), sentAt.Format("2006-01-02 15:04:05 UTC"))
}
