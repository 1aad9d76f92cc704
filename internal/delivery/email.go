package delivery

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"todonotify/internal/model"
	"todonotify/pkg/circuitbreaker"
	"todonotify/pkg/config"
	"todonotify/pkg/logger"
	"todonotify/pkg/metrics"
	"todonotify/pkg/otel"
	"todonotify/pkg/util"
)

const defaultFrom = "noreply@todolist.app"

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailChannel renders the embedded templates and hands them to an SMTP relay.
// With no SMTP host configured it only logs what it would have sent.
type EmailChannel struct {
	cfg      config.SMTPConfig
	envelope string // bare address for MAIL FROM
	render   *renderer
	limiter  *rate.Limiter
	breaker  *circuitbreaker.CircuitBreaker
	sendMail sendMailFunc
	logger   *zap.Logger
}

func NewEmailChannel(cfg config.SMTPConfig, loc *time.Location, logger *zap.Logger) (*EmailChannel, error) {
	r, err := newRenderer(loc)
	if err != nil {
		return nil, err
	}
	if cfg.From == "" {
		cfg.From = defaultFrom
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	envelope := cfg.From
	if addr, err := mail.ParseAddress(cfg.From); err == nil {
		envelope = addr.Address
	}

	return &EmailChannel{
		cfg:      cfg,
		envelope: envelope,
		render:   r,
		limiter:  rate.NewLimiter(limit, burst),
		breaker:  circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()),
		sendMail: smtp.SendMail,
		logger:   logger,
	}, nil
}

// DryRun reports whether messages are only logged.
func (c *EmailChannel) DryRun() bool {
	return c.cfg.Host == ""
}

func (c *EmailChannel) Send(ctx context.Context, tmpl Template, user model.User, payload Payload) Result {
	ctx, span := otel.StartSpan(ctx, "delivery.email",
		attribute.String("template", string(tmpl)),
		attribute.Int64("user_id", user.ID),
	)
	log := logger.WithTrace(ctx, c.logger).With(
		zap.String("template", string(tmpl)),
		zap.Int64("user_id", user.ID),
	)
	start := time.Now()

	messageID, err := c.send(ctx, tmpl, user, payload)
	otel.EndSpan(span, err)

	if err != nil {
		metrics.RecordDeliveryLatency(string(tmpl), "failed", time.Since(start))
		metrics.RecordDeliveryFailure(string(tmpl), util.ClassifyError(err))
		log.Warn("Email delivery failed", zap.Error(err))
		return Result{Success: false, Error: err.Error()}
	}

	metrics.RecordDeliveryLatency(string(tmpl), "sent", time.Since(start))
	log.Info("Email delivered", zap.String("message_id", messageID), zap.Bool("dry_run", c.DryRun()))
	return Result{Success: true, MessageID: messageID}
}

func (c *EmailChannel) send(ctx context.Context, tmpl Template, user model.User, payload Payload) (string, error) {
	if user.Email == "" {
		return "", errors.New("user has no email address")
	}

	subject, body, err := c.render.render(tmpl, user, payload)
	if err != nil {
		return "", err
	}

	messageID := c.newMessageID()
	if c.DryRun() {
		messageID = dryRunMessageID(messageID)
		c.logger.Debug("SMTP host not configured, skipping send",
			zap.String("to", user.Email),
			zap.String("subject", subject),
		)
		return messageID, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for send slot: %w", err)
	}

	msg := buildMessage(c.cfg.From, user.Email, subject, messageID, body, time.Now())
	err = c.breaker.Execute(func() error {
		return c.deliver(ctx, user.Email, msg)
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// deliver runs the blocking SMTP exchange and gives up when ctx ends. The
// exchange itself keeps running until the relay answers or drops the connection.
func (c *EmailChannel) deliver(ctx context.Context, to string, msg []byte) error {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	}

	done := make(chan error, 1)
	go func() {
		done <- c.sendMail(addr, auth, c.envelope, []string{to}, msg)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *EmailChannel) newMessageID() string {
	domain := "todolist.app"
	if at := strings.LastIndex(c.envelope, "@"); at >= 0 && at < len(c.envelope)-1 {
		domain = c.envelope[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// dryRunMessageID marks ids of messages that were rendered but never sent so
// they stand out in the notification log.
func dryRunMessageID(id string) string {
	return "<" + DryRunMessageIDPrefix + strings.TrimPrefix(id, "<")
}

func buildMessage(from, to, subject, messageID, body string, date time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("Message-ID: " + messageID + "\r\n")
	b.WriteString("Date: " + date.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
