package alarm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/internal/httpclient"
	"github.com/teranos/tempo/logger"
)

// ErrRateLimited is returned when an alarm is dropped by the webhook limiter.
var ErrRateLimited = errors.New("alarm rate limit exceeded")

// WebhookConfig configures a WebhookSink.
type WebhookConfig struct {
	URL          string
	MaxPerMinute int           // <= 0 disables limiting
	Timeout      time.Duration // default 10s
	AllowPrivate bool
}

// WebhookSink POSTs {"text": message} to a chat-style incoming webhook.
type WebhookSink struct {
	url     string
	client  *httpclient.Client
	limiter *rate.Limiter
	log     *zap.SugaredLogger
}

// NewWebhookSink validates cfg.URL and builds the sink.
func NewWebhookSink(cfg WebhookConfig, log *zap.SugaredLogger) (*WebhookSink, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	client := httpclient.New(httpclient.Options{
		Timeout:      cfg.Timeout,
		AllowPrivate: cfg.AllowPrivate,
	})
	if _, err := client.Check(cfg.URL); err != nil {
		return nil, errors.WithHint(errors.Wrap(err, "alarm webhook"),
			"set alarm.allow_private_ips = true for webhooks on internal hosts")
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.MaxPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.MaxPerMinute)), cfg.MaxPerMinute)
	}

	return &WebhookSink{
		url:     cfg.URL,
		client:  client,
		limiter: limiter,
		log:     logger.AddAlarmSymbol(log.Named("webhook")),
	}, nil
}

func (s *WebhookSink) Notify(ctx context.Context, message string) error {
	if !s.limiter.Allow() {
		logger.FromContext(ctx, s.log).Warnw("Dropping alarm, webhook rate limit reached")
		return ErrRateLimited
	}

	body, err := json.Marshal(map[string]string{"text": message})
	if err != nil {
		return errors.Wrap(err, "encode alarm")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build alarm request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post alarm")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.WithDetail(
			errors.Newf("alarm webhook returned %s", resp.Status),
			string(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
