package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lanwatch/internal/config"
	"lanwatch/internal/device"
	"lanwatch/internal/errors"
)

// Bark sends notifications through a Bark push server
// (https://github.com/Finb/Bark). The API is a GET with the title and
// body as path segments and delivery options as query parameters.
type Bark struct {
	key     string
	baseURL string
	client  *http.Client
}

// NewBark creates a Bark notifier from configuration.
func NewBark(cfg config.BarkConfig) *Bark {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Bark{
		key:     cfg.Key,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Send implements Notifier.
func (b *Bark) Send(ctx context.Context, n Notification) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.requestURL(n), nil)
	if err != nil {
		return errors.WrapNotifyError(errors.CodeNotifyFailed, "building bark request", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return errors.WrapNotifyError(errors.CodeNotifyFailed, "sending bark request", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return errors.NewNotifyError(errors.CodeNotifyFailed,
			fmt.Sprintf("bark server returned %s", resp.Status))
	}
	return nil
}

// requestURL builds {base}/{key}/{title}/{body}?{options}. Bark
// decodes path segments, so title and body are path-escaped.
func (b *Bark) requestURL(n Notification) string {
	u := fmt.Sprintf("%s/%s/%s/%s",
		b.baseURL,
		b.key,
		url.PathEscape(n.Title),
		url.PathEscape(n.Body))

	query := levelQuery(n.Level)
	query.Set("group", "lanwatch")
	return u + "?" + query.Encode()
}

// levelQuery maps a device notification level onto Bark's delivery
// options. Normal deliveries carry no level parameter at all.
func levelQuery(level device.Level) url.Values {
	query := url.Values{}
	switch level {
	case device.LevelSilent:
		query.Set("level", "passive")
		query.Set("sound", "silent")
	case device.LevelVibrate:
		query.Set("level", "active")
	case device.LevelTimeSensitive:
		query.Set("level", "timeSensitive")
	}
	return query
}
