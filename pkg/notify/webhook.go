package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pkgError "github.com/reelforge/reelforge/pkg/error"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

const (
	submitAttempts = 3
	submitTimeout  = 10 * time.Second
)

// WebhookNotifier delivers job lifecycle events to configured webhook
// URLs. Partial failures are logged and suppressed so successful targets
// still receive the event; an error surfaces only when every URL fails.
type WebhookNotifier struct {
	urls   []string
	secret string
	client *fasthttp.Client
}

func NewWebhookNotifier(urls []string, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		urls:   urls,
		secret: secret,
		client: &fasthttp.Client{
			ReadTimeout:  submitTimeout,
			WriteTimeout: submitTimeout,
		},
	}
}

// Emit satisfies the pipeline notifier contract. Delivery errors never
// propagate into the pipeline; they are logged here.
func (n *WebhookNotifier) Emit(ctx context.Context, event string, payload map[string]any) {
	if len(n.urls) == 0 {
		return
	}
	if err := n.Forward(ctx, event, payload); err != nil {
		logrus.WithError(err).Warnf("[WEBHOOK] Delivery of %s failed", event)
	}
}

// Forward sends one event to every configured URL and reports an error
// only when all of them fail.
func (n *WebhookNotifier) Forward(ctx context.Context, event string, payload map[string]any) error {
	body := map[string]any{
		"event":     event,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"payload":   payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return pkgError.WebhookError(fmt.Sprintf("failed to marshal payload: %v", err))
	}

	var failed []string
	for _, url := range n.urls {
		if err := n.submit(url, data); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", url, err))
			logrus.Warnf("[WEBHOOK] Failed forwarding %s to %s: %v", event, url, err)
		}
	}

	if len(failed) == len(n.urls) {
		return pkgError.WebhookError(fmt.Sprintf("all webhook URLs failed for %s: %s", event, strings.Join(failed, "; ")))
	}
	if len(failed) > 0 {
		logrus.Warnf("[WEBHOOK] Partial delivery of %s (%d/%d succeeded)", event, len(n.urls)-len(failed), len(n.urls))
	}
	return nil
}

func (n *WebhookNotifier) submit(url string, body []byte) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if n.secret != "" {
		req.Header.Set("X-Hub-Signature-256", "sha256="+n.sign(body))
	}
	req.SetBody(body)

	var lastErr error
	backoff := time.Second
	for attempt := 0; attempt < submitAttempts; attempt++ {
		if err := n.client.Do(req, resp); err != nil {
			lastErr = err
		} else if resp.StatusCode() >= 200 && resp.StatusCode() < 300 {
			return nil
		} else {
			lastErr = fmt.Errorf("webhook returned status %d", resp.StatusCode())
		}
		if attempt < submitAttempts-1 {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return lastErr
}

func (n *WebhookNotifier) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(n.secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
