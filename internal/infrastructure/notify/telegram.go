package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"market-alert-agent/internal/application/agent"
)

// TelegramClient 提供簡單的 sendMessage API 封裝。
type TelegramClient struct {
	token      string
	chatID     int64
	baseURL    string
	httpClient *http.Client
}

func NewTelegramClient(token string, chatID int64) *TelegramClient {
	return &TelegramClient{
		token:   token,
		chatID:  chatID,
		baseURL: "https://api.telegram.org",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Notify 將已觸發的警報整理成文字訊息送出，實作 agent.Notifier。
func (c *TelegramClient) Notify(ctx context.Context, o agent.Outcome) error {
	return c.SendMessage(ctx, formatOutcome(o))
}

// SendMessage 將文字訊息推送到指定 chat。
func (c *TelegramClient) SendMessage(ctx context.Context, text string) error {
	if c == nil {
		return fmt.Errorf("telegram client is nil")
	}
	if c.token == "" || c.chatID == 0 {
		return fmt.Errorf("telegram token or chat_id missing")
	}

	payload := map[string]interface{}{
		"chat_id": c.chatID,
		"text":    text,
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram send failed status=%d body=%s", resp.StatusCode, string(raw))
	}
	return nil
}

func formatOutcome(o agent.Outcome) string {
	d := o.Decision
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ MARKET ALERT [%s]\n", o.Symbol)
	fmt.Fprintf(&b, "Type: %s (%s confidence)\n", d.Type, d.Confidence)
	fmt.Fprintf(&b, "Close: $%.2f → $%.2f (%+.2f%%)\n", d.Metrics.LastClose, d.Metrics.PredictedClose, d.Metrics.PercentChange)
	fmt.Fprintf(&b, "Volatility: %.4f, trend %s\n", d.Metrics.Volatility, d.Metrics.Trend)
	if o.Explanation != "" {
		fmt.Fprintf(&b, "\n%s", o.Explanation)
	}
	return b.String()
}
