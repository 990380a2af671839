package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bracket/internal/journal"
	"bracket/internal/logger"

	"github.com/tidwall/gjson"
)

// 中文说明：
// Telegram 通知器：订阅 journal，把选定级别的事件推送至指定群/频道。
// 发送失败只记日志，不影响交易流程。

type Telegram struct {
	BotToken string
	ChatID   string
	Client   *http.Client
	// APIBase 为空时使用官方端点。
	APIBase string
	// RetryDelay 是重试的基础等待（按次数递增），默认 1s。
	RetryDelay time.Duration

	levels map[journal.Level]bool
}

// NewTelegram 构造通知器。levels 为空时默认转发 ERROR 与 SUCCESS。
func NewTelegram(botToken, chatID string, levels []string) *Telegram {
	lv := make(map[journal.Level]bool, len(levels))
	for _, l := range levels {
		l = strings.ToUpper(strings.TrimSpace(l))
		if l == "" {
			continue
		}
		lv[journal.Level(l)] = true
	}
	if len(lv) == 0 {
		lv[journal.LevelError] = true
		lv[journal.LevelSuccess] = true
	}
	return &Telegram{
		BotToken:   botToken,
		ChatID:     chatID,
		Client:     &http.Client{Timeout: 15 * time.Second},
		RetryDelay: time.Second,
		levels:     lv,
	}
}

// Run 转发 journal 事件直到 ctx 结束。慢速发送期间订阅缓冲可能丢弃
// 条目，这与 journal 的有损订阅语义一致。
func (t *Telegram) Run(ctx context.Context, j *journal.Journal) {
	if t == nil || j == nil {
		logger.Warnf("Telegram: notifier or journal is nil, exit")
		return
	}
	sub := j.Subscribe()
	defer j.Unsubscribe(sub)
	logger.Infof("Telegram: relay started (levels: %s)", t.levelList())
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.C:
			if !ok {
				return
			}
			if !t.levels[e.Level] {
				continue
			}
			if err := t.SendText(formatEntry(e)); err != nil {
				logger.Warnf("Telegram: send failed: %v", err)
			}
		}
	}
}

// SendText 发送文本消息（带最多 3 次重试）
func (t *Telegram) SendText(text string) error {
	if t.BotToken == "" || t.ChatID == "" {
		return fmt.Errorf("Telegram 配置不完整")
	}
	base := t.APIBase
	if base == "" {
		base = "https://api.telegram.org"
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", base, t.BotToken)

	payload := map[string]any{
		"chat_id": t.ChatID,
		"text":    text,
	}
	body, _ := json.Marshal(payload)

	var lastErr error
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest("POST", url, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := t.Client.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(i+1) * t.retryDelay())
			continue
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode/100 == 2 {
			return nil
		}
		lastErr = fmt.Errorf("telegram status=%d", resp.StatusCode)
		if desc := gjson.GetBytes(respBody, "description").String(); desc != "" {
			lastErr = fmt.Errorf("telegram status=%d: %s", resp.StatusCode, desc)
		}
		time.Sleep(time.Duration(i+1) * t.retryDelay())
	}
	return lastErr
}

func (t *Telegram) retryDelay() time.Duration {
	if t.RetryDelay > 0 {
		return t.RetryDelay
	}
	return time.Second
}

func (t *Telegram) levelList() string {
	out := make([]string, 0, len(t.levels))
	for lv := range t.levels {
		out = append(out, string(lv))
	}
	return strings.Join(out, ",")
}

func formatEntry(e journal.Entry) string {
	return fmt.Sprintf("[%s] %s\n%s", e.Level, e.Time.Format("15:04:05"), e.Message)
}
