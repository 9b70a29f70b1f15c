package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"karaokelover/logcolors"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	defaultNtfyServer  = "https://ntfy.sh"
	defaultTelegramAPI = "https://api.telegram.org"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

// Notifier delivers a rendered alert to one channel
type Notifier interface {
	Send(subject, message string) error
}

// Config selects which notifiers are active
type Config struct {
	NtfyTopic        string
	NtfyServer       string
	TelegramBotToken string
	TelegramChatID   string
}

// FromConfig builds every notifier whose credentials are present
func FromConfig(cfg Config) []Notifier {
	var notifiers []Notifier
	if cfg.NtfyTopic != "" {
		notifiers = append(notifiers, &NtfyNotifier{Topic: cfg.NtfyTopic, Server: cfg.NtfyServer})
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifiers = append(notifiers, &TelegramNotifier{BotToken: cfg.TelegramBotToken, ChatID: cfg.TelegramChatID})
	}
	return notifiers
}

// TelegramNotifier posts to a chat through the Bot API
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	APIBase  string
}

func (t *TelegramNotifier) Send(subject, message string) error {
	base := t.APIBase
	if base == "" {
		base = defaultTelegramAPI
	}

	body, err := json.Marshal(map[string]string{
		"chat_id":    t.ChatID,
		"text":       "*" + subject + "*\n\n" + message,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("telegram payload: %w", err)
	}

	endpoint := strings.TrimRight(base, "/") + "/bot" + t.BotToken + "/sendMessage"
	resp, err := httpClient.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	if err := checkStatus("telegram", resp); err != nil {
		return err
	}

	log.Debugf("%s Telegram alert sent to chat %s", logcolors.LogNotifier, t.ChatID)
	return nil
}

// NtfyNotifier publishes to an ntfy topic. Critical alerts go out at high priority.
type NtfyNotifier struct {
	Topic  string
	Server string
}

func (n *NtfyNotifier) Send(subject, message string) error {
	server := n.Server
	if server == "" {
		server = defaultNtfyServer
	}

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(server, "/")+"/"+n.Topic, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("ntfy request: %w", err)
	}
	req.Header.Set("Title", subject)
	req.Header.Set("Tags", "microphone")
	req.Header.Set("Priority", "default")
	if strings.HasPrefix(subject, severityIcons[SeverityCritical]) {
		req.Header.Set("Priority", "high")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ntfy: %w", err)
	}
	if err := checkStatus("ntfy", resp); err != nil {
		return err
	}

	log.Debugf("%s Ntfy alert sent to topic %s", logcolors.LogNotifier, n.Topic)
	return nil
}

// checkStatus closes resp and turns a non-2xx status into an error carrying
// the start of the response body
func checkStatus(service string, resp *http.Response) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return fmt.Errorf("%s returned status %d: %s", service, resp.StatusCode, strings.TrimSpace(string(snippet)))
}
