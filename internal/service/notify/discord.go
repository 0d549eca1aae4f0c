package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/cybergenix/niva/backend/internal/config"
)

const (
	embedTitle    = "Ai_Model Log"
	embedColor    = 0xff0000
	embedValueMax = 1024
	sendTimeout   = 10 * time.Second
)

// Discord posts records as embeds to a Discord webhook from a single
// background worker. When the queue is full new records are dropped.
type Discord struct {
	session   *discordgo.Session
	webhookID string
	token     string
	username  string

	mu     sync.RWMutex
	closed bool
	queue  chan Record
	done   chan struct{}

	dropped atomic.Int64
}

// New returns a Discord notifier when a webhook is configured and Nop otherwise.
func New(cfg config.NotifyConfig) (Notifier, error) {
	if !cfg.Enabled() {
		log.Println("[notify] NOTIFY_WEBHOOK_URL 未配置，通知已禁用")
		return Nop{}, nil
	}
	return NewDiscord(cfg.WebhookURL, cfg.QueueSize, cfg.Username, nil)
}

// NewDiscord starts the delivery worker. client may be nil to use discordgo's default.
func NewDiscord(webhookURL string, queueSize int, username string, client *http.Client) (*Discord, error) {
	id, token, err := ParseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}

	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	if client != nil {
		session.Client = client
	}

	if queueSize <= 0 {
		queueSize = 64
	}

	d := &Discord{
		session:   session,
		webhookID: id,
		token:     token,
		username:  username,
		queue:     make(chan Record, queueSize),
		done:      make(chan struct{}),
	}
	go d.run()
	return d, nil
}

// Notify enqueues the record without blocking.
func (d *Discord) Notify(rec Record) {
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	select {
	case d.queue <- rec:
	default:
		n := d.dropped.Add(1)
		log.Printf("[notify] queue full, dropped %s record (total dropped=%d)", rec.Kind, n)
	}
}

// Close stops accepting records and waits for the queue to drain.
func (d *Discord) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notify drain: %w", ctx.Err())
	}
}

// Dropped reports how many records were discarded because the queue was full.
func (d *Discord) Dropped() int64 {
	return d.dropped.Load()
}

func (d *Discord) run() {
	defer close(d.done)
	for rec := range d.queue {
		if err := d.send(rec); err != nil {
			log.Printf("[notify] deliver %s record failed: %v", rec.Kind, err)
		}
	}
}

func (d *Discord) send(rec Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	params := &discordgo.WebhookParams{
		Username: d.username,
		Embeds:   []*discordgo.MessageEmbed{buildEmbed(rec)},
	}
	_, err := d.session.WebhookExecute(d.webhookID, d.token, false, params, discordgo.WithContext(ctx))
	return err
}

func buildEmbed(rec Record) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:     embedTitle,
		Color:     embedColor,
		Timestamp: rec.Time.UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Kind", Value: string(rec.Kind), Inline: true},
			{Name: "Log", Value: fence(rec.Content), Inline: false},
		},
	}
}

// fence wraps content in a code block that fits the embed field limit.
func fence(content string) string {
	const wrapper = len("``````")
	content = strings.ReplaceAll(content, "```", "'''")
	if limit := embedValueMax - wrapper; len(content) > limit {
		cut := limit - len("...")
		for cut > 0 && !utf8Start(content[cut]) {
			cut--
		}
		content = content[:cut] + "..."
	}
	return "```" + content + "```"
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}

var ErrInvalidWebhookURL = errors.New("invalid discord webhook url")

// ParseWebhookURL extracts the id and token from
// https://discord.com/api/webhooks/{id}/{token}.
func ParseWebhookURL(raw string) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidWebhookURL, raw)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("%w: %q", ErrInvalidWebhookURL, raw)
}
