// Package gateway talks to the WhatsApp gateway HTTP API (Z-API flavour):
// one base URL, per-instance path credentials and a Client-Token header.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 8 * time.Second
	maxErrorBody   = 4096
)

var httpClient = &http.Client{}

// Credentials identify one gateway instance.
type Credentials struct {
	InstanceID  string
	Token       string
	ClientToken string
}

func (c Credentials) Complete() bool {
	return c.InstanceID != "" && c.Token != "" && c.ClientToken != ""
}

// SendResult is the synchronous gateway acknowledgement.
type SendResult struct {
	ZaapID    string `json:"zaapId"`
	MessageID string `json:"messageId"`
	ID        string `json:"id"`
}

// GatewayID returns the id the gateway will echo back in later callbacks.
func (r SendResult) GatewayID() string {
	if r.MessageID != "" {
		return r.MessageID
	}
	return r.ID
}

type InstanceStatus struct {
	Connected           bool   `json:"connected"`
	SmartphoneConnected bool   `json:"smartphoneConnected"`
	Session             bool   `json:"session"`
	Error               string `json:"error,omitempty"`
}

type LinkMessage struct {
	Message         string `json:"message"`
	Image           string `json:"image,omitempty"`
	LinkURL         string `json:"linkUrl"`
	Title           string `json:"title,omitempty"`
	LinkDescription string `json:"linkDescription,omitempty"`
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	timeout time.Duration
	perSec  float64

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewClient(baseURL string, timeout time.Duration, ratePerSecond float64) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		timeout:  timeout,
		perSec:   ratePerSecond,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (c *Client) SendText(ctx context.Context, creds Credentials, phone, message string) (SendResult, error) {
	return c.send(ctx, creds, "send-text", map[string]any{"phone": phone, "message": message})
}

// SendImage accepts a public URL or a base64 data URL.
func (c *Client) SendImage(ctx context.Context, creds Credentials, phone, image, caption string) (SendResult, error) {
	return c.send(ctx, creds, "send-image", map[string]any{"phone": phone, "image": image, "caption": caption})
}

func (c *Client) SendAudio(ctx context.Context, creds Credentials, phone, audio string) (SendResult, error) {
	return c.send(ctx, creds, "send-audio", map[string]any{"phone": phone, "audio": audio})
}

func (c *Client) SendVideo(ctx context.Context, creds Credentials, phone, video, caption string) (SendResult, error) {
	return c.send(ctx, creds, "send-video", map[string]any{"phone": phone, "video": video, "caption": caption})
}

// SendDocument needs the file extension in the path, e.g. "pdf".
func (c *Client) SendDocument(ctx context.Context, creds Credentials, phone, document, extension, fileName string) (SendResult, error) {
	ext := strings.TrimPrefix(strings.ToLower(extension), ".")
	if ext == "" {
		ext = "pdf"
	}
	return c.send(ctx, creds, "send-document/"+url.PathEscape(ext), map[string]any{
		"phone":    phone,
		"document": document,
		"fileName": fileName,
	})
}

func (c *Client) SendLink(ctx context.Context, creds Credentials, phone string, link LinkMessage) (SendResult, error) {
	body := map[string]any{
		"phone":           phone,
		"message":         link.Message,
		"image":           link.Image,
		"linkUrl":         link.LinkURL,
		"title":           link.Title,
		"linkDescription": link.LinkDescription,
	}
	return c.send(ctx, creds, "send-link", body)
}

// Status queries the instance connection state.
func (c *Client) Status(ctx context.Context, creds Credentials) (InstanceStatus, error) {
	var out InstanceStatus
	if !creds.Complete() {
		return out, errors.New("incomplete gateway credentials")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.do(ctx, http.MethodGet, c.endpoint(creds, "status"), creds.ClientToken, nil, &out); err != nil {
		return out, err
	}
	return out, nil
}

func (c *Client) send(ctx context.Context, creds Credentials, path string, body map[string]any) (SendResult, error) {
	var out SendResult
	if !creds.Complete() {
		return out, &SendFailure{Op: path, Err: errors.New("incomplete gateway credentials")}
	}

	if err := c.limiter(creds.InstanceID).Wait(ctx); err != nil {
		return out, &SendFailure{Op: path, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := c.do(ctx, http.MethodPost, c.endpoint(creds, path), creds.ClientToken, body, &out)
	if err != nil {
		var sf *SendFailure
		if !errors.As(err, &sf) {
			sf = &SendFailure{Err: err}
		}
		sf.Op = path
		sf.Timeout = errors.Is(err, context.DeadlineExceeded)
		logrus.WithError(err).WithFields(logrus.Fields{
			"instance": creds.InstanceID,
			"op":       path,
			"elapsed":  time.Since(start).String(),
		}).Warn("[GATEWAY] send failed")
		return out, sf
	}

	logrus.WithFields(logrus.Fields{
		"instance":   creds.InstanceID,
		"op":         path,
		"message_id": out.GatewayID(),
	}).Debug("[GATEWAY] sent")
	return out, nil
}

func (c *Client) endpoint(creds Credentials, path string) string {
	return fmt.Sprintf("%s/instances/%s/token/%s/%s",
		c.baseURL, url.PathEscape(creds.InstanceID), url.PathEscape(creds.Token), path)
}

func (c *Client) limiter(instanceID string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[instanceID]
	if !ok {
		limit := rate.Inf
		if c.perSec > 0 {
			limit = rate.Limit(c.perSec)
		}
		l = rate.NewLimiter(limit, 1)
		c.limiters[instanceID] = l
	}
	return l
}

func (c *Client) do(ctx context.Context, method, endpoint, clientToken string, body any, dest any) error {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Client-Token", clientToken)

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := data
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return &SendFailure{Status: resp.StatusCode, Body: string(snippet)}
	}

	if dest != nil && len(data) > 0 {
		if err := json.Unmarshal(data, dest); err != nil {
			return fmt.Errorf("decode gateway response: %w", err)
		}
	}
	return nil
}
