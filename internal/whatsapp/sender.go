package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Sender interface {
	Send(ctx context.Context, phone string, message string) error
	ProviderID() string
}

// ZAPISender delivers text messages through the Z-API send-text endpoint.
type ZAPISender struct {
	baseURL     string
	instanceID  string
	token       string
	clientToken string
	http        *http.Client
}

type ZAPIConfig struct {
	BaseURL     string // defaults to https://api.z-api.io
	InstanceID  string
	Token       string
	ClientToken string
}

func NewZAPISender(cfg ZAPIConfig) *ZAPISender {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "https://api.z-api.io"
	}
	return &ZAPISender{
		baseURL:     base,
		instanceID:  strings.TrimSpace(cfg.InstanceID),
		token:       strings.TrimSpace(cfg.Token),
		clientToken: strings.TrimSpace(cfg.ClientToken),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *ZAPISender) ProviderID() string {
	return "whatsapp-zapi"
}

func (s *ZAPISender) Send(ctx context.Context, phone string, message string) error {
	if s.instanceID == "" || s.token == "" {
		return errors.New("z-api credentials not configured")
	}
	payload := map[string]string{
		"phone":   NormalizePhone(phone),
		"message": message,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/instances/%s/token/%s/send-text", s.baseURL, s.instanceID, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.clientToken != "" {
		req.Header.Set("Client-Token", s.clientToken)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("z-api returned status %d", resp.StatusCode)
	}
	return nil
}

// NormalizePhone strips everything but digits, which is what Z-API expects.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

type NoopSender struct{}

func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

func (s *NoopSender) ProviderID() string {
	return "whatsapp-noop"
}

func (s *NoopSender) Send(_ context.Context, _ string, _ string) error {
	return nil
}
