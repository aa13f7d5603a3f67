package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// WhatsAppReplier sends text messages through the WhatsApp Business API.
type WhatsAppReplier struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewWhatsAppReplier returns a replier posting to {baseURL}/messages with token as bearer.
func NewWhatsAppReplier(baseURL, token string, client *http.Client) *WhatsAppReplier {
	if client == nil {
		client = http.DefaultClient
	}
	return &WhatsAppReplier{baseURL: strings.TrimRight(baseURL, "/"), token: token, client: client}
}

type whatsAppMessage struct {
	To   string `json:"to"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

// Reply sends message to the prospect at to.
func (w *WhatsAppReplier) Reply(ctx context.Context, to, message string) error {
	msg := whatsAppMessage{To: to, Type: "text"}
	msg.Text.Body = message
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode whatsapp message: %w", err)
	}
	return postJSON(ctx, w.client, "whatsapp", w.baseURL+"/messages", w.token, body)
}
