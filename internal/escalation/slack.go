package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/weaveai/weave/internal/models"
)

// DefaultHistoryLimit bounds the conversation excerpt in notifications.
const DefaultHistoryLimit = 5

// SlackNotifier posts escalations to a Slack incoming webhook as Block Kit messages.
type SlackNotifier struct {
	webhookURL   string
	historyLimit int
	client       *http.Client
}

// NewSlackNotifier returns a notifier for webhookURL. historyLimit <= 0 uses DefaultHistoryLimit.
func NewSlackNotifier(webhookURL string, historyLimit int, client *http.Client) *SlackNotifier {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &SlackNotifier{webhookURL: webhookURL, historyLimit: historyLimit, client: client}
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

// Notify posts the escalation. A non-2xx response is a *models.ProviderError.
func (s *SlackNotifier) Notify(ctx context.Context, esc models.EscalationContext) error {
	body, err := json.Marshal(buildSlackMessage(esc, s.historyLimit))
	if err != nil {
		return fmt.Errorf("failed to encode slack message: %w", err)
	}
	return postJSON(ctx, s.client, "slack", s.webhookURL, "", body)
}

func buildSlackMessage(esc models.EscalationContext, historyLimit int) slackMessage {
	mrkdwn := func(s string) slackText { return slackText{Type: "mrkdwn", Text: s} }
	return slackMessage{
		Text: "🔔 New Escalation: " + esc.Prospect.Name,
		Blocks: []slackBlock{
			{Type: "header", Text: &slackText{Type: "plain_text", Text: "Enquiry Escalation: " + esc.EnquiryID}},
			{Type: "section", Fields: []slackText{
				mrkdwn("*Prospect:*\n" + prospectLine(esc.Prospect)),
				mrkdwn("*Channel:*\n" + string(esc.Channel)),
				mrkdwn("*Status:*\n" + string(esc.QualificationStatus)),
				mrkdwn("*Reason:*\n" + esc.Reason),
			}},
			{Type: "section", Text: ptr(mrkdwn("*Qualification Data:*\n" + formatQualificationData(esc.QualificationData)))},
			{Type: "section", Text: ptr(mrkdwn("*Conversation History:*\n" + formatHistory(esc.RecentMessages(historyLimit))))},
		},
	}
}

func ptr(t slackText) *slackText { return &t }

func prospectLine(p models.Prospect) string {
	if p.Contact == "" {
		return p.Name
	}
	return p.Name + " (" + p.Contact + ")"
}

func formatQualificationData(d models.EnquiryData) string {
	fields := d.Fields()
	if len(fields) == 0 {
		return "_none provided_"
	}
	lines := make([]string, len(fields))
	for i, f := range fields {
		lines[i] = fmt.Sprintf("• %s: %s", f.Name, f.Value)
	}
	return strings.Join(lines, "\n")
}

func formatHistory(msgs []models.Message) string {
	if len(msgs) == 0 {
		return "_no messages_"
	}
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		lines[i] = fmt.Sprintf("[%s] %s", m.Role, m.Message)
	}
	return strings.Join(lines, "\n")
}

func postJSON(ctx context.Context, client *http.Client, op, url, bearer string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return models.NewProviderError(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := client.Do(req)
	if err != nil {
		return models.NewProviderError(op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.NewProviderError(op, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
