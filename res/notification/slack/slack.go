package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"tinedy-api/res/notification"
)

// notifier posts booking notices to a Slack incoming webhook
type notifier struct {
	webhookURL string
	client     *http.Client
	logger     *log.Logger
}

// webhookPayload is a Slack Block Kit message. Text is the fallback shown in
// notifications and by clients without block support.
type webhookPayload struct {
	Text   string  `json:"text"`
	Blocks []block `json:"blocks"`
}

type block struct {
	Type   string       `json:"type"`
	Text   *textObject  `json:"text,omitempty"`
	Fields []textObject `json:"fields,omitempty"`
}

type textObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type field struct {
	label, value string
}

func New(webhookURL string, timeout time.Duration, logger *log.Logger) notification.NotificationService {
	return &notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (n *notifier) NotifyBookingCreated(ctx context.Context, bookingID, customerName, serviceName, date, startTime string) error {
	return n.post(ctx, fmt.Sprintf(":calendar: New booking %s", bookingID),
		field{"Customer", customerName},
		field{"Service", serviceName},
		field{"When", date + " " + startTime},
	)
}

func (n *notifier) NotifyBookingCancelled(ctx context.Context, bookingID, customerName, date, reason, cancelledBy string) error {
	if reason == "" {
		reason = "-"
	}
	return n.post(ctx, fmt.Sprintf(":x: Booking %s cancelled", bookingID),
		field{"Customer", customerName},
		field{"Date", date},
		field{"Reason", reason},
		field{"Cancelled by", cancelledBy},
	)
}

func (n *notifier) post(ctx context.Context, headline string, fields ...field) error {
	if n.webhookURL == "" {
		n.logger.Printf("Slack webhook URL not configured, skipping notification")
		return nil
	}

	payload := buildPayload(headline, fields)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send slack notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("slack webhook returned status %d: %s", resp.StatusCode, msg)
	}
	return nil
}

func buildPayload(headline string, fields []field) webhookPayload {
	text := headline
	section := block{Type: "section"}
	for _, f := range fields {
		text += fmt.Sprintf("\n*%s:* %s", f.label, f.value)
		section.Fields = append(section.Fields, textObject{Type: "mrkdwn", Text: fmt.Sprintf("*%s*\n%s", f.label, f.value)})
	}

	return webhookPayload{
		Text: text,
		Blocks: []block{
			{Type: "header", Text: &textObject{Type: "plain_text", Text: headline}},
			section,
		},
	}
}
