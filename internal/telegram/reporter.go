package telegram

import (
	"context"
	"encoding/json"
	"html"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ReportTimeout bounds the delivery of a single error report.
const ReportTimeout = 10 * time.Second

// Reporter sends operational errors to a separate chat. A Reporter without
// a chat only logs.
type Reporter struct {
	client  *Client
	chatID  string
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewReporter creates a Reporter for chatID.
func NewReporter(client *Client, chatID string) *Reporter {
	return &Reporter{client: client, chatID: chatID, timeout: ReportTimeout}
}

// Report sends message and data, tagged with a fresh incident id, in the
// background. Failures are logged and otherwise ignored.
func (r *Reporter) Report(ctx context.Context, message string, data map[string]any) {
	incident := uuid.NewString()
	log.Printf("Error [%s]: %s", incident, message)

	if r == nil || r.client == nil || r.chatID == "" {
		return
	}

	details := make(map[string]any, len(data)+1)
	for k, v := range data {
		details[k] = v
	}
	details["incident"] = incident

	text := FormatError(message, details)
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		if err := r.client.SendMessage(sendCtx, r.chatID, text); err != nil {
			log.Printf("Could not send error report [%s]: %v", incident, err)
		}
	}()
}

// Wait blocks until all reports in flight are sent or have failed.
func (r *Reporter) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}

// FormatError renders an error report.
func FormatError(message string, data map[string]any) string {
	text := "🚨 <b>Ошибка:</b>\n" + html.EscapeString(message)
	if len(data) == 0 {
		return text
	}
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return text
	}
	text += "\n\n<b>Дополнительная информация:</b>\n" + html.EscapeString(string(encoded))
	return shorten(text, MessageLimit)
}
