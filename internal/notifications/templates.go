package notifications

import (
	"fmt"
	"math"
	"strings"

	"github.com/emlakofis/emlak-backend/pkg/enums"
)

// Message is the rendered content shared by every channel.
type Message struct {
	Title   string
	Subject string
	Body    string
}

const subjectPrefix = "[Emlak] "

// Render builds the message for a notification. It has no side effects and
// unknown types fall back to a generic template.
func Render(typ enums.NotificationType, req RequestView, match *MatchView, extra map[string]any) Message {
	label := requestLabel(req)

	var title, body string
	switch typ {
	case enums.NotificationTypeNewMatch:
		title = "Yeni eşleşme"
		count, ok := intFromExtra(extra, "new_count")
		if !ok || count < 1 {
			count = 1
		}
		body = fmt.Sprintf("%s için %d yeni portföy eşleşti.", label, count)
		if match != nil {
			body += fmt.Sprintf(" En iyi eşleşme: %s (skor %s).", propertyLabel(match), formatScore(match.Score))
		}
	case enums.NotificationTypeHighScoreMatch:
		title = "Yüksek skorlu eşleşme"
		if match != nil {
			body = fmt.Sprintf("%s için %s %s skorla eşleşti.", label, propertyLabel(match), formatScore(match.Score))
		} else {
			body = fmt.Sprintf("%s için yüksek skorlu bir eşleşme bulundu.", label)
		}
	case enums.NotificationTypeMatchPresented:
		title = "Eşleşme sunuldu"
		body = fmt.Sprintf("%s, %s müşterisine sunuldu.", matchLabel(match), customerLabel(req))
		if match != nil && match.PersonnelNote != "" {
			body += " Not: " + match.PersonnelNote
		}
	case enums.NotificationTypeMatchAccepted:
		title = "Eşleşme kabul edildi"
		body = fmt.Sprintf("%s, %s tarafından kabul edildi.", matchLabel(match), customerLabel(req))
		body += feedbackSuffix(match)
	case enums.NotificationTypeMatchRejected:
		title = "Eşleşme reddedildi"
		body = fmt.Sprintf("%s, %s tarafından reddedildi.", matchLabel(match), customerLabel(req))
		body += feedbackSuffix(match)
	case enums.NotificationTypeRequestUpdated:
		title = "Talep güncellendi"
		body = fmt.Sprintf("%s kriterleri güncellendi, eşleştirme yeniden çalıştırılacak.", label)
		if fields, ok := extra["changed_fields"].([]string); ok && len(fields) > 0 {
			body += " Değişen alanlar: " + strings.Join(fields, ", ") + "."
		}
	default:
		title = "Bildirim"
		body = fmt.Sprintf("%s ile ilgili yeni bir bildiriminiz var.", label)
	}

	return Message{
		Title:   title,
		Subject: subjectPrefix + title,
		Body:    body,
	}
}

func requestLabel(req RequestView) string {
	name := strings.TrimSpace(req.CustomerName)
	kind := strings.TrimSpace(req.SubCategory)
	if kind == "" {
		kind = string(req.Category)
	}
	switch {
	case name != "" && kind != "":
		return fmt.Sprintf("%s adlı müşterinin %s talebi", name, kind)
	case name != "":
		return fmt.Sprintf("%s adlı müşterinin talebi", name)
	default:
		return "Talep"
	}
}

func customerLabel(req RequestView) string {
	if name := strings.TrimSpace(req.CustomerName); name != "" {
		return name
	}
	return "müşteri"
}

func propertyLabel(match *MatchView) string {
	if title := strings.TrimSpace(match.PropertyTitle); title != "" {
		return fmt.Sprintf("%q portföyü", title)
	}
	return "bir portföy"
}

func matchLabel(match *MatchView) string {
	if match == nil {
		return "Eşleşme"
	}
	label := propertyLabel(match)
	return strings.ToUpper(label[:1]) + label[1:]
}

func feedbackSuffix(match *MatchView) string {
	if match == nil || strings.TrimSpace(match.CustomerFeedback) == "" {
		return ""
	}
	return " Geri bildirim: " + strings.TrimSpace(match.CustomerFeedback)
}

// formatScore renders 0.8512 as "%85".
func formatScore(score float64) string {
	return fmt.Sprintf("%%%d", int(math.Round(score*100)))
}

// intFromExtra accepts the numeric shapes an extra map can hold after a JSON
// round trip.
func intFromExtra(extra map[string]any, key string) (int, bool) {
	switch v := extra[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
