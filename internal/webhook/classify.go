package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/chatcommerce/internal/events"
	"github.com/wolfman30/chatcommerce/internal/messaging"
)

// Kind is the classification of a verified payload.
type Kind string

const (
	KindMessage Kind = "message"
	KindStatus  Kind = "status"
	KindUnknown Kind = "unknown"
)

// Message kinds stored with inbound rows.
const (
	MessageKindText  = "text"
	MessageKindMedia = "media"
	MessageKindOther = "other"
)

// InboundMessage is the first message of a message event.
type InboundMessage struct {
	ProviderMessageID string
	From              string
	ContactName       string
	Kind              string
	Text              string
	Timestamp         time.Time
	PhoneNumberID     string
	BusinessPhone     string
}

// Classified is exactly one of a message event, a status event or neither.
type Classified struct {
	Kind          Kind
	Message       *InboundMessage
	Statuses      []messaging.StatusUpdate
	PhoneNumberID string
}

// Classify parses body. A payload carrying a message is a message event even
// if other changes carry statuses.
func Classify(body []byte, now time.Time) (Classified, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Classified{Kind: KindUnknown}, fmt.Errorf("webhook: decode payload: %w", err)
	}

	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if len(change.Value.Messages) == 0 {
				continue
			}
			msg := toInbound(change.Value, change.Value.Messages[0], now)
			return Classified{Kind: KindMessage, Message: &msg, PhoneNumberID: msg.PhoneNumberID}, nil
		}
	}

	var out Classified
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			for _, st := range change.Value.Statuses {
				if out.PhoneNumberID == "" {
					out.PhoneNumberID = change.Value.Metadata.PhoneNumberID
				}
				out.Statuses = append(out.Statuses, toStatusUpdate(st, now))
			}
		}
	}
	if len(out.Statuses) > 0 {
		out.Kind = KindStatus
		return out, nil
	}
	return Classified{Kind: KindUnknown}, nil
}

// StatusEventID is the dedup key of a status event: the first entry's
// provider id and status, or a local fallback id when the id is missing.
func StatusEventID(updates []messaging.StatusUpdate, now time.Time) string {
	if len(updates) > 0 && strings.TrimSpace(updates[0].ProviderMessageID) != "" {
		return updates[0].ProviderMessageID + ":" + string(updates[0].Status)
	}
	return events.NewFallbackEventID(now)
}

func toInbound(v ChangeValue, m Message, now time.Time) InboundMessage {
	msg := InboundMessage{
		ProviderMessageID: m.ID,
		From:              messaging.NormalizeE164(m.From),
		Timestamp:         parseUnix(m.Timestamp, now),
		PhoneNumberID:     v.Metadata.PhoneNumberID,
		BusinessPhone:     messaging.NormalizeE164(v.Metadata.DisplayPhoneNumber),
	}
	for _, c := range v.Contacts {
		if c.WaID == m.From {
			msg.ContactName = strings.TrimSpace(c.Profile.Name)
			break
		}
	}
	switch m.Type {
	case "text":
		msg.Kind = MessageKindText
		if m.Text != nil {
			msg.Text = m.Text.Body
		}
	case "image", "video", "document", "audio", "sticker":
		msg.Kind = MessageKindMedia
		for _, media := range []*Media{m.Image, m.Video, m.Document} {
			if media != nil && media.Caption != "" {
				msg.Text = media.Caption
				break
			}
		}
	default:
		msg.Kind = MessageKindOther
	}
	return msg
}

func toStatusUpdate(s Status, now time.Time) messaging.StatusUpdate {
	update := messaging.StatusUpdate{
		ProviderMessageID: s.ID,
		Status:            messaging.Status(strings.ToLower(strings.TrimSpace(s.Status))),
		Timestamp:         parseUnix(s.Timestamp, now),
		RecipientPhone:    messaging.NormalizeE164(s.RecipientID),
	}
	if len(s.Errors) > 0 {
		first := s.Errors[0]
		update.ErrorCode = strconv.Itoa(first.Code)
		update.ErrorMessage = first.Title
		if first.ErrorData.Details != "" {
			update.ErrorMessage = first.ErrorData.Details
		} else if first.Message != "" {
			update.ErrorMessage = first.Message
		}
	}
	return update
}

func parseUnix(value string, fallback time.Time) time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || secs <= 0 {
		return fallback.UTC()
	}
	return time.Unix(secs, 0).UTC()
}
