package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
)

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	if sender := NewSendGridSender(SendGridConfig{FromEmail: "orders@example.com"}, nil); sender != nil {
		t.Fatal("expected nil sender when API key is empty")
	}
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "orders@example.com"}, nil)
	if sender == nil {
		t.Fatal("expected non-nil sender")
	}
	if sender.fromName != defaultFromName {
		t.Fatalf("from name = %q, want %q", sender.fromName, defaultFromName)
	}
}

func TestSendGridSender_Send_NilClient(t *testing.T) {
	sender := &SendGridSender{}
	if err := sender.Send(context.Background(), EmailMessage{To: "owner@example.com", Subject: "x"}); err == nil {
		t.Fatal("expected error for unconfigured client")
	}
}

type stubSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (s *stubSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	s.input = in
	if s.err != nil {
		return nil, s.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func TestSESSender_Send(t *testing.T) {
	api := &stubSES{}
	sender := newSESSender(api, SESConfig{FromEmail: "orders@example.com"}, nil)

	err := sender.Send(context.Background(), EmailMessage{To: "owner@example.com", Subject: "New order", Body: "text body"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := aws.ToString(api.input.FromEmailAddress); got != "ChatCommerce <orders@example.com>" {
		t.Fatalf("from = %q", got)
	}
	if api.input.Destination.ToAddresses[0] != "owner@example.com" {
		t.Fatalf("to = %v", api.input.Destination.ToAddresses)
	}
	body := api.input.Content.Simple.Body
	if body.Text == nil || aws.ToString(body.Text.Data) != "text body" || body.Html != nil {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestSESSender_SendError(t *testing.T) {
	sender := newSESSender(&stubSES{err: errors.New("throttled")}, SESConfig{FromEmail: "orders@example.com"}, nil)
	if err := sender.Send(context.Background(), EmailMessage{To: "owner@example.com", Subject: "x", Body: "y"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewSESSender_NilClient(t *testing.T) {
	if NewSESSender(nil, SESConfig{}, nil) != nil {
		t.Fatal("expected nil sender without client")
	}
}
