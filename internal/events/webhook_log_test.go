package events

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestWebhookLogBegin(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newWebhookLogStoreWithExec(mock)
	ctx := context.Background()
	raw := []byte(`{"object":"whatsapp_business_account"}`)

	mock.ExpectExec("INSERT INTO webhook_logs").WithArgs("wamid.1:delivered", "whatsapp", raw).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	outcome, err := store.Begin(ctx, WebhookLogEntry{EventID: "wamid.1:delivered", Source: "whatsapp", RawPayload: raw})
	if err != nil || outcome != OutcomeFresh {
		t.Fatalf("expected fresh, got %s err=%v", outcome, err)
	}

	mock.ExpectExec("INSERT INTO webhook_logs").WithArgs("wamid.1:delivered", "whatsapp", raw).WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT processed FROM webhook_logs").WithArgs("wamid.1:delivered").WillReturnRows(pgxmock.NewRows([]string{"processed"}).AddRow(true))
	outcome, err = store.Begin(ctx, WebhookLogEntry{EventID: "wamid.1:delivered", Source: "whatsapp", RawPayload: raw})
	if err != nil || outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %s err=%v", outcome, err)
	}

	mock.ExpectExec("INSERT INTO webhook_logs").WithArgs("wamid.2", "whatsapp", raw).WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT processed FROM webhook_logs").WithArgs("wamid.2").WillReturnRows(pgxmock.NewRows([]string{"processed"}).AddRow(false))
	outcome, err = store.Begin(ctx, WebhookLogEntry{EventID: "wamid.2", Source: "whatsapp", RawPayload: raw})
	if err != nil || outcome != OutcomeReplay {
		t.Fatalf("expected replay, got %s err=%v", outcome, err)
	}

	mock.ExpectExec("INSERT INTO webhook_logs").WithArgs("wamid.3", "whatsapp", raw).WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT processed FROM webhook_logs").WithArgs("wamid.3").WillReturnError(pgx.ErrNoRows)
	outcome, err = store.Begin(ctx, WebhookLogEntry{EventID: "wamid.3", Source: "whatsapp", RawPayload: raw})
	if err != nil || outcome != OutcomeFresh {
		t.Fatalf("expected fresh after vanished row, got %s err=%v", outcome, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWebhookLogFallbackIDsNeverDeduplicated(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newWebhookLogStoreWithExec(mock)
	id := NewFallbackEventID(time.Now())
	if !IsFallbackEventID(id) || !strings.HasPrefix(id, "local-") {
		t.Fatalf("unexpected fallback id %q", id)
	}
	if IsFallbackEventID("wamid.HBgLMTU1NTAwMDExMTEVAgARGBI") {
		t.Fatal("provider ids must not look like fallback ids")
	}

	mock.ExpectExec("INSERT INTO webhook_logs").WithArgs(id, "whatsapp", []byte("{}")).WillReturnResult(pgxmock.NewResult("INSERT", 0))
	outcome, err := store.Begin(context.Background(), WebhookLogEntry{EventID: id, Source: "whatsapp", RawPayload: []byte("{}")})
	if err != nil || outcome != OutcomeFresh {
		t.Fatalf("expected fallback id to be fresh, got %s err=%v", outcome, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWebhookLogMarkProcessed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	prev := nowFunc
	nowFunc = func() time.Time { return fixed }
	defer func() { nowFunc = prev }()

	store := newWebhookLogStoreWithExec(mock)
	mock.ExpectExec("UPDATE webhook_logs").WithArgs("wamid.1", fixed).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := store.MarkProcessed(context.Background(), "wamid.1"); err != nil {
		t.Fatalf("mark processed: %v", err)
	}

	mock.ExpectExec("UPDATE webhook_logs").WithArgs("wamid.2", fixed).WillReturnError(errors.New("conn reset"))
	if err := store.MarkProcessed(context.Background(), "wamid.2"); err == nil {
		t.Fatal("expected error to propagate")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWebhookLogRequiresEventID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	if _, err := newWebhookLogStoreWithExec(mock).Begin(context.Background(), WebhookLogEntry{EventID: "  "}); err == nil {
		t.Fatal("expected error for blank event id")
	}
}
