package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestRecordInboundNewMessage(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	store := NewStore(mock)

	id := uuid.New()
	received := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO messages").
		WithArgs("biz-1", pgxmock.AnyArg(), "text", "+919800000001", "15550001111", "hello", pgxmock.AnyArg(), received).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), "message:"+id.String(), "messaging.message.received.v1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	got, created, err := store.RecordInbound(context.Background(), MessageRecord{
		OwnerID:           "biz-1",
		Kind:              "text",
		From:              "+919800000001",
		To:                "15550001111",
		Body:              "hello",
		ProviderMessageID: "wamid.in.1",
		OccurredAt:        received,
	})
	if err != nil {
		t.Fatalf("record inbound: %v", err)
	}
	if !created || got != id {
		t.Fatalf("expected new row %s, got %s created=%v", id, got, created)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecordInboundRedelivery(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	store := NewStore(mock)

	existing := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO messages").
		WithArgs("biz-1", pgxmock.AnyArg(), "text", "", "", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT id FROM messages").
		WithArgs("wamid.in.1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(existing))
	mock.ExpectRollback()

	got, created, err := store.RecordInbound(context.Background(), MessageRecord{OwnerID: "biz-1", ProviderMessageID: "wamid.in.1", Kind: "text"})
	if err != nil {
		t.Fatalf("record inbound: %v", err)
	}
	if created || got != existing {
		t.Fatalf("expected existing row, got %s created=%v", got, created)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertOutboundDefaultsToQueued(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	store := NewStore(mock)

	id := uuid.New()
	mock.ExpectQuery("INSERT INTO messages").
		WithArgs("biz-1", pgxmock.AnyArg(), pgxmock.AnyArg(), "text", "15550001111", "+919800000001", "hi there",
			pgxmock.AnyArg(), "queued", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id))

	got, err := store.InsertOutbound(context.Background(), nil, MessageRecord{
		OwnerID:           "biz-1",
		Kind:              "text",
		From:              "15550001111",
		To:                "+919800000001",
		Body:              "hi there",
		ProviderMessageID: "wamid.out.1",
	})
	if err != nil || got != id {
		t.Fatalf("insert outbound: id=%s err=%v", got, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAttachCustomer(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	store := NewStore(mock)

	msgID, custID := uuid.New(), uuid.New()
	mock.ExpectExec("UPDATE messages SET customer_id").WithArgs(msgID, custID).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := store.AttachCustomer(context.Background(), msgID, custID); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
