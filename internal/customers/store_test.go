package customers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
)

func TestTouchCreatesCustomerAndLead(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO customers").
		WithArgs("owner-1", "+919876543210", "Asha", at).
		WillReturnRows(pgxmock.NewRows([]string{"id", "display_name", "status", "conversation_state", "conversation_context", "inserted"}).
			AddRow(id, "Asha", "active", "browsing", []byte(nil), true))
	mock.ExpectQuery("INSERT INTO leads").
		WithArgs("owner-1", id.String(), "Asha", "+919876543210", "whatsapp").
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "created_at"}).AddRow("lead-1", "new", at))
	mock.ExpectCommit()
	mock.ExpectRollback()

	store := NewStore(mock)
	customer, created, err := store.Touch(context.Background(), "owner-1", "+919876543210", "Asha", at)
	if err != nil {
		t.Fatalf("touch: %v", err)
	}
	if !created {
		t.Fatalf("expected created")
	}
	if customer.ID != id || customer.State() != StateBrowsing {
		t.Fatalf("unexpected customer %+v", customer)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTouchExistingCustomerDecodesContext(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	raw := []byte(`{"partial_fields":{"name":"Asha"},"started_at":"2026-03-01T09:00:00Z"}`)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO customers").
		WithArgs("owner-1", "+919876543210", "", at).
		WillReturnRows(pgxmock.NewRows([]string{"id", "display_name", "status", "conversation_state", "conversation_context", "inserted"}).
			AddRow(id, "Asha", "active", "collecting_order_details", raw, false))
	mock.ExpectCommit()
	mock.ExpectRollback()

	customer, created, err := NewStore(mock).Touch(context.Background(), "owner-1", "+919876543210", "", at)
	if err != nil {
		t.Fatalf("touch: %v", err)
	}
	if created {
		t.Fatalf("expected existing customer")
	}
	ctxVal, ok := customer.Context.(CollectingOrderContext)
	if !ok {
		t.Fatalf("expected collecting context, got %T", customer.Context)
	}
	if ctxVal.PartialFields.Name != "Asha" {
		t.Fatalf("expected partial name, got %+v", ctxVal.PartialFields)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTouchRollsBackWhenLeadFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO customers").
		WithArgs("owner-1", "+919876543210", "", at).
		WillReturnRows(pgxmock.NewRows([]string{"id", "display_name", "status", "conversation_state", "conversation_context", "inserted"}).
			AddRow(id, "", "active", "browsing", []byte(nil), true))
	mock.ExpectQuery("INSERT INTO leads").
		WithArgs("owner-1", id.String(), "", "+919876543210", "whatsapp").
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	if _, _, err := NewStore(mock).Touch(context.Background(), "owner-1", "+919876543210", "", at); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveConversation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE customers").
		WithArgs(id, "browsing", []byte(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := NewStore(mock).SaveConversation(context.Background(), nil, id, BrowsingContext{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
