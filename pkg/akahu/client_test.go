package akahu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// pagedServer serves K pages of transactions keyed by cursor.
func pagedServer(t *testing.T, pages [][]Transaction) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer user-token" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("X-Akahu-Id") != "app-token" {
			t.Errorf("missing app token header, got %q", r.Header.Get("X-Akahu-Id"))
		}

		page := 0
		if cursor := r.URL.Query().Get("cursor"); cursor != "" {
			fmt.Sscanf(cursor, "page-%d", &page)
		}

		resp := TransactionsResponse{Success: true, Items: pages[page]}
		if page < len(pages)-1 {
			next := fmt.Sprintf("page-%d", page+1)
			resp.Cursor = &Cursor{Next: &next}
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(url string) *Client {
	return NewClient(ClientConfig{
		Endpoint:  url,
		AppToken:  "app-token",
		UserToken: "user-token",
	})
}

func TestFetchAllTransactionsPagination(t *testing.T) {
	pages := [][]Transaction{
		{{ID: "t1"}, {ID: "t2"}},
		{{ID: "t3"}},
		{{ID: "t4"}, {ID: "t5"}},
	}
	server := pagedServer(t, pages)
	defer server.Close()

	client := newTestClient(server.URL)
	txns, err := client.FetchAllTransactions(context.Background(), "acc_1", time.Time{})
	if err != nil {
		t.Fatalf("FetchAllTransactions() error: %v", err)
	}

	if len(txns) != 5 {
		t.Fatalf("FetchAllTransactions() returned %d transactions, expected 5", len(txns))
	}

	// Union of all pages, no omission, no duplication, arrival order.
	expected := []string{"t1", "t2", "t3", "t4", "t5"}
	for i, id := range expected {
		if txns[i].ID != id {
			t.Errorf("transaction %d = %q, expected %q", i, txns[i].ID, id)
		}
	}
}

func TestFetchAllTransactionsEmptyFirstPage(t *testing.T) {
	// A page with zero items terminates even when a cursor is present.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next := "page-1"
		json.NewEncoder(w).Encode(TransactionsResponse{
			Success: true,
			Items:   []Transaction{},
			Cursor:  &Cursor{Next: &next},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	txns, err := client.FetchAllTransactions(context.Background(), "acc_1", time.Time{})
	if err != nil {
		t.Fatalf("FetchAllTransactions() error: %v", err)
	}
	if len(txns) != 0 {
		t.Errorf("expected no transactions, got %d", len(txns))
	}
}

func TestFetchAllTransactionsWindow(t *testing.T) {
	var gotStart string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStart = r.URL.Query().Get("start")
		json.NewEncoder(w).Encode(TransactionsResponse{Success: true})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	// No watermark: fixed epoch default.
	if _, err := client.FetchAllTransactions(context.Background(), "acc_1", time.Time{}); err != nil {
		t.Fatalf("FetchAllTransactions() error: %v", err)
	}
	if gotStart != DefaultEpoch {
		t.Errorf("start = %q, expected default epoch %q", gotStart, DefaultEpoch)
	}

	// With watermark: one week earlier.
	watermark := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	if _, err := client.FetchAllTransactions(context.Background(), "acc_1", watermark); err != nil {
		t.Fatalf("FetchAllTransactions() error: %v", err)
	}
	expected := "2024-06-08T12:00:00Z"
	if gotStart != expected {
		t.Errorf("start = %q, expected %q (watermark minus one week)", gotStart, expected)
	}
}

func TestFetchAllTransactionsMidPageFailure(t *testing.T) {
	// Second page fails: the whole fetch fails, nothing partial is returned.
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls > 1 {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(ErrorResponse{Success: false, Message: "upstream unavailable"})
			return
		}
		next := "page-1"
		json.NewEncoder(w).Encode(TransactionsResponse{
			Success: true,
			Items:   []Transaction{{ID: "t1"}},
			Cursor:  &Cursor{Next: &next},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	txns, err := client.FetchAllTransactions(context.Background(), "acc_1", time.Time{})
	if err == nil {
		t.Fatal("expected error from failing page fetch")
	}
	if txns != nil {
		t.Errorf("expected no partial results, got %d transactions", len(txns))
	}
}

func TestGetAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/acc_1" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"success":true,"item":{"_id":"acc_1","name":"Everyday","type":"checking","balance":{"current":532.10}}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	account, err := client.GetAccount(context.Background(), "acc_1")
	if err != nil {
		t.Fatalf("GetAccount() error: %v", err)
	}

	if account.Name != "Everyday" {
		t.Errorf("Name = %q, expected Everyday", account.Name)
	}
	if account.Balance == nil || account.Balance.Current.String() != "532.1" {
		t.Errorf("Balance = %+v, expected 532.1", account.Balance)
	}
}
