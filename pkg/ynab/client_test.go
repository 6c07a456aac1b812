package ynab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCreateTransactionsDuplicateSplit(t *testing.T) {
	var received CreateTransactionsRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if r.URL.Path != "/budgets/budget-1/transactions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}

		// Server accepts 3, rejects 2 as duplicate import ids.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data": {
			"transactions": [
				{"id": "y1", "import_id": "t1"},
				{"id": "y2", "import_id": "t2"},
				{"id": "y3", "import_id": "t3"}
			],
			"duplicate_import_ids": ["t4", "t5"]
		}}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Endpoint: server.URL, Token: "test-token"})

	txns := make([]Transaction, 5)
	for i := range txns {
		txns[i] = Transaction{
			AccountID: "ynab-acct-1",
			Date:      "2024-06-01",
			Amount:    -12500,
			ImportID:  fmt.Sprintf("t%d", i+1),
			Cleared:   ClearedCleared,
		}
	}

	result, err := client.CreateTransactions(context.Background(), "budget-1", txns)
	if err != nil {
		t.Fatalf("CreateTransactions() error: %v", err)
	}
	if result.Created != 3 || result.Duplicates != 2 {
		t.Errorf("CreateResult = {%d, %d}, expected {3, 2}", result.Created, result.Duplicates)
	}
	if len(received.Transactions) != 5 {
		t.Errorf("server received %d transactions, expected 5", len(received.Transactions))
	}
}

func TestCreateTransactionsAllDuplicates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data": {"transactions": [], "duplicate_import_ids": ["t1", "t2"]}}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Endpoint: server.URL, Token: "test-token"})

	// A fully duplicated batch is a successful no-op, not an error.
	result, err := client.CreateTransactions(context.Background(), "budget-1", []Transaction{
		{ImportID: "t1"}, {ImportID: "t2"},
	})
	if err != nil {
		t.Fatalf("CreateTransactions() error: %v", err)
	}
	if result.Created != 0 || result.Duplicates != 2 {
		t.Errorf("CreateResult = {%d, %d}, expected {0, 2}", result.Created, result.Duplicates)
	}
}

func TestParseErrorKeepsDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"id": "401", "name": "unauthorized", "detail": "Unauthorized"}}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Endpoint: server.URL, Token: "bad-token"})

	_, err := client.CreateTransactions(context.Background(), "budget-1", []Transaction{{ImportID: "t1"}})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "status 401") || !strings.Contains(err.Error(), "unauthorized") {
		t.Errorf("error %q missing status or detail", err)
	}
}

func TestGetAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/budgets/budget-1/accounts/ynab-acct-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"account": {
			"id": "ynab-acct-1", "name": "Everyday", "type": "checking", "balance": 532100
		}}}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Endpoint: server.URL, Token: "test-token"})

	account, err := client.GetAccount(context.Background(), "budget-1", "ynab-acct-1")
	if err != nil {
		t.Fatalf("GetAccount() error: %v", err)
	}
	if account.Balance != 532100 {
		t.Errorf("Balance = %d, expected 532100", account.Balance)
	}
	if account.Name != "Everyday" {
		t.Errorf("Name = %q", account.Name)
	}
}

func TestListTransactions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"transactions": [
			{"id": "y1", "import_id": "t1", "amount": -12500},
			{"id": "y2", "import_id": "t2", "amount": 4000}
		]}}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Endpoint: server.URL, Token: "test-token"})

	txns, err := client.ListTransactions(context.Background(), "budget-1")
	if err != nil {
		t.Fatalf("ListTransactions() error: %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("got %d transactions, expected 2", len(txns))
	}
	if txns[0].ImportID != "t1" || txns[1].Amount != 4000 {
		t.Errorf("unexpected transactions: %+v", txns)
	}
}
