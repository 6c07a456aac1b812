package webhook

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nzfintools/akahu-budget-sync/pkg/akahu"
	"github.com/nzfintools/akahu-budget-sync/pkg/engine"
)

// fakeReconciler records transactions pushed through the webhook path.
type fakeReconciler struct {
	synced []akahu.Transaction
	err    error
}

func (f *fakeReconciler) SyncTransaction(ctx context.Context, raw akahu.Transaction) error {
	if f.err != nil {
		return f.err
	}
	f.synced = append(f.synced, raw)
	return nil
}

// newSigningKey generates an RSA key pair and returns the private key plus
// the public key encoded the way Akahu publishes it.
func newSigningKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return key, string(pemBytes)
}

func sign(t *testing.T, key *rsa.PrivateKey, body string) string {
	t.Helper()
	digest := sha256.Sum256([]byte(body))
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(signature)
}

const createdEvent = `{
	"webhook_type": "TRANSACTION",
	"webhook_code": "TRANSACTION_CREATED",
	"item": {
		"_id": "trans_a1",
		"_account": "acc_1",
		"date": "2024-06-01T03:00:00Z",
		"description": "Coffee Supreme",
		"amount": -12.50
	}
}`

func newTestServer(t *testing.T, reconciler Reconciler, publicKeyPEM string) *httptest.Server {
	t.Helper()
	server, err := NewServer(reconciler, publicKeyPEM)
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postEvent(t *testing.T, url, body, signature string) *http.Response {
	t.Helper()
	req, err := http.NewRequest("POST", url+"/transaction", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestTransactionSignedAndSynced(t *testing.T) {
	key, publicKeyPEM := newSigningKey(t)
	reconciler := &fakeReconciler{}
	ts := newTestServer(t, reconciler, publicKeyPEM)

	resp := postEvent(t, ts.URL, createdEvent, sign(t, key, createdEvent))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, expected 200", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "synced" {
		t.Errorf("status body = %q, expected synced", body["status"])
	}

	if len(reconciler.synced) != 1 {
		t.Fatalf("reconciler saw %d transactions, expected 1", len(reconciler.synced))
	}
	got := reconciler.synced[0]
	if got.ID != "trans_a1" || got.Account != "acc_1" {
		t.Errorf("unexpected transaction: %+v", got)
	}
}

func TestMissingSignatureRejected(t *testing.T) {
	_, publicKeyPEM := newSigningKey(t)
	reconciler := &fakeReconciler{}
	ts := newTestServer(t, reconciler, publicKeyPEM)

	resp := postEvent(t, ts.URL, createdEvent, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, expected 401", resp.StatusCode)
	}
	if len(reconciler.synced) != 0 {
		t.Error("unsigned request must not reach the reconciler")
	}
}

func TestInvalidSignatureRejected(t *testing.T) {
	_, publicKeyPEM := newSigningKey(t)
	otherKey, _ := newSigningKey(t)
	reconciler := &fakeReconciler{}
	ts := newTestServer(t, reconciler, publicKeyPEM)

	// Signed with the wrong key.
	resp := postEvent(t, ts.URL, createdEvent, sign(t, otherKey, createdEvent))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, expected 401", resp.StatusCode)
	}

	// Valid base64 but not a signature at all.
	resp = postEvent(t, ts.URL, createdEvent, base64.StdEncoding.EncodeToString([]byte("nope")))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, expected 401", resp.StatusCode)
	}

	// Not even base64.
	resp = postEvent(t, ts.URL, createdEvent, "!!!not-base64!!!")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, expected 401", resp.StatusCode)
	}

	if len(reconciler.synced) != 0 {
		t.Error("forged requests must not reach the reconciler")
	}
}

func TestTamperedBodyRejected(t *testing.T) {
	key, publicKeyPEM := newSigningKey(t)
	reconciler := &fakeReconciler{}
	ts := newTestServer(t, reconciler, publicKeyPEM)

	tampered := strings.Replace(createdEvent, "-12.50", "-1.50", 1)
	resp := postEvent(t, ts.URL, tampered, sign(t, key, createdEvent))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, expected 401", resp.StatusCode)
	}
}

func TestNonTransactionEventIgnored(t *testing.T) {
	key, publicKeyPEM := newSigningKey(t)
	reconciler := &fakeReconciler{}
	ts := newTestServer(t, reconciler, publicKeyPEM)

	event := `{"webhook_type": "TOKEN", "webhook_code": "TOKEN_DELETED"}`
	resp := postEvent(t, ts.URL, event, sign(t, key, event))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, expected 200", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ignored" {
		t.Errorf("status body = %q, expected ignored", body["status"])
	}
	if len(reconciler.synced) != 0 {
		t.Error("ignored event must not reach the reconciler")
	}
}

func TestUnmappedAccountReturns404(t *testing.T) {
	key, publicKeyPEM := newSigningKey(t)
	reconciler := &fakeReconciler{
		err: fmt.Errorf("%w: acc_1", engine.ErrUnmappedAccount),
	}
	ts := newTestServer(t, reconciler, publicKeyPEM)

	resp := postEvent(t, ts.URL, createdEvent, sign(t, key, createdEvent))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, expected 404", resp.StatusCode)
	}
}

func TestSyncFailureReturns500(t *testing.T) {
	key, publicKeyPEM := newSigningKey(t)
	reconciler := &fakeReconciler{err: fmt.Errorf("budget file locked")}
	ts := newTestServer(t, reconciler, publicKeyPEM)

	resp := postEvent(t, ts.URL, createdEvent, sign(t, key, createdEvent))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, expected 500", resp.StatusCode)
	}
}

func TestNoPublicKeySkipsVerification(t *testing.T) {
	reconciler := &fakeReconciler{}
	ts := newTestServer(t, reconciler, "")

	resp := postEvent(t, ts.URL, createdEvent, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, expected 200 with verification disabled", resp.StatusCode)
	}
	if len(reconciler.synced) != 1 {
		t.Errorf("reconciler saw %d transactions, expected 1", len(reconciler.synced))
	}
}

func TestHealth(t *testing.T) {
	_, publicKeyPEM := newSigningKey(t)
	ts := newTestServer(t, &fakeReconciler{}, publicKeyPEM)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, expected 200", resp.StatusCode)
	}
}
