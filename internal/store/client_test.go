package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"invoicesync/pkg/models"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// fakeStore serves canned responses keyed by "METHOD path" and records every request.
func fakeStore(t *testing.T, routes map[string]func(w http.ResponseWriter)) (*Client, *[]recordedRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests []recordedRequest
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.EscapedPath(),
			Query:  r.URL.RawQuery,
			Body:   string(body),
		})
		handler, ok := routes[r.Method+" "+r.URL.EscapedPath()]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		handler(w)
	}))
	t.Cleanup(srv.Close)

	client := NewClientWithHTTP(ClientConfig{BaseURL: srv.URL + "/invoices"}, srv.Client())
	return client, &requests
}

func respond(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestClient_ReadAll(t *testing.T) {
	client, _ := fakeStore(t, map[string]func(http.ResponseWriter){
		"GET /invoices.json": respond(200, `{
			"inv1": {"store": "X", "amount": "10", "gst": "1", "paid": false, "comment": []},
			"junk": 42
		}`),
	})

	collection, err := client.ReadAll(context.Background())
	require.NoError(t, err)

	require.Len(t, collection, 1)
	assert.JSONEq(t, `"X"`, string(collection["inv1"]["store"]))
	assert.JSONEq(t, `"10"`, string(collection["inv1"]["amount"]))
}

func TestClient_ReadAll_NullIsEmpty(t *testing.T) {
	client, _ := fakeStore(t, map[string]func(http.ResponseWriter){
		"GET /invoices.json": respond(200, `null`),
	})

	collection, err := client.ReadAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, collection)
	assert.Empty(t, collection)
}

func TestClient_ReadAll_ErrorStatus(t *testing.T) {
	client, _ := fakeStore(t, map[string]func(http.ResponseWriter){
		"GET /invoices.json": respond(503, `{"error": "service unavailable"}`),
	})

	_, err := client.ReadAll(context.Background())
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "ReadAll", te.Op)
	assert.Equal(t, 503, te.Status)
	assert.Equal(t, "service unavailable", te.Reason)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.True(t, IsTransportError(err))
	assert.Equal(t, 503, StatusCode(err))
}

func TestClient_ReadAll_BadJSON(t *testing.T) {
	client, _ := fakeStore(t, map[string]func(http.ResponseWriter){
		"GET /invoices.json": respond(200, `{not json`),
	})

	_, err := client.ReadAll(context.Background())
	assert.ErrorIs(t, err, ErrDecode)
}

func TestClient_ReadAll_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(ClientConfig{BaseURL: url + "/invoices"})
	_, err := client.ReadAll(context.Background())

	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Equal(t, 0, StatusCode(err))
}

func TestClient_ReadOne(t *testing.T) {
	client, _ := fakeStore(t, map[string]func(http.ResponseWriter){
		"GET /invoices/inv1.json": respond(200, `{"store": "Acme"}`),
		"GET /invoices/gone.json": respond(200, `null`),
	})

	record, err := client.ReadOne(context.Background(), "inv1")
	require.NoError(t, err)
	assert.JSONEq(t, `"Acme"`, string(record["store"]))

	_, err = client.ReadOne(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, IsTransportError(err))
}

func TestClient_PatchField(t *testing.T) {
	client, requests := fakeStore(t, map[string]func(http.ResponseWriter){
		"PATCH /invoices/inv1.json": respond(200, `{}`),
	})

	err := client.PatchField(context.Background(), "inv1", models.FieldAmount, decimal.RequireFromString("10.50"))
	require.NoError(t, err)

	require.Len(t, *requests, 1)
	assert.Equal(t, http.MethodPatch, (*requests)[0].Method)
	assert.JSONEq(t, `{"amount": 10.5}`, (*requests)[0].Body)
}

func TestClient_PatchField_RawComments(t *testing.T) {
	client, requests := fakeStore(t, map[string]func(http.ResponseWriter){
		"PATCH /invoices/inv1.json": respond(200, `{}`),
	})

	value := []json.RawMessage{json.RawMessage(`{"text":"a","timestamp":"t"}`)}
	require.NoError(t, client.PatchField(context.Background(), "inv1", models.FieldComment, value))
	assert.JSONEq(t, `{"comment": [{"text": "a", "timestamp": "t"}]}`, (*requests)[0].Body)
}

func TestClient_PatchField_EscapesID(t *testing.T) {
	client, requests := fakeStore(t, map[string]func(http.ResponseWriter){})

	err := client.PatchField(context.Background(), "a b", models.FieldPaid, true)
	require.Error(t, err)
	assert.Equal(t, "/invoices/a%20b.json", (*requests)[0].Path)
}

func TestClient_CreateRecord(t *testing.T) {
	client, requests := fakeStore(t, map[string]func(http.ResponseWriter){
		"POST /invoices.json": respond(200, `{"name": "-Nabc"}`),
	})

	record := &models.Record{Store: "Acme", InvoiceNumber: "NEW-1", Amount: decimal.Zero, GST: decimal.Zero}
	id, err := client.CreateRecord(context.Background(), record)
	require.NoError(t, err)

	assert.Equal(t, "-Nabc", id)
	assert.JSONEq(t, `{"store": "Acme", "invoiceNumber": "NEW-1", "amount": 0, "gst": 0, "paid": false, "comment": []}`, (*requests)[0].Body)
}

func TestClient_CreateRecord_MissingName(t *testing.T) {
	client, _ := fakeStore(t, map[string]func(http.ResponseWriter){
		"POST /invoices.json": respond(200, `{}`),
	})

	_, err := client.CreateRecord(context.Background(), &models.Record{})
	assert.ErrorIs(t, err, ErrDecode)
}

func TestClient_DeleteRecord(t *testing.T) {
	client, requests := fakeStore(t, map[string]func(http.ResponseWriter){
		"DELETE /invoices/inv1.json": respond(200, `null`),
	})

	require.NoError(t, client.DeleteRecord(context.Background(), "inv1"))
	assert.Equal(t, http.MethodDelete, (*requests)[0].Method)

	err := client.DeleteRecord(context.Background(), "other")
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Equal(t, 404, StatusCode(err))
}

func TestClient_AuthToken(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("auth")
		_, _ = io.WriteString(w, `null`)
	}))
	defer srv.Close()

	client := NewClientWithHTTP(ClientConfig{BaseURL: srv.URL + "/invoices/", AuthToken: "s3cr&t"}, srv.Client())
	_, err := client.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s3cr&t", query)
}

func TestNewClientWithHTTP_LeavesCallerClientAlone(t *testing.T) {
	shared := &http.Client{Timeout: 5 * time.Second}

	client := NewClientWithHTTP(ClientConfig{BaseURL: "https://db.example.com/invoices", Timeout: time.Minute}, shared)
	assert.Equal(t, 5*time.Second, shared.Timeout)
	assert.Equal(t, time.Minute, client.httpClient.Timeout)

	unset := &http.Client{}
	client = NewClientWithHTTP(ClientConfig{BaseURL: "https://db.example.com/invoices"}, unset)
	assert.Zero(t, unset.Timeout)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
}
