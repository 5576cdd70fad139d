// Package testutil provides common test utilities and helpers for CookFlow
// tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/BTreeMap/CookFlow/internal/api"
	"github.com/BTreeMap/CookFlow/internal/flow"
	"github.com/BTreeMap/CookFlow/internal/models"
	"github.com/BTreeMap/CookFlow/internal/retrieval"
	"github.com/BTreeMap/CookFlow/internal/store"
)

// NewTestServer creates a test API server with in-memory dependencies. The
// flow runs without a model client, so handlers answer from keyword rules
// and the built-in corpus.
func NewTestServer() (*api.Server, store.Store) {
	st := store.NewInMemoryStore()
	gate := retrieval.NewGate(retrieval.NewMemoryIndex(retrieval.DefaultCorpus()))
	orch := flow.NewOrchestrator(st, nil, gate, nil)
	return api.NewServer(st, orch), st
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it
// doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, msg string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", msg, expected, actual)
	}
}

// AssertJSONResponse decodes a JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with an optional JSON body for
// testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// AssertTurnCount validates the recorded turn count of a stored session.
func AssertTurnCount(t *testing.T, st store.Store, sessionID string, expected int, msg string) {
	t.Helper()
	state, err := st.LoadConversationState(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("%s: failed to load session %s: %v", msg, sessionID, err)
	}
	if state == nil {
		t.Fatalf("%s: session %s does not exist", msg, sessionID)
	}
	if state.TurnCount != expected {
		t.Errorf("%s: expected %d turns, got %d", msg, expected, state.TurnCount)
	}
}

// SeedTestData adds sample sessions to the store for testing: one with an
// established diet and history, one freshly created.
func SeedTestData(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()

	alice := models.NewConversationState("alice")
	alice.Constraints.Diet = []string{"vegan"}
	alice.Constraints.MealType = []string{"breakfast"}
	alice.AppendTurn(models.RoleUser, "i'm vegan and it's breakfast")
	alice.AppendTurn(models.RoleAssistant, "Got it, I'll keep that in mind.")
	alice.TurnCount = 1
	if err := st.SaveConversationState(ctx, alice, 0); err != nil {
		t.Fatalf("failed to seed session alice: %v", err)
	}

	bob := models.NewConversationState("bob")
	if err := st.SaveConversationState(ctx, bob, 0); err != nil {
		t.Fatalf("failed to seed session bob: %v", err)
	}
}

// AssertConstraintSetEquals compares two constraint sets for equality in
// tests.
func AssertConstraintSetEquals(t *testing.T, expected, actual models.ConstraintSet, msg string) {
	t.Helper()
	if !reflect.DeepEqual(expected.Diet, actual.Diet) {
		t.Errorf("%s: diet mismatch\nexpected: %v\nactual: %v", msg, expected.Diet, actual.Diet)
	}
	if !reflect.DeepEqual(expected.MealType, actual.MealType) {
		t.Errorf("%s: meal type mismatch\nexpected: %v\nactual: %v", msg, expected.MealType, actual.MealType)
	}
	if !reflect.DeepEqual(expected.CookingMethod, actual.CookingMethod) {
		t.Errorf("%s: cooking method mismatch\nexpected: %v\nactual: %v", msg, expected.CookingMethod, actual.CookingMethod)
	}
	if !reflect.DeepEqual(expected.Available, actual.Available) {
		t.Errorf("%s: available ingredients mismatch\nexpected: %v\nactual: %v", msg, expected.Available, actual.Available)
	}
	if !reflect.DeepEqual(expected.Excluded, actual.Excluded) {
		t.Errorf("%s: excluded ingredients mismatch\nexpected: %v\nactual: %v", msg, expected.Excluded, actual.Excluded)
	}
	if expected.InventoryDeclared != actual.InventoryDeclared {
		t.Errorf("%s: inventory declared mismatch: expected %v, got %v", msg, expected.InventoryDeclared, actual.InventoryDeclared)
	}
}

// MustMarshalJSON marshals an object to JSON and fails the test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails the test on
// error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
