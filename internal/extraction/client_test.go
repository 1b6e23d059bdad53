package extraction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL}, zaptest.NewLogger(t)), srv
}

// TestExtractHappyPath tests a well-formed service response
func TestExtractHappyPath(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/extract/intents", r.URL.Path)

		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Meter reading", req.Subject)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"intents": [
				{"name": "MeterReadingSubmission", "confidence": 0.93, "requires_auth": true},
				{"name": "TariffQuestion", "confidence": 0.71}
			],
			"entities": {"meter_reading_value": "5321", "contract_number": "AB123"},
			"overall_confidence": 0.87
		}`))
	})

	res, err := client.Extract(context.Background(), Request{
		Subject: "Meter reading",
		Body:    "My reading is 5321, contract AB123",
		Sender:  "customer@example.com",
	})
	require.NoError(t, err)

	require.Len(t, res.Intents, 2)
	assert.Equal(t, "MeterReadingSubmission", res.Intents[0].Name)
	assert.True(t, res.Intents[0].RequiresAuth)
	assert.InDelta(t, 0.93, res.Intents[0].Confidence, 1e-9)
	assert.Equal(t, "5321", res.Entities.EntityString("meter_reading_value"))
	assert.InDelta(t, 0.87, res.OverallConfidence, 1e-9)
	assert.Zero(t, res.Dropped)
}

// TestExtractDropsMalformedIntents tests per-entry tolerance
func TestExtractDropsMalformedIntents(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"intents": [
				{"name": "TariffQuestion", "confidence": 0.8},
				{"confidence": 0.9},
				{"name": "", "confidence": 0.5},
				"not-an-object"
			],
			"entities": {}
		}`))
	})

	res, err := client.Extract(context.Background(), Request{})
	require.NoError(t, err)
	assert.Len(t, res.Intents, 1)
	assert.Equal(t, 3, res.Dropped)
}

// TestExtractParseError tests the non-JSON body classification
func TestExtractParseError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>gateway error</html>"))
	})

	_, err := client.Extract(context.Background(), Request{})
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}

// TestExtractSchemaError tests the missing-intents classification
func TestExtractSchemaError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"entities": {}}`))
	})

	_, err := client.Extract(context.Background(), Request{})
	var serr *SchemaError
	assert.ErrorAs(t, err, &serr)
}

// TestExtractServerError tests the non-2xx path
func TestExtractServerError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := client.Extract(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

// TestExtractEmptyEntities tests nil entity objects normalize to an
// empty map
func TestExtractEmptyEntities(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"intents": []}`))
	})

	res, err := client.Extract(context.Background(), Request{})
	require.NoError(t, err)
	assert.NotNil(t, res.Entities)
	assert.Empty(t, res.Intents)
}
