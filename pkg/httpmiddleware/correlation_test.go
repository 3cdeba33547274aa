package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

func TestCorrelationID(t *testing.T) {
	var headerID, contextID string
	handler := CorrelationID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headerID = r.Header.Get(logger.CorrelationIDHeader)
		contextID = logger.GetCorrelationIDFromContext(r.Context())
	}))

	testCases := []struct {
		name     string
		incoming string
	}{
		{name: "no header"},
		{name: "valid client uuid is replaced", incoming: uuid.New().String()},
		{name: "invalid id is replaced", incoming: "not-a-uuid"},
		{name: "nil uuid is replaced", incoming: "00000000-0000-0000-0000-000000000000"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tc.incoming != "" {
				req.Header.Set(logger.CorrelationIDHeader, tc.incoming)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.NotEmpty(t, headerID)
			assert.NotEqual(t, tc.incoming, headerID)
			assert.Equal(t, headerID, contextID)
			assert.Equal(t, headerID, rec.Header().Get(logger.CorrelationIDHeader))
			_, err := uuid.Parse(headerID)
			assert.NoError(t, err)
		})
	}

	t.Run("unique per request", func(t *testing.T) {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		first := headerID
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEqual(t, first, headerID)
	})
}
