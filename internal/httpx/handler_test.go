package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogRoutesWithoutListener(t *testing.T) {
	// A deployment without the catalog collaborator wires a nil listener;
	// its routes must refuse cleanly instead of panicking.
	router := NewRouter(NewHandler(nil, nil, nil, nil))

	cases := []struct {
		name, path, body string
	}{
		{"restock", "/internal/catalog/prod_a/restock", `{"delta": 5}`},
		{"price change", "/internal/catalog/prod_a/price", `{"price": 9.5}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body))
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusServiceUnavailable, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, "not_configured", resp.Error)
		})
	}
}
