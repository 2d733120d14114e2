package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestHandleBalanceHistory_RejectsTooManyPairs(t *testing.T) {
	s := New(nil, zap.NewNop().Sugar())

	pairs := make([]pairDTO, 101)
	body := `{"address_asset_pairs":[`
	for i := range pairs {
		if i > 0 {
			body += ","
		}
		body += `{"address":"A","asset_id":"WAVES"}`
	}
	body += `]}`

	req := httptest.NewRequest(http.MethodPost, "/balance_history", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetDistribution_InvalidHeight(t *testing.T) {
	s := New(nil, zap.NewNop().Sugar())

	req := httptest.NewRequest(http.MethodGet, "/asset_distribution/WAVES/not-a-number", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
