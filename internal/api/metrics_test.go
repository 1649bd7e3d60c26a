package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func TestRouteLabelUsesPattern(t *testing.T) {
	var labels []string

	r := chi.NewRouter()
	r.Post("/v1/challenges/{key}/claim", func(w http.ResponseWriter, r *http.Request) {
		labels = append(labels, routeLabel(r))
	})

	for _, key := range []string{"monthly_start", "bronze_badge", "anything-at-all"} {
		req := httptest.NewRequest(http.MethodPost, "/v1/challenges/"+key+"/claim", nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	// Every key collapses into one label
	assert.Equal(t, []string{
		"/v1/challenges/{key}/claim",
		"/v1/challenges/{key}/claim",
		"/v1/challenges/{key}/claim",
	}, labels)
}

func TestRouteLabelFallsBackToPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	assert.Equal(t, "/health", routeLabel(req))
}
