package powerbi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prihlasky/admissions-cli/internal/model"
)

func testQuery() *QueryRequest {
	return BuildQuery("Škola", BuildSchema(model.DefaultMetricDefinitions()), QueryOptions{})
}

func TestExecute_SendsResourceKey(t *testing.T) {
	var gotKey, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-PowerBI-ResourceKey")
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `{"results":[{"result":{"data":{"dsr":{"DS":[]}}}}]}`)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{Endpoint: srv.URL, ResourceKey: "secret-key"})
	_, err := c.Execute(context.Background(), testQuery())

	require.NoError(t, err)
	assert.Equal(t, "secret-key", gotKey)
	assert.Equal(t, "synchronous=true", gotQuery)
}

func TestExecute_AuthRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{Endpoint: srv.URL, ResourceKey: "stale"})
	_, err := c.Execute(context.Background(), testQuery())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuth), "401 must map to the auth sentinel")
}

func TestExecute_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{Endpoint: srv.URL})
	_, err := c.Execute(context.Background(), testQuery())

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrAuth), "a 500 is an ordinary per-entity failure")
}

func TestFetchRows_DecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"results":[{"result":{"data":{"dsr":{"DS":[{"PH":[{"DM0":[
			{"S":[{"N":"G0","T":1}],"C":["Gymnázium"]}
		]}]}]}}}}]}`)
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{Endpoint: srv.URL})
	rows, err := c.FetchRows(context.Background(), testQuery())

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Gymnázium", rows[0][0])
}
