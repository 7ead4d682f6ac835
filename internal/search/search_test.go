package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/custom_stores/internal/models"
)

type recorded struct {
	method string
	path   string
	body   string
}

func newFakeES(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Index, *[]recorded) {
	t.Helper()

	var (
		mu    sync.Mutex
		calls []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls = append(calls, recorded{method: r.Method, path: r.URL.Path, body: string(b)})
		mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	return &Index{Client: client, Name: "products"}, &calls
}

func TestIndex_Search(t *testing.T) {
	id1, id2 := uuid.New(), uuid.New()

	ix, calls := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"hits": map[string]any{
				"total": map[string]any{"value": 2},
				"hits": []map[string]any{
					{"_id": id1.String(), "_source": map[string]any{"id": id1.String()}},
					{"_id": id2.String(), "_source": map[string]any{}},
				},
			},
		})
	})

	total, ids, err := ix.Search(context.Background(), "black shirt", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, []uuid.UUID{id1, id2}, ids)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.True(t, strings.HasSuffix(call.path, "/products/_search"))
	assert.Contains(t, call.body, `"multi_match"`)
	assert.Contains(t, call.body, `"black shirt"`)
}

func TestIndex_IndexProduct(t *testing.T) {
	ix, calls := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	p := &models.Product{
		Name:          "Shirt",
		Description:   "Cotton",
		DiscountPrice: decimal.RequireFromString("99.50"),
		InStock:       true,
	}
	p.ID = uuid.New()

	require.NoError(t, ix.IndexProduct(context.Background(), p))
	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, http.MethodPut, call.method)
	assert.Equal(t, "/products/_doc/"+p.ID.String(), call.path)
	assert.Contains(t, call.body, `"discount_price":"99.5"`)
}

func TestIndex_DeleteProduct_NotFoundIsFine(t *testing.T) {
	ix, _ := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"result":"not_found"}`))
	})

	assert.NoError(t, ix.DeleteProduct(context.Background(), uuid.New()))
}

func TestIndex_Search_ErrorStatus(t *testing.T) {
	ix, _ := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad query"}`))
	})

	_, _, err := ix.Search(context.Background(), "x", 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
