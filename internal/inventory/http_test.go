package inventory

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/domain"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/httpapi"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage/memory"

	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := NewService(memory.NewProductStore(), zap.NewNop(), testTracer)
	mux := http.NewServeMux()
	NewAPI(svc, zap.NewNop()).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var raw json.RawMessage
	_ = json.NewDecoder(resp.Body).Decode(&raw)
	return resp, raw
}

func TestProductLifecycle(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/products", `{"name":"Widget","price":100,"quantity":5}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d, body %s", resp.StatusCode, body)
	}
	var created domain.Product
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.Name != "Widget" || created.Quantity != 5 {
		t.Fatalf("created = %+v", created)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/products/"+created.ID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodPut, srv.URL+"/products/"+created.ID, `{"name":"Widget","price":100,"quantity":2}`)
	var updated domain.Product
	_ = json.Unmarshal(body, &updated)
	if resp.StatusCode != http.StatusOK || updated.Quantity != 2 {
		t.Fatalf("update = %d %+v", resp.StatusCode, updated)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/products", "")
	var list []domain.Product
	_ = json.Unmarshal(body, &list)
	if resp.StatusCode != http.StatusOK || len(list) != 1 {
		t.Fatalf("list = %d %+v", resp.StatusCode, list)
	}

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/products/"+created.ID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/products/"+created.ID, "")
	var errBody httpapi.ErrorBody
	_ = json.Unmarshal(body, &errBody)
	if resp.StatusCode != http.StatusNotFound || errBody.Detail != "Product not found" {
		t.Fatalf("get after delete = %d %+v", resp.StatusCode, errBody)
	}
}

func TestProductErrors(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name, method, path, body string
		want                     int
	}{
		{"list empty", http.MethodGet, "/products", "", http.StatusOK},
		{"bad json", http.MethodPost, "/products", `{`, http.StatusBadRequest},
		{"missing fields", http.MethodPost, "/products", `{"name":"Widget"}`, http.StatusBadRequest},
		{"negative stock", http.MethodPost, "/products", `{"name":"Widget","price":1,"quantity":-1}`, http.StatusBadRequest},
		{"update unknown", http.MethodPut, "/products/nope", `{"name":"Widget","price":1,"quantity":1}`, http.StatusNotFound},
		{"delete unknown", http.MethodDelete, "/products/nope", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := doJSON(t, tc.method, srv.URL+tc.path, tc.body)
			if resp.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, tc.want, body)
			}
		})
	}
}

func TestListEmptyReturnsArray(t *testing.T) {
	srv := newTestServer(t)
	_, body := doJSON(t, http.MethodGet, srv.URL+"/products", "")
	if strings.TrimSpace(string(body)) != "[]" {
		t.Fatalf("body = %s, want []", body)
	}
}
