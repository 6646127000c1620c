package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewPageBase(t *testing.T) {
	cases := []struct {
		baseURL  string
		basePath string
		path     string
		href     string
	}{
		{"", "", "", ""},
		{"", "/", "", ""},
		{"", "fold", "/fold", "/fold/"},
		{"", "/fold/", "/fold", "/fold/"},
		{"https://example.com", "", "", "https://example.com/"},
		{"https://example.com/", "fold", "/fold", "https://example.com/fold/"},
		{"https://example.com/base", "/x", "/x", "https://example.com/base/x/"},
	}
	for _, tc := range cases {
		got := newPageBase(tc.baseURL, tc.basePath)
		if got.path != tc.path || got.href != tc.href {
			t.Fatalf("newPageBase(%q, %q) = %+v, want path %q href %q", tc.baseURL, tc.basePath, got, tc.path, tc.href)
		}
	}
}

func TestPageBaseRender(t *testing.T) {
	page := []byte("<head>" + baseHrefPlaceholder + "</head>")
	if got := string(newPageBase("", "").render(page)); got != "<head></head>" {
		t.Fatalf("render without base = %q", got)
	}
	got := string(newPageBase("https://example.com", "/a&b").render(page))
	if !strings.Contains(got, `<base href="https://example.com/a&amp;b/" />`) {
		t.Fatalf("render with base = %q", got)
	}
}

func TestPageBaseMount(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	})
	h := newPageBase("", "/fold").mount(inner)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fold/api/contexts", nil))
	if rec.Body.String() != "/api/contexts" {
		t.Fatalf("expected prefix to be stripped, got %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fold", nil))
	if rec.Code != http.StatusTemporaryRedirect || rec.Header().Get("Location") != "/fold/" {
		t.Fatalf("expected redirect to /fold/, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 outside the prefix, got %d", rec.Code)
	}
}
