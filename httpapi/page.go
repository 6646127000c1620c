package httpapi

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"io/fs"
	"net/http"
	"strings"
	"time"
)

//go:embed assets/*
var embeddedAssets embed.FS

// pageAssets holds the demo page and the shim, rooted at assets/.
var pageAssets = func() fs.FS {
	sub, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		return embeddedAssets
	}
	return sub
}()

var assetsModTime = time.Now()

const baseHrefPlaceholder = "<!-- BASE_HREF -->"

// pageBase is where the UI lives as seen by the browser. path is either
// empty or "/x" without a trailing slash; href is empty or ends in "/".
type pageBase struct {
	path string
	href string
}

func newPageBase(baseURL, basePath string) pageBase {
	path := strings.TrimRight(strings.TrimSpace(basePath), "/")
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	origin := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	href := origin + path
	if href != "" {
		href += "/"
	}
	return pageBase{path: path, href: href}
}

// mount serves h below the base path and redirects the bare prefix to its
// slash form so relative asset and API URLs resolve.
func (b pageBase) mount(h http.Handler) http.Handler {
	if b.path == "" {
		return h
	}
	prefix := b.path
	root := http.NewServeMux()
	root.Handle(prefix+"/", http.StripPrefix(prefix, h))
	root.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != prefix {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, prefix+"/", http.StatusTemporaryRedirect)
	})
	return root
}

// render fills the base href placeholder of an html page.
func (b pageBase) render(page []byte) []byte {
	tag := ""
	if b.href != "" {
		tag = fmt.Sprintf(`<base href="%s" />`, html.EscapeString(b.href))
	}
	return bytes.ReplaceAll(page, []byte(baseHrefPlaceholder), []byte(tag))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	page, err := fs.ReadFile(pageAssets, "index.html")
	if err != nil {
		http.Error(w, "index not found", http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, "index.html", assetsModTime, bytes.NewReader(s.base.render(page)))
}

func assetHandler() http.Handler {
	return http.StripPrefix("/assets/", http.FileServer(http.FS(pageAssets)))
}
