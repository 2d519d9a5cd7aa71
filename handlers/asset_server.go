package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/camden-git/fieldsurvey/media"
)

const assetCacheDuration = 24 * time.Hour

// AssetServer serves stored media files. The request path below routePrefix
// is the asset's path relative to the store root, so a file saved at
// survey-images/1/abc.jpg is served at {routePrefix}/survey-images/1/abc.jpg.
// example usage in the router:
//
//	r.Get("/media/*", AssetServer(store, "/api/media"))
func AssetServer(store media.Store, routePrefix string) http.HandlerFunc {
	routePrefix = strings.TrimRight(routePrefix, "/") + "/"
	log.Printf("handlers: Serving media for '%s*'", routePrefix)

	return func(w http.ResponseWriter, r *http.Request) {
		relativePath := strings.TrimPrefix(r.URL.Path, routePrefix)
		if relativePath == "" || relativePath == r.URL.Path || strings.Contains(relativePath, "..") {
			http.Error(w, "Invalid asset path", http.StatusBadRequest)
			return
		}

		rc, info, err := store.Get(relativePath)
		switch {
		case errors.Is(err, media.ErrInvalidPath):
			http.Error(w, "Forbidden", http.StatusForbidden)
			log.Printf("SECURITY: Attempted asset access outside media store: Request='%s'", r.URL.Path)
			return
		case errors.Is(err, os.ErrNotExist):
			http.NotFound(w, r)
			return
		case err != nil:
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			log.Printf("handlers: Error opening asset %s: %v", relativePath, err)
			return
		}
		defer rc.Close()

		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(assetCacheDuration.Seconds())))
		w.Header().Set("Expires", time.Now().Add(assetCacheDuration).Format(http.TimeFormat))

		if rs, ok := rc.(io.ReadSeeker); ok {
			http.ServeContent(w, r, info.Name(), info.ModTime(), rs)
			return
		}
		if ct := mime.TypeByExtension(path.Ext(relativePath)); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		if _, err := io.Copy(w, rc); err != nil {
			log.Printf("handlers: Error streaming asset %s: %v", relativePath, err)
		}
	}
}
