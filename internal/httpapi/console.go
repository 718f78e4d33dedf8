package httpapi

import (
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"schoolinfo/internal/apperr"
)

// console serves the static pages of the browser console. It runs after the
// portal guard, so protected sections only ever reach here for the right role.
func (s *Server) console(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.AbortWithStatusJSON(http.StatusNotFound, apperr.NewBody("route not found", nil))
		return
	}
	root := os.DirFS(s.cfg.WebDir)
	name, ok := resolvePage(root, c.Request.URL.Path)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, apperr.NewBody("route not found", nil))
		return
	}
	http.ServeFileFS(c.Writer, c.Request, root, name)
}

// resolvePage maps a URL path onto a file: the file itself, its index.html,
// or a sibling "<path>.html".
func resolvePage(root fs.FS, urlPath string) (string, bool) {
	clean := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if clean == "" {
		clean = "."
	}
	candidates := []string{clean, path.Join(clean, "index.html"), clean + ".html"}
	for _, name := range candidates {
		if !fs.ValidPath(name) {
			continue
		}
		info, err := fs.Stat(root, name)
		if err == nil && !info.IsDir() {
			return name, true
		}
	}
	return "", false
}
