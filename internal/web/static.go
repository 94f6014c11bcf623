package web

import (
	"net/http"
	"path"
)

// Static serves files below dir for GET and HEAD requests. Requests for
// files that do not exist fall through to the next handler.
func Static(dir string) Middleware {
	root := http.Dir(dir)
	files := http.FileServer(root)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			if Err(r) != nil || !servable(root, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			files.ServeHTTP(w, r)
		})
	}
}

// servable reports whether name is a file, or a directory with an index page
func servable(root http.Dir, name string) bool {
	name = path.Clean("/" + name)

	f, err := root.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return false
	}
	if !st.IsDir() {
		return true
	}

	index, err := root.Open(path.Join(name, "index.html"))
	if err != nil {
		return false
	}
	index.Close()
	return true
}
