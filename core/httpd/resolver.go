package httpd

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Resolution kinds, in probe order.
const (
	ResolveTemplate = iota // dynamic template resource, dispatched to the renderer
	ResolveStatic          // plain file, served byte for byte
	ResolveNotFound        // no probe matched
)

// Resolution is the outcome of resolving one request path against the
// document root.
type Resolution struct {
	Kind        int
	File        string // filesystem path of the matched resource
	ContentType string // for static files, derived from the extension
}

// Resolver maps request paths onto the document root via ordered probing.
type Resolver struct {
	Root string // document root
	Ext  string // template resource extension, without the dot
}

// Resolve probes for a request path, first match wins: the exact path as a
// template resource; for extensionless paths the template extension appended,
// then a directory index (index.<ext>, then index.html, through the same
// resolver); finally a plain static file. Anything else is a miss.
func (r *Resolver) Resolve(reqPath string) Resolution {
	file := filepath.Join(r.Root, filepath.FromSlash(path.Clean("/"+reqPath)))

	if strings.HasSuffix(file, "."+r.Ext) && isFile(file) {
		return Resolution{Kind: ResolveTemplate, File: file}
	}

	if path.Ext(reqPath) == "" {
		if withExt := file + "." + r.Ext; isFile(withExt) {
			return Resolution{Kind: ResolveTemplate, File: withExt}
		}
		if isDir(file) {
			if res := r.Resolve(path.Join(reqPath, "index."+r.Ext)); res.Kind != ResolveNotFound {
				return res
			}
			if res := r.Resolve(path.Join(reqPath, "index.html")); res.Kind != ResolveNotFound {
				return res
			}
		}
	}

	if isFile(file) {
		return Resolution{
			Kind:        ResolveStatic,
			File:        file,
			ContentType: mimeByExt(path.Ext(reqPath)),
		}
	}

	return Resolution{Kind: ResolveNotFound}
}

func isFile(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}

// mimeTypes maps file extensions to Content-Type values for static serving.
var mimeTypes = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".txt":  "text/plain",
	".xml":  "text/xml",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
}

func mimeByExt(ext string) string {
	if ct, ok := mimeTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return "application/octet-stream"
}
