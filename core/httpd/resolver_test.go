package httpd

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	write := func(rel, content string) {
		full := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	write("page.tpl", "template page")
	write("docs/index.tpl", "docs index template")
	write("legacy/index.html", "legacy index")
	write("static/data.txt", "plain data")
	write("logo.png", "png bytes")
	return root
}

func TestResolveTemplateByExactPath(t *testing.T) {
	r := Resolver{Root: newTestRoot(t), Ext: "tpl"}

	res := r.Resolve("/page.tpl")
	if res.Kind != ResolveTemplate {
		t.Fatalf("Expected template resolution, got kind %d", res.Kind)
	}
}

func TestResolveExtensionlessToTemplate(t *testing.T) {
	r := Resolver{Root: newTestRoot(t), Ext: "tpl"}

	res := r.Resolve("/page")
	if res.Kind != ResolveTemplate {
		t.Fatalf("Expected template resolution, got kind %d", res.Kind)
	}
	if filepath.Base(res.File) != "page.tpl" {
		t.Errorf("Expected page.tpl, got %s", res.File)
	}
}

func TestResolveDirectoryIndexTemplate(t *testing.T) {
	r := Resolver{Root: newTestRoot(t), Ext: "tpl"}

	res := r.Resolve("/docs")
	if res.Kind != ResolveTemplate {
		t.Fatalf("Expected template resolution, got kind %d", res.Kind)
	}
	if filepath.Base(res.File) != "index.tpl" {
		t.Errorf("Expected index.tpl, got %s", res.File)
	}
}

func TestResolveDirectoryIndexHTMLFallback(t *testing.T) {
	r := Resolver{Root: newTestRoot(t), Ext: "tpl"}

	res := r.Resolve("/legacy")
	if res.Kind != ResolveStatic {
		t.Fatalf("Expected static resolution, got kind %d", res.Kind)
	}
	if filepath.Base(res.File) != "index.html" {
		t.Errorf("Expected index.html, got %s", res.File)
	}
	if res.ContentType != "text/html" {
		t.Errorf("Expected text/html, got %s", res.ContentType)
	}
}

func TestResolveStaticFile(t *testing.T) {
	r := Resolver{Root: newTestRoot(t), Ext: "tpl"}

	res := r.Resolve("/static/data.txt")
	if res.Kind != ResolveStatic {
		t.Fatalf("Expected static resolution, got kind %d", res.Kind)
	}
	if res.ContentType != "text/plain" {
		t.Errorf("Expected text/plain, got %s", res.ContentType)
	}

	res = r.Resolve("/logo.png")
	if res.ContentType != "image/png" {
		t.Errorf("Expected image/png, got %s", res.ContentType)
	}
}

func TestResolveMiss(t *testing.T) {
	r := Resolver{Root: newTestRoot(t), Ext: "tpl"}

	if res := r.Resolve("/nope"); res.Kind != ResolveNotFound {
		t.Errorf("Expected miss, got kind %d", res.Kind)
	}
}

func TestResolveEscapeAttemptStaysInRoot(t *testing.T) {
	r := Resolver{Root: newTestRoot(t), Ext: "tpl"}

	// Traversal collapses back into the root; the probe either misses or
	// lands on an in-root resource, never outside.
	res := r.Resolve("/../../etc/passwd")
	if res.Kind != ResolveNotFound {
		t.Errorf("Expected traversal to miss, got kind %d (%s)", res.Kind, res.File)
	}
}
