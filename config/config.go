package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration. The document root and session
// database path are explicit values here rather than process-wide state, and
// are threaded into the servers at construction time.
type Config struct {
	HTTPAddr    string // listen address for the standalone HTTP backend
	FCGINetwork string // "tcp" or "unix"
	FCGIAddr    string // FastCGI listen address or socket path; empty disables
	DocRoot     string
	TemplateExt string // template resource extension, without the dot
	SessionPath string // handed to the session store collaborator
	ReadTimeout time.Duration
	MaxConns    int // per-listener connection cap, 0 for unlimited
	Env         string
}

// New loads configuration from flags, with environment overrides, and
// optionally merges a JSON config file named by -config.
func New() *Config {
	cfg := &Config{}
	var file string

	flag.StringVar(&cfg.HTTPAddr, "http-addr", ":8080", "HTTP listen address")
	flag.StringVar(&cfg.FCGINetwork, "fcgi-network", "tcp", "FastCGI listen network (tcp/unix)")
	flag.StringVar(&cfg.FCGIAddr, "fcgi-addr", "", "FastCGI listen address or socket path (empty disables)")
	flag.StringVar(&cfg.DocRoot, "doc-root", ".", "Document root for path resolution")
	flag.StringVar(&cfg.TemplateExt, "template-ext", "tpl", "Template resource extension")
	flag.StringVar(&cfg.SessionPath, "session-path", "", "Session store path")
	flag.DurationVar(&cfg.ReadTimeout, "read-timeout", 10*time.Second, "Bounded read timeout")
	flag.IntVar(&cfg.MaxConns, "max-conns", 0, "Max simultaneous connections per listener (0 = unlimited)")
	flag.StringVar(&cfg.Env, "env", "development", "Environment (development/production)")
	flag.StringVar(&file, "config", "", "Optional JSON config file")

	flag.Parse()

	if file != "" {
		m := NewManager()
		if err := m.LoadFromJSON(file); err == nil {
			cfg.applyManager(m)
		}
	}

	if v := os.Getenv("FASTGATE_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("FASTGATE_FCGI_ADDR"); v != "" {
		cfg.FCGIAddr = v
	}
	if v := os.Getenv("FASTGATE_DOC_ROOT"); v != "" {
		cfg.DocRoot = v
	}
	if v := os.Getenv("FASTGATE_MAX_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConns = n
		}
	}

	return cfg
}

// applyManager copies known keys from a loaded config file over the flag
// values.
func (c *Config) applyManager(m *Manager) {
	c.HTTPAddr = m.GetString("http.addr", c.HTTPAddr)
	c.FCGINetwork = m.GetString("fcgi.network", c.FCGINetwork)
	c.FCGIAddr = m.GetString("fcgi.addr", c.FCGIAddr)
	c.DocRoot = m.GetString("doc.root", c.DocRoot)
	c.TemplateExt = m.GetString("template.ext", c.TemplateExt)
	c.SessionPath = m.GetString("session.path", c.SessionPath)
	c.ReadTimeout = m.GetDuration("read.timeout", c.ReadTimeout)
	c.MaxConns = m.GetInt("max.conns", c.MaxConns)
	c.Env = m.GetString("env", c.Env)
}
