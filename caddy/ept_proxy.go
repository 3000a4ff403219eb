package caddy

import (
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/caddyserver/caddy/v2"
	"github.com/caddyserver/caddy/v2/caddyconfig/caddyfile"
	"github.com/caddyserver/caddy/v2/caddyconfig/httpcaddyfile"
	"github.com/caddyserver/caddy/v2/modules/caddyhttp"
	"github.com/ept-io/go-ept/ept"
	"go.uber.org/zap"
	_ "gocloud.dev/blob/s3blob"
)

func init() {
	caddy.RegisterModule(Middleware{})
	httpcaddyfile.RegisterHandlerDirective("ept_proxy", parseCaddyfile)
}

// Middleware embeds an ept.Server as a Caddy HTTP handler, the way the
// teacher embeds its own tile server behind "pmtiles_proxy". Every EPT
// dataset root is resolved through RootTemplate, a printf pattern with
// one %s for the dataset name, so one Middleware instance serves every
// archive under a backing host without per-archive configuration.
type Middleware struct {
	RootTemplate    string `json:"root_template,omitempty"`
	CORS            string `json:"cors,omitempty"`
	TileConcurrency int    `json:"tile_concurrency,omitempty"`
	logger          *zap.Logger
	server          *ept.Server
}

// CaddyModule returns the Caddy module information.
func (Middleware) CaddyModule() caddy.ModuleInfo {
	return caddy.ModuleInfo{
		ID:  "http.handlers.ept_proxy",
		New: func() caddy.Module { return new(Middleware) },
	}
}

func (m *Middleware) Provision(ctx caddy.Context) error {
	m.logger = ctx.Logger()
	stdLogger := log.New(io.Discard, "", log.Ldate)
	m.server = ept.NewServer(stdLogger, m.TileConcurrency, m.RootTemplate, m.CORS)
	return nil
}

func (m *Middleware) Validate() error {
	if m.TileConcurrency < 0 {
		return fmt.Errorf("tile_concurrency must not be negative")
	}
	return nil
}

func (m Middleware) ServeHTTP(w http.ResponseWriter, r *http.Request, next caddyhttp.Handler) error {
	m.server.Handler().ServeHTTP(w, r)
	m.logger.Info("ept_proxy request", zap.String("path", r.URL.Path))
	return next.ServeHTTP(w, r)
}

func (m *Middleware) UnmarshalCaddyfile(d *caddyfile.Dispenser) error {
	for d.Next() {
		for nesting := d.Nesting(); d.NextBlock(nesting); {
			switch d.Val() {
			case "root_template":
				if !d.Args(&m.RootTemplate) {
					return d.ArgErr()
				}
			case "cors":
				if !d.Args(&m.CORS) {
					return d.ArgErr()
				}
			case "tile_concurrency":
				var raw string
				if !d.Args(&raw) {
					return d.ArgErr()
				}
				var n int
				if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
					return d.ArgErr()
				}
				m.TileConcurrency = n
			}
		}
	}
	return nil
}

func parseCaddyfile(h httpcaddyfile.Helper) (caddyhttp.MiddlewareHandler, error) {
	var m Middleware
	err := m.UnmarshalCaddyfile(h.Dispenser)
	return m, err
}

var (
	_ caddy.Provisioner           = (*Middleware)(nil)
	_ caddy.Validator             = (*Middleware)(nil)
	_ caddyhttp.MiddlewareHandler = (*Middleware)(nil)
	_ caddyfile.Unmarshaler       = (*Middleware)(nil)
)
