package decoder

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/pipelined/phonod/input"
)

var registry = struct {
	sync.Mutex
	plugins []Plugin
}{}

// Register adds a plugin; bundled plugins register from their package init.
func Register(p Plugin) {
	registry.Lock()
	defer registry.Unlock()
	registry.plugins = append(registry.plugins, p)
}

// Plugins returns the registered plugins in registration order.
func Plugins() []Plugin {
	registry.Lock()
	defer registry.Unlock()
	return append([]Plugin(nil), registry.plugins...)
}

// ForStream selects a plugin for a stream: exact MIME match first, then
// URI suffix.
func ForStream(s input.Stream) *Plugin {
	mime := s.MIME()
	// parameters like "; charset=" do not matter for routing
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	suffix := strings.TrimPrefix(strings.ToLower(filepath.Ext(s.URI())), ".")

	registry.Lock()
	defer registry.Unlock()
	if mime != "" {
		for i := range registry.plugins {
			for _, m := range registry.plugins[i].MIMETypes {
				if m == mime {
					return &registry.plugins[i]
				}
			}
		}
	}
	if suffix != "" {
		for i := range registry.plugins {
			for _, sfx := range registry.plugins[i].Suffixes {
				if sfx == suffix {
					return &registry.plugins[i]
				}
			}
		}
	}
	return nil
}
