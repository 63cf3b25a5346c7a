package profiling

import (
	"net/http"
	"net/http/pprof"
)

// RegisterHandlers mounts the standard pprof endpoints under /debug/pprof/
// on mux, for on-demand profiling of a long sweep.
func RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}
