// Live stats exposition
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package stats

import (
	"encoding/json"
	"net/http"

	// Registers live-updating chart handlers on http.DefaultServeMux,
	// giving operators a /debug/charts view of the process's runtime
	// metrics alongside the driver's own /stats endpoint below.
	_ "github.com/mkevac/debugcharts"
)

// Server serves the current Stats value as JSON, alongside the
// debugcharts handlers, for operators watching a running generator or
// forwarder. It is optional: callers that never call Serve get none of
// this.
type Server struct {
	get func() Stats
}

// NewServer returns a Server that reports whatever get returns at request
// time.
func NewServer(get func() Stats) *Server {
	return &Server{get: get}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.get())
}

// Serve starts an HTTP server on addr exposing /stats (this driver's
// counters) and /debug/charts (debugcharts' live runtime metrics). It
// blocks until the server stops, so callers run it in its own goroutine.
func (s *Server) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", s.handleStats)
	mux.Handle("/debug/charts/", http.DefaultServeMux)

	return http.ListenAndServe(addr, mux)
}
