// Package mockapi is a local stand-in for the workspace backend.
//
// It serves the chat socket at /api/chat/ws with a scripted agent that
// speaks the same line protocol as the real one, plus the run, task and
// pipeline REST routes and the run event stream over in-memory fixtures.
// It backs the package tests of the client stack and `arc serve-mock`.
//
//	srv := mockapi.New(cfg, logger, prometheus.NewRegistry())
//	ts := httptest.NewServer(srv.Handler())
//	defer ts.Close()
package mockapi
