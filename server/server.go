// Package server is the HTTP front end of the counter
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyclopcam/gatecount/server/config"
	"github.com/cyclopcam/gatecount/server/countdb"
	"github.com/cyclopcam/gatecount/server/pipeline"
	"github.com/cyclopcam/gatecount/server/report"
	"github.com/cyclopcam/logs"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

type Server struct {
	Log              logs.Log
	ShutdownComplete chan error // When Shutdown() is complete, this channel receives the result

	config     *config.Config
	pipeline   *pipeline.Pipeline
	countDB    *countdb.CountDB // May be nil
	exporter   *report.Exporter // May be nil
	signalIn   chan os.Signal
	httpServer *http.Server
	httpRouter *httprouter.Router
	wsUpgrader websocket.Upgrader
}

// NewServer creates the HTTP server. countDB and exporter are optional.
func NewServer(log logs.Log, cfg *config.Config, pipe *pipeline.Pipeline, countDB *countdb.CountDB, exporter *report.Exporter) (*Server, error) {
	s := &Server{
		Log:              log,
		ShutdownComplete: make(chan error, 1),
		config:           cfg,
		pipeline:         pipe,
		countDB:          countDB,
		exporter:         exporter,
		wsUpgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	if err := s.setupHttpRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// addr example: ":8080"
func (s *Server) ListenHTTP(addr string) error {
	s.Log.Infof("Listening on %v", addr)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.httpRouter,
	}
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) ListenForKillSignals() {
	s.Log.Infof("ListenForKillSignals starting")
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig, ok := <-s.signalIn
		if ok {
			s.Log.Infof("Received OS signal '%v'. ListenForKillSignals will exit after shutdown", sig.String())
			s.Shutdown()
		} else {
			// Shutdown() was called by something other than ourselves, and it closed signalIn
			s.Log.Infof("signalIn closed. ListenForKillSignals will exit now")
		}
	}()
}

// Shutdown stops the HTTP server and the pipeline, and finishes the open session
func (s *Server) Shutdown() {
	s.Log.Infof("Shutdown")
	if s.signalIn != nil {
		signal.Stop(s.signalIn)
		close(s.signalIn)
	}
	var err error
	if s.httpServer != nil {
		s.Log.Infof("Closing HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = s.httpServer.Shutdown(ctx)
		cancel()
	}
	s.pipeline.Close()
	if err != nil {
		s.Log.Warnf("Shutdown complete, with error: %v", err)
	} else {
		s.Log.Infof("Shutdown complete")
	}
	s.ShutdownComplete <- err
}
