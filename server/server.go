package server

import (
	"sync"
	"time"

	"github.com/hearthvox/hearth/server/world"
)

// Server owns the world of one running game server and its background
// maintenance. It is created through Config.New.
type Server struct {
	conf  Config
	world *world.World

	closing chan struct{}
	running sync.WaitGroup
	o       sync.Once
}

// World returns the world the server runs.
func (srv *Server) World() *world.World {
	return srv.world
}

// Name returns the name of the server as configured.
func (srv *Server) Name() string {
	return srv.conf.Name
}

// statusLoop periodically logs a status report of the running world.
func (srv *Server) statusLoop() {
	defer srv.running.Done()
	ticker := time.NewTicker(srv.conf.StatusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			stats := srv.world.Stats()
			srv.conf.Log.Info("status",
				"server", srv.conf.Name,
				"tick", srv.world.CurrentTick(),
				"columns", stats.Resident,
				"reads", stats.Reads,
				"generations", stats.Generations,
			)
		case <-srv.closing:
			return
		}
	}
}

// Close saves and closes the server's world. It blocks until everything
// resident has been flushed. Close may be called multiple times.
func (srv *Server) Close() error {
	var err error
	srv.o.Do(func() {
		close(srv.closing)
		srv.running.Wait()
		err = srv.world.Close()
	})
	return err
}
