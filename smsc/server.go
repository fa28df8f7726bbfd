package smsc

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// tcpKeepAliveListener sets TCP keep-alive timeouts on accepted
// connections so a peer that vanishes without closing cleanly (a
// laptop closing its lid mid-session) eventually gets reaped.
type tcpKeepAliveListener struct {
	*net.TCPListener
}

func (ln tcpKeepAliveListener) Accept() (c net.Conn, err error) {
	tc, err := ln.AcceptTCP()
	if err != nil {
		return
	}
	tc.SetKeepAlive(true)
	tc.SetKeepAlivePeriod(3 * time.Minute)
	return tc, nil
}

// Server accepts SMPP connections, admission-controls them, and runs a
// Processor per connection against a shared Hub and Logic.
type Server struct {
	Addr          string
	Logic         Logic
	Logger        Logger
	SystemID      string
	MaxOpenSocket int64
	RouteCapacity int

	Hub *Hub

	once  sync.Once
	sem   *semaphore.Weighted
	logic Logic

	wg        sync.WaitGroup
	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	doneChan  chan struct{}
}

// NewServer builds a Server. systemID is echoed back in every successful
// bind response, per spec. maxOpenSockets caps the number of
// concurrently admitted connections; a non-positive value sets the cap
// to 1<<20.
func NewServer(addr string, logic Logic, logger Logger, systemID string, maxOpenSockets int64) *Server {
	return &Server{
		Addr:          addr,
		Logic:         logic,
		Logger:        logger,
		SystemID:      systemID,
		MaxOpenSocket: maxOpenSockets,
	}
}

func (srv *Server) init() {
	srv.once.Do(func() {
		if srv.Hub == nil {
			capacity := srv.RouteCapacity
			if capacity <= 0 {
				capacity = defaultRouteCapacity
			}
			srv.Hub = NewHub(capacity)
		}
		srv.logic = wrapLogic(srv.Logic)
		limit := srv.MaxOpenSocket
		if limit <= 0 {
			limit = 1 << 20
		}
		srv.sem = semaphore.NewWeighted(limit)
	})
}

// ListenAndServe listens on Addr and serves until ctx is cancelled or
// Serve returns an error.
func (srv *Server) ListenAndServe(ctx context.Context) error {
	addr := srv.Addr
	if addr == "" {
		addr = ":2775"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return srv.Serve(ctx, tcpKeepAliveListener{ln.(*net.TCPListener)})
}

// Serve accepts connections off ln until ctx is cancelled, running one
// Processor goroutine per admitted connection. Connections beyond
// MaxOpenSocket are accepted (so the backlog drains) and immediately
// closed.
func (srv *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv.init()
	defer ln.Close()
	srv.trackListener(ln, true)

	go func() {
		<-ctx.Done()
		srv.mu.Lock()
		srv.closeDoneChanLocked()
		srv.closeListenersLocked()
		srv.mu.Unlock()
	}()

	var tempDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-srv.getDoneChan():
				return nil
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := 1 * time.Second; tempDelay > max {
					tempDelay = max
				}
				time.Sleep(tempDelay)
				continue
			}
			return err
		}
		tempDelay = 0

		if !srv.sem.TryAcquire(1) {
			connectionsRejectedTotal.Inc()
			srv.Logger.ErrorF("rejecting %s: too many open sockets", conn.RemoteAddr())
			conn.Close()
			continue
		}

		srv.wg.Add(1)
		go func(conn net.Conn) {
			defer srv.wg.Done()
			defer srv.sem.Release(1)
			c := NewConnection(conn)
			proc := NewProcessor(c, srv.Hub, srv.logic, srv.Logger, srv.SystemID)
			if err := proc.Run(ctx); err != nil {
				srv.Logger.InfoF("connection %s closed: %s", conn.RemoteAddr(), err)
			}
		}(conn)
	}
}

// Shutdown stops accepting new connections and waits for in-flight
// ones to drain.
func (srv *Server) Shutdown() error {
	srv.mu.Lock()
	srv.closeDoneChanLocked()
	err := srv.closeListenersLocked()
	srv.mu.Unlock()
	srv.wg.Wait()
	return err
}

func (srv *Server) getDoneChan() <-chan struct{} {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.getDoneChanLocked()
}

func (srv *Server) getDoneChanLocked() chan struct{} {
	if srv.doneChan == nil {
		srv.doneChan = make(chan struct{})
	}
	return srv.doneChan
}

func (srv *Server) closeDoneChanLocked() {
	ch := srv.getDoneChanLocked()
	select {
	case <-ch:
	default:
		close(ch)
	}
}

func (srv *Server) trackListener(ln net.Listener, add bool) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.listeners == nil {
		srv.listeners = make(map[net.Listener]struct{})
	}
	if add {
		if len(srv.listeners) == 0 {
			srv.doneChan = nil
		}
		srv.listeners[ln] = struct{}{}
	} else {
		delete(srv.listeners, ln)
	}
}

func (srv *Server) closeListenersLocked() error {
	var err error
	for ln := range srv.listeners {
		if cerr := ln.Close(); cerr != nil && err == nil {
			err = cerr
		}
		delete(srv.listeners, ln)
	}
	return err
}
