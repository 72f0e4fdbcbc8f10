package sio

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/go-logr/logr"
	"github.com/siocore/sio/internal/sync"
	"github.com/siocore/sio/parser"
	jsonparser "github.com/siocore/sio/parser/json"
)

type ServerConfig struct {
	// ParserCreator is the wire codec. Defaults to the JSON parser
	// backed by encoding/json.
	ParserCreator parser.Creator

	// AdapterCreator builds the adapter of each namespace. Defaults to
	// the in-memory adapter.
	AdapterCreator AdapterCreator

	// Logger defaults to a stderr logger.
	Logger logr.Logger
}

// Server multiplexes namespaces over transport connections.
type Server struct {
	parserCreator  parser.Creator
	adapterCreator AdapterCreator
	logger         logr.Logger

	nsps *namespaceStore

	parentNsps       []*ParentNamespace
	parentNspsMu     sync.RWMutex
	parentNspCounter int

	clients *clientStore

	transport   Transport
	transportMu sync.Mutex

	initialPacketFlag int32
}

func NewServer(config *ServerConfig) *Server {
	if config == nil {
		config = new(ServerConfig)
	}

	server := &Server{
		parserCreator:  config.ParserCreator,
		adapterCreator: config.AdapterCreator,
		logger:         config.Logger,
		nsps:           newNamespaceStore(),
		clients:        newClientStore(),
	}

	if server.parserCreator == nil {
		server.parserCreator = jsonparser.NewCreator(0, nil)
	}
	if server.adapterCreator == nil {
		server.adapterCreator = newInMemoryAdapter
	}
	if server.logger.GetSink() == nil {
		server.logger = DefaultLogger()
	}

	// The default namespace exists eagerly.
	server.nsps.getOrCreate("/", server)
	return server
}

// Of retrieves the namespace with the given name, creating it when
// absent. Names are canonicalized to begin with "/".
func (s *Server) Of(name string) *Namespace {
	if len(name) == 0 || name[0] != '/' {
		name = "/" + name
	}
	nsp, _ := s.nsps.getOrCreate(name, s)
	return nsp
}

// OfFn registers a dynamic namespace template: a CONNECT naming a
// namespace that does not exist statically is offered to the matchers
// in registration order, and the first acceptance creates a concrete
// child namespace. See ParentNamespace.
func (s *Server) OfFn(matcher NamespaceMatcherFunc) *ParentNamespace {
	if matcher == nil {
		panic("sio: OfFn: nil matcher")
	}

	s.parentNspsMu.Lock()
	defer s.parentNspsMu.Unlock()

	s.parentNspCounter++
	parent := newParentNamespace(fmt.Sprintf("/_%d", s.parentNspCounter), s, matcher)
	s.parentNsps = append(s.parentNsps, parent)
	return parent
}

// OfRegexp registers a dynamic namespace template matching names
// against the given expression.
func (s *Server) OfRegexp(re *regexp.Regexp) *ParentNamespace {
	if re == nil {
		panic("sio: OfRegexp: nil regexp")
	}
	return s.OfFn(regexpMatcher(re))
}

// checkNamespace offers name to the parent namespace matchers in
// registration order. The first acceptance creates and returns the
// child namespace.
func (s *Server) checkNamespace(name string, query url.Values) (*Namespace, bool) {
	s.parentNspsMu.RLock()
	parents := make([]*ParentNamespace, len(s.parentNsps))
	copy(parents, s.parentNsps)
	s.parentNspsMu.RUnlock()

	for _, parent := range parents {
		if parent.matcher(name, query) {
			return parent.createChild(name), true
		}
	}
	return nil, false
}

// Use registers a connect middleware on the default namespace.
func (s *Server) Use(f NamespaceMiddlewareFunc) {
	s.Of("/").Use(f)
}

func (s *Server) OnConnection(f NamespaceConnectionFunc) {
	s.Of("/").OnConnection(f)
}

func (s *Server) OnceConnection(f NamespaceConnectionFunc) {
	s.Of("/").OnceConnection(f)
}

func (s *Server) OffConnection(f ...NamespaceConnectionFunc) {
	s.Of("/").OffConnection(f...)
}

// Emit broadcasts to every connected socket of the default namespace.
func (s *Server) Emit(eventName string, v ...any) {
	s.Of("/").Emit(eventName, v...)
}

// Send emits a "message" event on the default namespace.
func (s *Server) Send(v ...any) {
	s.Of("/").Send(v...)
}

func (s *Server) To(room ...Room) *BroadcastOperator {
	return s.Of("/").To(room...)
}

func (s *Server) In(room ...Room) *BroadcastOperator {
	return s.Of("/").In(room...)
}

func (s *Server) Except(room ...Room) *BroadcastOperator {
	return s.Of("/").Except(room...)
}

func (s *Server) Compress(compress bool) *BroadcastOperator {
	return s.Of("/").Compress(compress)
}

func (s *Server) Volatile() *BroadcastOperator {
	return s.Of("/").Volatile()
}

func (s *Server) Local() *BroadcastOperator {
	return s.Of("/").Local()
}

func (s *Server) Binary(binary bool) *BroadcastOperator {
	return s.Of("/").Binary(binary)
}

// AllSockets returns the sids of every connected socket of the default
// namespace.
func (s *Server) AllSockets(ctx context.Context) (mapset.Set[SocketID], error) {
	return s.Of("/").AllSockets(ctx)
}

// Attach wires the server to a transport. When the default namespace
// has no connect middleware, its CONNECT reply is pre-encoded and
// piggy-backed on the transport handshake of every subsequent
// connection, saving one round trip.
func (s *Server) Attach(t Transport) {
	s.transportMu.Lock()
	s.transport = t
	s.transportMu.Unlock()

	s.setupInitialPacket(t)

	t.OnConnection(func(conn Conn, attach func(*ConnCallbacks)) {
		c := newClient(s, conn, s.initialPacketEnabled())
		s.clients.set(c)
		attach(&ConnCallbacks{
			OnData:  c.onData,
			OnError: c.onError,
			OnClose: c.onClose,
		})
	})
}

func (s *Server) setupInitialPacket(t Transport) {
	root := s.Of("/")
	root.middlewareMu.RLock()
	hasMiddleware := len(root.middleware) > 0
	root.middlewareMu.RUnlock()
	if hasMiddleware {
		return
	}

	header := parser.PacketHeader{
		Type:      parser.PacketTypeConnect,
		Namespace: "/",
	}
	frames, err := s.parserCreator().Encode(&header, nil)
	if err != nil {
		s.logger.Error(wrapInternalError(err), "initial packet encode failed")
		return
	}

	atomic.StoreInt32(&s.initialPacketFlag, 1)
	t.SetInitialFrames(frames)
}

func (s *Server) initialPacketEnabled() bool {
	return atomic.LoadInt32(&s.initialPacketFlag) == 1
}

// clearInitialPacket cancels the pre-encoded CONNECT reply. Called when
// the first middleware is installed on the default namespace.
func (s *Server) clearInitialPacket() {
	if !atomic.CompareAndSwapInt32(&s.initialPacketFlag, 1, 0) {
		return
	}
	s.transportMu.Lock()
	t := s.transport
	s.transportMu.Unlock()
	if t != nil {
		t.SetInitialFrames(nil)
	}
}

// Close tears down every default namespace socket and closes the
// transport.
func (s *Server) Close() error {
	if root, ok := s.nsps.get("/"); ok {
		for _, socket := range root.sockets.getAll() {
			socket.onClose(ReasonServerShuttingDown)
		}
	}

	s.transportMu.Lock()
	t := s.transport
	s.transportMu.Unlock()
	if t != nil {
		return t.Close()
	}
	return nil
}
