package sio

import "github.com/siocore/sio/internal/sync"

type namespaceStore struct {
	mu   sync.Mutex
	nsps map[string]*Namespace
}

func newNamespaceStore() *namespaceStore {
	return &namespaceStore{
		nsps: make(map[string]*Namespace),
	}
}

func (s *namespaceStore) getOrCreate(name string, server *Server) (nsp *Namespace, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nsp, ok := s.nsps[name]
	if !ok {
		nsp = newNamespace(name, server)
		s.nsps[name] = nsp
		created = true
	}
	return
}

func (s *namespaceStore) set(nsp *Namespace) {
	s.mu.Lock()
	s.nsps[nsp.Name()] = nsp
	s.mu.Unlock()
}

func (s *namespaceStore) get(name string) (*Namespace, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nsp, ok := s.nsps[name]
	return nsp, ok
}

func (s *namespaceStore) getAll() []*Namespace {
	s.mu.Lock()
	defer s.mu.Unlock()

	nsps := make([]*Namespace, 0, len(s.nsps))
	for _, nsp := range s.nsps {
		nsps = append(nsps, nsp)
	}
	return nsps
}

func (s *namespaceStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nsps)
}

// namespaceSocketStore tracks the sockets of one namespace by sid.
type namespaceSocketStore struct {
	mu      sync.Mutex
	sockets map[SocketID]*serverSocket
}

func newNamespaceSocketStore() *namespaceSocketStore {
	return &namespaceSocketStore{
		sockets: make(map[SocketID]*serverSocket),
	}
}

func (s *namespaceSocketStore) get(sid SocketID) (*serverSocket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	socket, ok := s.sockets[sid]
	return socket, ok
}

func (s *namespaceSocketStore) getAll() []*serverSocket {
	s.mu.Lock()
	defer s.mu.Unlock()

	sockets := make([]*serverSocket, 0, len(s.sockets))
	for _, socket := range s.sockets {
		sockets = append(sockets, socket)
	}
	return sockets
}

func (s *namespaceSocketStore) set(socket *serverSocket) {
	s.mu.Lock()
	s.sockets[socket.id] = socket
	s.mu.Unlock()
}

func (s *namespaceSocketStore) remove(sid SocketID) {
	s.mu.Lock()
	delete(s.sockets, sid)
	s.mu.Unlock()
}

// sendBuffers writes pre-encoded frames to the socket with the given
// sid. A broadcast to a since-closed socket is a silent no-op.
func (s *namespaceSocketStore) sendBuffers(sid SocketID, buffers [][]byte, flags BroadcastFlags) {
	socket, ok := s.get(sid)
	if !ok {
		return
	}
	socket.client.sendBuffers(flags, buffers...)
}
