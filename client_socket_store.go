package sio

import "github.com/siocore/sio/internal/sync"

// clientSocketStore tracks the sockets of one client, keyed by
// namespace name.
type clientSocketStore struct {
	mu      sync.Mutex
	sockets map[string]*serverSocket
}

func newClientSocketStore() *clientSocketStore {
	return &clientSocketStore{
		sockets: make(map[string]*serverSocket),
	}
}

func (s *clientSocketStore) get(nsp string) (*serverSocket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	socket, ok := s.sockets[nsp]
	return socket, ok
}

func (s *clientSocketStore) getAll() []*serverSocket {
	s.mu.Lock()
	defer s.mu.Unlock()

	sockets := make([]*serverSocket, 0, len(s.sockets))
	for _, socket := range s.sockets {
		sockets = append(sockets, socket)
	}
	return sockets
}

func (s *clientSocketStore) set(socket *serverSocket) {
	s.mu.Lock()
	s.sockets[socket.nsp.Name()] = socket
	s.mu.Unlock()
}

// remove unregisters the socket. Idempotent: a socket of the same
// namespace registered later is left alone.
func (s *clientSocketStore) remove(socket *serverSocket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sockets[socket.nsp.Name()] == socket {
		delete(s.sockets, socket.nsp.Name())
	}
}

// clientStore tracks every live client of the server, keyed by
// transport connection id.
type clientStore struct {
	mu      sync.Mutex
	clients map[string]*client
}

func newClientStore() *clientStore {
	return &clientStore{
		clients: make(map[string]*client),
	}
}

func (s *clientStore) get(connID string) (*client, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[connID]
	return c, ok
}

func (s *clientStore) getAll() []*client {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	return clients
}

func (s *clientStore) set(c *client) {
	s.mu.Lock()
	s.clients[c.conn.ID()] = c
	s.mu.Unlock()
}

func (s *clientStore) remove(connID string) {
	s.mu.Lock()
	delete(s.clients, connID)
	s.mu.Unlock()
}
