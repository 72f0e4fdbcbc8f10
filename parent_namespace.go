package sio

import (
	"net/url"
	"regexp"

	"github.com/siocore/sio/internal/sync"
)

// NamespaceMatcherFunc decides whether a dynamic namespace accepts the
// given name. The query of the CONNECT packet is available for
// authorization-style decisions.
type NamespaceMatcherFunc func(name string, query url.Values) bool

// ParentNamespace is a template for namespaces created on demand.
// Registered with Server.OfFn or Server.OfRegexp, it owns no adapter
// and no sockets itself: when a CONNECT names a namespace that does not
// exist statically and the matcher accepts, a concrete child namespace
// is created carrying a snapshot of the parent's middleware and
// connection handlers.
type ParentNamespace struct {
	name    string
	server  *Server
	matcher NamespaceMatcherFunc

	children   map[string]*Namespace
	childrenMu sync.Mutex

	middleware   []NamespaceMiddlewareFunc
	middlewareMu sync.RWMutex

	connectionHandlers *handlerStore[NamespaceConnectionFunc]
}

func newParentNamespace(name string, server *Server, matcher NamespaceMatcherFunc) *ParentNamespace {
	return &ParentNamespace{
		name:    name,
		server:  server,
		matcher: matcher,

		children:           make(map[string]*Namespace),
		connectionHandlers: newHandlerStore[NamespaceConnectionFunc](),
	}
}

func stringMatcher(name string) NamespaceMatcherFunc {
	return func(n string, _ url.Values) bool {
		return n == name
	}
}

func regexpMatcher(re *regexp.Regexp) NamespaceMatcherFunc {
	return func(n string, _ url.Values) bool {
		return re.MatchString(n)
	}
}

// Name is the synthetic registration name of the template, of the form
// "/_<counter>". Children carry the name they were connected with.
func (p *ParentNamespace) Name() string { return p.name }

// Use registers a connect middleware. Children created afterwards
// inherit it; already-created children do not.
func (p *ParentNamespace) Use(f NamespaceMiddlewareFunc) {
	if f == nil {
		panic("sio: Use: nil middleware")
	}
	p.middlewareMu.Lock()
	p.middleware = append(p.middleware, f)
	p.middlewareMu.Unlock()
}

func (p *ParentNamespace) OnConnection(f NamespaceConnectionFunc) {
	p.connectionHandlers.on(f)
}

func (p *ParentNamespace) OffConnection(f ...NamespaceConnectionFunc) {
	p.connectionHandlers.off(f...)
}

// createChild materializes a concrete namespace for name and registers
// it globally, so subsequent CONNECTs to that exact name bypass the
// matchers.
func (p *ParentNamespace) createChild(name string) *Namespace {
	nsp, _ := p.server.nsps.getOrCreate(name, p.server)

	p.middlewareMu.RLock()
	middleware := make([]NamespaceMiddlewareFunc, len(p.middleware))
	copy(middleware, p.middleware)
	p.middlewareMu.RUnlock()

	for _, f := range middleware {
		nsp.Use(f)
	}
	for _, f := range p.connectionHandlers.peekAll() {
		nsp.OnConnection(f)
	}

	p.childrenMu.Lock()
	p.children[name] = nsp
	p.childrenMu.Unlock()
	return nsp
}

func (p *ParentNamespace) childrenSnapshot() []*Namespace {
	p.childrenMu.Lock()
	defer p.childrenMu.Unlock()

	children := make([]*Namespace, 0, len(p.children))
	for _, child := range p.children {
		children = append(children, child)
	}
	return children
}

// Emit broadcasts to every socket of every child namespace created so
// far.
func (p *ParentNamespace) Emit(eventName string, v ...any) {
	p.operator().Emit(eventName, v...)
}

// Send emits a "message" event.
func (p *ParentNamespace) Send(v ...any) {
	p.Emit("message", v...)
}

func (p *ParentNamespace) To(room ...Room) *ParentBroadcastOperator {
	return p.operator().To(room...)
}

func (p *ParentNamespace) In(room ...Room) *ParentBroadcastOperator {
	return p.operator().In(room...)
}

func (p *ParentNamespace) Except(room ...Room) *ParentBroadcastOperator {
	return p.operator().Except(room...)
}

func (p *ParentNamespace) Local() *ParentBroadcastOperator {
	return p.operator().Local()
}

func (p *ParentNamespace) operator() *ParentBroadcastOperator {
	return &ParentBroadcastOperator{parent: p}
}

// ParentBroadcastOperator stages rooms and flags once and applies them
// to the operator of every child namespace at emit time. Modifiers
// return copies.
type ParentBroadcastOperator struct {
	parent      *ParentNamespace
	rooms       []Room
	exceptRooms []Room
	flags       BroadcastFlags
	binary      bool
}

func (b *ParentBroadcastOperator) clone() *ParentBroadcastOperator {
	n := *b
	n.rooms = append([]Room(nil), b.rooms...)
	n.exceptRooms = append([]Room(nil), b.exceptRooms...)
	return &n
}

func (b *ParentBroadcastOperator) To(room ...Room) *ParentBroadcastOperator {
	n := b.clone()
	n.rooms = append(n.rooms, room...)
	return n
}

// In is an alias of To.
func (b *ParentBroadcastOperator) In(room ...Room) *ParentBroadcastOperator {
	return b.To(room...)
}

func (b *ParentBroadcastOperator) Except(room ...Room) *ParentBroadcastOperator {
	n := b.clone()
	n.exceptRooms = append(n.exceptRooms, room...)
	return n
}

func (b *ParentBroadcastOperator) Compress(compress bool) *ParentBroadcastOperator {
	n := b.clone()
	n.flags.Compress = compress
	return n
}

func (b *ParentBroadcastOperator) Volatile() *ParentBroadcastOperator {
	n := b.clone()
	n.flags.Volatile = true
	return n
}

func (b *ParentBroadcastOperator) Local() *ParentBroadcastOperator {
	n := b.clone()
	n.flags.Local = true
	return n
}

func (b *ParentBroadcastOperator) Binary(binary bool) *ParentBroadcastOperator {
	n := b.clone()
	n.binary = binary
	return n
}

func (b *ParentBroadcastOperator) Emit(eventName string, v ...any) {
	for _, child := range b.parent.childrenSnapshot() {
		op := child.operator().To(b.rooms...).Except(b.exceptRooms...)
		op.flags = b.flags
		op.binary = b.binary
		op.Emit(eventName, v...)
	}
}

// Send emits a "message" event.
func (b *ParentBroadcastOperator) Send(v ...any) {
	b.Emit("message", v...)
}
