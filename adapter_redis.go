package sio

import (
	"context"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/siocore/sio/internal/json"
	"github.com/siocore/sio/internal/sync"
	"github.com/siocore/sio/parser"
)

const (
	defaultRedisPrefix         = "sio"
	defaultRedisRequestTimeout = 5 * time.Second
)

type RedisAdapterConfig struct {
	// Client is the Redis connection shared by every namespace.
	// Required.
	Client redis.UniversalClient

	// Prefix of the pub/sub channel names. Defaults to "sio".
	Prefix string

	// RequestTimeout bounds cross-node queries such as Sockets.
	// Defaults to 5 seconds.
	RequestTimeout time.Duration
}

// NewRedisAdapterCreator returns an adapter creator that forwards
// broadcasts between nodes over Redis pub/sub. Room membership stays
// local to each node; cross-node queries aggregate over a
// request/response channel pair.
func NewRedisAdapterCreator(config RedisAdapterConfig) AdapterCreator {
	if config.Client == nil {
		panic("sio: NewRedisAdapterCreator: nil client")
	}
	if config.Prefix == "" {
		config.Prefix = defaultRedisPrefix
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaultRedisRequestTimeout
	}

	return func(nsp *Namespace) Adapter {
		a := &redisAdapter{
			local:          newInMemoryAdapter(nsp),
			nsp:            nsp,
			redis:          config.Client,
			uid:            uuid.NewString(),
			requestTimeout: config.RequestTimeout,

			broadcastChannel: config.Prefix + "#" + nsp.Name() + "#",
			requestChannel:   config.Prefix + "-request#" + nsp.Name(),
			responseChannel:  config.Prefix + "-response#" + nsp.Name(),

			requests: make(map[string]*redisPendingRequest),
		}
		a.ctx, a.cancel = context.WithCancel(context.Background())
		a.subscribe()
		return a
	}
}

type redisAdapter struct {
	local Adapter
	nsp   *Namespace
	redis redis.UniversalClient

	uid            string
	requestTimeout time.Duration

	broadcastChannel string
	requestChannel   string
	responseChannel  string

	requests   map[string]*redisPendingRequest
	requestsMu sync.Mutex

	messageSub *redis.PubSub
	requestSub *redis.PubSub

	ctx    context.Context
	cancel context.CancelFunc
}

type redisPendingRequest struct {
	sids     mapset.Set[SocketID]
	expected int
	received int
	mu       sync.Mutex
	done     chan struct{}
}

type redisBroadcastMessage struct {
	UID    string               `json:"uid"`
	Header *parser.PacketHeader `json:"header"`
	Data   []any                `json:"data"`
	Opts   redisBroadcastOpts   `json:"opts"`
}

type redisBroadcastOpts struct {
	Rooms       []Room         `json:"rooms"`
	ExceptRooms []Room         `json:"exceptRooms"`
	Flags       BroadcastFlags `json:"flags"`
}

type redisSocketsRequest struct {
	UID       string `json:"uid"`
	RequestID string `json:"requestId"`
	Rooms     []Room `json:"rooms"`
}

type redisSocketsResponse struct {
	RequestID string     `json:"requestId"`
	Sockets   []SocketID `json:"sockets"`
}

func (a *redisAdapter) subscribe() {
	a.messageSub = a.redis.PSubscribe(a.ctx, a.broadcastChannel+"*")
	a.requestSub = a.redis.Subscribe(a.ctx, a.requestChannel, a.responseChannel)

	go a.dispatchMessages()
	go a.dispatchRequests()
}

func (a *redisAdapter) dispatchMessages() {
	for msg := range a.messageSub.Channel() {
		a.onMessage([]byte(msg.Payload))
	}
}

func (a *redisAdapter) dispatchRequests() {
	for msg := range a.requestSub.Channel() {
		switch msg.Channel {
		case a.requestChannel:
			a.onRequest([]byte(msg.Payload))
		case a.responseChannel:
			a.onResponse([]byte(msg.Payload))
		}
	}
}

func (a *redisAdapter) ServerCount() int {
	counts, err := a.redis.PubSubNumSub(a.ctx, a.requestChannel).Result()
	if err != nil {
		a.nsp.server.logger.Error(err, "redis adapter: server count failed", "namespace", a.nsp.Name())
		return 1
	}
	n := int(counts[a.requestChannel])
	if n < 1 {
		return 1
	}
	return n
}

func (a *redisAdapter) Close() {
	a.cancel()
	a.messageSub.Close()
	a.requestSub.Close()
	a.local.Close()
}

func (a *redisAdapter) AddAll(sid SocketID, rooms []Room) { a.local.AddAll(sid, rooms) }
func (a *redisAdapter) Delete(sid SocketID, room Room)    { a.local.Delete(sid, room) }
func (a *redisAdapter) DeleteAll(sid SocketID)            { a.local.DeleteAll(sid) }

func (a *redisAdapter) SocketRooms(sid SocketID) (mapset.Set[Room], bool) {
	return a.local.SocketRooms(sid)
}

func (a *redisAdapter) Broadcast(header *parser.PacketHeader, v []any, opts *BroadcastOptions) {
	a.local.Broadcast(header, v, opts)

	// Binary attachments do not survive the JSON envelope. Binary
	// packets stay on this node.
	if opts.Flags.Local || header.IsBinary() {
		return
	}

	msg := redisBroadcastMessage{
		UID:    a.uid,
		Header: header,
		Data:   v,
		Opts: redisBroadcastOpts{
			Rooms:       setToSlice(opts.Rooms),
			ExceptRooms: setToSlice(opts.ExceptRooms),
			Flags:       opts.Flags,
		},
	}
	payload, err := json.Marshal(&msg)
	if err != nil {
		a.nsp.server.logger.Error(wrapInternalError(err), "redis adapter: broadcast marshal failed", "namespace", a.nsp.Name())
		return
	}

	if err := a.redis.Publish(a.ctx, a.broadcastChannel+a.uid, payload).Err(); err != nil {
		a.nsp.server.logger.Error(err, "redis adapter: publish failed", "namespace", a.nsp.Name())
	}
}

// onMessage re-broadcasts a peer's packet to the local sockets. The
// replay is flagged Local so it does not bounce back to Redis.
func (a *redisAdapter) onMessage(payload []byte) {
	var msg redisBroadcastMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		a.nsp.server.logger.Error(err, "redis adapter: invalid broadcast message", "namespace", a.nsp.Name())
		return
	}
	if msg.UID == a.uid || msg.Header == nil {
		return
	}

	opts := NewBroadcastOptions()
	for _, room := range msg.Opts.Rooms {
		opts.Rooms.Add(room)
	}
	for _, room := range msg.Opts.ExceptRooms {
		opts.ExceptRooms.Add(room)
	}
	opts.Flags = msg.Opts.Flags
	opts.Flags.Local = true

	// Decoded JSON carries no type information anymore. The payload
	// re-encodes as plain values.
	msg.Header.Plain = true
	a.local.Broadcast(msg.Header, msg.Data, opts)
}

func (a *redisAdapter) Sockets(ctx context.Context, rooms mapset.Set[Room]) (mapset.Set[SocketID], error) {
	sids, err := a.local.Sockets(ctx, rooms)
	if err != nil {
		return nil, err
	}

	expected := a.ServerCount() - 1
	if expected < 1 {
		return sids, nil
	}

	req := redisSocketsRequest{
		UID:       a.uid,
		RequestID: uuid.NewString(),
		Rooms:     setToSlice(rooms),
	}
	payload, err := json.Marshal(&req)
	if err != nil {
		return nil, wrapInternalError(err)
	}

	pending := &redisPendingRequest{
		sids:     sids,
		expected: expected,
		done:     make(chan struct{}),
	}
	a.requestsMu.Lock()
	a.requests[req.RequestID] = pending
	a.requestsMu.Unlock()

	defer func() {
		a.requestsMu.Lock()
		delete(a.requests, req.RequestID)
		a.requestsMu.Unlock()
	}()

	if err := a.redis.Publish(ctx, a.requestChannel, payload).Err(); err != nil {
		return nil, err
	}

	timeout := time.NewTimer(a.requestTimeout)
	defer timeout.Stop()

	select {
	case <-pending.done:
		return sids, nil
	case <-timeout.C:
		// Partial results from the nodes that answered in time.
		return sids, nil
	case <-ctx.Done():
		return sids, ctx.Err()
	}
}

func (a *redisAdapter) onRequest(payload []byte) {
	var req redisSocketsRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.UID == a.uid {
		return
	}

	rooms := mapset.NewThreadUnsafeSet[Room](req.Rooms...)
	sids, err := a.local.Sockets(a.ctx, rooms)
	if err != nil {
		return
	}

	res := redisSocketsResponse{
		RequestID: req.RequestID,
		Sockets:   setToSlice(sids),
	}
	resPayload, err := json.Marshal(&res)
	if err != nil {
		return
	}
	if err := a.redis.Publish(a.ctx, a.responseChannel, resPayload).Err(); err != nil {
		a.nsp.server.logger.Error(err, "redis adapter: response publish failed", "namespace", a.nsp.Name())
	}
}

func (a *redisAdapter) onResponse(payload []byte) {
	var res redisSocketsResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return
	}

	a.requestsMu.Lock()
	pending, ok := a.requests[res.RequestID]
	a.requestsMu.Unlock()
	if !ok {
		return
	}

	pending.mu.Lock()
	defer pending.mu.Unlock()

	for _, sid := range res.Sockets {
		pending.sids.Add(sid)
	}
	pending.received++
	if pending.received == pending.expected {
		close(pending.done)
	}
}

func setToSlice[T comparable](set mapset.Set[T]) []T {
	if set == nil {
		return nil
	}
	slice := make([]T, 0, set.Cardinality())
	set.Each(func(v T) bool {
		slice = append(slice, v)
		return false
	})
	return slice
}
