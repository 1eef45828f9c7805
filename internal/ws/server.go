// Package ws serves live session subscriptions over websocket. Each
// subscription is a fanout subscription whose pushes are framed with the
// subscription id.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"net/http"
	"sync"
	"time"

	"labyrinth-server/internal/app/public"
	"labyrinth-server/internal/auth"
	"labyrinth-server/internal/fanout"
	"labyrinth-server/internal/store"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = pongWait * 9 / 10
	maxMessageBytes = 4096
	maxRequestIDLen = 64
	sendBuffer      = 64
)

var (
	metricConnectionsActive   = expvar.NewInt("ws_connections_active")
	metricSubscriptionsActive = expvar.NewInt("ws_subscriptions_active")
	metricSubscribeErrors     = expvar.NewInt("ws_subscribe_errors_total")
)

var errClientGone = errors.New("client_gone")

// Topics opens subscriptions on behalf of a viewer.
type Topics interface {
	OpenTopic(ctx context.Context, kind public.TopicKind, sessionID, viewerID string) (*public.Topic, error)
}

type Server struct {
	broker   *fanout.Broker
	topics   Topics
	verifier *auth.Verifier
	upgrader websocket.Upgrader
}

type Client struct {
	id       string
	viewerID string
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	once     sync.Once

	mu   sync.Mutex
	subs map[string]*fanout.Subscription
}

func NewServer(broker *fanout.Broker, topics Topics, verifier *auth.Verifier) *Server {
	return &Server{
		broker:   broker,
		topics:   topics,
		verifier: verifier,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// HandleWS upgrades the request. A bearer token (header or ?token=) is
// required; a missing or invalid one is rejected before the upgrade.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := s.viewer(r)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &Client{
		id:       store.NewID(),
		viewerID: viewerID,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		subs:     map[string]*fanout.Subscription{},
	}
	metricConnectionsActive.Add(1)
	log.Debug().Str("client_id", c.id).Str("viewer_id", viewerID).Msg("ws_connected")

	go s.writeLoop(c)
	s.readLoop(r.Context(), c)
}

func (s *Server) viewer(r *http.Request) (string, bool) {
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		token = r.URL.Query().Get("token")
	}
	if token == "" || s.verifier == nil {
		return "", false
	}
	p, err := s.verifier.Verify(token)
	if err != nil {
		return "", false
	}
	return p.UserID, true
}

func (s *Server) readLoop(ctx context.Context, c *Client) {
	defer s.unregister(c)

	c.conn.SetReadLimit(maxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}
		switch base.Type {
		case "subscribe":
			var sub SubscribeMessage
			if err := json.Unmarshal(msg, &sub); err != nil {
				continue
			}
			s.handleSubscribe(ctx, c, sub)
		case "unsubscribe":
			var unsub UnsubscribeMessage
			if err := json.Unmarshal(msg, &unsub); err != nil {
				continue
			}
			s.handleUnsubscribe(c, unsub)
		case "ping":
			_ = c.enqueue(context.Background(), Pong{Type: "pong", ProtocolVersion: ProtocolVersion, TimestampMS: time.Now().UnixMilli()})
		}
	}
}

func (s *Server) writeLoop(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (s *Server) handleSubscribe(ctx context.Context, c *Client, msg SubscribeMessage) {
	result := SubscribeResult{Type: "subscribed", ProtocolVersion: ProtocolVersion, RequestID: msg.RequestID, Topic: msg.Topic}
	if msg.RequestID == "" || len(msg.RequestID) > maxRequestIDLen {
		s.rejectSubscribe(c, result, "invalid_request_id")
		return
	}
	kind := public.TopicKind(msg.Topic)
	if !kind.Valid() {
		s.rejectSubscribe(c, result, "invalid_topic")
		return
	}
	topic, err := s.topics.OpenTopic(ctx, kind, msg.SessionID, c.viewerID)
	if err != nil {
		s.rejectSubscribe(c, result, topicErrorCode(err))
		return
	}

	subID := store.NewID()
	sc := &subConn{client: c, subID: subID, topic: msg.Topic, ready: make(chan struct{})}
	sub := s.broker.Subscribe(sc, topic.Entity, topic.Options)
	c.mu.Lock()
	c.subs[subID] = sub
	c.mu.Unlock()
	metricSubscriptionsActive.Add(1)

	result.Ok = true
	result.SubscriptionID = subID
	_ = c.enqueue(ctx, result)
	_ = c.enqueue(ctx, InitMessage{
		Type:            "init",
		ProtocolVersion: ProtocolVersion,
		SubscriptionID:  subID,
		Topic:           msg.Topic,
		SessionID:       topic.SessionID,
		Data:            topic.Init,
	})
	close(sc.ready)
	log.Debug().Str("client_id", c.id).Str("subscription_id", subID).Str("topic", msg.Topic).Str("session_id", msg.SessionID).Msg("ws_subscribed")
}

func (s *Server) rejectSubscribe(c *Client, result SubscribeResult, code string) {
	metricSubscribeErrors.Add(1)
	result.Ok = false
	result.Error = code
	_ = c.enqueue(context.Background(), result)
}

func (s *Server) handleUnsubscribe(c *Client, msg UnsubscribeMessage) {
	c.mu.Lock()
	sub := c.subs[msg.SubscriptionID]
	delete(c.subs, msg.SubscriptionID)
	c.mu.Unlock()

	result := SubscribeResult{Type: "unsubscribed", ProtocolVersion: ProtocolVersion, RequestID: msg.RequestID, SubscriptionID: msg.SubscriptionID, Ok: sub != nil}
	if sub == nil {
		result.Error = "subscription_not_found"
	} else {
		sub.Unsubscribe()
		metricSubscriptionsActive.Add(-1)
	}
	_ = c.enqueue(context.Background(), result)
}

func (s *Server) unregister(c *Client) {
	c.close()
	c.mu.Lock()
	subs := c.subs
	c.subs = map[string]*fanout.Subscription{}
	c.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
		metricSubscriptionsActive.Add(-1)
	}
	metricConnectionsActive.Add(-1)
	log.Debug().Str("client_id", c.id).Msg("ws_disconnected")
}

func topicErrorCode(err error) string {
	switch {
	case errors.Is(err, public.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, public.ErrSessionNotFound):
		return "session_not_found"
	default:
		log.Error().Err(err).Msg("ws_open_topic_failed")
		return "internal_error"
	}
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// enqueue blocks until the writer accepts v, ctx ends or the client leaves.
func (c *Client) enqueue(ctx context.Context, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case c.send <- raw:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return errClientGone
	}
}

// subConn is one subscription's view of a client. Pushes wait until the
// init snapshot has been queued.
type subConn struct {
	client *Client
	subID  string
	topic  string
	ready  chan struct{}
}

func (s *subConn) ID() string {
	return s.client.id + "/" + s.subID
}

func (s *subConn) Done() <-chan struct{} {
	return s.client.done
}

func (s *subConn) Push(ctx context.Context, msg fanout.Message) error {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.client.done:
		return errClientGone
	}
	return s.client.enqueue(ctx, EventMessage{
		Type:            "event",
		ProtocolVersion: ProtocolVersion,
		SubscriptionID:  s.subID,
		Topic:           s.topic,
		Entity:          msg.Entity,
		Event:           msg.Event,
		Data:            msg.Data,
	})
}
