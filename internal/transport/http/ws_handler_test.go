package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-channel/internal/auth"
	"github.com/vovakirdan/wirechat-channel/internal/config"
	"github.com/vovakirdan/wirechat-channel/internal/core"
	"github.com/vovakirdan/wirechat-channel/internal/metrics"
	"github.com/vovakirdan/wirechat-channel/internal/proto"
	"github.com/vovakirdan/wirechat-channel/internal/store"
	"github.com/vovakirdan/wirechat-channel/internal/store/pebblekv"
	"github.com/vovakirdan/wirechat-channel/internal/store/sqlite"
)

const testSecret = "test-secret"

func testJWTConfig() *auth.JWTConfig {
	return &auth.JWTConfig{
		Secret:   []byte(testSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}
}

func startTestServer(t *testing.T, mutate func(*config.Config)) *httptest.Server {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.TypingTimeout = 100 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	db, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	require.NoError(t, err)
	kv, err := pebblekv.OpenInMemory()
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	hub := core.NewHub(core.Options{
		MaxContentLength:  cfg.MaxContentLength,
		TypingTimeout:     cfg.TypingTimeout,
		HeartbeatInterval: cfg.HeartbeatInterval,
	}, core.HubDeps{
		Messages:  db,
		Users:     db,
		Snapshots: func(key string) store.SnapshotStore { return kv.Bucket(key) },
		Metrics:   m,
	})

	server := NewServer(&cfg, Deps{
		Hub:      hub,
		Verifier: auth.NewVerifier(testJWTConfig()),
		Metrics:  m,
		Gatherer: reg,
	})

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		hub.Stop()
		ts.Close()
		_ = kv.Close()
		_ = db.Close()
	})
	return ts
}

func wsURL(ts *httptest.Server, channel string, query url.Values) string {
	return strings.Replace(ts.URL, "http", "ws", 1) + "/channels/" + channel + "/ws?" + query.Encode()
}

func dial(t *testing.T, ctx context.Context, ts *httptest.Server, userID string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, wsURL(ts, "general", url.Values{"userId": {userID}, "username": {userID}}), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })

	readUntil(t, ctx, conn, proto.OutboundTypeInit)
	readUntil(t, ctx, conn, proto.OutboundTypeUserList)
	return conn
}

// readUntil reads frames until one of the given type arrives.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string) proto.Outbound {
	t.Helper()

	for {
		var out proto.Outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("read %s: %v", typ, err)
		}
		if out.Type == typ {
			return out
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := startTestServer(t, nil)

	resp, err := ts.Client().Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestPreflightIsAnswered(t *testing.T) {
	ts := startTestServer(t, func(cfg *config.Config) { cfg.CORSAllowOrigin = "https://chat.example" })

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/channels/general/messages", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "https://chat.example", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "GET")
}

func TestConnectRequiresUserID(t *testing.T) {
	ts := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, wsURL(ts, "general", url.Values{}), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConnectVerifiesTokenWhenRequired(t *testing.T) {
	ts := startTestServer(t, func(cfg *config.Config) { cfg.AuthRequired = true })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bobToken, err := auth.GenerateToken(testJWTConfig(), "bob", "Bob")
	require.NoError(t, err)

	_, resp, err := websocket.Dial(ctx, wsURL(ts, "general", url.Values{"userId": {"alice"}, "token": {bobToken}}), nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	aliceToken, err := auth.GenerateToken(testJWTConfig(), "alice", "Alice")
	require.NoError(t, err)
	conn, _, err := websocket.Dial(ctx, wsURL(ts, "general", url.Values{"userId": {"alice"}, "token": {aliceToken}}), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")
	readUntil(t, ctx, conn, proto.OutboundTypeInit)
}

func TestWebSocketMessageFlow(t *testing.T) {
	ts := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dial(t, ctx, ts, "alice")
	bob := dial(t, ctx, ts, "bob")

	joined := readUntil(t, ctx, alice, proto.OutboundTypeUserJoined)
	require.Equal(t, "bob", joined.UserID)

	require.NoError(t, wsjson.Write(ctx, alice, proto.Inbound{Type: proto.InboundTypeSendMessage, Content: "hi there"}))
	msg := readUntil(t, ctx, bob, proto.OutboundTypeNewMessage)
	require.Equal(t, "hi there", msg.Message.Content)
	require.Equal(t, "alice", msg.Message.UserID)
	require.Equal(t, "alice", msg.Message.Username)

	require.NoError(t, wsjson.Write(ctx, bob, proto.Inbound{
		Type:      proto.InboundTypeEditMessage,
		MessageID: msg.Message.ID,
		Content:   "hacked",
	}))
	errEv := readUntil(t, ctx, bob, proto.OutboundTypeError)
	require.Equal(t, core.ErrCodeNotFoundOrUnauthorized, errEv.Error.Code)

	require.NoError(t, wsjson.Write(ctx, alice, proto.Inbound{Type: proto.InboundTypeTypingStart}))
	typing := readUntil(t, ctx, bob, proto.OutboundTypeTypingStart)
	require.Equal(t, "alice", typing.UserID)
	readUntil(t, ctx, bob, proto.OutboundTypeTypingStop)

	require.NoError(t, alice.Close(websocket.StatusNormalClosure, "bye"))
	left := readUntil(t, ctx, bob, proto.OutboundTypeUserLeft)
	require.Equal(t, "alice", left.UserID)
}

func TestMalformedFrameKeepsConnectionOpen(t *testing.T) {
	ts := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dial(t, ctx, ts, "alice")

	require.NoError(t, alice.Write(ctx, websocket.MessageText, []byte("{not json")))
	errEv := readUntil(t, ctx, alice, proto.OutboundTypeError)
	require.Equal(t, core.ErrCodeInvalidFormat, errEv.Error.Code)

	require.NoError(t, wsjson.Write(ctx, alice, proto.Inbound{Type: "teleport"}))
	errEv = readUntil(t, ctx, alice, proto.OutboundTypeError)
	require.Equal(t, core.ErrCodeUnknownType, errEv.Error.Code)

	require.NoError(t, wsjson.Write(ctx, alice, proto.Inbound{Type: proto.InboundTypePing}))
	readUntil(t, ctx, alice, proto.OutboundTypePong)
}

func TestFramesBeyondRateAreRejected(t *testing.T) {
	ts := startTestServer(t, func(cfg *config.Config) {
		cfg.RateLimitPerSecond = 0.001
		cfg.RateLimitBurst = 1
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dial(t, ctx, ts, "alice")

	require.NoError(t, wsjson.Write(ctx, alice, proto.Inbound{Type: proto.InboundTypePing}))
	require.NoError(t, wsjson.Write(ctx, alice, proto.Inbound{Type: proto.InboundTypePing}))

	// The pong comes from the channel actor and the rejection from the
	// transport, so their relative order is not fixed.
	got := map[string]proto.Outbound{}
	for len(got) < 2 {
		var out proto.Outbound
		require.NoError(t, wsjson.Read(ctx, alice, &out))
		got[out.Type] = out
	}
	require.Contains(t, got, proto.OutboundTypePong)
	require.Equal(t, core.ErrCodeRateLimited, got[proto.OutboundTypeError].Error.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	ts := startTestServer(t, func(cfg *config.Config) { cfg.HistoryMaxLimit = 2 })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dial(t, ctx, ts, "alice")
	var sent []proto.Message
	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, wsjson.Write(ctx, alice, proto.Inbound{Type: proto.InboundTypeSendMessage, Content: text}))
		sent = append(sent, *readUntil(t, ctx, alice, proto.OutboundTypeNewMessage).Message)
	}

	get := func(query string) (*http.Response, proto.HistoryResponse) {
		t.Helper()
		resp, err := ts.Client().Get(ts.URL + "/channels/general/messages" + query)
		require.NoError(t, err)
		defer resp.Body.Close()
		var body proto.HistoryResponse
		if resp.StatusCode == http.StatusOK {
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		}
		return resp, body
	}

	resp, body := get("")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body.Messages, 3)
	require.Equal(t, "one", body.Messages[0].Content)
	require.Equal(t, "three", body.Messages[2].Content)

	resp, body = get("?limit=1&before=" + url.QueryEscape(sent[2].Timestamp))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body.Messages, 1)
	require.Equal(t, sent[1].ID, body.Messages[0].ID)

	resp, _ = get("?before=yesterday")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = get("?limit=-3")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = get("?limit=2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body.Messages, 2)
	resp, _ = get("?limit=3")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, "limits above the cap are rejected, not truncated")
}

func TestMetricsEndpoint(t *testing.T) {
	ts := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dial(t, ctx, ts, "alice")
	require.NoError(t, wsjson.Write(ctx, alice, proto.Inbound{Type: proto.InboundTypePing}))
	readUntil(t, ctx, alice, proto.OutboundTypePong)

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `wirechat_commands_total{outcome="ok",type="ping"} 1`)
	require.Contains(t, string(body), "wirechat_sessions 1")
}
