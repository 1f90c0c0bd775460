package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lox/freezeout/internal/protocol"
)

// newLoopback starts an httptest server that performs the Noise responder
// handshake on every accepted connection and hands the resulting *Conn to
// onAccept in a goroutine, then dials a client connection and performs the
// initiator handshake on it.
func newLoopback(t *testing.T, onAccept func(*Conn)) *Conn {
	t.Helper()

	var upgrader websocket.Upgrader
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		serverConn, err := Accept(ws)
		if err != nil {
			t.Errorf("Accept: %v", err)
			return
		}
		onAccept(serverConn)
	}))
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	clientWS, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { clientWS.Close() })

	clientConn, err := Connect(clientWS)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return clientConn
}

func TestHandshakeThenSignedMessageRoundTrip(t *testing.T) {
	t.Parallel()

	key, err := protocol.GenerateSigningKey()
	if err != nil {
		t.Fatalf("GenerateSigningKey: %v", err)
	}

	received := make(chan protocol.Message, 1)
	client := newLoopback(t, func(server *Conn) {
		msg, _, err := server.Recv()
		if err != nil {
			t.Errorf("server Recv: %v", err)
			return
		}
		received <- msg
	})

	env, err := protocol.Sign(key, protocol.JoinServer{Nickname: "alice"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := client.Send(env); err != nil {
		t.Fatalf("client Send: %v", err)
	}

	select {
	case msg := <-received:
		if msg != (protocol.Message)(protocol.JoinServer{Nickname: "alice"}) {
			t.Fatalf("server received %#v, want JoinServer{alice}", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to receive message")
	}
}

func TestBidirectionalAfterHandshake(t *testing.T) {
	t.Parallel()

	key, err := protocol.GenerateSigningKey()
	if err != nil {
		t.Fatalf("GenerateSigningKey: %v", err)
	}

	serverReady := make(chan *Conn, 1)
	client := newLoopback(t, func(server *Conn) {
		serverReady <- server
	})

	var server *Conn
	select {
	case server = <-serverReady:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server conn")
	}

	clientToServer, err := protocol.Sign(key, protocol.ShowAccount{Chips: 42})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := client.Send(clientToServer); err != nil {
		t.Fatalf("client Send: %v", err)
	}
	gotOnServer, _, err := server.Recv()
	if err != nil {
		t.Fatalf("server Recv: %v", err)
	}
	if gotOnServer != (protocol.Message)(protocol.ShowAccount{Chips: 42}) {
		t.Fatalf("server received %#v", gotOnServer)
	}

	serverToClient, err := protocol.Sign(key, protocol.NotEnoughChips{})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := server.Send(serverToClient); err != nil {
		t.Fatalf("server Send: %v", err)
	}
	gotOnClient, _, err := client.Recv()
	if err != nil {
		t.Fatalf("client Recv: %v", err)
	}
	if gotOnClient != (protocol.Message)(protocol.NotEnoughChips{}) {
		t.Fatalf("client received %#v", gotOnClient)
	}
}
