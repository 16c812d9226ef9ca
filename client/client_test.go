package client_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/joyrelay/client"
	"github.com/Alia5/joyrelay/event"
	"github.com/Alia5/joyrelay/frame"
	"github.com/Alia5/joyrelay/internal/log"
	"github.com/Alia5/joyrelay/internal/server/relay"
	th "github.com/Alia5/joyrelay/internal/testing"
	"github.com/Alia5/joyrelay/relayerr"
)

func pipe(t *testing.T) (clientSide, serverSide net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return a, b
}

func writeFrames(t *testing.T, w net.Conn, payloads ...string) {
	t.Helper()
	for _, p := range payloads {
		require.NoError(t, frame.Write(w, []byte(p)))
	}
}

func connect(t *testing.T, buttons string) (*client.Client, net.Conn) {
	t.Helper()
	c, s := pipe(t)
	go func() { _ = frame.Write(s, []byte(buttons)) }()
	cl, err := client.NewFromConn(context.Background(), c, nil)
	require.NoError(t, err)
	return cl, s
}

func TestHandshake(t *testing.T) {
	cl, _ := connect(t, "12")
	assert.Equal(t, 12, cl.ButtonCount())
}

func TestHandshakeFailures(t *testing.T) {
	tests := []struct {
		name   string
		server func(s net.Conn)
		kind   error
	}{
		{
			name:   "closed before header",
			server: func(s net.Conn) { _ = s.Close() },
			kind:   relayerr.ErrConnectionClosed,
		},
		{
			name: "closed inside payload",
			server: func(s net.Conn) {
				_, _ = s.Write([]byte{0, 0, 0, 2, '1'})
				_ = s.Close()
			},
			kind: relayerr.ErrConnectionClosed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, s := pipe(t)
			go tt.server(s)
			_, err := client.NewFromConn(context.Background(), c, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestHandshakeRejectsGarbage(t *testing.T) {
	c, s := pipe(t)
	go func() { _ = frame.Write(s, []byte(`"twelve"`)) }()
	_, err := client.NewFromConn(context.Background(), c, nil)
	assert.Error(t, err)
}

func TestListenYieldsBatchesInOrder(t *testing.T) {
	cl, s := connect(t, "8")
	go func() {
		// Single bytes so every frame spans many reads.
		var all []byte
		for _, p := range []string{
			`[{"type":"button","button":4,"pressed":true}]`,
			`[]`,
			`[{"type":"button","button":4,"pressed":false},{"type":"button","button":6,"pressed":true}]`,
		} {
			all = append(all, frame.Encode([]byte(p))...)
		}
		for _, b := range all {
			if _, err := s.Write([]byte{b}); err != nil {
				return
			}
		}
	}()

	want := []event.Batch{
		{event.Press(4)},
		{},
		{event.Release(4), event.Press(6)},
	}
	for _, w := range want {
		got, ok := cl.Listen()
		require.True(t, ok)
		assert.Equal(t, w, got)
	}
}

func TestListenReportsDisconnect(t *testing.T) {
	cl, s := connect(t, "8")
	go func() {
		writeFrames(t, s, `[]`)
		_ = s.Close()
	}()

	_, ok := cl.Listen()
	require.True(t, ok)
	for range 3 {
		batch, ok := cl.Listen()
		assert.False(t, ok)
		assert.Nil(t, batch)
	}
}

func TestNextErrorKinds(t *testing.T) {
	cl, s := connect(t, "8")
	go func() { _ = s.Close() }()

	_, err := cl.Next(context.Background())
	assert.ErrorIs(t, err, relayerr.ErrConnectionClosed)
}

func TestNextCancelKeepsStreamPosition(t *testing.T) {
	cl, s := connect(t, "8")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := cl.Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	go writeFrames(t, s, `[{"type":"button","button":5,"pressed":true}]`)
	got, err := cl.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, event.Batch{event.Press(5)}, got)
}

func TestReleaseUnblocksAndIsIdempotent(t *testing.T) {
	cl, _ := connect(t, "8")

	done := make(chan bool, 1)
	go func() {
		_, ok := cl.Listen()
		done <- ok
	}()
	time.Sleep(10 * time.Millisecond)
	cl.Release()
	cl.Release()
	assert.NoError(t, cl.Close())

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after Release")
	}
}

func TestDialAgainstServer(t *testing.T) {
	src := th.NewScriptedSource(12)
	srv := relay.New(relay.Config{Addr: "127.0.0.1:0"}, src, log.Discard(), log.NewRaw(nil))
	go func() { _ = srv.ListenAndServe() }()
	defer srv.Close()
	<-srv.Ready()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cl, err := client.Dial(ctx, srv.Addr().String(), nil)
	require.NoError(t, err)
	defer cl.Release()
	assert.Equal(t, 12, cl.ButtonCount())

	src.Press(7)
	for {
		batch, err := cl.Next(ctx)
		require.NoError(t, err)
		if len(batch) > 0 {
			assert.Equal(t, event.Batch{event.Press(7)}, batch)
			return
		}
	}
}

func TestDialNoServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = client.Dial(context.Background(), addr, &client.Config{DialTimeout: time.Second})
	assert.Error(t, err)
}
