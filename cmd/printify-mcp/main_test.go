package main

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer() *server {
	return &server{
		clients: make(map[string]*sseClient),
		logger:  zerolog.Nop(),
		audit:   zerolog.Nop(),
	}
}

func TestDispatchUnknownMethod(t *testing.T) {
	s := newTestServer()
	resp := s.dispatch(context.Background(), jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      json.RawMessage("1"),
		Method:  "no/such/method",
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)
}

func TestDispatchDeliversToRegisteredClient(t *testing.T) {
	s := newTestServer()
	client := &sseClient{id: "c1", ch: make(chan jsonrpcResponse, 10)}
	s.mu.Lock()
	s.clients["c1"] = client
	s.mu.Unlock()

	s.handleRequest("c1", context.Background(), jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      json.RawMessage("7"),
		Method:  "tools/list",
	})

	select {
	case resp := <-client.ch:
		assert.Nil(t, resp.Error)
		assert.Equal(t, json.RawMessage("7"), resp.ID)
	default:
		t.Fatal("expected a response on the client channel")
	}
}

// Tearing a client down while dispatches are in flight must never panic:
// the channel is closed under the write lock, sends happen under the read
// lock.
func TestClientTeardownDuringDispatch(t *testing.T) {
	s := newTestServer()
	client := &sseClient{id: "c1", ch: make(chan jsonrpcResponse, 1)}
	s.mu.Lock()
	s.clients["c1"] = client
	s.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleRequest("c1", context.Background(), jsonrpcRequest{
				JSONRPC: "2.0",
				Method:  "tools/list",
			})
		}()
	}

	// Same teardown sequence the SSE handler runs on disconnect.
	s.mu.Lock()
	delete(s.clients, "c1")
	close(client.ch)
	s.mu.Unlock()

	wg.Wait()
}
