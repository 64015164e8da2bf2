package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bazari/settlement/pkg/circuit"
)

// Client is a minimal JSON-RPC 2.0 client over a node WebSocket connection.
// The node exposes the pallet surfaces this layer needs as JSON RPC methods;
// SCALE-level encoding stays inside the node. One reader goroutine
// correlates responses to in-flight calls by request id.
type Client struct {
	conn    *websocket.Conn
	logger  *log.Logger
	breaker *circuit.Breaker

	writeMu sync.Mutex
	mu      sync.Mutex
	pending map[uint64]chan rpcResponse
	nextID  uint64
	closed  bool
	done    chan struct{}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Dial connects to the node's WebSocket RPC endpoint.
func Dial(ctx context.Context, url string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Default()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain node: %w", err)
	}

	c := &Client{
		conn:    conn,
		logger:  logger,
		breaker: circuit.New(5, 10*time.Second),
		pending: make(map[uint64]chan rpcResponse),
		done:    make(chan struct{}),
	}
	c.breaker.OnStateChange(func(from, to circuit.State) {
		logger.Printf("[chain-rpc] circuit breaker %s -> %s", from, to)
	})

	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.failPending(fmt.Errorf("connection lost: %w", err))
			return
		}

		var resp rpcResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			c.logger.Printf("[chain-rpc] dropping unparseable frame: %v", err)
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()

		if ok {
			ch <- resp
		}
	}
}

func (c *Client) failPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, ch := range c.pending {
		ch <- rpcResponse{ID: id, Error: &rpcError{Code: -1, Message: err.Error()}}
		delete(c.pending, id)
	}
}

// Call performs one RPC round trip. result may be nil to discard the
// response body; a JSON null result leaves *result untouched. Calls are
// shed with circuit.ErrOpen while the node is failing repeatedly.
func (c *Client) Call(ctx context.Context, method string, params interface{}, result interface{}) error {
	return c.breaker.Do(func() error {
		return c.call(ctx, method, params, result)
	})
}

func (c *Client) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("chain client is closed")
	}
	c.nextID++
	id := c.nextID
	ch := make(chan rpcResponse, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	payload, err := json.Marshal(req)
	if err != nil {
		c.drop(id)
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	c.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
	} else {
		c.conn.SetWriteDeadline(time.Time{})
	}
	err = c.conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if err != nil {
		c.drop(id)
		return fmt.Errorf("failed to send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		c.drop(id)
		return fmt.Errorf("%s: %w", method, ctx.Err())
	case resp := <-ch:
		if resp.Error != nil {
			return fmt.Errorf("%s failed: %w", method, resp.Error)
		}
		if result == nil || len(resp.Result) == 0 || string(resp.Result) == "null" {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
		return nil
	}
}

func (c *Client) drop(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Close tears down the connection and fails any in-flight calls.
func (c *Client) Close() error {
	err := c.conn.Close()
	<-c.done
	return err
}
