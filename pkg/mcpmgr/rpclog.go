package mcpmgr

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (m *Manager) rpcLogger() RPCLogger {
	if m.options.RPCLogger != nil {
		return m.options.RPCLogger
	}
	if !m.options.LogJSONRPC {
		return nil
	}
	logger := m.logger
	return func(event RPCLogEvent) {
		logger.Debug("jsonrpc",
			"server", event.ServerKey,
			"direction", string(event.Direction),
			"message", string(event.Message))
	}
}

type loggingTransport struct {
	serverKey string
	delegate  mcp.Transport
	logger    RPCLogger
}

func (t *loggingTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	conn, err := t.delegate.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &loggingConnection{serverKey: t.serverKey, delegate: conn, logger: t.logger}, nil
}

type loggingConnection struct {
	serverKey string
	delegate  mcp.Connection
	logger    RPCLogger
	mu        sync.Mutex
}

func (c *loggingConnection) SessionID() string { return c.delegate.SessionID() }

func (c *loggingConnection) Read(ctx context.Context) (jsonrpc.Message, error) {
	msg, err := c.delegate.Read(ctx)
	if err == nil {
		c.emit(RPCDirectionReceive, msg)
	}
	return msg, err
}

func (c *loggingConnection) Write(ctx context.Context, msg jsonrpc.Message) error {
	if err := c.delegate.Write(ctx, msg); err != nil {
		return err
	}
	c.emit(RPCDirectionSend, msg)
	return nil
}

func (c *loggingConnection) Close() error { return c.delegate.Close() }

func (c *loggingConnection) emit(direction RPCDirection, msg jsonrpc.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	encoded, err := json.Marshal(msg)
	if err != nil {
		encoded = []byte(err.Error())
	}
	c.logger(RPCLogEvent{Direction: direction, Message: encoded, ServerKey: c.serverKey})
}
