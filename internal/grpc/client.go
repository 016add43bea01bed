package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/erg0nix/konsilium/internal/agent"
	"github.com/erg0nix/konsilium/internal/core"
)

// Client calls a running daemon.
type Client struct {
	conn *grpc.ClientConn
}

func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial daemon %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Chat(ctx context.Context, message string) (agent.Result, error) {
	req, err := toStruct(ChatRequest{Message: message})
	if err != nil {
		return agent.Result{}, err
	}

	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, "/"+AgentServiceName+"/Chat", req, out); err != nil {
		return agent.Result{}, err
	}

	var result agent.Result
	err = fromStruct(out, &result)
	return result, err
}

func (c *Client) Reset(ctx context.Context) error {
	return c.conn.Invoke(ctx, "/"+AgentServiceName+"/Reset", &emptypb.Empty{}, &emptypb.Empty{})
}

func (c *Client) Stats(ctx context.Context) (agent.Status, error) {
	var agentStatus agent.Status
	err := c.invokeEmpty(ctx, "/"+AgentServiceName+"/Stats", &agentStatus)
	return agentStatus, err
}

func (c *Client) History(ctx context.Context) ([]core.Message, error) {
	var history HistoryResponse
	err := c.invokeEmpty(ctx, "/"+AgentServiceName+"/History", &history)
	return history.Messages, err
}

func (c *Client) DaemonStatus(ctx context.Context) (DaemonStatus, error) {
	var daemonStatus DaemonStatus
	err := c.invokeEmpty(ctx, "/"+DaemonServiceName+"/Status", &daemonStatus)
	return daemonStatus, err
}

func (c *Client) Shutdown(ctx context.Context) error {
	var reply map[string]string
	return c.invokeEmpty(ctx, "/"+DaemonServiceName+"/Shutdown", &reply)
}

func (c *Client) invokeEmpty(ctx context.Context, method string, v any) error {
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, method, &emptypb.Empty{}, out); err != nil {
		return err
	}
	return fromStruct(out, v)
}
