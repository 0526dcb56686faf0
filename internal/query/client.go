// Package query 实现 SA-MP 服务器的 UDP 查询协议（单包请求/单包响应）
package query

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"sampmon/internal/logger"
)

// Kind 查询类型（即协议 opcode）
type Kind string

const (
	KindInfo    Kind = "serverinfo"
	KindPlayers Kind = "players"
	KindPing    Kind = "ping"
)

// 协议常量
var magic = []byte{'S', 'A', 'M', 'P', 0, 0, 0, 0}

const maxResponseSize = 4096

// Response 单次查询的原始响应
type Response struct {
	Kind    Kind
	Payload []byte
	RTT     time.Duration
}

// PlayerCount 按行数估算玩家数：行数减一，即换行符个数（空响应为 0）
func (r *Response) PlayerCount() int {
	if r == nil {
		return 0
	}
	return bytes.Count(r.Payload, []byte{'\n'})
}

// PingMillis 返回往返时延（毫秒）
func (r *Response) PingMillis() int {
	if r == nil {
		return 0
	}
	return int(r.RTT / time.Millisecond)
}

// Client UDP 查询客户端（无状态，可并发使用）
type Client struct {
	dialer net.Dialer
}

// NewClient 创建查询客户端
func NewClient() *Client {
	return &Client{}
}

// Query 发送一个查询包并等待一个响应包
// 不做重试；阻塞时间不超过 timeout（ctx 截止时间更早时以 ctx 为准）
func (c *Client) Query(ctx context.Context, host string, port int, kind Kind, timeout time.Duration) (*Response, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	conn, err := c.dialer.DialContext(dialCtx, "udp", addr)
	if err != nil {
		return nil, wrapNetErr(addr, kind, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return nil, &Error{Code: ErrCodeNetwork, Address: addr, Message: "设置超时失败", Err: err}
	}

	start := time.Now()
	if _, err := conn.Write(BuildPacket(kind)); err != nil {
		return nil, wrapNetErr(addr, kind, err)
	}

	buf := make([]byte, maxResponseSize)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, wrapNetErr(addr, kind, err)
	}
	rtt := time.Since(start)

	logger.Debug("query", "收到响应", "addr", addr, "kind", kind, "bytes", n, "rtt", rtt)

	return &Response{Kind: kind, Payload: buf[:n], RTT: rtt}, nil
}

// BuildPacket 构造查询包：magic + opcode + 0x00
func BuildPacket(kind Kind) []byte {
	packet := make([]byte, 0, len(magic)+len(kind)+1)
	packet = append(packet, magic...)
	packet = append(packet, kind...)
	return append(packet, 0)
}

func wrapNetErr(addr string, kind Kind, err error) error {
	var ne net.Error
	if (errors.As(err, &ne) && ne.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			Code:    ErrCodeTimeout,
			Address: addr,
			Message: fmt.Sprintf("Query timeout: %s", addr),
			Err:     err,
		}
	}
	return &Error{
		Code:    ErrCodeNetwork,
		Address: addr,
		Message: fmt.Sprintf("Query failed (%s)", kind),
		Err:     err,
	}
}
