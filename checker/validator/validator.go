package validator

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
	"h12.io/socks"

	"liuproxy_checker/checker/model"
	"liuproxy_checker/internal/shared/logger"
)

const defaultValidationTarget = "www.google.com:443"

// Prober 判断一个候选代理能否以给定协议完成握手。
type Prober interface {
	Probe(ctx context.Context, protocol model.Protocol, addr model.Address) bool
}

// Options 配置 Validator。
type Options struct {
	// Target 是要求候选代理建立隧道的目标地址。
	Target string
	// Timeout 限制单次探测的总时长, 0 表示只受调用方 ctx 约束。
	Timeout time.Duration
}

// Validator 通过候选代理对 Target 发起一次传输层连接来判定其可用性。
// 它不经由隧道发送任何业务数据。
type Validator struct {
	target  string
	timeout time.Duration
}

var _ Prober = (*Validator)(nil)

func NewValidator(opts Options) *Validator {
	target := opts.Target
	if target == "" {
		target = defaultValidationTarget
	}
	return &Validator{
		target:  target,
		timeout: opts.Timeout,
	}
}

// Probe 返回握手是否成功。所有失败 (拒绝、超时、重置、握手错误) 都统一返回 false。
func (v *Validator) Probe(ctx context.Context, protocol model.Protocol, addr model.Address) bool {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	var (
		conn net.Conn
		err  error
	)
	proxyAddr := net.JoinHostPort(addr.Host, strconv.Itoa(addr.Port))

	switch protocol {
	case model.ProtocolHTTP:
		conn, err = v.dialHttpConnect(ctx, proxyAddr)
	case model.ProtocolSOCKS4:
		conn, err = v.dialSocks4(ctx, proxyAddr)
	case model.ProtocolSOCKS5:
		conn, err = v.dialSocks5(ctx, proxyAddr)
	default:
		err = fmt.Errorf("unsupported protocol: %s", protocol)
	}

	if err != nil {
		l := logger.WithComponent("Checker/Validator")
		l.Debug().Err(err).Str("proxy", proxyAddr).Str("protocol", protocol.String()).Msg("Probe failed.")
		return false
	}
	conn.Close()
	return true
}

// dialHttpConnect 连接候选代理并发送 HTTP CONNECT 请求, 只有 200 响应才算成功。
func (v *Validator) dialHttpConnect(ctx context.Context, proxyAddr string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", proxyAddr)
	if err != nil {
		return nil, err
	}

	// 握手期间 ctx 被取消时立即中断阻塞的读写。
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	connectReq := &http.Request{
		Method: "CONNECT",
		URL:    &url.URL{Host: v.target},
		Host:   v.target,
		Header: make(http.Header),
	}
	connectReq.Header.Set("User-Agent", "liuproxy-checker/1.0")

	if err := connectReq.Write(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to write CONNECT request: %w", err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), connectReq)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read CONNECT response: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, fmt.Errorf("proxy returned non-200 status for CONNECT: %d", resp.StatusCode)
	}

	conn.SetDeadline(time.Time{})
	return conn, nil
}

// dialSocks5 uses the context-aware SOCKS5 dialer from x/net/proxy.
func (v *Validator) dialSocks5(ctx context.Context, proxyAddr string) (net.Conn, error) {
	dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, &net.Dialer{})
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	return dialer.(proxy.ContextDialer).DialContext(ctx, "tcp", v.target)
}

// dialSocks4 使用 h12.io/socks。该库没有 ctx 接口, 因此拨号放在 goroutine 中,
// ctx 结束后迟到的连接会被直接关闭。
func (v *Validator) dialSocks4(ctx context.Context, proxyAddr string) (net.Conn, error) {
	proxyURI := "socks4://" + proxyAddr
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline).Round(time.Millisecond)
		if remaining < time.Millisecond {
			return nil, context.DeadlineExceeded
		}
		proxyURI += "?timeout=" + remaining.String()
	}
	dial := socks.Dial(proxyURI)

	type result struct {
		conn net.Conn
		err  error
	}
	resultChan := make(chan result, 1)
	go func() {
		conn, err := dial("tcp", v.target)
		resultChan <- result{conn: conn, err: err}
	}()

	select {
	case r := <-resultChan:
		return r.conn, r.err
	case <-ctx.Done():
		go func() {
			if r := <-resultChan; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}
