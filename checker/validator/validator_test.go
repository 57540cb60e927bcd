package validator

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"liuproxy_checker/checker/model"
)

const testTarget = "127.0.0.1:9"

// startFakeProxy runs handle for every accepted connection and returns the listener address.
func startFakeProxy(t *testing.T, handle func(net.Conn)) model.Address {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				handle(conn)
			}()
		}
	}()

	tcpAddr := ln.Addr().(*net.TCPAddr)
	return model.Address{Host: tcpAddr.IP.String(), Port: tcpAddr.Port}
}

// closedAddress returns an address on which nothing is listening.
func closedAddress(t *testing.T) model.Address {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return model.Address{Host: "127.0.0.1", Port: port}
}

func httpConnectHandler(status int) func(net.Conn) {
	return func(conn net.Conn) {
		req, err := http.ReadRequest(bufio.NewReader(conn))
		if err != nil || req.Method != "CONNECT" || req.Host != testTarget {
			conn.Write([]byte("HTTP/1.1 400 Bad Request\r\n\r\n"))
			return
		}
		conn.Write([]byte("HTTP/1.1 " + strconv.Itoa(status) + " " + http.StatusText(status) + "\r\n\r\n"))
		io.Copy(io.Discard, conn)
	}
}

func socks5Handler(reply byte) func(net.Conn) {
	return func(conn net.Conn) {
		// Greeting: VER NMETHODS METHODS...
		head := make([]byte, 2)
		if _, err := io.ReadFull(conn, head); err != nil || head[0] != 0x05 {
			return
		}
		if _, err := io.ReadFull(conn, make([]byte, head[1])); err != nil {
			return
		}
		conn.Write([]byte{0x05, 0x00})

		// Request: VER CMD RSV ATYP(IPv4) ADDR(4) PORT(2)
		req := make([]byte, 10)
		if _, err := io.ReadFull(conn, req); err != nil || req[1] != 0x01 || req[3] != 0x01 {
			return
		}
		conn.Write([]byte{0x05, reply, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		io.Copy(io.Discard, conn)
	}
}

func socks4Handler(reply byte) func(net.Conn) {
	return func(conn net.Conn) {
		// VN CD DSTPORT(2) DSTIP(4) USERID NULL
		req := make([]byte, 8)
		if _, err := io.ReadFull(conn, req); err != nil || req[0] != 0x04 {
			return
		}
		br := bufio.NewReader(conn)
		if _, err := br.ReadBytes(0x00); err != nil {
			return
		}
		conn.Write([]byte{0x00, reply, 0, 0, 0, 0, 0, 0})
		io.Copy(io.Discard, br)
	}
}

func silentHandler(conn net.Conn) {
	io.Copy(io.Discard, conn)
}

func newTestValidator(timeout time.Duration) *Validator {
	return NewValidator(Options{Target: testTarget, Timeout: timeout})
}

func TestProbe_Good(t *testing.T) {
	cases := []struct {
		name     string
		protocol model.Protocol
		handler  func(net.Conn)
	}{
		{"http", model.ProtocolHTTP, httpConnectHandler(http.StatusOK)},
		{"socks4", model.ProtocolSOCKS4, socks4Handler(0x5A)},
		{"socks5", model.ProtocolSOCKS5, socks5Handler(0x00)},
	}
	v := newTestValidator(2 * time.Second)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			addr := startFakeProxy(t, tc.handler)
			if !v.Probe(context.Background(), tc.protocol, addr) {
				t.Errorf("Expected %s probe against %s to succeed", tc.name, addr)
			}
		})
	}
}

func TestProbe_HandshakeRejected(t *testing.T) {
	cases := []struct {
		name     string
		protocol model.Protocol
		handler  func(net.Conn)
	}{
		{"http", model.ProtocolHTTP, httpConnectHandler(http.StatusForbidden)},
		{"socks4", model.ProtocolSOCKS4, socks4Handler(0x5B)},
		{"socks5", model.ProtocolSOCKS5, socks5Handler(0x05)},
	}
	v := newTestValidator(2 * time.Second)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			addr := startFakeProxy(t, tc.handler)
			if v.Probe(context.Background(), tc.protocol, addr) {
				t.Errorf("Expected %s probe to fail on a rejected handshake", tc.name)
			}
		})
	}
}

func TestProbe_WrongProtocol(t *testing.T) {
	v := newTestValidator(2 * time.Second)
	addr := startFakeProxy(t, httpConnectHandler(http.StatusOK))
	if v.Probe(context.Background(), model.ProtocolSOCKS5, addr) {
		t.Error("Expected SOCKS5 probe against an HTTP proxy to fail")
	}
}

func TestProbe_ConnectionRefused(t *testing.T) {
	v := newTestValidator(2 * time.Second)
	addr := closedAddress(t)
	for _, p := range []model.Protocol{model.ProtocolHTTP, model.ProtocolSOCKS4, model.ProtocolSOCKS5} {
		if v.Probe(context.Background(), p, addr) {
			t.Errorf("Expected %s probe against a closed port to fail", p)
		}
	}
}

func TestProbe_TimeoutBoundsSilentProxy(t *testing.T) {
	v := newTestValidator(200 * time.Millisecond)
	addr := startFakeProxy(t, silentHandler)

	for _, p := range []model.Protocol{model.ProtocolHTTP, model.ProtocolSOCKS4, model.ProtocolSOCKS5} {
		start := time.Now()
		if v.Probe(context.Background(), p, addr) {
			t.Errorf("Expected %s probe against a silent proxy to fail", p)
		}
		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Errorf("%s probe took %v, expected it to be bounded by the timeout", p, elapsed)
		}
	}
}

func TestProbe_CallerCancellation(t *testing.T) {
	v := newTestValidator(0)
	addr := startFakeProxy(t, silentHandler)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	if v.Probe(ctx, model.ProtocolHTTP, addr) {
		t.Error("Expected cancelled probe to fail")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Cancelled probe took %v", elapsed)
	}
}

func TestProbe_UnknownProtocol(t *testing.T) {
	v := newTestValidator(time.Second)
	addr := startFakeProxy(t, httpConnectHandler(http.StatusOK))
	if v.Probe(context.Background(), model.Protocol(42), addr) {
		t.Error("Expected unknown protocol to fail")
	}
}
