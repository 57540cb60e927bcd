package model

import (
	"strconv"
	"strings"
)

// Address 是一个候选代理端点。Host 原样保留, 不做 DNS 或 IP 格式校验。
type Address struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// String 返回 "host:port" 形式, 也是输出文件中每一行的内容。
func (a Address) String() string {
	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Protocol 是候选代理所使用的握手协议。
type Protocol int

const (
	ProtocolHTTP Protocol = iota + 1
	ProtocolSOCKS4
	ProtocolSOCKS5
)

func (p Protocol) String() string {
	switch p {
	case ProtocolHTTP:
		return "http"
	case ProtocolSOCKS4:
		return "socks4"
	case ProtocolSOCKS5:
		return "socks5"
	default:
		return "unknown"
	}
}

// ParseProtocol matches name case-insensitively against "http", "socks4" and "socks5".
func ParseProtocol(name string) (Protocol, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "http":
		return ProtocolHTTP, true
	case "socks4":
		return ProtocolSOCKS4, true
	case "socks5":
		return ProtocolSOCKS5, true
	default:
		return 0, false
	}
}
