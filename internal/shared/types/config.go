package types

import "time"

// CheckerConf 包含检查引擎的行为配置
type CheckerConf struct {
	Concurrency      int    `ini:"concurrency"`        // 同时进行的探测上限, <=0 表示不设上限
	ProbeTimeoutMs   int    `ini:"probe_timeout_ms"`   // 单次探测超时
	ProbeTarget      string `ini:"probe_target"`       // 通过候选代理建立隧道的目标地址
	QueueSize        int    `ini:"queue_size"`         // 结果写入队列的缓冲大小
	Fsync            bool   `ini:"fsync"`              // 每写一行后是否 fsync
	ReportIntervalMs int    `ini:"report_interval_ms"` // 计数器采样间隔
}

// WebConf 包含 Web 控制面的配置
type WebConf struct {
	WebPort     int    `ini:"web_port"`
	WebUser     string `ini:"web_user"`
	WebPassword string `ini:"web_password"`
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// Config 是 checker 项目的统一配置结构体
type Config struct {
	CheckerConf `ini:"checker"`
	WebConf     `ini:"web"`
	LogConf     `ini:"log"`
}

// DefaultConfig 返回在没有 ini 文件时使用的默认配置。
func DefaultConfig() *Config {
	return &Config{
		CheckerConf: CheckerConf{
			Concurrency:      512,
			ProbeTimeoutMs:   10000,
			ProbeTarget:      "www.google.com:443",
			QueueSize:        1024,
			ReportIntervalMs: 1000,
		},
		LogConf: LogConf{Level: "info"},
	}
}

// ProbeTimeout converts ProbeTimeoutMs to a duration. Zero means no per-probe timeout.
func (c CheckerConf) ProbeTimeout() time.Duration {
	if c.ProbeTimeoutMs <= 0 {
		return 0
	}
	return time.Duration(c.ProbeTimeoutMs) * time.Millisecond
}

// ReportInterval converts ReportIntervalMs to a duration, defaulting to one second.
func (c CheckerConf) ReportInterval() time.Duration {
	if c.ReportIntervalMs <= 0 {
		return time.Second
	}
	return time.Duration(c.ReportIntervalMs) * time.Millisecond
}
