package loader

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"liuproxy_checker/checker/model"
	"liuproxy_checker/internal/shared/logger"
)

const maxLineSize = 1 << 20

// LoadLines 读取输入文件的全部行。行尾的 "\r" 由 bufio.Scanner 去除。
func LoadLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	lines := make([]string, 0)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// Parse 将文本行解析为地址。格式不正确的行被静默丢弃, 输出顺序与输入一致且不去重。
func Parse(lines []string) []model.Address {
	l := logger.WithComponent("Checker/Loader")

	addresses := make([]model.Address, 0, len(lines))
	for i, line := range lines {
		addr, ok := parseLine(line)
		if !ok {
			if line != "" {
				l.Debug().Int("line", i+1).Str("text", line).Msg("Dropping malformed line.")
			}
			continue
		}
		addresses = append(addresses, addr)
	}
	return addresses
}

func parseLine(line string) (model.Address, bool) {
	parts := strings.Split(line, ":")
	if len(parts) != 2 || parts[0] == "" || !isDigits(parts[1]) {
		return model.Address{}, false
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil {
		// Out of int range.
		return model.Address{}, false
	}
	return model.Address{Host: parts[0], Port: port}, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
