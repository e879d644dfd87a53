package sizeparse

import (
	"fmt"
	"strconv"
	"strings"
)

// 单位按优先级匹配：先试 GB/MB/KB，最后才是 B。
// 顺序是契约的一部分（"B" 只有在 GB/MB/KB 都不匹配时才生效）。
var units = []struct {
	suffix string
	mul    int64
}{
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// InvalidSizeError 表示大小字符串无法解析。
// 上层可把它映射为 error_code=invalid_size。
type InvalidSizeError struct {
	Input string
	Err   error
}

func (e *InvalidSizeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("无法解析大小 %q：%v", e.Input, e.Err)
	}
	return fmt.Sprintf("无法解析大小 %q", e.Input)
}

func (e *InvalidSizeError) Unwrap() error { return e.Err }

// Parse 把人类可读的大小字符串解析为字节数。
//
// 语法：十进制数字 + 可选单位后缀（GB/MB/KB/B，大小写不敏感）。
// - 带后缀时数字允许小数（"1.5GB" => 1.5 * 1024³）
// - 无后缀时按原始整数字节数解析（"100" => 100）
//
// 单位是 1024 进制：GB=1024³、MB=1024²、KB=1024、B=1。
func Parse(s string) (int64, error) {
	raw := s
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, &InvalidSizeError{Input: raw}
	}

	for _, u := range units {
		if !strings.HasSuffix(s, u.suffix) {
			continue
		}
		num := strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
		f, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, &InvalidSizeError{Input: raw, Err: err}
		}
		if f < 0 {
			return 0, &InvalidSizeError{Input: raw, Err: fmt.Errorf("大小不能为负数")}
		}
		return int64(f * float64(u.mul)), nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &InvalidSizeError{Input: raw, Err: err}
	}
	if n < 0 {
		return 0, &InvalidSizeError{Input: raw, Err: fmt.Errorf("大小不能为负数")}
	}
	return n, nil
}
