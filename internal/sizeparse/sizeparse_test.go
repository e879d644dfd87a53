package sizeparse

import (
	"errors"
	"testing"
)

func TestParse_Units(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"20GB", 20 * (1 << 30)},
		{"512MB", 512 * (1 << 20)},
		{"4KB", 4 * (1 << 10)},
		{"123B", 123},
		{"100", 100},
		{"0", 0},
		// 大小写不敏感 + 前后空白。
		{"20gb", 20 * (1 << 30)},
		{" 1mb ", 1 << 20},
		// 带后缀时允许小数。
		{"1.5GB", int64(1.5 * float64(1<<30))},
		{"0.5KB", 512},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q) 不期望错误：%v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("Parse(%q) = %d，期望 %d", c.in, got, c.want)
		}
	}
}

func TestParse_SuffixPriority(t *testing.T) {
	// "B" 只能在 GB/MB/KB 都不匹配时生效：
	// "20GB" 必须按 GB 解析，而不是把 "20G" 当作数字 + "B"。
	got, err := Parse("20GB")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got != 20*(1<<30) {
		t.Fatalf("后缀优先级错误：got=%d", got)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "GB", "abcMB", "1.5", "-1", "-2GB", "12.3"} {
		_, err := Parse(in)
		if err == nil {
			t.Fatalf("Parse(%q) 期望失败，但得到 nil", in)
		}
		var ie *InvalidSizeError
		if !errors.As(err, &ie) {
			t.Fatalf("Parse(%q) 期望 *InvalidSizeError，实际 %T", in, err)
		}
		if ie.Input != in {
			t.Fatalf("错误里应保留原始输入：%q != %q", ie.Input, in)
		}
	}
}
