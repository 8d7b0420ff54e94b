package rag

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// NewTiktokenLength 返回基于 tiktoken 编码的 token 计数长度函数.
// encoding 为空时使用 cl100k_base.
func NewTiktokenLength(encoding string) (LengthFunc, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %q: %w", encoding, err)
	}
	return func(s string) int {
		return len(enc.Encode(s, nil, nil))
	}, nil
}
