// Package address 提供硬件地址规范化
//
// 判定规则：第一字节的 0x02 位（本地管理位）置位 → 随机化地址，
// 厂商 OUI 查询对其无意义
package address

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAddress 地址格式非法（非 6 组冒号分隔的十六进制字节）
var ErrInvalidAddress = errors.New("invalid hardware address format")

// Address 规范化后的硬件地址
type Address struct {
	Canonical    string  // 大写冒号分隔形式，如 "AA:BB:CC:11:22:33"
	Bytes        [6]byte // 原始字节
	IsRandomized bool    // 本地管理位（随机化）标志，入库时计算一次，之后不再重算
}

// Normalize 规范化原始地址并判定是否为随机化地址
// 纯函数，无副作用
func Normalize(raw string) (Address, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 6 {
		// 兼容连字符分隔
		parts = strings.Split(strings.TrimSpace(raw), "-")
	}
	if len(parts) != 6 {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}

	var addr Address
	for i, p := range parts {
		if len(p) != 2 {
			return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
		}
		b, err := hex.DecodeString(p)
		if err != nil {
			return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
		}
		addr.Bytes[i] = b[0]
	}

	addr.Canonical = fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X",
		addr.Bytes[0], addr.Bytes[1], addr.Bytes[2],
		addr.Bytes[3], addr.Bytes[4], addr.Bytes[5])

	// 第一字节 bit1 为本地管理位
	addr.IsRandomized = addr.Bytes[0]&0x02 != 0

	return addr, nil
}

// OUI 返回厂商前缀（前 3 字节），仅对非随机化地址有意义
func (a Address) OUI() string {
	return a.Canonical[:8]
}
