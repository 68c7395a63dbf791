package pinverify

import (
	"crypto/subtle"

	"voicebox/backend/internal/domain"
)

// Verify 比较来电者输入的 PIN 与存储的 PIN。
//
// 整个比较使用恒定时间算法，总耗时与前缀匹配位数无关，输入正确
// 三位与一位不正确在时间上不可区分。早期版本按错误位数追加延时，
// 留下了按位试探的时间侧信道，这里不再保留该行为。
func Verify(entered, stored string) bool {
	if len(entered) != len(stored) {
		// 长度不符时仍执行一次等长比较，保持耗时平坦
		subtle.ConstantTimeCompare([]byte(stored), []byte(stored))
		return false
	}
	return subtle.ConstantTimeCompare([]byte(entered), []byte(stored)) == 1
}

// ValidFormat 判断输入是否为合法的 4 位数字 PIN。
//
// 过短或为空的输入在采集层即短路为失败，不进入比较。
func ValidFormat(pin string) bool {
	if len(pin) != domain.PinLength {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
