package sharecode

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"
)

var (
	// ErrInvalidLength 分享码长度不是 6 位
	ErrInvalidLength = errors.New("invalid share code length")
	// ErrInvalidFormat 分享码包含非数字字符
	ErrInvalidFormat = errors.New("invalid share code format")
	// ErrInvalidChecksum 校验位与前五位的奇偶和不符
	ErrInvalidChecksum = errors.New("invalid share code checksum")
	// ErrNegativeMailbox 信箱号不能为负数
	ErrNegativeMailbox = errors.New("mailbox id must not be negative")
)

const (
	codeLength = 6
	// idSpace 三位载荷对 48 取模得到信箱号，因此同一信箱有多种编码。
	idSpace = 48
	// maxMultiplier 载荷 = 信箱号 + 48*k，k 取 [0,17] 保证载荷不超过三位数。
	maxMultiplier = 17
)

// Codec 负责访客分享码的编码与解码。
//
// 码型为 d0 d1d2d3 d4 d5：d0/d4 为填充随机位，d1d2d3 编码信箱号，
// d5 为前五位数字和的奇偶校验位。
type Codec struct {
	mu     sync.Mutex
	random *rand.Rand
}

// New 创建分享码编解码器。
func New() *Codec {
	return &Codec{
		random: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Generate 为指定信箱生成一个 6 位分享码。
//
// 同一信箱每次生成的码大概率不同：填充位与倍数 k 均为随机。
func (c *Codec) Generate(mailboxID int) (string, error) {
	if mailboxID < 0 {
		return "", ErrNegativeMailbox
	}

	c.mu.Lock()
	first := c.random.Intn(10)
	fifth := c.random.Intn(10)
	k := c.random.Intn(maxMultiplier + 1)
	c.mu.Unlock()

	payload := (mailboxID + idSpace*k) % 1000

	prefix := fmt.Sprintf("%d%03d%d", first, payload, fifth)
	return prefix + strconv.Itoa(digitSum(prefix)%2), nil
}

// Decode 校验分享码并还原其中的信箱号。
//
// 校验顺序固定：先长度，再字符格式，最后校验位。格式检查先于校验位，
// 避免对非数字内容做奇偶运算。
func (c *Codec) Decode(code string) (int, error) {
	if len(code) != codeLength {
		return 0, ErrInvalidLength
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return 0, ErrInvalidFormat
		}
	}

	check := int(code[codeLength-1] - '0')
	if digitSum(code[:codeLength-1])%2 != check {
		return 0, ErrInvalidChecksum
	}

	payload, err := strconv.Atoi(code[1:4])
	if err != nil {
		// 前面已做过格式检查，到这里不可能失败
		return 0, ErrInvalidFormat
	}
	return payload % idSpace, nil
}

// digitSum 返回字符串中所有十进制数字之和，调用方保证内容均为数字。
func digitSum(s string) int {
	sum := 0
	for _, r := range s {
		sum += int(r - '0')
	}
	return sum
}
