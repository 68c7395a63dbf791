package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"voicebox/backend/internal/domain"
)

// 信箱字段名，键格式为 "{mailbox}_{field}"。
const (
	fieldState   = "state"
	fieldPin     = "pin"
	fieldVisitor = "visitor"
)

// Credentials 将底层 KV 封装为信箱凭证的类型化操作。
//
// 状态归存储层独占所有：每次转移都重新读取再写回，进程内不做缓存，
// 存储是唯一的真实来源。
type Credentials struct {
	kv KV
}

// NewCredentials 创建凭证存取适配器。
func NewCredentials(kv KV) *Credentials {
	return &Credentials{kv: kv}
}

// SandboxTree 返回沙箱对应的命名空间名。
func SandboxTree(sandbox int) string {
	return fmt.Sprintf("sb_%d", sandbox)
}

// mailboxKey 拼接信箱字段键。
func mailboxKey(mailbox int, field string) string {
	return fmt.Sprintf("%d_%s", mailbox, field)
}

// ReadState 读取信箱当前状态。键不存在时返回 ErrNotFound。
func (c *Credentials) ReadState(ctx context.Context, sandbox, mailbox int) (domain.MailboxState, error) {
	raw, err := c.kv.Get(ctx, SandboxTree(sandbox), mailboxKey(mailbox, fieldState))
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("corrupt state value %q: %w", raw, err)
	}
	return domain.MailboxState(value), nil
}

// WriteState 写入信箱状态，幂等覆盖。
func (c *Credentials) WriteState(ctx context.Context, sandbox, mailbox int, state domain.MailboxState) error {
	return c.kv.Put(ctx, SandboxTree(sandbox), mailboxKey(mailbox, fieldState), strconv.Itoa(int(state)))
}

// ShiftState 以"读取-计算-写回"的方式给状态加上偏移量，返回新状态。
//
// 所有 +k/-k 转移都必须经过这里，绝不做进程内自增，崩溃发生在
// 读写之间时信箱停留在转移前的状态。
func (c *Credentials) ShiftState(ctx context.Context, sandbox, mailbox, delta int) (domain.MailboxState, error) {
	current, err := c.ReadState(ctx, sandbox, mailbox)
	if err != nil {
		return 0, err
	}
	next := current + domain.MailboxState(delta)
	if err := c.WriteState(ctx, sandbox, mailbox, next); err != nil {
		return 0, err
	}
	return next, nil
}

// ReadPIN 读取信箱 PIN。从未设置过 PIN 时返回 ErrNotFound，
// 调用方必须把它与"PIN 错误"区分开。
func (c *Credentials) ReadPIN(ctx context.Context, sandbox, mailbox int) (string, error) {
	return c.kv.Get(ctx, SandboxTree(sandbox), mailboxKey(mailbox, fieldPin))
}

// WritePIN 写入信箱 PIN。
func (c *Credentials) WritePIN(ctx context.Context, sandbox, mailbox int, pin string) error {
	return c.kv.Put(ctx, SandboxTree(sandbox), mailboxKey(mailbox, fieldPin), pin)
}

// SetVisitor 记录该信箱已签发过分享码。只保存"签发过"这一事实，
// 码本身不落盘。
func (c *Credentials) SetVisitor(ctx context.Context, sandbox, mailbox int) error {
	return c.kv.Put(ctx, SandboxTree(sandbox), mailboxKey(mailbox, fieldVisitor), "1")
}

// ClearVisitor 清除签发标记。标记本就不存在时按契约视为无操作。
func (c *Credentials) ClearVisitor(ctx context.Context, sandbox, mailbox int) error {
	err := c.kv.Delete(ctx, SandboxTree(sandbox), mailboxKey(mailbox, fieldVisitor))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// HasVisitor 查询该信箱是否已签发过分享码。
func (c *Credentials) HasVisitor(ctx context.Context, sandbox, mailbox int) (bool, error) {
	_, err := c.kv.Get(ctx, SandboxTree(sandbox), mailboxKey(mailbox, fieldVisitor))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// WipeSandbox 清空沙箱下的全部信箱状态。沙箱尚不存在时视为无操作。
func (c *Credentials) WipeSandbox(ctx context.Context, sandbox int) error {
	err := c.kv.DeleteSubtree(ctx, SandboxTree(sandbox))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
