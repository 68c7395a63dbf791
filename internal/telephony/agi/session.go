package agi

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"voicebox/backend/internal/domain"
	"voicebox/backend/internal/telephony"
)

// defaultMenuTimeout GET OPTION 等待按键的默认时长。
const defaultMenuTimeout = 5 * time.Second

// Session 在一条 FastAGI 连接上实现 telephony.Driver。
//
// 协议为行式文本：Asterisk 建连后先发送 agi_* 环境头（空行结束），
// 之后由服务端逐条下发命令并读取 "200 result=..." 响应。
type Session struct {
	r   *bufio.Reader
	w   *bufio.Writer
	env map[string]string
	log *zap.Logger

	menuTimeout time.Duration
}

// NewSession 读取环境头并建立 AGI 会话。
func NewSession(conn io.ReadWriter, log *zap.Logger) (*Session, error) {
	s := &Session{
		r:           bufio.NewReader(conn),
		w:           bufio.NewWriter(conn),
		env:         make(map[string]string),
		log:         log,
		menuTimeout: defaultMenuTimeout,
	}

	if err := s.readEnv(); err != nil {
		return nil, fmt.Errorf("read AGI environment: %w", err)
	}
	return s, nil
}

// readEnv 解析 "agi_key: value" 形式的环境头，直到空行。
func (s *Session) readEnv() error {
	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return nil
		}

		key, value, found := strings.Cut(line, ": ")
		if !found {
			// 容忍无值的头，例如 "agi_context:"
			key = strings.TrimSuffix(line, ":")
			value = ""
		}
		s.env[strings.TrimPrefix(key, "agi_")] = value
	}
}

// Env 返回环境头中的字段值，如主叫号码、请求脚本名。
func (s *Session) Env(key string) string {
	return s.env[key]
}

// command 下发一条 AGI 命令并解析响应的 result 字段。
func (s *Session) command(ctx context.Context, format string, args ...any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cmd := fmt.Sprintf(format, args...)
	if _, err := s.w.WriteString(cmd + "\n"); err != nil {
		return "", err
	}
	if err := s.w.Flush(); err != nil {
		return "", err
	}

	line, err := s.r.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			return "", telephony.ErrHangup
		}
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")

	// 通道挂断时 Asterisk 会插入单独的 HANGUP 行
	if line == "HANGUP" {
		return "", telephony.ErrHangup
	}

	if !strings.HasPrefix(line, "200 ") {
		return "", fmt.Errorf("unexpected AGI response %q to %q", line, cmd)
	}

	rest := strings.TrimPrefix(line, "200 ")
	if !strings.HasPrefix(rest, "result=") {
		return "", fmt.Errorf("missing result in AGI response %q", line)
	}
	result := strings.TrimPrefix(rest, "result=")
	// 丢弃 "(timeout)"、"endpos=" 等附加信息
	if idx := strings.IndexByte(result, ' '); idx >= 0 {
		result = result[:idx]
	}

	s.log.Debug("agi command",
		zap.String("command", cmd),
		zap.String("result", result),
	)
	return result, nil
}

// CollectDigits 通过 GET DATA 采集按键。
func (s *Session) CollectDigits(ctx context.Context, prompt domain.Prompt, timeout time.Duration, maxDigits int) (string, error) {
	result, err := s.command(ctx, "GET DATA %s %d %d", prompt, timeout.Milliseconds(), maxDigits)
	if err != nil {
		return "", err
	}
	if result == "-1" {
		return "", telephony.ErrHangup
	}
	return result, nil
}

// PresentMenu 通过 GET OPTION 播放菜单并等待单个按键。
func (s *Session) PresentMenu(ctx context.Context, prompt domain.Prompt, escapeDigits string) (string, error) {
	result, err := s.command(ctx, "GET OPTION %s %q %d", prompt, escapeDigits, s.menuTimeout.Milliseconds())
	if err != nil {
		return "", err
	}

	// GET OPTION 返回按键的 ASCII 码，0 表示超时未按键
	code, err := strconv.Atoi(result)
	if err != nil {
		return "", fmt.Errorf("bad GET OPTION result %q: %w", result, err)
	}
	switch {
	case code < 0:
		return "", telephony.ErrHangup
	case code == 0:
		return "", nil
	default:
		return string(rune(code)), nil
	}
}

// Play 通过 STREAM FILE 播放提示音。
func (s *Session) Play(ctx context.Context, prompt domain.Prompt) error {
	result, err := s.command(ctx, "STREAM FILE %s %q", prompt, "")
	if err != nil {
		return err
	}
	if strings.HasPrefix(result, "-") {
		return telephony.ErrHangup
	}
	return nil
}

// SayDigits 通过 SAY DIGITS 逐位朗读数字。
func (s *Session) SayDigits(ctx context.Context, digits string) error {
	result, err := s.command(ctx, "SAY DIGITS %s %q", digits, "")
	if err != nil {
		return err
	}
	if strings.HasPrefix(result, "-") {
		return telephony.ErrHangup
	}
	return nil
}
