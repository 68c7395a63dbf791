package agi

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"voicebox/backend/internal/domain"
	"voicebox/backend/internal/telephony"
)

// scriptedConn 预先灌入 Asterisk 侧的全部输出，记录服务端下发的命令。
type scriptedConn struct {
	in  *bytes.Buffer
	out *bytes.Buffer
}

func (c *scriptedConn) Read(p []byte) (int, error)  { return c.in.Read(p) }
func (c *scriptedConn) Write(p []byte) (int, error) { return c.out.Write(p) }

const envBlock = "agi_network: yes\n" +
	"agi_request: agi://127.0.0.1/voicebox\n" +
	"agi_channel: PJSIP/1000-00000001\n" +
	"agi_callerid: 1000\n" +
	"agi_context:\n" +
	"\n"

func newScriptedSession(t *testing.T, responses string) (*Session, *scriptedConn) {
	t.Helper()
	conn := &scriptedConn{
		in:  bytes.NewBufferString(envBlock + responses),
		out: &bytes.Buffer{},
	}
	session, err := NewSession(conn, zap.NewNop())
	require.NoError(t, err)
	return session, conn
}

func TestNewSession_Env(t *testing.T) {
	session, _ := newScriptedSession(t, "")

	assert.Equal(t, "1000", session.Env("callerid"))
	assert.Equal(t, "agi://127.0.0.1/voicebox", session.Env("request"))
	assert.Equal(t, "", session.Env("context"))
	assert.Equal(t, "", session.Env("missing"))
}

func TestSession_CollectDigits(t *testing.T) {
	ctx := context.Background()

	t.Run("返回采集到的按键", func(t *testing.T) {
		session, conn := newScriptedSession(t, "200 result=7319 (timeout)\n")

		digits, err := session.CollectDigits(ctx, domain.PromptEnterPin, 2*time.Second, 4)
		require.NoError(t, err)
		assert.Equal(t, "7319", digits)
		assert.Equal(t, "GET DATA dd/enter_pin 2000 4\n", conn.out.String())
	})

	t.Run("超时未按键返回空串", func(t *testing.T) {
		session, _ := newScriptedSession(t, "200 result= (timeout)\n")

		digits, err := session.CollectDigits(ctx, domain.PromptMailbox, time.Second, 3)
		require.NoError(t, err)
		assert.Equal(t, "", digits)
	})

	t.Run("result=-1 视为挂断", func(t *testing.T) {
		session, _ := newScriptedSession(t, "200 result=-1\n")

		_, err := session.CollectDigits(ctx, domain.PromptMailbox, time.Second, 3)
		assert.ErrorIs(t, err, telephony.ErrHangup)
	})

	t.Run("连接中断视为挂断", func(t *testing.T) {
		session, _ := newScriptedSession(t, "")

		_, err := session.CollectDigits(ctx, domain.PromptMailbox, time.Second, 3)
		assert.ErrorIs(t, err, telephony.ErrHangup)
	})
}

func TestSession_PresentMenu(t *testing.T) {
	ctx := context.Background()

	t.Run("返回按键字符", func(t *testing.T) {
		// GET OPTION 返回按键的 ASCII 码，'2' 为 50
		session, _ := newScriptedSession(t, "200 result=50 endpos=0\n")

		digit, err := session.PresentMenu(ctx, domain.PromptMainMenu, "0123456789*#")
		require.NoError(t, err)
		assert.Equal(t, "2", digit)
	})

	t.Run("超时返回空串", func(t *testing.T) {
		session, _ := newScriptedSession(t, "200 result=0 endpos=0\n")

		digit, err := session.PresentMenu(ctx, domain.PromptMainMenu, "12")
		require.NoError(t, err)
		assert.Equal(t, "", digit)
	})

	t.Run("负结果视为挂断", func(t *testing.T) {
		session, _ := newScriptedSession(t, "200 result=-1 endpos=0\n")

		_, err := session.PresentMenu(ctx, domain.PromptMainMenu, "12")
		assert.ErrorIs(t, err, telephony.ErrHangup)
	})
}

func TestSession_Play(t *testing.T) {
	ctx := context.Background()

	t.Run("播放成功", func(t *testing.T) {
		session, conn := newScriptedSession(t, "200 result=0 endpos=12800\n")

		err := session.Play(ctx, domain.PromptGoodbye)
		require.NoError(t, err)
		assert.Contains(t, conn.out.String(), "STREAM FILE goodbye")
	})

	t.Run("HANGUP 行视为挂断", func(t *testing.T) {
		session, _ := newScriptedSession(t, "HANGUP\n")

		err := session.Play(ctx, domain.PromptGoodbye)
		assert.ErrorIs(t, err, telephony.ErrHangup)
	})

	t.Run("非 200 响应报错", func(t *testing.T) {
		session, _ := newScriptedSession(t, "510 Invalid or unknown command\n")

		err := session.Play(ctx, domain.PromptGoodbye)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, telephony.ErrHangup)
	})
}

func TestSession_SayDigits(t *testing.T) {
	session, conn := newScriptedSession(t, "200 result=0\n")

	err := session.SayDigits(context.Background(), "409870")
	require.NoError(t, err)
	assert.Contains(t, conn.out.String(), "SAY DIGITS 409870")
}
