package agi

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"voicebox/backend/internal/telephony"
)

// maxCallDuration 单通呼叫的硬上限，超时后连接被强制收回。
const maxCallDuration = 10 * time.Minute

// Handler 处理一通已建立的来电。
type Handler interface {
	HandleCall(ctx context.Context, phone telephony.Driver) error
}

// Server FastAGI 服务器：接受 Asterisk 的 TCP 连接，
// 每条连接对应一通来电，交给 Handler 处理。
type Server struct {
	addr    string
	handler Handler
	log     *zap.Logger
	limiter *rate.Limiter

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

// NewServer 创建 FastAGI 服务器。
//
// maxCallsPerSecond 限制新建连接速率，防止拨号洪泛耗尽资源。
func NewServer(addr string, handler Handler, maxCallsPerSecond int, log *zap.Logger) *Server {
	return &Server{
		addr:    addr,
		handler: handler,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(maxCallsPerSecond), maxCallsPerSecond),
	}
}

// ListenAndServe 监听并处理来电，直到 ctx 取消。
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	// ctx 取消时关闭监听器，使 Accept 返回
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.log.Info("AGI server listening", zap.String("address", s.addr))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return err
		}

		if !s.limiter.Allow() {
			s.log.Warn("call rejected by rate limiter",
				zap.String("remote", conn.RemoteAddr().String()),
			)
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

// serveConn 处理一条 AGI 连接的完整生命周期。
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	callID := uuid.NewString()
	log := s.log.With(
		zap.String("call_id", callID),
		zap.String("remote", conn.RemoteAddr().String()),
	)

	// 通话硬超时，挂断不回收的连接
	if err := conn.SetDeadline(time.Now().Add(maxCallDuration)); err != nil {
		log.Error("failed to set connection deadline", zap.Error(err))
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, maxCallDuration)
	defer cancel()

	session, err := NewSession(conn, log)
	if err != nil {
		log.Warn("failed to establish AGI session", zap.Error(err))
		return
	}

	log.Info("call started",
		zap.String("caller", session.Env("callerid")),
		zap.String("script", session.Env("network_script")),
	)

	start := time.Now()
	err = s.handler.HandleCall(callCtx, session)
	switch {
	case err == nil:
		log.Info("call completed", zap.Duration("duration", time.Since(start)))
	case errors.Is(err, telephony.ErrHangup):
		// 挂断是正常结束方式，状态写入边界上的中断是安全的
		log.Info("caller hung up", zap.Duration("duration", time.Since(start)))
	default:
		log.Error("call failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
	}
}

// Close 停止接受新来电并等待在途呼叫结束。
func (s *Server) Close() error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	s.wg.Wait()
	return err
}
