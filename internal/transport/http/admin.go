package httptransport

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voicebox/backend/internal/service"
	"voicebox/backend/internal/storage"
)

// AdminHandler 沙箱运维接口：查看信箱状态、重置沙箱。
//
// 面向演示环境的排障工具，与电话端的信箱 0 重置路径等价。
type AdminHandler struct {
	controller *service.Controller
	creds      *storage.Credentials
	logger     *zap.Logger
}

// NewAdminHandler 创建沙箱运维处理器
func NewAdminHandler(controller *service.Controller, creds *storage.Credentials, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		controller: controller,
		creds:      creds,
		logger:     logger,
	}
}

type mailboxStatusResponse struct {
	Sandbox       int    `json:"sandbox"`
	Mailbox       int    `json:"mailbox"`
	State         int    `json:"state"`
	StateName     string `json:"stateName"`
	PinSet        bool   `json:"pinSet"`
	VisitorIssued bool   `json:"visitorIssued"`
}

// GetMailbox 查看单个信箱的认证状态与标记
func (h *AdminHandler) GetMailbox(c *gin.Context) {
	sandbox, mailbox, ok := pathIDs(c)
	if !ok {
		return
	}

	state, err := h.creds.ReadState(c.Request.Context(), sandbox, mailbox)
	if errors.Is(err, storage.ErrNotFound) {
		NotFound(c, "mailbox has no state")
		return
	}
	if err != nil {
		h.logger.Error("read mailbox state failed", zap.Error(err))
		InternalError(c, "storage unavailable")
		return
	}

	pinSet := true
	if _, err := h.creds.ReadPIN(c.Request.Context(), sandbox, mailbox); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			h.logger.Error("read mailbox PIN failed", zap.Error(err))
			InternalError(c, "storage unavailable")
			return
		}
		pinSet = false
	}

	issued, err := h.creds.HasVisitor(c.Request.Context(), sandbox, mailbox)
	if err != nil {
		h.logger.Error("read visitor flag failed", zap.Error(err))
		InternalError(c, "storage unavailable")
		return
	}

	Success(c, mailboxStatusResponse{
		Sandbox:       sandbox,
		Mailbox:       mailbox,
		State:         int(state),
		StateName:     state.String(),
		PinSet:        pinSet,
		VisitorIssued: issued,
	})
}

// ResetSandbox 清空沙箱并重新播种演示 PIN
func (h *AdminHandler) ResetSandbox(c *gin.Context) {
	sandbox, err := strconv.Atoi(c.Param("sandbox"))
	if err != nil || sandbox < 0 {
		BadRequest(c, "invalid sandbox number")
		return
	}

	if err := h.controller.ResetSandbox(c.Request.Context(), sandbox); err != nil {
		h.logger.Error("sandbox reset failed", zap.Int("sandbox", sandbox), zap.Error(err))
		InternalError(c, "reset failed")
		return
	}

	h.logger.Info("sandbox reset via admin API", zap.Int("sandbox", sandbox))
	Success(c, gin.H{"sandbox": sandbox, "reset": true})
}

// pathIDs 解析路径中的沙箱号与信箱号
func pathIDs(c *gin.Context) (sandbox, mailbox int, ok bool) {
	sandbox, err := strconv.Atoi(c.Param("sandbox"))
	if err != nil || sandbox < 0 {
		BadRequest(c, "invalid sandbox number")
		return 0, 0, false
	}
	mailbox, err = strconv.Atoi(c.Param("mailbox"))
	if err != nil || mailbox < 0 {
		BadRequest(c, "invalid mailbox number")
		return 0, 0, false
	}
	return sandbox, mailbox, true
}
