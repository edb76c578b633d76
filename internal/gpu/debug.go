package gpu

import (
	"context"
	"log/slog"

	"github.com/vkngwrapper/extensions/ext_debug_utils"
)

// validationLog forwards validation layer messages to a logger. Each
// Context owns one, so nothing about the callback is process-wide.
type validationLog struct {
	log *slog.Logger
}

func (v *validationLog) createInfo() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    v.callback,
	}
}

func (v *validationLog) callback(msgType ext_debug_utils.MessageTypes, severity ext_debug_utils.MessageSeverities, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	level := slog.LevelWarn
	if severity&ext_debug_utils.SeverityError != 0 {
		level = slog.LevelError
	}

	v.log.Log(context.Background(), level, data.Message, "type", msgType, "severity", severity)
	return false
}
