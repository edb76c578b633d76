package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
)

var (
	ErrNoSuitableDevice = errors.New("no GPU with graphics, presentation and swapchain support")
	ErrNoMemoryType     = errors.New("no memory type satisfies the requested properties")
)

// Check wraps a failed Vulkan call so the final diagnostic names the call
// and its result code. A nil err yields nil regardless of res.
func Check(op string, res common.VkResult, err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "%s: %v", op, res)
}
