package gpu

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
)

// FindMemoryType returns the first memory type allowed by typeFilter that
// carries every flag in properties.
func FindMemoryType(types []core1_0.MemoryType, typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	for i, memoryType := range types {
		typeBit := uint32(1 << i)

		if (typeFilter&typeBit) != 0 && (memoryType.PropertyFlags&properties) == properties {
			return i, nil
		}
	}

	return 0, errors.Wrapf(ErrNoMemoryType, "filter %#x, properties %v", typeFilter, properties)
}

// WriteData copies data into host-visible memory at offset, encoded in the
// byte order Vulkan expects.
func WriteData(memory core1_0.DeviceMemory, offset int, data any) error {
	size := binary.Size(data)
	if size < 0 {
		return errors.AssertionFailedf("cannot encode %T into device memory", data)
	}

	buf := &bytes.Buffer{}
	if err := binary.Write(buf, common.ByteOrder, data); err != nil {
		return errors.Wrap(err, "encode upload data")
	}

	ptr, res, err := memory.Map(offset, size, 0)
	if err != nil {
		return Check("vkMapMemory", res, err)
	}
	defer memory.Unmap()

	copy(unsafe.Slice((*byte)(ptr), size), buf.Bytes())
	return nil
}
