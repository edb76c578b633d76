// Package gpu sets up the Vulkan instance and device and provides the
// resource factory every other GPU package allocates through.
package gpu

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/ext_debug_utils"
	"github.com/vkngwrapper/extensions/khr_portability_subset"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"
	"github.com/vkngwrapper/vulkan-engine/internal/logging"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}
var deviceExtensions = []string{khr_swapchain.ExtensionName}

// VK_KHR_portability_enumeration has no package in the extensions module.
const portabilityEnumeration = "VK_KHR_portability_enumeration"

const instanceCreateEnumeratePortability core1_0.InstanceCreateFlags = 0x00000001

// SurfaceSource is the window the device must be able to present to.
type SurfaceSource interface {
	InstanceExtensions() []string
	CreateSurface(instance core1_0.Instance) (khr_surface.Surface, error)
}

type Options struct {
	ApplicationName string
	Validation      bool
}

type QueueFamilies struct {
	Graphics int
	Present  int
}

// Shared reports whether one family handles both graphics and presentation.
func (q QueueFamilies) Shared() bool {
	return q.Graphics == q.Present
}

// Indices lists the distinct family indices.
func (q QueueFamilies) Indices() []int {
	if q.Shared() {
		return []int{q.Graphics}
	}
	return []int{q.Graphics, q.Present}
}

// chooseQueueFamilies prefers a single family that can both draw and
// present, then falls back to the first of each.
func chooseQueueFamilies(graphics, present []bool) (QueueFamilies, bool) {
	for i := range graphics {
		if graphics[i] && i < len(present) && present[i] {
			return QueueFamilies{Graphics: i, Present: i}, true
		}
	}

	families := QueueFamilies{Graphics: -1, Present: -1}
	for i, ok := range graphics {
		if ok {
			families.Graphics = i
			break
		}
	}
	for i, ok := range present {
		if ok {
			families.Present = i
			break
		}
	}
	return families, families.Graphics >= 0 && families.Present >= 0
}

// Context owns the instance, the logical device and everything created
// once per process on top of them. Surfaces are not owned here.
type Context struct {
	log        *slog.Logger
	validation *validationLog

	Loader         core.Loader
	Instance       core1_0.Instance
	messenger      ext_debug_utils.Messenger
	PhysicalDevice core1_0.PhysicalDevice
	Device         core1_0.Device

	Families      QueueFamilies
	GraphicsQueue core1_0.Queue
	PresentQueue  core1_0.Queue
	CommandPool   core1_0.CommandPool

	MaxSamples    core1_0.SampleCountFlags
	MaxAnisotropy float32

	Factory *Factory
}

// NewContext creates the instance, picks a device able to present to
// window and creates the logical device, queues and command pool. The
// surface used for device selection is destroyed before returning.
func NewContext(loader core.Loader, window SurfaceSource, opts Options, log *slog.Logger) (*Context, error) {
	log = logging.OrDiscard(log)
	c := &Context{
		log:        log,
		validation: &validationLog{log: log.With("component", "validation")},
		Loader:     loader,
	}

	err := c.createInstance(window.InstanceExtensions(), opts)
	if err == nil && opts.Validation {
		err = c.setupDebugMessenger()
	}
	if err != nil {
		c.Destroy()
		return nil, err
	}

	surface, err := window.CreateSurface(c.Instance)
	if err != nil {
		c.Destroy()
		return nil, errors.Wrap(err, "create probe surface")
	}
	err = c.pickPhysicalDevice(surface)
	surface.Destroy(nil)
	if err == nil {
		err = c.createLogicalDevice()
	}
	if err == nil {
		err = c.createCommandPool()
	}
	if err != nil {
		c.Destroy()
		return nil, err
	}

	c.Factory = NewFactory(c.Device, c.GraphicsQueue, c.CommandPool, c.PhysicalDevice.MemoryProperties().MemoryTypes)
	return c, nil
}

func (c *Context) createInstance(windowExtensions []string, opts Options) error {
	name := opts.ApplicationName
	if name == "" {
		name = "vkengine"
	}
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    name,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "vkengine",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	extensions, res, err := c.Loader.AvailableExtensions()
	if err != nil {
		return Check("vkEnumerateInstanceExtensionProperties", res, err)
	}

	for _, ext := range windowExtensions {
		if _, ok := extensions[ext]; !ok {
			return errors.Newf("window requires missing instance extension %s", ext)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext)
	}

	if _, ok := extensions[portabilityEnumeration]; ok {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, portabilityEnumeration)
		instanceOptions.Flags |= instanceCreateEnumeratePortability
	}

	if opts.Validation {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)

		layers, res, err := c.Loader.AvailableLayers()
		if err != nil {
			return Check("vkEnumerateInstanceLayerProperties", res, err)
		}
		for _, layer := range validationLayers {
			if _, ok := layers[layer]; !ok {
				return errors.Newf("validation layer %s not available, install the LunarG Vulkan SDK", layer)
			}
			instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, layer)
		}

		instanceOptions.Next = c.validation.createInfo()
	}

	c.Instance, res, err = c.Loader.CreateInstance(nil, instanceOptions)
	return Check("vkCreateInstance", res, err)
}

func (c *Context) setupDebugMessenger() error {
	debugLoader := ext_debug_utils.CreateExtensionFromInstance(c.Instance)

	var res common.VkResult
	var err error
	c.messenger, res, err = debugLoader.CreateDebugUtilsMessenger(c.Instance, nil, c.validation.createInfo())
	return Check("vkCreateDebugUtilsMessengerEXT", res, err)
}

func (c *Context) pickPhysicalDevice(surface khr_surface.Surface) error {
	physicalDevices, res, err := c.Instance.EnumeratePhysicalDevices()
	if err != nil {
		return Check("vkEnumeratePhysicalDevices", res, err)
	}

	for _, device := range physicalDevices {
		families, ok := c.deviceSuitable(device, surface)
		if !ok {
			continue
		}

		properties, err := device.Properties()
		if err != nil {
			return errors.Wrap(err, "read physical device properties")
		}

		c.PhysicalDevice = device
		c.Families = families
		c.MaxSamples = MaxSampleCount(properties.Limits.FramebufferColorSampleCounts, properties.Limits.FramebufferDepthSampleCounts)
		c.MaxAnisotropy = properties.Limits.MaxSamplerAnisotropy
		c.log.Info("picked physical device",
			"name", properties.DriverName,
			"graphicsFamily", families.Graphics,
			"presentFamily", families.Present,
			"maxSamples", SampleCount(c.MaxSamples))
		return nil
	}

	return errors.Wrapf(ErrNoSuitableDevice, "checked %d devices", len(physicalDevices))
}

func (c *Context) deviceSuitable(device core1_0.PhysicalDevice, surface khr_surface.Surface) (QueueFamilies, bool) {
	queueFamilies := device.QueueFamilyProperties()
	graphics := make([]bool, len(queueFamilies))
	present := make([]bool, len(queueFamilies))
	for i, family := range queueFamilies {
		graphics[i] = family.QueueFlags&core1_0.QueueGraphics != 0

		supported, _, err := surface.PhysicalDeviceSurfaceSupport(device, i)
		if err != nil {
			return QueueFamilies{}, false
		}
		present[i] = supported
	}

	families, ok := chooseQueueFamilies(graphics, present)
	if !ok {
		return families, false
	}

	extensions, _, err := device.EnumerateDeviceExtensionProperties()
	if err != nil {
		return families, false
	}
	for _, extension := range deviceExtensions {
		if _, ok := extensions[extension]; !ok {
			return families, false
		}
	}

	formats, _, err := surface.PhysicalDeviceSurfaceFormats(device)
	if err != nil || len(formats) == 0 {
		return families, false
	}
	presentModes, _, err := surface.PhysicalDeviceSurfacePresentModes(device)
	if err != nil || len(presentModes) == 0 {
		return families, false
	}

	return families, device.Features().SamplerAnisotropy
}

func (c *Context) createLogicalDevice() error {
	var queueFamilyOptions []core1_0.DeviceQueueCreateInfo
	for _, queueFamily := range c.Families.Indices() {
		queueFamilyOptions = append(queueFamilyOptions, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: queueFamily,
			QueuePriorities:  []float32{1.0},
		})
	}

	extensionNames := append([]string(nil), deviceExtensions...)

	extensions, res, err := c.PhysicalDevice.EnumerateDeviceExtensionProperties()
	if err != nil {
		return Check("vkEnumerateDeviceExtensionProperties", res, err)
	}
	if _, ok := extensions[khr_portability_subset.ExtensionName]; ok {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	c.Device, res, err = c.PhysicalDevice.CreateDevice(nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos: queueFamilyOptions,
		EnabledFeatures: &core1_0.PhysicalDeviceFeatures{
			SamplerAnisotropy: true,
		},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return Check("vkCreateDevice", res, err)
	}

	c.GraphicsQueue = c.Device.GetQueue(c.Families.Graphics, 0)
	c.PresentQueue = c.Device.GetQueue(c.Families.Present, 0)
	return nil
}

func (c *Context) createCommandPool() error {
	var res common.VkResult
	var err error
	c.CommandPool, res, err = c.Device.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: c.Families.Graphics,
	})
	return Check("vkCreateCommandPool", res, err)
}

// SupportsDepthAttachment reports whether format can back an optimally
// tiled depth/stencil attachment on the picked device.
func (c *Context) SupportsDepthAttachment(format core1_0.Format) bool {
	props := c.PhysicalDevice.FormatProperties(format)
	return props.OptimalTilingFeatures&core1_0.FormatFeatureDepthStencilAttachment != 0
}

func (c *Context) WaitIdle() error {
	res, err := c.Device.WaitIdle()
	return Check("vkDeviceWaitIdle", res, err)
}

// Destroy releases everything NewContext created, in reverse order. The
// device must be idle.
func (c *Context) Destroy() {
	if c.CommandPool != nil {
		c.CommandPool.Destroy(nil)
		c.CommandPool = nil
	}

	if c.Device != nil {
		c.Device.Destroy(nil)
		c.Device = nil
	}

	if c.messenger != nil {
		c.messenger.Destroy(nil)
		c.messenger = nil
	}

	if c.Instance != nil {
		c.Instance.Destroy(nil)
		c.Instance = nil
	}
}
