// Package scene holds the drawable content: a textured mesh, its
// descriptor state and one recorded command buffer per render target.
package scene

import (
	"log/slog"
	"math"
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/vulkan-engine/internal/assets"
	"github.com/vkngwrapper/vulkan-engine/internal/gpu"
	"github.com/vkngwrapper/vulkan-engine/internal/logging"
	"github.com/vkngwrapper/vulkan-engine/internal/target"
)

type UniformBufferObject struct {
	Model mgl32.Mat4
	View  mgl32.Mat4
	Proj  mgl32.Mat4
}

// UniformsAt computes the transforms for a time in seconds. The model
// turns a quarter revolution per second around Z.
func UniformsAt(seconds float64, extent core1_0.Extent2D) UniformBufferObject {
	timePeriod := float32(math.Mod(seconds, 4.0))

	ubo := UniformBufferObject{}
	ubo.Model = mgl32.HomogRotate3D(timePeriod*mgl32.DegToRad(90.0), mgl32.Vec3{0, 0, 1})
	ubo.View = mgl32.LookAt(2, 2, 2, 0, 0, 0, 0, 0, 1)
	aspectRatio := float32(extent.Width) / float32(extent.Height)

	near := 0.1
	far := 10.0
	fovy := mgl32.DegToRad(45)
	fmn, f := far-near, float32(1./math.Tan(float64(fovy)/2.0))

	// Vulkan clip space: Y points down and depth runs 0 to 1.
	ubo.Proj = mgl32.Mat4{f / aspectRatio, 0, 0, 0, 0, -f, 0, 0, 0, 0, float32(-far / fmn), -1, 0, 0, float32(-(far * near) / fmn), 0}
	return ubo
}

type Options struct {
	// Shaders are looked up by name each time the pipeline is built.
	Shaders        *assets.ShaderLibrary
	VertexShader   string
	FragmentShader string
	Mesh           assets.Mesh
	Texture        assets.Texture
	ClearColor     [4]float32
	Logger         *slog.Logger
}

type uniformBuffer struct {
	buffer core1_0.Buffer
	memory core1_0.DeviceMemory
}

type Scene struct {
	log     *slog.Logger
	ctx     *gpu.Context
	shaders *assets.ShaderLibrary
	vert    string
	frag    string
	spec    target.PipelineSpec
	started time.Duration

	indexCount   int
	vertexBuffer core1_0.Buffer
	vertexMemory core1_0.DeviceMemory
	indexBuffer  core1_0.Buffer
	indexMemory  core1_0.DeviceMemory

	textureImage  core1_0.Image
	textureMemory core1_0.DeviceMemory
	textureView   core1_0.ImageView
	sampler       core1_0.Sampler
	setLayout     core1_0.DescriptorSetLayout

	// Rebuilt with the render targets.
	uniforms []uniformBuffer
	pool     core1_0.DescriptorPool
	sets     []core1_0.DescriptorSet
	commands []core1_0.CommandBuffer
}

// New uploads the mesh and texture and creates the descriptor set layout.
func New(ctx *gpu.Context, opts Options) (*Scene, error) {
	if len(opts.Mesh.Indices) == 0 {
		return nil, errors.New("scene mesh has no indices")
	}
	if opts.Shaders == nil {
		return nil, errors.AssertionFailedf("scene needs a shader library")
	}

	s := &Scene{
		log:        logging.OrDiscard(opts.Logger),
		ctx:        ctx,
		shaders:    opts.Shaders,
		vert:       opts.VertexShader,
		frag:       opts.FragmentShader,
		started:    hrtime.Now(),
		indexCount: len(opts.Mesh.Indices),
	}

	err := s.uploadMesh(opts.Mesh)
	if err == nil {
		err = s.uploadTexture(opts.Texture)
	}
	if err == nil {
		err = s.createDescriptorSetLayout()
	}
	if err != nil {
		s.Destroy()
		return nil, err
	}

	s.spec = target.PipelineSpec{
		Bindings:       assets.VertexBindings(),
		Attributes:     assets.VertexAttributes(),
		SetLayouts:     []core1_0.DescriptorSetLayout{s.setLayout},
		CullMode:       core1_0.CullModeBack,
		FrontFace:      core1_0.FrontFaceCounterClockwise,
		DepthTest:      true,
		ColorOutputs:   1,
		ClearColor:     opts.ClearColor,
	}

	s.log.Info("scene loaded",
		"vertices", len(opts.Mesh.Vertices),
		"indices", s.indexCount,
		"texture", [2]int{opts.Texture.Width, opts.Texture.Height})
	return s, nil
}

// PipelineSpec returns the fixed pipeline state with the shader bytecode
// filled in.
func (s *Scene) PipelineSpec() (target.PipelineSpec, error) {
	spec := s.spec

	var err error
	spec.VertexShader, err = s.shaders.Load(s.vert)
	if err != nil {
		return spec, err
	}
	spec.FragmentShader, err = s.shaders.Load(s.frag)
	return spec, err
}

func (s *Scene) uploadMesh(mesh assets.Mesh) error {
	var err error
	s.vertexBuffer, s.vertexMemory, err = s.ctx.Factory.UploadBuffer(mesh.Vertices, core1_0.BufferUsageVertexBuffer)
	if err != nil {
		return errors.Wrap(err, "vertex buffer")
	}

	s.indexBuffer, s.indexMemory, err = s.ctx.Factory.UploadBuffer(mesh.Indices, core1_0.BufferUsageIndexBuffer)
	return errors.Wrap(err, "index buffer")
}

func (s *Scene) uploadTexture(texture assets.Texture) error {
	var err error
	s.textureImage, s.textureMemory, err = s.ctx.Factory.UploadImage(texture.Pixels, texture.Width, texture.Height, core1_0.FormatR8G8B8A8SRGB)
	if err != nil {
		return errors.Wrap(err, "texture image")
	}

	s.textureView, err = s.ctx.Factory.CreateImageView(s.textureImage, core1_0.FormatR8G8B8A8SRGB, core1_0.ImageAspectColor)
	if err != nil {
		return err
	}

	var res common.VkResult
	s.sampler, res, err = s.ctx.Device.CreateSampler(nil, core1_0.SamplerCreateInfo{
		MagFilter:    core1_0.FilterLinear,
		MinFilter:    core1_0.FilterLinear,
		AddressModeU: core1_0.SamplerAddressModeRepeat,
		AddressModeV: core1_0.SamplerAddressModeRepeat,
		AddressModeW: core1_0.SamplerAddressModeRepeat,

		AnisotropyEnable: s.ctx.MaxAnisotropy > 1,
		MaxAnisotropy:    s.ctx.MaxAnisotropy,

		BorderColor: core1_0.BorderColorIntOpaqueBlack,

		MipmapMode: core1_0.SamplerMipmapModeLinear,
	})
	return gpu.Check("vkCreateSampler", res, err)
}

func (s *Scene) createDescriptorSetLayout() error {
	var res common.VkResult
	var err error
	s.setLayout, res, err = s.ctx.Device.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: []core1_0.DescriptorSetLayoutBinding{
			{
				Binding:         0,
				DescriptorType:  core1_0.DescriptorTypeUniformBuffer,
				DescriptorCount: 1,

				StageFlags: core1_0.StageVertex,
			},
			{
				Binding:         1,
				DescriptorType:  core1_0.DescriptorTypeCombinedImageSampler,
				DescriptorCount: 1,

				StageFlags: core1_0.StageFragment,
			},
		},
	})
	return gpu.Check("vkCreateDescriptorSetLayout", res, err)
}

// Attach creates uniform buffers and descriptor sets for every render
// target and records the draw into one command buffer per target.
func (s *Scene) Attach(binder *target.Binder) error {
	images := len(binder.Targets)

	err := s.createUniformBuffers(images)
	if err == nil {
		err = s.createDescriptorSets(images)
	}
	if err == nil {
		err = s.recordCommands(binder)
	}
	if err != nil {
		s.Detach()
		return err
	}
	return nil
}

func (s *Scene) createUniformBuffers(images int) error {
	bufferSize := int(unsafe.Sizeof(UniformBufferObject{}))

	for i := 0; i < images; i++ {
		buffer, memory, err := s.ctx.Factory.CreateBuffer(bufferSize, core1_0.BufferUsageUniformBuffer, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
		if err != nil {
			return err
		}

		s.uniforms = append(s.uniforms, uniformBuffer{buffer: buffer, memory: memory})
	}

	return nil
}

func (s *Scene) createDescriptorSets(images int) error {
	var res common.VkResult
	var err error
	s.pool, res, err = s.ctx.Device.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		MaxSets: images,
		PoolSizes: []core1_0.DescriptorPoolSize{
			{
				Type:            core1_0.DescriptorTypeUniformBuffer,
				DescriptorCount: images,
			},
			{
				Type:            core1_0.DescriptorTypeCombinedImageSampler,
				DescriptorCount: images,
			},
		},
	})
	if err != nil {
		return gpu.Check("vkCreateDescriptorPool", res, err)
	}

	var allocLayouts []core1_0.DescriptorSetLayout
	for i := 0; i < images; i++ {
		allocLayouts = append(allocLayouts, s.setLayout)
	}

	s.sets, res, err = s.ctx.Device.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: s.pool,
		SetLayouts:     allocLayouts,
	})
	if err != nil {
		return gpu.Check("vkAllocateDescriptorSets", res, err)
	}

	for i := 0; i < images; i++ {
		err = s.ctx.Device.UpdateDescriptorSets([]core1_0.WriteDescriptorSet{
			{
				DstSet:          s.sets[i],
				DstBinding:      0,
				DstArrayElement: 0,

				DescriptorType: core1_0.DescriptorTypeUniformBuffer,

				BufferInfo: []core1_0.DescriptorBufferInfo{
					{
						Buffer: s.uniforms[i].buffer,
						Offset: 0,
						Range:  int(unsafe.Sizeof(UniformBufferObject{})),
					},
				},
			},
			{
				DstSet:          s.sets[i],
				DstBinding:      1,
				DstArrayElement: 0,

				DescriptorType: core1_0.DescriptorTypeCombinedImageSampler,

				ImageInfo: []core1_0.DescriptorImageInfo{
					{
						ImageView:   s.textureView,
						Sampler:     s.sampler,
						ImageLayout: core1_0.ImageLayoutShaderReadOnlyOptimal,
					},
				},
			},
		}, nil)
		if err != nil {
			return errors.Wrapf(err, "descriptor set %d", i)
		}
	}

	return nil
}

func (s *Scene) recordCommands(binder *target.Binder) error {
	buffers, res, err := s.ctx.Device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        s.ctx.CommandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: len(binder.Targets),
	})
	if err != nil {
		return gpu.Check("vkAllocateCommandBuffers", res, err)
	}
	s.commands = buffers

	for bufferIdx, buffer := range buffers {
		res, err = buffer.Begin(core1_0.CommandBufferBeginInfo{})
		if err != nil {
			return gpu.Check("vkBeginCommandBuffer", res, err)
		}

		err = buffer.CmdBeginRenderPass(core1_0.SubpassContentsInline,
			core1_0.RenderPassBeginInfo{
				RenderPass:  binder.RenderPass,
				Framebuffer: binder.Targets[bufferIdx],
				RenderArea: core1_0.Rect2D{
					Offset: core1_0.Offset2D{X: 0, Y: 0},
					Extent: binder.Extent,
				},
				ClearValues: binder.ClearValues(),
			})
		if err != nil {
			return errors.Wrapf(err, "begin render pass %d", bufferIdx)
		}

		buffer.CmdBindPipeline(core1_0.PipelineBindPointGraphics, binder.Pipeline)
		buffer.CmdBindVertexBuffers([]core1_0.Buffer{s.vertexBuffer}, []int{0})
		buffer.CmdBindIndexBuffer(s.indexBuffer, 0, core1_0.IndexTypeUInt32)
		buffer.CmdBindDescriptorSets(core1_0.PipelineBindPointGraphics, binder.PipelineLayout, []core1_0.DescriptorSet{
			s.sets[bufferIdx],
		}, nil)
		buffer.CmdDrawIndexed(s.indexCount, 1, 0, 0, 0)
		buffer.CmdEndRenderPass()

		res, err = buffer.End()
		if err != nil {
			return gpu.Check("vkEndCommandBuffer", res, err)
		}
	}

	return nil
}

// Update writes the current transforms into image's uniform buffer.
func (s *Scene) Update(image int, extent core1_0.Extent2D) error {
	if image < 0 || image >= len(s.uniforms) {
		return errors.AssertionFailedf("uniforms for image %d of %d", image, len(s.uniforms))
	}

	ubo := UniformsAt((hrtime.Now() - s.started).Seconds(), extent)
	return gpu.WriteData(s.uniforms[image].memory, 0, &ubo)
}

func (s *Scene) CommandBuffer(image int) core1_0.CommandBuffer {
	return s.commands[image]
}

// Detach releases everything Attach created. Destroying the pool frees
// its descriptor sets.
func (s *Scene) Detach() {
	if len(s.commands) > 0 {
		s.ctx.Device.FreeCommandBuffers(s.commands)
		s.commands = nil
	}

	if s.pool != nil {
		s.pool.Destroy(nil)
		s.pool = nil
	}
	s.sets = nil

	for _, u := range s.uniforms {
		u.buffer.Destroy(nil)
		u.memory.Free(nil)
	}
	s.uniforms = nil
}

// Destroy releases everything. Detach must have run first.
func (s *Scene) Destroy() {
	if s.setLayout != nil {
		s.setLayout.Destroy(nil)
		s.setLayout = nil
	}

	if s.sampler != nil {
		s.sampler.Destroy(nil)
		s.sampler = nil
	}

	if s.textureView != nil {
		s.textureView.Destroy(nil)
		s.textureView = nil
	}

	if s.textureImage != nil {
		s.textureImage.Destroy(nil)
		s.textureImage = nil
	}

	if s.textureMemory != nil {
		s.textureMemory.Free(nil)
		s.textureMemory = nil
	}

	if s.indexBuffer != nil {
		s.indexBuffer.Destroy(nil)
		s.indexBuffer = nil
	}

	if s.indexMemory != nil {
		s.indexMemory.Free(nil)
		s.indexMemory = nil
	}

	if s.vertexBuffer != nil {
		s.vertexBuffer.Destroy(nil)
		s.vertexBuffer = nil
	}

	if s.vertexMemory != nil {
		s.vertexMemory.Free(nil)
		s.vertexMemory = nil
	}
}
