package gpu

import "github.com/vkngwrapper/core/core1_0"

var sampleCounts = []struct {
	count int
	flag  core1_0.SampleCountFlags
}{
	{64, core1_0.Samples64},
	{32, core1_0.Samples32},
	{16, core1_0.Samples16},
	{8, core1_0.Samples8},
	{4, core1_0.Samples4},
	{2, core1_0.Samples2},
	{1, core1_0.Samples1},
}

// MaxSampleCount returns the highest sample count usable for both color
// and depth framebuffer attachments.
func MaxSampleCount(color, depth core1_0.SampleCountFlags) core1_0.SampleCountFlags {
	both := color & depth
	for _, s := range sampleCounts {
		if both&s.flag != 0 {
			return s.flag
		}
	}
	return core1_0.Samples1
}

// ClampSamples picks the largest supported sample count not above
// requested. Anything below 2 disables multisampling.
func ClampSamples(requested int, max core1_0.SampleCountFlags) core1_0.SampleCountFlags {
	for _, s := range sampleCounts {
		if s.count <= requested && s.flag <= max {
			return s.flag
		}
	}
	return core1_0.Samples1
}

// SampleCount converts a single sample flag back into a count.
func SampleCount(flag core1_0.SampleCountFlags) int {
	for _, s := range sampleCounts {
		if s.flag == flag {
			return s.count
		}
	}
	return 1
}
