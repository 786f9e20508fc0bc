package ui

// Config contains window/input/audio related settings for the reference host.
type Config struct {
	Title string // window title
	Scale int    // integer upscaling factor

	AudioStereo     bool // true: real stereo; false: fold to mono
	AudioBufferMs   int  // desired buffer size, in ms; set by Defaults but not read (the player uses 40 ms, or 20 ms with AudioLowLatency)
	AudioLowLatency bool // hard-cap buffering for minimal latency
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "gbemu"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
	if c.AudioBufferMs <= 0 {
		c.AudioBufferMs = 60
	}
}
