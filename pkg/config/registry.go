package config

// Persistent state keys (Registry)
const (
	KeyDevicePixelRatio = "device_pixel_ratio"
	KeyAudioCues        = "audio_cues"
	KeyGNSSSource       = "gnss_source"
	KeyLastTarget       = "last_target"
	KeyLastZoom         = "last_zoom"
)
