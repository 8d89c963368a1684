package config

const (
	defaultStorageDir = "~/.local/share/mimic"
	defaultScratchDir = "~/.local/share/mimic/scratch"
	defaultLogDir     = "~/.local/share/mimic/logs"

	defaultSafetyMarginMB = 512
	defaultHighTierMB     = 20 * 1024
	defaultLowTierMB      = 8 * 1024
	defaultSMIBinary      = "nvidia-smi"

	defaultTTSBinary       = "xtts"
	defaultTTSModel        = "xtts_v2"
	defaultTTSLanguage     = "en"
	defaultTTSSpeed        = 1.0
	defaultTTSPeakMB       = 3072
	defaultMaxTextLength   = 5000
	defaultTTSTimeoutSecs  = 600
	defaultToolTimeoutSecs = 1800

	defaultFaceDetectBinary = "facescan"
	defaultMinConfidence    = 0.5
	defaultMinFacePixels    = 128

	defaultLipSyncBinary = "musetalk"
	defaultLipSyncFPS    = 25

	defaultFFmpegBinary  = "ffmpeg"
	defaultFFprobeBinary = "ffprobe"

	defaultEncodePreset = "medium"
	defaultEncodeCRF    = 23
	defaultContainer    = "mp4"
	defaultAudioBitrate = "192k"
	defaultEncodeSecs   = 600

	defaultMaxVideoLengthSeconds = 120
	defaultMinScratchFreeMB      = 1024

	defaultQueuePollInterval  = 2
	defaultErrorRetryInterval = 10
	defaultKeepFinishedJobs   = 100

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// QualityHigh, QualityMedium, and QualityLow are the render quality tiers
// accepted by lipsync.quality and per-run overrides.
const (
	QualityHigh   = "high"
	QualityMedium = "medium"
	QualityLow    = "low"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StorageDir: defaultStorageDir,
			ScratchDir: defaultScratchDir,
			LogDir:     defaultLogDir,
		},
		VRAM: VRAM{
			DeviceID:       0,
			SafetyMarginMB: defaultSafetyMarginMB,
			HighTierMB:     defaultHighTierMB,
			LowTierMB:      defaultLowTierMB,
			SMIBinary:      defaultSMIBinary,
		},
		TTS: TTS{
			Binary:         defaultTTSBinary,
			Model:          defaultTTSModel,
			Language:       defaultTTSLanguage,
			Speed:          defaultTTSSpeed,
			PeakMemoryMB:   defaultTTSPeakMB,
			MaxTextLength:  defaultMaxTextLength,
			TimeoutSeconds: defaultTTSTimeoutSecs,
		},
		FaceDetect: FaceDetect{
			Binary:        defaultFaceDetectBinary,
			MinConfidence: defaultMinConfidence,
			MinFacePixels: defaultMinFacePixels,
		},
		LipSync: LipSync{
			Binary:         defaultLipSyncBinary,
			Quality:        QualityHigh,
			FPS:            defaultLipSyncFPS,
			PeakMemoryMB:   5120,
			TimeoutSeconds: defaultToolTimeoutSecs,
		},
		Encode: Encode{
			Binary:         defaultFFmpegBinary,
			ProbeBinary:    defaultFFprobeBinary,
			Preset:         defaultEncodePreset,
			CRF:            defaultEncodeCRF,
			Container:      defaultContainer,
			AudioBitrate:   defaultAudioBitrate,
			TimeoutSeconds: defaultEncodeSecs,
		},
		Pipeline: Pipeline{
			MaxVideoLengthSeconds: defaultMaxVideoLengthSeconds,
			CleanupIntermediates:  true,
			MinScratchFreeMB:      defaultMinScratchFreeMB,
		},
		Worker: Worker{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			KeepFinishedJobs:   defaultKeepFinishedJobs,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
