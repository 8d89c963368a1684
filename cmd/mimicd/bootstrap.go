package main

import (
	"mimic/internal/config"
	"mimic/internal/pipeline"
	"mimic/internal/services/facedet"
	"mimic/internal/services/ffmpeg"
	"mimic/internal/services/lipsync"
	"mimic/internal/services/tts"
)

func buildClients(cfg *config.Config) pipeline.Clients {
	return pipeline.Clients{
		TTS: tts.NewCLI(
			tts.WithBinary(cfg.TTS.Binary),
			tts.WithModel(cfg.TTS.Model),
			tts.WithMaxTextLength(cfg.TTS.MaxTextLength),
		),
		FaceDetect: facedet.NewCLI(
			facedet.WithBinary(cfg.FaceDetect.Binary),
			facedet.WithMinConfidence(cfg.FaceDetect.MinConfidence),
		),
		LipSync: lipsync.NewCLI(
			lipsync.WithBinary(cfg.LipSync.Binary),
		),
		FFmpeg: ffmpeg.NewCLI(
			ffmpeg.WithBinary(cfg.FFmpegBinary()),
			ffmpeg.WithProbeBinary(cfg.FFprobeBinary()),
		),
	}
}
