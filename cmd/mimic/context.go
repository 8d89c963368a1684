package main

import (
	"context"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"mimic/internal/config"
	"mimic/internal/jobs"
	"mimic/internal/logging"
	"mimic/internal/pipeline"
	"mimic/internal/profiles"
	"mimic/internal/services/facedet"
	"mimic/internal/services/ffmpeg"
	"mimic/internal/services/lipsync"
	"mimic/internal/services/tts"
	"mimic/internal/vram"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) withStore(fn func(*jobs.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := jobs.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck
	return fn(store)
}

func (c *commandContext) profileStore() (*profiles.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return profiles.NewStore(cfg.VoicesDir(), logging.NewNop())
}

// vramManager probes for an accelerator once per invocation. CLI output
// stays quiet; admission logging belongs to the daemon.
func (c *commandContext) vramManager(ctx context.Context) (*vram.Manager, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	prober := vram.Detect(ctx, cfg.VRAM.SMIBinary, cfg.VRAM.DeviceID)
	if prober == nil {
		return vram.NewManager(nil, cfg.VRAM.DeviceID, cfg.VRAM.SafetyMarginMB, logging.NewNop()), nil
	}
	return vram.NewManager(prober, cfg.VRAM.DeviceID, cfg.VRAM.SafetyMarginMB, logging.NewNop()), nil
}

func (c *commandContext) coordinator(ctx context.Context) (*pipeline.Coordinator, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	manager, err := c.vramManager(ctx)
	if err != nil {
		return nil, err
	}
	profileStore, err := c.profileStore()
	if err != nil {
		return nil, err
	}
	clients := pipeline.Clients{
		TTS: tts.NewCLI(
			tts.WithBinary(cfg.TTS.Binary),
			tts.WithModel(cfg.TTS.Model),
			tts.WithMaxTextLength(cfg.TTS.MaxTextLength),
		),
		FaceDetect: facedet.NewCLI(
			facedet.WithBinary(cfg.FaceDetect.Binary),
			facedet.WithMinConfidence(cfg.FaceDetect.MinConfidence),
		),
		LipSync: lipsync.NewCLI(lipsync.WithBinary(cfg.LipSync.Binary)),
		FFmpeg: ffmpeg.NewCLI(
			ffmpeg.WithBinary(cfg.FFmpegBinary()),
			ffmpeg.WithProbeBinary(cfg.FFprobeBinary()),
		),
	}
	return pipeline.New(cfg, manager, profileStore, clients, logging.NewNop()), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
