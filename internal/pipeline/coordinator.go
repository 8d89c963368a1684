package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"mimic/internal/config"
	"mimic/internal/fileutil"
	"mimic/internal/logging"
	"mimic/internal/profiles"
	"mimic/internal/services"
	"mimic/internal/services/facedet"
	"mimic/internal/services/ffmpeg"
	"mimic/internal/services/lipsync"
	"mimic/internal/services/tts"
	"mimic/internal/vram"
)

// Clients bundles the external stage tools the coordinator drives.
type Clients struct {
	TTS        tts.Client
	FaceDetect facedet.Client
	LipSync    lipsync.Client
	FFmpeg     ffmpeg.Client
}

// Request describes one pipeline run.
type Request struct {
	Text        string
	ProfileID   string
	AvatarImage string
	OutputPath  string
	// RequestID correlates logs and the scratch directory; generated when
	// empty.
	RequestID string
	// Progress, when set, is called as each stage begins with the overall
	// completed fraction so far.
	Progress func(stage string, fraction float64)
}

// RunConfig is caller-supplied policy for one run. Immutable once passed
// to Execute.
type RunConfig struct {
	MaxVideoLengthSeconds int
	CleanupIntermediates  bool
	Quality               string
	FPS                   int
	EncodePreset          string
	EncodeCRF             int
}

// Result reports one finished run. StagesCompleted is append-only in
// execution order; on failure it is a strict prefix of StageNames ending
// at the failing stage.
type Result struct {
	Success               bool
	RequestID             string
	OutputPath            string
	DurationSeconds       float64
	ProcessingSeconds     float64
	StagesCompleted       []string
	StageDurations        map[string]time.Duration
	IntermediateArtifacts map[string]string
	Cleanup               []CleanupResult
	Err                   error
}

// Coordinator executes the fixed stage sequence against one accelerator.
type Coordinator struct {
	cfg       *config.Config
	vram      *vram.Manager
	profiles  *profiles.Store
	clients   Clients
	validator *facedet.Validator
	logger    *slog.Logger
}

// New wires a coordinator. All collaborators are required; the validator
// thresholds come from config.
func New(cfg *config.Config, vramMgr *vram.Manager, profileStore *profiles.Store, clients Clients, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		vram:      vramMgr,
		profiles:  profileStore,
		clients:   clients,
		validator: facedet.NewValidator(cfg.FaceDetect.MinConfidence, cfg.FaceDetect.MinFacePixels),
		logger:    logging.NewComponentLogger(logger, "pipeline"),
	}
}

// DefaultRunConfig derives run policy from the daemon configuration,
// scaled down to what the hardware tier sustains. Explicit per-run
// overrides are not tier-capped.
func (c *Coordinator) DefaultRunConfig(ctx context.Context) RunConfig {
	runCfg := RunConfig{
		MaxVideoLengthSeconds: c.cfg.Pipeline.MaxVideoLengthSeconds,
		CleanupIntermediates:  c.cfg.Pipeline.CleanupIntermediates,
		Quality:               c.cfg.LipSync.Quality,
		FPS:                   c.cfg.LipSync.FPS,
		EncodePreset:          c.cfg.Encode.Preset,
		EncodeCRF:             c.cfg.Encode.CRF,
	}

	tier := vram.TierFor(c.vram.Status(ctx), c.cfg.VRAM.HighTierMB, c.cfg.VRAM.LowTierMB)
	maxQuality, maxFPS := tierRenderCeiling(tier)
	if qualityRank(runCfg.Quality) > qualityRank(maxQuality) {
		runCfg.Quality = maxQuality
	}
	if runCfg.FPS > maxFPS {
		runCfg.FPS = maxFPS
	}
	return runCfg
}

// tierRenderCeiling returns the highest render quality and frame rate a
// hardware tier can sustain without thrashing the accelerator.
func tierRenderCeiling(tier vram.Tier) (quality string, fps int) {
	switch tier {
	case vram.TierHigh:
		return config.QualityHigh, 25
	case vram.TierStandard:
		return config.QualityMedium, 25
	default:
		return config.QualityLow, 20
	}
}

func qualityRank(quality string) int {
	switch quality {
	case config.QualityHigh:
		return 2
	case config.QualityMedium:
		return 1
	default:
		return 0
	}
}

// Execute runs the full sequence synchronously and always returns a
// Result; Err is set exactly when Success is false.
func (c *Coordinator) Execute(ctx context.Context, req Request, override *RunConfig) Result {
	start := time.Now()
	runCfg := c.DefaultRunConfig(ctx)
	if override != nil {
		runCfg = *override
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx = services.WithRequestID(ctx, requestID)
	logger := logging.WithContext(ctx, c.logger)

	result := Result{
		RequestID:             requestID,
		StageDurations:        make(map[string]time.Duration),
		IntermediateArtifacts: make(map[string]string),
	}
	fail := func(err error) Result {
		result.Err = err
		result.ProcessingSeconds = time.Since(start).Seconds()
		return result
	}

	if req.Text == "" || req.ProfileID == "" || req.AvatarImage == "" || req.OutputPath == "" {
		return fail(services.Wrap(services.ErrValidation, "", "pipeline", "text, profile id, avatar image, and output path are all required", nil))
	}

	scratchDir := filepath.Join(c.cfg.Paths.ScratchDir, "run-"+requestID)
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return fail(services.Wrap(services.ErrPersistence, "", "pipeline", "create scratch directory", err))
	}
	finish := func(err error) Result {
		result.Err = err
		result.Success = err == nil
		result.Cleanup = c.cleanupScratch(logger, runCfg, &result, scratchDir)
		result.ProcessingSeconds = time.Since(start).Seconds()
		return result
	}

	logger.Info("starting pipeline run",
		logging.String("profile_id", req.ProfileID),
		logging.String("avatar_image", req.AvatarImage),
		logging.String("output", req.OutputPath),
		logging.Int("text_chars", len(req.Text)),
	)

	report := func(index int, stage string) {
		if req.Progress != nil {
			req.Progress(stage, float64(index)/float64(len(StageNames())))
		}
	}

	// Stage 1: resolve the voice profile.
	report(0, StageLoadProfile)
	var profile *profiles.Profile
	if err := c.runStage(ctx, logger, &result, c.adapter(StageLoadProfile, 0, ""), func(ctx context.Context) error {
		loaded, err := c.profiles.Load(req.ProfileID)
		if err != nil {
			return err
		}
		profile = loaded
		return nil
	}); err != nil {
		return finish(err)
	}

	// Stage 2: synthesize speech, then enforce the duration ceiling. The
	// ceiling is policy, checked after the stage completes so the stage
	// itself still counts as done.
	report(1, StageSynthesize)
	audioPath := filepath.Join(scratchDir, "speech.wav")
	var synthesis tts.Result
	if err := c.runStage(ctx, logger, &result, c.adapter(StageSynthesize, c.cfg.TTS.PeakMemoryMB, c.cfg.TTS.Binary), func(ctx context.Context) error {
		out, err := c.clients.TTS.Synthesize(ctx, tts.Request{
			Text:           req.Text,
			ReferenceAudio: profile.ReferenceAudioPath,
			EmbeddingPath:  profile.EmbeddingPath,
			Language:       profile.Language,
			Speed:          c.cfg.TTS.Speed,
			OutputPath:     audioPath,
		}, nil)
		if err != nil {
			return services.Wrap(services.ErrStageExecution, StageSynthesize, "synthesize", "speech synthesis failed", err)
		}
		synthesis = out
		result.IntermediateArtifacts["audio"] = out.AudioPath
		return nil
	}); err != nil {
		return finish(err)
	}
	if limit := float64(runCfg.MaxVideoLengthSeconds); synthesis.DurationSeconds > limit {
		return finish(services.Wrap(services.ErrValidation, StageSynthesize, "duration check",
			fmt.Sprintf("audio too long: %.1fs (maximum %.0fs)", synthesis.DurationSeconds, limit), nil))
	}

	// Stage 3: validate the portrait for lip-sync suitability. Terminal on
	// rejection; a bad asset cannot improve without user intervention.
	report(2, StageValidate)
	if err := c.runStage(ctx, logger, &result, c.adapter(StageValidate, 0, c.cfg.FaceDetect.Binary), func(ctx context.Context) error {
		if _, err := os.Stat(req.AvatarImage); err != nil {
			return services.Wrap(services.ErrNotFound, StageValidate, "validate", "avatar image not found", err)
		}
		detection, err := c.clients.FaceDetect.Detect(ctx, req.AvatarImage)
		if err != nil {
			return services.Wrap(services.ErrStageExecution, StageValidate, "detect", "face detection failed", err)
		}
		ok, reason := c.validator.ValidateForLipsync(detection)
		if !ok {
			return services.Wrap(services.ErrValidation, StageValidate, "validate", reason, nil)
		}
		logger.Info("avatar validated", logging.String("reason", reason))
		return nil
	}); err != nil {
		return finish(err)
	}

	// Stage 4: render the talking head.
	report(3, StageLipSync)
	silentPath := filepath.Join(scratchDir, "lipsync.mp4")
	var render lipsync.Result
	if err := c.runStage(ctx, logger, &result, c.adapter(StageLipSync, c.cfg.LipSync.PeakMemoryMB, c.cfg.LipSync.Binary), func(ctx context.Context) error {
		out, err := c.clients.LipSync.Render(ctx, lipsync.Request{
			AvatarImage: req.AvatarImage,
			AudioPath:   synthesis.AudioPath,
			OutputPath:  silentPath,
			Quality:     runCfg.Quality,
			FPS:         runCfg.FPS,
		}, nil)
		if err != nil {
			return services.Wrap(services.ErrStageExecution, StageLipSync, "render", "lip-sync render failed", err)
		}
		render = out
		result.IntermediateArtifacts["lipsync"] = out.VideoPath
		return nil
	}); err != nil {
		return finish(err)
	}

	// Stage 5: encode the deliverable into the scratch area, muxing the
	// speech track into the silent render, then verified-copy it to its
	// final destination.
	report(4, StageEncode)
	encodedPath := filepath.Join(scratchDir, "final."+c.cfg.Encode.Container)
	if err := c.runStage(ctx, logger, &result, c.adapter(StageEncode, 0, c.cfg.FFmpegBinary()), func(ctx context.Context) error {
		encoded, err := c.clients.FFmpeg.Encode(ctx, ffmpeg.EncodeRequest{
			InputPath:    render.VideoPath,
			AudioPath:    synthesis.AudioPath,
			OutputPath:   encodedPath,
			Preset:       runCfg.EncodePreset,
			CRF:          runCfg.EncodeCRF,
			AudioBitrate: c.cfg.Encode.AudioBitrate,
		})
		if err != nil {
			return services.Wrap(services.ErrStageExecution, StageEncode, "encode", "final encode failed", err)
		}
		if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
			return services.Wrap(services.ErrPersistence, StageEncode, "deliver", "create output directory", err)
		}
		digest, err := fileutil.Deliver(encoded.OutputPath, req.OutputPath)
		if err != nil {
			return services.Wrap(services.ErrPersistence, StageEncode, "deliver", "deliver final render", err)
		}
		logger.Info("render delivered",
			logging.String("output", req.OutputPath),
			logging.String("sha256", digest),
		)
		result.OutputPath = req.OutputPath
		result.DurationSeconds = encoded.DurationSeconds
		if result.DurationSeconds == 0 {
			result.DurationSeconds = synthesis.DurationSeconds
		}
		return nil
	}); err != nil {
		return finish(err)
	}

	if req.Progress != nil {
		req.Progress(StageEncode, 1)
	}
	logger.Info("pipeline run completed",
		logging.String("output", result.OutputPath),
		logging.Float64("duration_seconds", result.DurationSeconds),
		logging.Float64("processing_seconds", time.Since(start).Seconds()),
	)
	return finish(nil)
}

// runStage applies the per-stage protocol: admission, load, execute,
// unload exactly once, forced release. Unload runs on the failure path
// too, before the error propagates.
func (c *Coordinator) runStage(ctx context.Context, logger *slog.Logger, result *Result, adapter Adapter, execute func(context.Context) error) error {
	name := adapter.Name()
	ctx = services.WithStage(ctx, name)

	if required := adapter.PeakMemoryMB(); required > 0 && !c.vram.CanLoad(ctx, required) {
		return services.Wrap(services.ErrResourceExhausted, name, "admission",
			fmt.Sprintf("stage requires %dMB", required), nil)
	}
	if err := adapter.Load(ctx); err != nil {
		return services.Wrap(services.ErrModelLoad, name, "load", "stage load failed", err)
	}

	started := time.Now()
	err := execute(ctx)
	adapter.Unload(ctx)
	c.vram.ForceRelease(ctx)
	result.StageDurations[name] = time.Since(started)

	if err != nil {
		logger.Error("stage failed",
			logging.String(logging.FieldStage, name),
			logging.Duration("elapsed", result.StageDurations[name]),
			logging.Error(err),
		)
		return err
	}
	result.StagesCompleted = append(result.StagesCompleted, name)
	logger.Info("stage completed",
		logging.String(logging.FieldStage, name),
		logging.Duration("elapsed", result.StageDurations[name]),
	)
	return nil
}

func (c *Coordinator) adapter(name string, peakMB int, binary string) Adapter {
	return &toolAdapter{name: name, peakMB: peakMB, binary: binary, logger: c.logger}
}
