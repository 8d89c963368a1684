package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"mimic/internal/config"
	"mimic/internal/jobs"
	"mimic/internal/logging"
	"mimic/internal/pipeline"
	"mimic/internal/profiles"
	"mimic/internal/services"
	"mimic/internal/services/ffmpeg"
	"mimic/internal/services/tts"
)

// ProgressFunc receives stage labels and completed fractions as a job
// advances.
type ProgressFunc func(stageLabel string, fraction float64)

// Processor turns one job into a result. Implementations must not
// mutate the job; the worker owns lifecycle transitions.
type Processor interface {
	Process(ctx context.Context, job *jobs.Job, progress ProgressFunc) (jobs.Result, error)
}

// PipelineProcessor dispatches jobs to the stage pipeline or, for the
// narrower job types, straight to the relevant tool client.
type PipelineProcessor struct {
	cfg      *config.Config
	runner   *pipeline.Coordinator
	profiles *profiles.Store
	clients  pipeline.Clients
	logger   *slog.Logger
}

// NewProcessor wires the default job processor.
func NewProcessor(cfg *config.Config, runner *pipeline.Coordinator, profileStore *profiles.Store, clients pipeline.Clients, logger *slog.Logger) *PipelineProcessor {
	return &PipelineProcessor{
		cfg:      cfg,
		runner:   runner,
		profiles: profileStore,
		clients:  clients,
		logger:   logging.NewComponentLogger(logger, "processor"),
	}
}

// Process runs the job to completion and returns its result.
func (p *PipelineProcessor) Process(ctx context.Context, job *jobs.Job, progress ProgressFunc) (jobs.Result, error) {
	params, err := job.DecodeParameters()
	if err != nil {
		return jobs.Result{}, err
	}
	switch typed := params.(type) {
	case jobs.FullPipelineParams:
		return p.processFullPipeline(ctx, job, typed, progress)
	case jobs.SynthesisParams:
		return p.processSynthesis(ctx, typed, progress)
	case jobs.EncodeParams:
		return p.processEncode(ctx, typed, progress)
	default:
		return jobs.Result{}, services.Wrap(services.ErrValidation, "", "worker",
			fmt.Sprintf("no processor for job type %s", job.Type), nil)
	}
}

func (p *PipelineProcessor) processFullPipeline(ctx context.Context, job *jobs.Job, params jobs.FullPipelineParams, progress ProgressFunc) (jobs.Result, error) {
	result := p.runner.Execute(ctx, pipeline.Request{
		Text:        params.Text,
		ProfileID:   params.ProfileID,
		AvatarImage: params.AvatarImage,
		OutputPath:  params.OutputPath,
		// Reusing the job id keys logs and the scratch directory to the
		// queue entry.
		RequestID: job.ID,
		Progress: func(stage string, fraction float64) {
			if progress != nil {
				progress(stage, fraction)
			}
		},
	}, nil)
	if result.Err != nil {
		return jobs.Result{StagesCompleted: result.StagesCompleted}, result.Err
	}
	return jobs.Result{
		OutputPath:        result.OutputPath,
		DurationSeconds:   result.DurationSeconds,
		ProcessingSeconds: result.ProcessingSeconds,
		StagesCompleted:   result.StagesCompleted,
	}, nil
}

func (p *PipelineProcessor) processSynthesis(ctx context.Context, params jobs.SynthesisParams, progress ProgressFunc) (jobs.Result, error) {
	profile, err := p.profiles.Load(params.ProfileID)
	if err != nil {
		return jobs.Result{}, err
	}
	if err := os.MkdirAll(filepath.Dir(params.OutputPath), 0o755); err != nil {
		return jobs.Result{}, services.Wrap(services.ErrPersistence, pipeline.StageSynthesize, "synthesize", "create output directory", err)
	}
	if progress != nil {
		progress(pipeline.StageSynthesize, 0)
	}
	out, err := p.clients.TTS.Synthesize(ctx, tts.Request{
		Text:           params.Text,
		ReferenceAudio: profile.ReferenceAudioPath,
		EmbeddingPath:  profile.EmbeddingPath,
		Language:       profile.Language,
		Speed:          p.cfg.TTS.Speed,
		OutputPath:     params.OutputPath,
	}, func(update tts.ProgressUpdate) {
		if progress != nil {
			progress(pipeline.StageSynthesize, update.Percent/100)
		}
	})
	if err != nil {
		return jobs.Result{}, services.Wrap(services.ErrStageExecution, pipeline.StageSynthesize, "synthesize", "speech synthesis failed", err)
	}
	if progress != nil {
		progress(pipeline.StageSynthesize, 1)
	}
	return jobs.Result{
		OutputPath:        out.AudioPath,
		DurationSeconds:   out.DurationSeconds,
		ProcessingSeconds: out.ProcessingSeconds,
		StagesCompleted:   []string{pipeline.StageSynthesize},
	}, nil
}

func (p *PipelineProcessor) processEncode(ctx context.Context, params jobs.EncodeParams, progress ProgressFunc) (jobs.Result, error) {
	if err := os.MkdirAll(filepath.Dir(params.OutputPath), 0o755); err != nil {
		return jobs.Result{}, services.Wrap(services.ErrPersistence, pipeline.StageEncode, "encode", "create output directory", err)
	}
	preset := params.Preset
	if preset == "" {
		preset = p.cfg.Encode.Preset
	}
	crf := params.CRF
	if crf == 0 {
		crf = p.cfg.Encode.CRF
	}
	if progress != nil {
		progress(pipeline.StageEncode, 0)
	}
	encoded, err := p.clients.FFmpeg.Encode(ctx, ffmpeg.EncodeRequest{
		InputPath:    params.InputPath,
		AudioPath:    params.AudioPath,
		OutputPath:   params.OutputPath,
		Preset:       preset,
		CRF:          crf,
		AudioBitrate: p.cfg.Encode.AudioBitrate,
	})
	if err != nil {
		return jobs.Result{}, services.Wrap(services.ErrStageExecution, pipeline.StageEncode, "encode", "encode failed", err)
	}
	if progress != nil {
		progress(pipeline.StageEncode, 1)
	}
	return jobs.Result{
		OutputPath:      encoded.OutputPath,
		DurationSeconds: encoded.DurationSeconds,
		StagesCompleted: []string{pipeline.StageEncode},
	}, nil
}
