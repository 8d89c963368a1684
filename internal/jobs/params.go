package jobs

import (
	"encoding/json"
	"fmt"
	"strings"

	"mimic/internal/services"
)

// Type discriminates the parameter payload a job carries.
type Type string

const (
	TypeFullPipeline Type = "full_pipeline"
	TypeSynthesis    Type = "synthesis"
	TypeEncode       Type = "encode"
)

var allTypes = []Type{TypeFullPipeline, TypeSynthesis, TypeEncode}

// ParseType converts a string into a known job Type.
func ParseType(value string) (Type, bool) {
	normalized := Type(strings.ToLower(strings.TrimSpace(value)))
	for _, t := range allTypes {
		if t == normalized {
			return t, true
		}
	}
	return "", false
}

// FullPipelineParams drives a complete text-to-talking-head run.
type FullPipelineParams struct {
	Text        string `json:"text"`
	ProfileID   string `json:"profile_id"`
	AvatarImage string `json:"avatar_image"`
	OutputPath  string `json:"output_path"`
}

// Validate reports the first missing required field.
func (p FullPipelineParams) Validate() error {
	switch {
	case strings.TrimSpace(p.Text) == "":
		return paramsError(TypeFullPipeline, "text is required")
	case p.ProfileID == "":
		return paramsError(TypeFullPipeline, "profile_id is required")
	case p.AvatarImage == "":
		return paramsError(TypeFullPipeline, "avatar_image is required")
	case p.OutputPath == "":
		return paramsError(TypeFullPipeline, "output_path is required")
	}
	return nil
}

// SynthesisParams drives an audio-only speech synthesis run.
type SynthesisParams struct {
	Text       string `json:"text"`
	ProfileID  string `json:"profile_id"`
	OutputPath string `json:"output_path"`
}

func (p SynthesisParams) Validate() error {
	switch {
	case strings.TrimSpace(p.Text) == "":
		return paramsError(TypeSynthesis, "text is required")
	case p.ProfileID == "":
		return paramsError(TypeSynthesis, "profile_id is required")
	case p.OutputPath == "":
		return paramsError(TypeSynthesis, "output_path is required")
	}
	return nil
}

// EncodeParams drives a standalone re-encode of an existing video.
type EncodeParams struct {
	InputPath  string `json:"input_path"`
	AudioPath  string `json:"audio_path,omitempty"`
	OutputPath string `json:"output_path"`
	Preset     string `json:"preset,omitempty"`
	CRF        int    `json:"crf,omitempty"`
}

func (p EncodeParams) Validate() error {
	switch {
	case p.InputPath == "":
		return paramsError(TypeEncode, "input_path is required")
	case p.OutputPath == "":
		return paramsError(TypeEncode, "output_path is required")
	}
	return nil
}

type validatable interface {
	Validate() error
}

// EncodeParameters marshals typed parameters after checking they match
// the job type and carry their required fields.
func EncodeParameters(jobType Type, params any) (json.RawMessage, error) {
	var matches bool
	switch jobType {
	case TypeFullPipeline:
		_, matches = params.(FullPipelineParams)
	case TypeSynthesis:
		_, matches = params.(SynthesisParams)
	case TypeEncode:
		_, matches = params.(EncodeParams)
	default:
		return nil, paramsError(jobType, "unknown job type")
	}
	if !matches {
		return nil, paramsError(jobType, fmt.Sprintf("parameters %T do not match job type", params))
	}
	if v, ok := params.(validatable); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, paramsError(jobType, "marshal parameters")
	}
	return raw, nil
}

// DecodeParameters unmarshals and validates the job's parameter payload
// into its type-specific struct.
func (j *Job) DecodeParameters() (any, error) {
	switch j.Type {
	case TypeFullPipeline:
		var p FullPipelineParams
		if err := json.Unmarshal(j.Parameters, &p); err != nil {
			return nil, paramsError(j.Type, "malformed parameters payload")
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return p, nil
	case TypeSynthesis:
		var p SynthesisParams
		if err := json.Unmarshal(j.Parameters, &p); err != nil {
			return nil, paramsError(j.Type, "malformed parameters payload")
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return p, nil
	case TypeEncode:
		var p EncodeParams
		if err := json.Unmarshal(j.Parameters, &p); err != nil {
			return nil, paramsError(j.Type, "malformed parameters payload")
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, paramsError(j.Type, "unknown job type")
	}
}

func paramsError(jobType Type, message string) error {
	return services.Wrap(services.ErrValidation, "", "jobs",
		fmt.Sprintf("%s: %s", jobType, message), nil)
}
