package pipeline

import (
	"log/slog"
	"os"

	"mimic/internal/logging"
)

// CleanupResult records one attempted deletion. Cleanup collects results
// instead of raising so a deletion problem can never mask the run's real
// outcome.
type CleanupResult struct {
	Target string
	Err    error
}

// cleanupScratch applies the run's retention policy. When cleanup is
// requested, every recorded artifact and the scratch directory itself are
// deleted best-effort; on a successful run the artifact map is cleared,
// while a failed run keeps its paths in the result for diagnosis.
func (c *Coordinator) cleanupScratch(logger *slog.Logger, runCfg RunConfig, result *Result, scratchDir string) []CleanupResult {
	if !runCfg.CleanupIntermediates {
		logger.Debug("retaining intermediate artifacts", logging.String("scratch_dir", scratchDir))
		return nil
	}

	results := make([]CleanupResult, 0, len(result.IntermediateArtifacts)+1)
	for _, path := range result.IntermediateArtifacts {
		err := os.Remove(path)
		if err != nil && os.IsNotExist(err) {
			err = nil
		}
		results = append(results, CleanupResult{Target: path, Err: err})
		if err != nil {
			logger.Warn("failed to delete intermediate artifact",
				logging.String("path", path),
				logging.Error(err),
			)
		}
	}
	err := os.RemoveAll(scratchDir)
	results = append(results, CleanupResult{Target: scratchDir, Err: err})
	if err != nil {
		logger.Warn("failed to remove scratch directory",
			logging.String("path", scratchDir),
			logging.Error(err),
		)
	}

	if result.Success {
		result.IntermediateArtifacts = map[string]string{}
	}
	return results
}
