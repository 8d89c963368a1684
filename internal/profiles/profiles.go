// Package profiles stores voice profile metadata on disk. A profile pins a
// speaker: a reference recording, an optional precomputed speaker
// embedding, and the language the speech stage should synthesize in.
package profiles

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"

	"mimic/internal/fileutil"
	"mimic/internal/logging"
	"mimic/internal/services"
)

const (
	metadataFile  = "metadata.json"
	referenceFile = "reference.wav"
	embeddingFile = "embedding.npz"
)

// Profile is one stored voice. Path fields are absolute and resolved at
// load time; they are not part of the metadata file.
type Profile struct {
	ID        string    `json:"profile_id"`
	Name      string    `json:"name"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
	// SourceAudio records where the reference recording came from.
	SourceAudio string `json:"source_audio"`

	ReferenceAudioPath string `json:"-"`
	EmbeddingPath      string `json:"-"`
}

// Store manages profiles under <dir>/<id>/, one directory per profile
// holding reference.wav, an optional embedding.npz, and metadata.json.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates the backing directory if needed.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "", "profiles", "create voice storage directory", err)
	}
	return &Store{dir: dir, logger: logging.NewComponentLogger(logger, "profiles")}, nil
}

// CreateRequest carries the inputs for a new profile.
type CreateRequest struct {
	Name           string
	Language       string
	ReferenceAudio string
	// EmbeddingPath is optional; when set the file is copied alongside the
	// reference so the speech stage can skip embedding extraction.
	EmbeddingPath string
}

// Create validates the request, allocates an id, and writes the profile
// directory. The directory is removed again if any step fails, so a
// half-written profile never becomes visible to List.
func (s *Store) Create(req CreateRequest) (*Profile, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "", "profiles", "profile name must not be empty", nil)
	}
	tag, err := language.Parse(req.Language)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "", "profiles", fmt.Sprintf("invalid language %q", req.Language), err)
	}
	if _, err := os.Stat(req.ReferenceAudio); err != nil {
		return nil, services.Wrap(services.ErrNotFound, "", "profiles", "reference audio not found", err)
	}

	existing, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, p := range existing {
		if p.Name == name {
			return nil, services.Wrap(services.ErrValidation, "", "profiles", fmt.Sprintf("profile named %q already exists (%s)", name, p.ID), nil)
		}
	}

	id, err := newProfileID()
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "", "profiles", "generate profile id", err)
	}
	profileDir := filepath.Join(s.dir, id)
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "", "profiles", "create profile directory", err)
	}

	profile := &Profile{
		ID:                 id,
		Name:               name,
		Language:           tag.String(),
		CreatedAt:          time.Now().UTC(),
		SourceAudio:        req.ReferenceAudio,
		ReferenceAudioPath: filepath.Join(profileDir, referenceFile),
	}
	if err := s.populate(profileDir, profile, req); err != nil {
		if removeErr := os.RemoveAll(profileDir); removeErr != nil {
			s.logger.Warn("failed to remove partial profile directory",
				logging.String("profile_id", id),
				logging.Error(removeErr),
			)
		}
		return nil, err
	}

	s.logger.Info("created voice profile",
		logging.String("profile_id", id),
		logging.String("name", name),
		logging.String("language", profile.Language),
	)
	return profile, nil
}

func (s *Store) populate(profileDir string, profile *Profile, req CreateRequest) error {
	if err := fileutil.CopyFile(req.ReferenceAudio, profile.ReferenceAudioPath); err != nil {
		return services.Wrap(services.ErrPersistence, "", "profiles", "copy reference audio", err)
	}
	if req.EmbeddingPath != "" {
		profile.EmbeddingPath = filepath.Join(profileDir, embeddingFile)
		if err := fileutil.CopyFile(req.EmbeddingPath, profile.EmbeddingPath); err != nil {
			return services.Wrap(services.ErrPersistence, "", "profiles", "copy speaker embedding", err)
		}
	}

	payload, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrPersistence, "", "profiles", "encode profile metadata", err)
	}
	if err := os.WriteFile(filepath.Join(profileDir, metadataFile), payload, 0o644); err != nil {
		return services.Wrap(services.ErrPersistence, "", "profiles", "write profile metadata", err)
	}
	return nil
}

// Load reads one profile by id.
func (s *Store) Load(id string) (*Profile, error) {
	profileDir := filepath.Join(s.dir, id)
	payload, err := os.ReadFile(filepath.Join(profileDir, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, "", "profiles", fmt.Sprintf("profile %s not found", id), nil)
		}
		return nil, services.Wrap(services.ErrPersistence, "", "profiles", "read profile metadata", err)
	}

	var profile Profile
	if err := json.Unmarshal(payload, &profile); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "", "profiles", fmt.Sprintf("decode metadata for %s", id), err)
	}
	profile.ReferenceAudioPath = filepath.Join(profileDir, referenceFile)
	embedding := filepath.Join(profileDir, embeddingFile)
	if _, err := os.Stat(embedding); err == nil {
		profile.EmbeddingPath = embedding
	}
	return &profile, nil
}

// List returns every readable profile sorted by creation time, newest
// first. Corrupt profile directories are logged and skipped rather than
// failing the whole listing.
func (s *Store) List() ([]*Profile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrPersistence, "", "profiles", "read voice storage directory", err)
	}

	profiles := make([]*Profile, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		profile, err := s.Load(entry.Name())
		if err != nil {
			s.logger.Warn("skipping unreadable profile",
				logging.String("profile_id", entry.Name()),
				logging.Error(err),
			)
			continue
		}
		profiles = append(profiles, profile)
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].CreatedAt.After(profiles[j].CreatedAt)
	})
	return profiles, nil
}

// Delete removes a profile directory. It reports false when the profile
// does not exist, matching the queue's cancel semantics.
func (s *Store) Delete(id string) (bool, error) {
	profileDir := filepath.Join(s.dir, id)
	if _, err := os.Stat(profileDir); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, services.Wrap(services.ErrPersistence, "", "profiles", "stat profile directory", err)
	}
	if err := os.RemoveAll(profileDir); err != nil {
		return false, services.Wrap(services.ErrPersistence, "", "profiles", "remove profile directory", err)
	}
	s.logger.Info("deleted voice profile", logging.String("profile_id", id))
	return true, nil
}

func newProfileID() (string, error) {
	raw := make([]byte, 4)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return "vp-" + hex.EncodeToString(raw), nil
}
