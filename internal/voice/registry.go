// Package voice manages per-user voice profiles: the recorded reference
// samples and the trained/untrained gate the synthesis stage depends on.
package voice

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sjpark-dev/dublate/pkg/models"
)

var (
	// ErrInvalidPromptIndex means the sample index is outside the prompt list.
	ErrInvalidPromptIndex = errors.New("invalid prompt index")

	// ErrInvalidUserID means the user id cannot be used as a directory name.
	ErrInvalidUserID = errors.New("invalid user id")

	// ErrInsufficientSamples means the training gate was not met.
	ErrInsufficientSamples = errors.New("insufficient samples")

	// ErrProfileNotFound means no samples were ever recorded for the user.
	ErrProfileNotFound = errors.New("voice profile not found")

	// ErrProfileNotReady means the profile exists but has not been trained.
	ErrProfileNotReady = errors.New("voice profile not ready")
)

const metadataFile = "metadata.json"

// Registry is the filesystem-backed voice profile store. Samples live under
// baseDir/<user_id>/sample_<index>.wav. Training state is a metadata file,
// not a model artifact; the synthesis backend clones at inference time.
type Registry struct {
	baseDir    string
	minSamples int

	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
}

// metadata is the persisted training record for one user.
type metadata struct {
	UserID      string    `json:"user_id"`
	SampleCount int       `json:"sample_count"`
	Status      string    `json:"status"`
	TrainedAt   time.Time `json:"trained_at"`
}

// NewRegistry creates a registry rooted at baseDir
func NewRegistry(baseDir string, minSamples int) *Registry {
	return &Registry{
		baseDir:    baseDir,
		minSamples: minSamples,
		keyLocks:   make(map[string]*sync.Mutex),
	}
}

// PromptCount returns the size of the canonical prompt list.
func (r *Registry) PromptCount() int {
	return len(TrainingPrompts)
}

// MinSamples returns the training readiness threshold.
func (r *Registry) MinSamples() int {
	return r.minSamples
}

// RecordSample stores one reference recording for (userID, promptIndex).
// Re-uploads for the same index overwrite. The sample is written to a temp
// file and atomically renamed into place, and writes for the same key are
// serialized, so a concurrent re-upload can never leave a torn file.
func (r *Registry) RecordSample(userID string, promptIndex int, audio io.Reader) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	if promptIndex < 0 || promptIndex >= len(TrainingPrompts) {
		return fmt.Errorf("%w: %d (want 0..%d)", ErrInvalidPromptIndex, promptIndex, len(TrainingPrompts)-1)
	}

	userDir := filepath.Join(r.baseDir, userID)
	if err := os.MkdirAll(userDir, 0755); err != nil {
		return fmt.Errorf("failed to create user directory: %w", err)
	}

	lock := r.lockFor(userID, promptIndex)
	lock.Lock()
	defer lock.Unlock()

	tmp, err := os.CreateTemp(userDir, ".sample_*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, audio); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write sample: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close sample: %w", err)
	}

	finalPath := filepath.Join(userDir, sampleName(promptIndex))
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to store sample: %w", err)
	}

	return nil
}

// SamplePath returns the on-disk path for one recorded sample.
func (r *Registry) SamplePath(userID string, promptIndex int) string {
	return filepath.Join(r.baseDir, userID, sampleName(promptIndex))
}

// Progress reports which prompt indices have recordings.
func (r *Registry) Progress(userID string) (*models.VoiceProfile, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	completed, err := r.completedIndices(userID)
	if err != nil {
		return nil, err
	}

	profile := &models.VoiceProfile{
		UserID:    userID,
		Completed: completed,
		Total:     len(TrainingPrompts),
		Status:    models.VoiceStatusIncomplete,
	}

	if meta, err := r.readMetadata(userID); err == nil && meta.Status == models.VoiceStatusReady {
		profile.Status = models.VoiceStatusReady
	}
	if len(completed) > 0 {
		profile.ReferenceSample = filepath.Join(r.baseDir, userID, sampleName(completed[0]))
	}

	return profile, nil
}

// MarkTrained flips the profile to ready once the sample gate is met.
// Calling it on an already-ready profile is a no-op returning the same
// profile state.
func (r *Registry) MarkTrained(userID string) (*models.VoiceProfile, error) {
	profile, err := r.Progress(userID)
	if err != nil {
		return nil, err
	}
	if len(profile.Completed) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
	}
	if profile.Ready() {
		return profile, nil
	}

	if len(profile.Completed) < r.minSamples {
		return nil, fmt.Errorf("%w: need at least %d, got %d",
			ErrInsufficientSamples, r.minSamples, len(profile.Completed))
	}

	meta := metadata{
		UserID:      userID,
		SampleCount: len(profile.Completed),
		Status:      models.VoiceStatusReady,
		TrainedAt:   time.Now().UTC(),
	}
	if err := r.writeMetadata(userID, meta); err != nil {
		return nil, err
	}

	profile.Status = models.VoiceStatusReady
	return profile, nil
}

// Reset wipes all samples and training state for the user.
func (r *Registry) Reset(userID string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(r.baseDir, userID))
}

// Profile returns the user's profile; ErrProfileNotFound if nothing was
// ever recorded.
func (r *Registry) Profile(userID string) (*models.VoiceProfile, error) {
	profile, err := r.Progress(userID)
	if err != nil {
		return nil, err
	}
	if len(profile.Completed) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
	}
	return profile, nil
}

// Reference returns the speaker reference sample path for a ready profile.
// The reference is always the lowest recorded prompt index so the cloned
// timbre stays stable across repeated synthesis calls.
func (r *Registry) Reference(userID string) (string, error) {
	profile, err := r.Profile(userID)
	if err != nil {
		return "", err
	}
	if !profile.Ready() {
		return "", fmt.Errorf("%w: %s has %d of %d required samples",
			ErrProfileNotReady, userID, len(profile.Completed), r.minSamples)
	}
	return profile.ReferenceSample, nil
}

// ListProfiles returns every trained profile.
func (r *Registry) ListProfiles() ([]*models.VoiceProfile, error) {
	entries, err := os.ReadDir(r.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read voice directory: %w", err)
	}

	var profiles []*models.VoiceProfile
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		profile, err := r.Progress(entry.Name())
		if err != nil {
			continue
		}
		if profile.Ready() {
			profiles = append(profiles, profile)
		}
	}

	return profiles, nil
}

func (r *Registry) completedIndices(userID string) ([]int, error) {
	userDir := filepath.Join(r.baseDir, userID)
	entries, err := os.ReadDir(userDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read user directory: %w", err)
	}

	var completed []int
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "sample_") || !strings.HasSuffix(name, ".wav") {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "sample_"), ".wav"))
		if err != nil || idx < 0 || idx >= len(TrainingPrompts) {
			continue
		}
		completed = append(completed, idx)
	}

	sort.Ints(completed)
	return completed, nil
}

func (r *Registry) readMetadata(userID string) (*metadata, error) {
	data, err := os.ReadFile(filepath.Join(r.baseDir, userID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (r *Registry) writeMetadata(userID string, meta metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	path := filepath.Join(r.baseDir, userID, metadataFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to store metadata: %w", err)
	}

	return nil
}

func (r *Registry) lockFor(userID string, promptIndex int) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s/%d", userID, promptIndex)
	lock, ok := r.keyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.keyLocks[key] = lock
	}
	return lock
}

func sampleName(promptIndex int) string {
	return fmt.Sprintf("sample_%d.wav", promptIndex)
}

func validateUserID(userID string) error {
	if userID == "" || strings.ContainsAny(userID, "/\\") || strings.Contains(userID, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidUserID, userID)
	}
	return nil
}
