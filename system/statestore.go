package system

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/user-none/eblitui/android/storage"
)

// NumSlots is the number of save state slots per image and globally.
const NumSlots = 10

const resumeSuffix = ".resume.json"

// ResumeInfo describes a resume state on disk.
type ResumeInfo struct {
	ImagePath   string    `json:"image_path"`
	Title       string    `json:"title"`
	Fingerprint string    `json:"fingerprint"`
	Saved       time.Time `json:"saved"`
}

// StateStore lays out save state, resume state and battery RAM files.
//
//	states/<fingerprint>-<slot>.state   per-image slots
//	states/global-<slot>.state          global slots
//	states/<fingerprint>.resume.state   resume state
//	states/<fingerprint>.resume.json    resume metadata
//	saves/<fingerprint>.srm             battery RAM
type StateStore struct {
	paths storage.Paths
}

func NewStateStore(paths storage.Paths) StateStore {
	return StateStore{paths: paths}
}

// SlotPath returns the file for slot. Global slots are shared by every image.
func (st StateStore) SlotPath(fingerprint string, global bool, slot int) (string, error) {
	if slot < 0 || slot >= NumSlots {
		return "", fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	prefix := fingerprint
	if global {
		prefix = "global"
	}
	return filepath.Join(st.paths.StatesDir(), fmt.Sprintf("%s-%d.state", prefix, slot)), nil
}

func (st StateStore) ResumePath(fingerprint string) string {
	return filepath.Join(st.paths.StatesDir(), fingerprint+".resume.state")
}

func (st StateStore) resumeInfoPath(fingerprint string) string {
	return filepath.Join(st.paths.StatesDir(), fingerprint+resumeSuffix)
}

func (st StateStore) SRAMPath(fingerprint string) string {
	return filepath.Join(st.paths.SavesDir(), fingerprint+".srm")
}

// WriteResume stores data as the resume state of info.Fingerprint.
func (st StateStore) WriteResume(info ResumeInfo, data []byte) error {
	if err := storage.AtomicWriteFile(st.ResumePath(info.Fingerprint), data); err != nil {
		return fmt.Errorf("failed to write resume state: %w", err)
	}
	if err := storage.AtomicWriteJSON(st.resumeInfoPath(info.Fingerprint), info); err != nil {
		return fmt.Errorf("failed to write resume metadata: %w", err)
	}
	return nil
}

// ReadResume returns the resume state for fingerprint, or ErrNoResumeState.
func (st StateStore) ReadResume(fingerprint string) ([]byte, error) {
	data, err := os.ReadFile(st.ResumePath(fingerprint))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoResumeState
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read resume state: %w", err)
	}
	return data, nil
}

// MostRecentResume returns the newest resume state that still has its
// state file next to the metadata.
func (st StateStore) MostRecentResume() (ResumeInfo, error) {
	entries, err := os.ReadDir(st.paths.StatesDir())
	if errors.Is(err, os.ErrNotExist) {
		return ResumeInfo{}, ErrNoResumeState
	}
	if err != nil {
		return ResumeInfo{}, fmt.Errorf("failed to list states: %w", err)
	}

	var best ResumeInfo
	found := false
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), resumeSuffix) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(st.paths.StatesDir(), e.Name()))
		if err != nil {
			continue
		}
		var info ResumeInfo
		if json.Unmarshal(raw, &info) != nil || info.Fingerprint == "" {
			continue
		}
		if _, err := os.Stat(st.ResumePath(info.Fingerprint)); err != nil {
			continue
		}
		if !found || info.Saved.After(best.Saved) {
			best, found = info, true
		}
	}
	if !found {
		return ResumeInfo{}, ErrNoResumeState
	}
	return best, nil
}
