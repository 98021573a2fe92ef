package system

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user-none/eblitui/android/storage"
)

func TestStateStore_SlotPath(t *testing.T) {
	st := NewStateStore(storage.Paths{Base: "/data"})

	path, err := st.SlotPath("00000000deadbeef", false, 3)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", "states", "00000000deadbeef-3.state"), path)

	path, err = st.SlotPath("00000000deadbeef", true, 0)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", "states", "global-0.state"), path)

	_, err = st.SlotPath("x", false, -1)
	assert.ErrorIs(t, err, ErrInvalidSlot)
}

func TestStateStore_MostRecentResume(t *testing.T) {
	st := NewStateStore(storage.Paths{Base: t.TempDir()})

	_, err := st.MostRecentResume()
	assert.ErrorIs(t, err, ErrNoResumeState)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, st.WriteResume(ResumeInfo{ImagePath: "/a.bin", Title: "a", Fingerprint: "aa", Saved: base}, []byte{1}))
	require.NoError(t, st.WriteResume(ResumeInfo{ImagePath: "/b.bin", Title: "b", Fingerprint: "bb", Saved: base.Add(time.Hour)}, []byte{2}))
	require.NoError(t, st.WriteResume(ResumeInfo{ImagePath: "/c.bin", Title: "c", Fingerprint: "cc", Saved: base.Add(2 * time.Hour)}, []byte{3}))

	// metadata without a state file is ignored
	require.NoError(t, os.Remove(st.ResumePath("cc")))

	info, err := st.MostRecentResume()
	require.NoError(t, err)
	assert.Equal(t, "b", info.Title)
	assert.Equal(t, "/b.bin", info.ImagePath)

	data, err := st.ReadResume("aa")
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, data)

	_, err = st.ReadResume("cc")
	assert.ErrorIs(t, err, ErrNoResumeState)
}
