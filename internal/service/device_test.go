package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDeviceService(t *testing.T) (*DeviceService, *time.Time) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "registry", "devices.json")

	log := logrus.New()
	log.SetOutput(os.Stderr)

	s, err := NewDeviceService(path, log)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	return s, &now
}

func TestDeviceService_RegisterIssuesSecret(t *testing.T) {
	s, now := newTestDeviceService(t)
	browserID := uuid.NewString()

	entry, err := s.Register(browserID, "10.0.0.1", "Mozilla/5.0")
	require.NoError(t, err)

	assert.Len(t, entry.SharedSecret, 64)
	assert.Equal(t, now.Add(7*24*time.Hour), entry.ExpiresAt)
	assert.Equal(t, "10.0.0.1", entry.IP)
	assert.True(t, entry.Active)
}

func TestDeviceService_ReRegistrationIsIdempotent(t *testing.T) {
	s, now := newTestDeviceService(t)
	browserID := uuid.NewString()

	first, err := s.Register(browserID, "10.0.0.1", "ua")
	require.NoError(t, err)

	*now = now.Add(time.Hour)

	second, err := s.Register(browserID, "10.0.0.2", "ua")
	require.NoError(t, err)

	assert.Equal(t, first.SharedSecret, second.SharedSecret)
	assert.Equal(t, now.Add(7*24*time.Hour), second.ExpiresAt)
	assert.True(t, second.ExpiresAt.After(first.ExpiresAt))
	assert.Equal(t, "10.0.0.2", second.LastIP)
}

func TestDeviceService_VelocityCap(t *testing.T) {
	s, now := newTestDeviceService(t)

	for i := 0; i < 10; i++ {
		_, err := s.Register(uuid.NewString(), "10.0.0.1", "ua")
		require.NoError(t, err, "attempt %d", i+1)
	}

	_, err := s.Register(uuid.NewString(), "10.0.0.1", "ua")
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	// A different IP is unaffected
	_, err = s.Register(uuid.NewString(), "10.0.0.2", "ua")
	assert.NoError(t, err)

	// Attempts slide out of the 60s window
	*now = now.Add(61 * time.Second)
	_, err = s.Register(uuid.NewString(), "10.0.0.1", "ua")
	assert.NoError(t, err)
}

func TestDeviceService_ActiveDeviceCap(t *testing.T) {
	s, now := newTestDeviceService(t)

	// Spread registrations so the velocity cap never trips
	for i := 0; i < 30; i++ {
		*now = now.Add(10 * time.Second)
		_, err := s.Register(uuid.NewString(), "10.0.0.1", "ua")
		require.NoError(t, err, "device %d", i+1)
	}

	*now = now.Add(10 * time.Second)
	_, err := s.Register(uuid.NewString(), "10.0.0.1", "ua")
	assert.ErrorIs(t, err, ErrDeviceCapReached)
}

func TestDeviceService_GetRemovesExpired(t *testing.T) {
	s, now := newTestDeviceService(t)
	browserID := uuid.NewString()

	_, err := s.Register(browserID, "10.0.0.1", "ua")
	require.NoError(t, err)

	_, ok := s.Get(browserID)
	require.True(t, ok)

	*now = now.Add(8 * 24 * time.Hour)

	_, ok = s.Get(browserID)
	assert.False(t, ok)

	// Eagerly removed: even rolling the clock back does not resurrect it
	*now = now.Add(-8 * 24 * time.Hour)
	_, ok = s.Get(browserID)
	assert.False(t, ok)
}

func TestDeviceService_RevokedIndistinguishableFromAbsent(t *testing.T) {
	s, _ := newTestDeviceService(t)
	browserID := uuid.NewString()

	_, err := s.Register(browserID, "10.0.0.1", "ua")
	require.NoError(t, err)

	require.NoError(t, s.Revoke(browserID))

	_, ok := s.Get(browserID)
	assert.False(t, ok)

	assert.ErrorIs(t, s.Revoke(uuid.NewString()), ErrDeviceNotFound)
}

func TestDeviceService_SweepRemovesExpired(t *testing.T) {
	s, now := newTestDeviceService(t)

	fresh := uuid.NewString()
	stale := uuid.NewString()

	_, err := s.Register(stale, "10.0.0.1", "ua")
	require.NoError(t, err)

	*now = now.Add(4 * 24 * time.Hour)
	_, err = s.Register(fresh, "10.0.0.2", "ua")
	require.NoError(t, err)

	*now = now.Add(4 * 24 * time.Hour)

	assert.Equal(t, 1, s.Sweep())

	_, ok := s.Get(stale)
	assert.False(t, ok)
	_, ok = s.Get(fresh)
	assert.True(t, ok)
}

func TestDeviceService_PersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devices.json")

	log := logrus.New()

	s, err := NewDeviceService(path, log)
	require.NoError(t, err)

	browserID := uuid.NewString()
	entry, err := s.Register(browserID, "10.0.0.1", "ua")
	require.NoError(t, err)

	s.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var file struct {
		Devices []struct {
			BrowserID    string `json:"browserId"`
			SharedSecret string `json:"sharedSecret"`
		} `json:"devices"`
	}
	require.NoError(t, json.Unmarshal(data, &file))
	require.Len(t, file.Devices, 1)
	assert.Equal(t, browserID, file.Devices[0].BrowserID)
	assert.Equal(t, entry.SharedSecret, file.Devices[0].SharedSecret)

	// Pretty-printed with two-space indent
	assert.Contains(t, string(data), "\n  \"devices\"")

	// A fresh service loads the persisted entries
	restored, err := NewDeviceService(path, log)
	require.NoError(t, err)
	defer restored.Close()

	got, ok := restored.Get(browserID)
	require.True(t, ok)
	assert.Equal(t, entry.SharedSecret, got.SharedSecret)
}

func TestDeviceService_DebouncedPersistence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devices.json")

	s, err := NewDeviceService(path, logrus.New())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Register(uuid.NewString(), "10.0.0.1", "ua")
	require.NoError(t, err)

	// Nothing on disk before the trailing edge fires
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond, "debounced write should land")
}

func TestDeviceService_Healthy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry", "devices.json")

	s, err := NewDeviceService(path, logrus.New())
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.Healthy())

	// A vanished store directory makes the probe fail
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "registry")))
	assert.Error(t, s.Healthy())
}

func TestDeviceService_ActiveCount(t *testing.T) {
	s, now := newTestDeviceService(t)

	ids := make([]string, 3)
	for i := range ids {
		*now = now.Add(10 * time.Second)
		ids[i] = uuid.NewString()
		_, err := s.Register(ids[i], fmt.Sprintf("10.0.0.%d", i+1), "ua")
		require.NoError(t, err)
	}

	require.NoError(t, s.Revoke(ids[0]))
	assert.Equal(t, 2, s.ActiveCount())
}
