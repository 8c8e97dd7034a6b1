package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/renameio"
	"github.com/jellydator/ttlcache/v3"
	"github.com/sirupsen/logrus"

	"github.com/nsharda/edge-gateway/internal/auth"
	"github.com/nsharda/edge-gateway/internal/models"
)

const (
	deviceLifetime   = 7 * 24 * time.Hour
	velocityWindow   = time.Minute
	velocityMax      = 10
	activePerIPMax   = 30
	persistDebounce  = 2 * time.Second
	sweepInterval    = time.Hour
	deviceFilePerm   = 0o600
	deviceParentPerm = 0o755
)

var (
	ErrTooManyAttempts  = errors.New("too many registration attempts")
	ErrDeviceCapReached = errors.New("device limit reached for this IP")
	ErrDeviceNotFound   = errors.New("device not found")
)

type deviceFile struct {
	Devices []models.DeviceEntry `json:"devices"`
}

// DeviceService is the TOTP device registry. The in-memory map is
// authoritative; the JSON file is a debounced mirror, replaced atomically on
// each flush. Persistence failures never fail a request.
type DeviceService struct {
	mu      sync.RWMutex
	devices map[string]*models.DeviceEntry

	attempts *ttlcache.Cache[string, []int64]

	persistMu    sync.Mutex
	persistTimer *time.Timer

	path string
	log  logrus.FieldLogger
	now  func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

func NewDeviceService(path string, log logrus.FieldLogger) (*DeviceService, error) {
	if err := os.MkdirAll(filepath.Dir(path), deviceParentPerm); err != nil {
		return nil, fmt.Errorf("failed to create device store directory: %w", err)
	}

	s := &DeviceService{
		devices: make(map[string]*models.DeviceEntry),
		attempts: ttlcache.New[string, []int64](
			ttlcache.WithTTL[string, []int64](velocityWindow),
		),
		path: path,
		log:  log,
		now:  time.Now,
		stop: make(chan struct{}),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	go s.attempts.Start()
	go s.sweepLoop()

	return s, nil
}

func (s *DeviceService) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read device store: %w", err)
	}

	var file deviceFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse device store: %w", err)
	}

	for i := range file.Devices {
		entry := file.Devices[i]
		s.devices[entry.BrowserID] = &entry
	}

	s.log.WithField("count", len(s.devices)).Info("loaded device registry")
	return nil
}

// Register issues or refreshes a device. Re-registration of a live browser id
// is idempotent: the same secret comes back with a fresh expiry.
func (s *DeviceService) Register(browserID, ip, userAgent string) (models.DeviceEntry, error) {
	now := s.now()

	// The attempt is recorded before the cap is evaluated, so the caller
	// that crosses the threshold is the first one rejected.
	prior := s.recordAttempt(ip, now)
	if prior >= velocityMax {
		return models.DeviceEntry{}, ErrTooManyAttempts
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeForIP(ip, now) >= activePerIPMax {
		return models.DeviceEntry{}, ErrDeviceCapReached
	}

	if entry, ok := s.devices[browserID]; ok && entry.Active && !entry.Expired(now) {
		entry.ExpiresAt = now.Add(deviceLifetime)
		entry.LastSeen = now
		entry.LastIP = ip
		s.schedulePersist()
		return *entry, nil
	}

	secret, err := auth.NewSecret()
	if err != nil {
		return models.DeviceEntry{}, err
	}

	entry := &models.DeviceEntry{
		BrowserID:    browserID,
		SharedSecret: secret,
		IP:           ip,
		UserAgent:    userAgent,
		RegisteredAt: now,
		ExpiresAt:    now.Add(deviceLifetime),
		LastSeen:     now,
		LastIP:       ip,
		Active:       true,
	}
	s.devices[browserID] = entry

	s.schedulePersist()
	return *entry, nil
}

// recordAttempt appends the attempt and returns how many attempts the IP had
// made in the window before this one.
func (s *DeviceService) recordAttempt(ip string, now time.Time) int {
	nowMs := now.UnixMilli()
	cutoff := nowMs - velocityWindow.Milliseconds()

	var recent []int64
	if item := s.attempts.Get(ip); item != nil {
		for _, ts := range item.Value() {
			if ts > cutoff {
				recent = append(recent, ts)
			}
		}
	}

	prior := len(recent)
	s.attempts.Set(ip, append(recent, nowMs), ttlcache.DefaultTTL)
	return prior
}

func (s *DeviceService) activeForIP(ip string, now time.Time) int {
	count := 0
	for _, entry := range s.devices {
		if entry.IP == ip && entry.Active && !entry.Expired(now) {
			count++
		}
	}
	return count
}

// Get resolves a browser id. Expired entries are removed eagerly; inactive
// and expired devices are indistinguishable from absent.
func (s *DeviceService) Get(browserID string) (models.DeviceEntry, bool) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.devices[browserID]
	if !ok {
		return models.DeviceEntry{}, false
	}

	if entry.Expired(now) {
		delete(s.devices, browserID)
		s.schedulePersist()
		return models.DeviceEntry{}, false
	}

	if !entry.Active {
		return models.DeviceEntry{}, false
	}

	return *entry, true
}

// Touch records a successful TOTP authentication.
func (s *DeviceService) Touch(browserID, ip string) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.devices[browserID]
	if !ok {
		return
	}

	entry.LastSeen = now
	if ip != "" {
		entry.LastIP = ip
	}
	s.schedulePersist()
}

// Revoke tombstones the entry; the hourly sweep removes it once expired.
func (s *DeviceService) Revoke(browserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.devices[browserID]
	if !ok {
		return ErrDeviceNotFound
	}

	entry.Active = false
	s.schedulePersist()
	return nil
}

func (s *DeviceService) ActiveCount() int {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, entry := range s.devices {
		if entry.Active && !entry.Expired(now) {
			count++
		}
	}
	return count
}

// Healthy probes the store directory for writability, so the health
// endpoint can report a registry that will silently fail to persist.
func (s *DeviceService) Healthy() error {
	f, err := os.CreateTemp(filepath.Dir(s.path), ".healthcheck-*")
	if err != nil {
		return fmt.Errorf("device store not writable: %w", err)
	}
	f.Close()
	os.Remove(f.Name())
	return nil
}

func (s *DeviceService) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stop:
			return
		}
	}
}

// Sweep removes entries whose lifetime has elapsed.
func (s *DeviceService) Sweep() int {
	now := s.now()

	s.mu.Lock()
	removed := 0
	for id, entry := range s.devices {
		if entry.Expired(now) {
			delete(s.devices, id)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.log.WithField("removed", removed).Info("swept expired devices")
		s.schedulePersist()
	}
	return removed
}

// schedulePersist arms the trailing-edge debounce timer; every mutation
// resets it. Callers may hold s.mu: only persistMu is taken here.
func (s *DeviceService) schedulePersist() {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if s.persistTimer == nil {
		s.persistTimer = time.AfterFunc(persistDebounce, s.persist)
		return
	}
	s.persistTimer.Reset(persistDebounce)
}

// persist serializes the registry outside the map lock and replaces the file
// atomically. Failures are logged and retried on the next mutation.
func (s *DeviceService) persist() {
	s.mu.RLock()
	file := deviceFile{Devices: make([]models.DeviceEntry, 0, len(s.devices))}
	for _, entry := range s.devices {
		file.Devices = append(file.Devices, *entry)
	}
	s.mu.RUnlock()

	sort.Slice(file.Devices, func(i, j int) bool {
		return file.Devices[i].BrowserID < file.Devices[j].BrowserID
	})

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		s.log.WithError(err).Error("failed to serialize device registry")
		return
	}

	if err := renameio.WriteFile(s.path, data, deviceFilePerm); err != nil {
		s.log.WithError(err).Error("failed to persist device registry")
	}
}

// Close stops the sweep and attempt-cache goroutines, drains the debounce
// timer, and flushes synchronously.
func (s *DeviceService) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.attempts.Stop()

		s.persistMu.Lock()
		if s.persistTimer != nil {
			s.persistTimer.Stop()
		}
		s.persistMu.Unlock()

		s.persist()
	})
}
