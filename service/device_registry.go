package service

import (
	"artemis/models"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DeviceRegistry holds the presence state of every online device. Offline
// devices are not retained: disconnect and timeout both delete the entry.
type DeviceRegistry struct {
	devices map[string]*models.DeviceState
	mu      sync.RWMutex
	clock   Clock
	timeout time.Duration
}

func NewDeviceRegistry(clock Clock, timeout time.Duration) *DeviceRegistry {
	if clock == nil {
		clock = RealClock
	}
	return &DeviceRegistry{
		devices: make(map[string]*models.DeviceState),
		clock:   clock,
		timeout: timeout,
	}
}

// Timeout is the inactivity period after which a device is swept.
func (r *DeviceRegistry) Timeout() time.Duration {
	return r.timeout
}

// Register inserts or replaces a device as online, resetting both
// timestamps.
func (r *DeviceRegistry) Register(deviceID, username string) models.DeviceState {
	r.mu.Lock()
	defer r.mu.Unlock()

	device := r.newDevice(deviceID, username)
	r.devices[deviceID] = device
	return device.Clone()
}

// Touch registers an unknown device or refreshes lastSeen of a known one.
// It never changes status, connectedAt or username of an existing entry.
// The bool reports whether the device was created.
func (r *DeviceRegistry) Touch(deviceID, username string) (models.DeviceState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if device, ok := r.devices[deviceID]; ok {
		r.refresh(device)
		return device.Clone(), false
	}

	device := r.newDevice(deviceID, username)
	r.devices[deviceID] = device
	return device.Clone(), true
}

// UpdateGps stores the last known position of a registered device.
func (r *DeviceRegistry) UpdateGps(deviceID string, sample models.GpsSample) (models.DeviceState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok {
		return models.DeviceState{}, fmt.Errorf("update gps %s: %w", deviceID, ErrUnknownDevice)
	}
	device.Gps = &sample
	r.refresh(device)
	return device.Clone(), nil
}

// UpdateImu stores the last known inertial reading of a registered device.
func (r *DeviceRegistry) UpdateImu(deviceID string, sample models.ImuSample) (models.DeviceState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok {
		return models.DeviceState{}, fmt.Errorf("update imu %s: %w", deviceID, ErrUnknownDevice)
	}
	device.Imu = &sample
	r.refresh(device)
	return device.Clone(), nil
}

// Disconnect removes a device. Removing an absent device is a no-op and
// reports false.
func (r *DeviceRegistry) Disconnect(deviceID string) (models.DeviceState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok {
		return models.DeviceState{}, false
	}
	delete(r.devices, deviceID)
	device.Status = models.StatusOffline
	return device.Clone(), true
}

// SetSharing updates the data sharing flag of a registered device.
func (r *DeviceRegistry) SetSharing(deviceID string, enabled bool) (models.DeviceState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok {
		return models.DeviceState{}, false
	}
	device.SharingEnabled = enabled
	return device.Clone(), true
}

// GetDevice returns a copy of a single device.
func (r *DeviceRegistry) GetDevice(deviceID string) (models.DeviceState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, ok := r.devices[deviceID]
	if !ok {
		return models.DeviceState{}, false
	}
	return device.Clone(), true
}

// Snapshot returns copies of all devices ordered by id.
func (r *DeviceRegistry) Snapshot() []models.DeviceState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]models.DeviceState, 0, len(r.devices))
	for _, device := range r.devices {
		devices = append(devices, device.Clone())
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].DeviceID < devices[j].DeviceID
	})
	return devices
}

func (r *DeviceRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// StaleCandidates is the first sweep phase. Under one read lock it collects
// the ids of online devices idle for at least the timeout, and returns the
// cutoff they were judged against.
func (r *DeviceRegistry) StaleCandidates() (time.Time, []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cutoff := r.clock.Now().Add(-r.timeout)
	var ids []string
	for id, device := range r.devices {
		if device.Status == models.StatusOnline && !device.LastSeen.After(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return cutoff, ids
}

// EvictIfStale is the second sweep phase. It removes the device only if it
// is still present and its lastSeen has not moved past cutoff since the
// candidates were collected.
func (r *DeviceRegistry) EvictIfStale(deviceID string, cutoff time.Time) (models.DeviceState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok || device.LastSeen.After(cutoff) {
		return models.DeviceState{}, false
	}
	delete(r.devices, deviceID)
	device.Status = models.StatusOffline
	return device.Clone(), true
}

// Sweep runs both phases and returns the evicted devices.
func (r *DeviceRegistry) Sweep() []models.DeviceState {
	cutoff, ids := r.StaleCandidates()
	var evicted []models.DeviceState
	for _, id := range ids {
		if device, ok := r.EvictIfStale(id, cutoff); ok {
			evicted = append(evicted, device)
		}
	}
	return evicted
}

// newDevice must be called with r.mu held.
func (r *DeviceRegistry) newDevice(deviceID, username string) *models.DeviceState {
	if username == "" {
		username = models.DefaultUsername
	}
	now := r.clock.Now()
	return &models.DeviceState{
		DeviceID:    deviceID,
		Username:    username,
		Status:      models.StatusOnline,
		ConnectedAt: now,
		LastSeen:    now,
	}
}

// refresh must be called with r.mu held. lastSeen never moves backwards.
func (r *DeviceRegistry) refresh(device *models.DeviceState) {
	if now := r.clock.Now(); now.After(device.LastSeen) {
		device.LastSeen = now
	}
}
