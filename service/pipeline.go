package service

import (
	"artemis/models"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
)

// Pipeline is the single entry point for telemetry. It validates messages,
// applies them to the registry and history, and publishes the resulting
// events.
//
// mu orders every state change together with its events, and orders both
// against new subscriptions: a subscriber's snapshot is taken under mu, so
// each event it later receives happened strictly after that snapshot. The
// registry and history locks are never held while publishing, and publish
// itself never blocks.
type Pipeline struct {
	registry *DeviceRegistry
	history  *HistoryStore
	hub      *Hub
	clock    Clock
	mu       sync.Mutex
}

func NewPipeline(registry *DeviceRegistry, history *HistoryStore, hub *Hub, clock Clock) *Pipeline {
	if clock == nil {
		clock = RealClock
	}
	return &Pipeline{
		registry: registry,
		history:  history,
		hub:      hub,
		clock:    clock,
	}
}

func (p *Pipeline) Registry() *DeviceRegistry { return p.registry }
func (p *Pipeline) History() *HistoryStore    { return p.history }
func (p *Pipeline) Hub() *Hub                 { return p.hub }

// IngestJSON decodes and ingests one wire message.
func (p *Pipeline) IngestJSON(data []byte) error {
	msg, err := models.ParseMessage(data)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		log.WithError(err).Warn("Dropping undecodable message")
		return err
	}
	return p.Ingest(msg)
}

// Ingest applies one message. Invalid messages return ErrInvalidMessage and
// change nothing.
func (p *Pipeline) Ingest(msg models.Message) error {
	arrival := p.clock.Now()
	if err := msg.Validate(); err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		log.WithError(err).WithFields(log.Fields{
			"type":     msg.Type,
			"deviceId": msg.DeviceID,
		}).Warn("Dropping invalid message")
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch msg.Type {
	case models.MsgConnect:
		p.connect(msg, arrival)
	case models.MsgDisconnect:
		p.disconnect(msg, arrival)
	case models.MsgGPS:
		sample, err := msg.GpsSample(arrival)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		return p.gps(msg, sample, arrival)
	case models.MsgIMU:
		sample, err := msg.ImuSample(arrival)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		return p.imu(msg, sample, arrival)
	case models.MsgSharing:
		p.sharing(msg, arrival)
	}
	return nil
}

func (p *Pipeline) connect(msg models.Message, at time.Time) {
	device := p.registry.Register(msg.DeviceID, msg.Username)
	log.WithField("deviceId", device.DeviceID).Infof("✅ Device registered: %s", device.Username)
	p.hub.Publish(models.DeviceRegisteredEvent(device, at))
}

func (p *Pipeline) disconnect(msg models.Message, at time.Time) {
	device, ok := p.registry.Disconnect(msg.DeviceID)
	if !ok {
		log.WithField("deviceId", msg.DeviceID).Debug("Disconnect for unknown device ignored")
		return
	}
	username := device.Username
	if username == "" {
		username = msg.Username
	}
	log.WithField("deviceId", device.DeviceID).Infof("👋 Device disconnected: %s", username)
	p.hub.Publish(models.DeviceDisconnectedEvent(device.DeviceID, username, at))
}

func (p *Pipeline) gps(msg models.Message, sample models.GpsSample, at time.Time) error {
	p.touch(msg, at)
	device, err := p.registry.UpdateGps(msg.DeviceID, sample)
	if err != nil {
		log.WithError(err).Error("Registry rejected update after touch")
		return err
	}
	p.history.Append(msg.DeviceID, models.NewGpsEntry(sample, at))
	p.hub.Publish(models.GpsUpdateEvent(device.DeviceID, device.Username, sample, at))
	return nil
}

func (p *Pipeline) imu(msg models.Message, sample models.ImuSample, at time.Time) error {
	p.touch(msg, at)
	device, err := p.registry.UpdateImu(msg.DeviceID, sample)
	if err != nil {
		log.WithError(err).Error("Registry rejected update after touch")
		return err
	}
	p.history.Append(msg.DeviceID, models.NewImuEntry(sample, at))
	p.hub.Publish(models.ImuUpdateEvent(device.DeviceID, device.Username, sample, at))
	return nil
}

func (p *Pipeline) sharing(msg models.Message, at time.Time) {
	device, ok := p.registry.SetSharing(msg.DeviceID, *msg.Enabled)
	if !ok {
		log.WithField("deviceId", msg.DeviceID).Debug("Sharing toggle for unknown device ignored")
		return
	}
	log.WithField("deviceId", device.DeviceID).Infof("Data sharing enabled=%t for %s", device.SharingEnabled, device.Username)
	p.hub.Publish(models.SharingChangedEvent(device.DeviceID, device.Username, device.SharingEnabled, at))
}

// touch auto-registers unknown devices, announcing them before their first
// sample.
func (p *Pipeline) touch(msg models.Message, at time.Time) {
	device, created := p.registry.Touch(msg.DeviceID, msg.Username)
	if created {
		log.WithField("deviceId", device.DeviceID).Infof("Auto-registered device: %s", device.Username)
		p.hub.Publish(models.DeviceRegisteredEvent(device, at))
	}
}

// Subscribe opens an event stream that starts with a snapshot of the
// registry.
func (p *Pipeline) Subscribe() *Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := models.SnapshotEvent(p.registry.Snapshot(), p.clock.Now())
	return p.hub.Subscribe(snapshot)
}

// Resync hands a lagged subscriber a fresh snapshot, ordered after every
// event already queued for it.
func (p *Pipeline) Resync(sub *Subscription) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := models.SnapshotEvent(p.registry.Snapshot(), p.clock.Now())
	return p.hub.Resync(sub, snapshot)
}

// Sweep evicts devices idle for at least the registry timeout and publishes
// a disconnect for each. Candidates are collected without holding mu; each
// is re-checked under mu, so a device that reported in between survives.
func (p *Pipeline) Sweep() int {
	cutoff, ids := p.registry.StaleCandidates()
	evicted := 0
	for _, id := range ids {
		if p.evict(id, cutoff) {
			evicted++
		}
	}
	return evicted
}

func (p *Pipeline) evict(deviceID string, cutoff time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	device, ok := p.registry.EvictIfStale(deviceID, cutoff)
	if !ok {
		return false
	}
	log.WithFields(log.Fields{
		"deviceId": device.DeviceID,
		"lastSeen": humanize.Time(device.LastSeen),
	}).Info("⏱️ Device timeout")
	p.hub.Publish(models.DeviceDisconnectedEvent(device.DeviceID, device.Username, p.clock.Now()))
	return true
}

// RunSweeper sweeps every interval until ctx is cancelled.
func (p *Pipeline) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("sweep interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Infof("Presence sweeper running every %v (timeout %v)", interval, p.registry.Timeout())
	for {
		select {
		case <-ctx.Done():
			log.Info("Presence sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			if n := p.Sweep(); n > 0 {
				log.Infof("Sweep evicted %d devices (%d online)", n, p.registry.Len())
			}
		}
	}
}
