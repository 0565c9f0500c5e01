package link

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/xvzf/amasp/pkg/amasp/proto"
)

var (
	devicesSeen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "amasp",
		Name:      "devices_seen",
		Help:      "Number of distinct device ids packets were received from",
	})
)

// DeviceStatus is what the link observed from one device id.
type DeviceStatus struct {
	LastSeen      time.Time
	Packets       uint64
	Interrupts    uint64
	LastInterrupt uint8
	Errors        uint64
	LastError     uint8
}

type linkState struct {
	mutex sync.Mutex

	devices map[uint16]DeviceStatus
	// interruptChan is closed and replaced whenever an interrupt arrives
	interruptChan chan struct{}
}

func newLinkState() *linkState {
	return &linkState{
		devices:       make(map[uint16]DeviceStatus),
		interruptChan: make(chan struct{}),
	}
}

func (s *linkState) RegisterPacket(pkt proto.Packet) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	dev, known := s.devices[pkt.DeviceID]
	dev.LastSeen = time.Now()
	dev.Packets++
	switch pkt.Kind {
	case proto.KindSIP:
		dev.Interrupts++
		dev.LastInterrupt = pkt.Code
	case proto.KindCEP:
		dev.Errors++
		dev.LastError = pkt.Code
	}
	s.devices[pkt.DeviceID] = dev

	if pkt.Kind == proto.KindSIP {
		close(s.interruptChan)
		s.interruptChan = make(chan struct{})
	}
	if !known {
		devicesSeen.Inc()
	}
}

func (s *linkState) Device(deviceID uint16) (DeviceStatus, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	dev, ok := s.devices[deviceID]
	return dev, ok
}

// WaitForInterrupt blocks until an interrupt of the device arrives after the call.
func (s *linkState) WaitForInterrupt(ctx context.Context, deviceID uint16) (uint8, error) {
	s.mutex.Lock()
	seen := s.devices[deviceID].Interrupts
	s.mutex.Unlock()

	for {
		s.mutex.Lock()
		dev := s.devices[deviceID]
		ch := s.interruptChan
		s.mutex.Unlock()

		if dev.Interrupts != seen {
			return dev.LastInterrupt, nil
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ch:
		}
	}
}
