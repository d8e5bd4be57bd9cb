package dispatch

import (
	"strings"
	"sync"
)

// Compile-time check
var _ DeviceState = (*StaticDeviceState)(nil)

// StaticDeviceState is a settable DeviceState for the standalone daemon and
// tests. All accessors take the lock, so it can be flipped while the
// dispatcher runs.
type StaticDeviceState struct {
	mu sync.Mutex

	Sendable         bool
	InService        bool
	PowerOn          bool
	VoiceAvailable   bool
	SetupComplete    bool
	EmergencyMode    bool
	SIMISO           string
	NetworkISO       string
	EmergencyNumbers []string
}

// NewStaticDeviceState returns a device in normal operating condition.
func NewStaticDeviceState() *StaticDeviceState {
	return &StaticDeviceState{
		Sendable:         true,
		InService:        true,
		PowerOn:          true,
		VoiceAvailable:   true,
		SetupComplete:    true,
		SIMISO:           "us",
		NetworkISO:       "us",
		EmergencyNumbers: []string{"112", "911"},
	}
}

func (s *StaticDeviceState) Set(f func(*StaticDeviceState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(s)
}

func (s *StaticDeviceState) SendAllowed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Sendable
}

func (s *StaticDeviceState) ServiceAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.InService
}

func (s *StaticDeviceState) RadioOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PowerOn
}

func (s *StaticDeviceState) VoiceServiceAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.VoiceAvailable
}

func (s *StaticDeviceState) Provisioned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SetupComplete
}

func (s *StaticDeviceState) EmergencyCallbackMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.EmergencyMode
}

func (s *StaticDeviceState) SIMCountry() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SIMISO
}

func (s *StaticDeviceState) NetworkCountry() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.NetworkISO
}

func (s *StaticDeviceState) IsEmergencyNumber(dest string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.EmergencyNumbers {
		if strings.TrimSpace(dest) == n {
			return true
		}
	}
	return false
}

// Compile-time check
var _ AppInfoResolver = (*StaticApps)(nil)

// StaticApps resolves caller package questions from a fixed default
// messaging app package name.
type StaticApps struct {
	DefaultPackage string
}

func (a StaticApps) IsDefaultMessagingApp(pkg string) bool {
	return a.DefaultPackage != "" && a.DefaultPackage == pkg
}
