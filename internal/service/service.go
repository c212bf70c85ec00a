// Package service ties topology, storage, recording and capture together.
package service

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"pointerheat/internal/config"
	"pointerheat/internal/heatmap"
	"pointerheat/internal/input"
	"pointerheat/internal/session"
	"pointerheat/internal/store"
	"pointerheat/internal/topology"
)

// ErrNoData is returned by Visualize when there is nothing to show
var ErrNoData = errors.New("no pointer data recorded")

// CaptureFactory creates a fresh capture for each session
type CaptureFactory func() input.Capture

// Visualization is a binned view of the full store
type Visualization struct {
	Grid     *heatmap.Grid     `json:"grid"`
	Regions  []topology.Region `json:"regions"`
	Bounds   topology.Bounds   `json:"bounds"`
	Samples  int               `json:"samples"`
	Sessions int               `json:"sessions"`
	Fallback bool              `json:"fallback"`

	// Clamped counts samples outside Bounds that were moved onto its edge
	Clamped int `json:"clamped"`
}

// Status summarizes the service for the API and tray
type Status struct {
	Session       session.Info      `json:"session"`
	Samples       int               `json:"samples"`
	Sessions      int               `json:"sessions"`
	Regions       []topology.Region `json:"regions"`
	Bounds        topology.Bounds   `json:"bounds"`
	Fallback      bool              `json:"fallback"`
	TopologyError string            `json:"topology_error,omitempty"`
	DataPath      string            `json:"data_path"`
}

// Service coordinates pointer capture sessions and visualization
type Service struct {
	mu         sync.Mutex
	configMgr  *config.Manager
	resolver   *topology.Resolver
	store      *store.Store
	recorder   *session.Recorder
	newCapture CaptureFactory

	capture  input.Capture
	pumpDone chan struct{}

	listenersMu sync.Mutex
	listeners   []func(session.Info)
}

// New creates a service. Configured display regions take precedence over src.
func New(configMgr *config.Manager, src topology.Source, newCapture CaptureFactory, opts session.Options) *Service {
	cfg := configMgr.Get()
	if len(cfg.Display.Regions) > 0 {
		log.Printf("Topology: Using %d configured region(s)", len(cfg.Display.Regions))
		src = topology.StaticSource(cfg.Display.Regions)
	}

	st := store.New()
	s := &Service{
		configMgr:  configMgr,
		resolver:   topology.NewResolver(src, cfg.FallbackRegion()),
		store:      st,
		recorder:   session.NewRecorder(st, opts),
		newCapture: newCapture,
	}
	s.recorder.SetOnChange(func(session.State, string) {
		s.notify()
	})
	s.resolver.Refresh()
	return s
}

// OnStateChange registers a listener for capture state transitions and clears
func (s *Service) OnStateChange(fn func(session.Info)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Service) notify() {
	s.listenersMu.Lock()
	listeners := append([]func(session.Info){}, s.listeners...)
	s.listenersMu.Unlock()

	info := s.recorder.Info()
	for _, fn := range listeners {
		fn(info)
	}
}

// Store returns the sample store
func (s *Service) Store() *store.Store {
	return s.store
}

// Topology returns the last resolved topology
func (s *Service) Topology() topology.Topology {
	return s.resolver.Current()
}

// RefreshTopology re-enumerates the screens
func (s *Service) RefreshTopology() topology.Topology {
	return s.resolver.Refresh()
}

// Capturing reports whether a session is active
func (s *Service) Capturing() bool {
	return s.recorder.Capturing()
}

// Load replaces the store with the persisted samples.
// On error the store is left empty.
func (s *Service) Load() error {
	samples, err := store.Load(s.configMgr.DataPath())
	s.store.Replace(samples)
	return err
}

// Save persists the full store
func (s *Service) Save() error {
	return store.Save(s.configMgr.DataPath(), s.store.All())
}

// StartCapture starts the platform capture and opens a new session.
// It returns false if a session was already active.
func (s *Service) StartCapture() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture != nil {
		return false, nil
	}

	topo := s.resolver.Current()
	if len(topo.Regions) == 0 {
		if topo.Err != nil {
			return false, topo.Err
		}
		return false, topology.ErrNoDisplays
	}

	capture := s.newCapture()
	if err := capture.Start(); err != nil {
		return false, fmt.Errorf("failed to start capture: %w", err)
	}

	// Events queued by Start wait in the channel until the session is open
	s.recorder.Start()

	events := capture.Events()
	done := make(chan struct{})
	go func() {
		defer close(done)
		n := input.Pump(events, s.recorder.OnPositionEvent)
		log.Printf("Capture: Pump drained %d events", n)
	}()

	s.capture = capture
	s.pumpDone = done
	return true, nil
}

// StopCapture stops the platform capture, closes the session and saves the
// store. Save failures are logged and not retried. It returns false if no
// session was active.
func (s *Service) StopCapture() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture == nil {
		return false
	}

	if err := s.capture.Stop(); err != nil {
		log.Printf("Capture: Warning: stop failed: %v", err)
	}
	<-s.pumpDone
	s.capture = nil
	s.pumpDone = nil
	s.recorder.Stop()

	if err := s.Save(); err != nil {
		log.Printf("Store: Warning: save on stop failed: %v", err)
	}
	return true
}

// ToggleCapture starts or stops capture depending on the current state
func (s *Service) ToggleCapture() error {
	if s.Capturing() {
		s.StopCapture()
		return nil
	}
	_, err := s.StartCapture()
	return err
}

// Snapshot bins the current store without touching the capture state
func (s *Service) Snapshot() (*Visualization, error) {
	topo := s.resolver.Current()
	if !topo.Usable() {
		if topo.Err != nil {
			return nil, topo.Err
		}
		return nil, topology.ErrNoDisplays
	}

	samples := s.store.All()
	if len(samples) == 0 {
		return nil, ErrNoData
	}

	cfg := s.configMgr.Get()
	grid, err := heatmap.Build(samples, topo.Bounds, cfg.Heatmap.ResolutionX, cfg.Heatmap.ResolutionY)
	if err != nil {
		return nil, err
	}

	clamped := 0
	for _, sample := range samples {
		if heatmap.Clamped(sample, topo.Bounds) {
			clamped++
		}
	}
	if clamped > 0 {
		log.Printf("Topology: %d of %d samples lie outside %s and were clamped", clamped, len(samples), topo.Bounds)
	}

	return &Visualization{
		Grid:     grid,
		Regions:  topo.Regions,
		Bounds:   topo.Bounds,
		Samples:  len(samples),
		Sessions: len(s.store.Sessions()),
		Fallback: topo.Fallback,
		Clamped:  clamped,
	}, nil
}

// Visualize stops any active capture and bins the full store
func (s *Service) Visualize() (*Visualization, error) {
	if s.StopCapture() {
		log.Printf("Capture: Stopped for visualization")
	}
	return s.Snapshot()
}

// Hotspots returns the n busiest cells of the current store
func (s *Service) Hotspots(n int) ([]heatmap.Hotspot, error) {
	v, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return v.Grid.Hotspots(n), nil
}

// Clear discards all samples and persists the empty store
func (s *Service) Clear() error {
	s.store.Clear()
	log.Printf("Store: Cleared all samples")
	err := s.Save()
	s.notify()
	return err
}

// Status returns a snapshot of the service state
func (s *Service) Status() Status {
	topo := s.resolver.Current()
	st := Status{
		Session:  s.recorder.Info(),
		Samples:  s.store.Len(),
		Sessions: len(s.store.Sessions()),
		Regions:  topo.Regions,
		Bounds:   topo.Bounds,
		Fallback: topo.Fallback,
		DataPath: s.configMgr.DataPath(),
	}
	if topo.Err != nil {
		st.TopologyError = topo.Err.Error()
	}
	return st
}

// Close stops capture, saving the store if a session was active
func (s *Service) Close() {
	start := time.Now()
	if s.StopCapture() {
		log.Printf("Capture: Stopped on shutdown in %v", time.Since(start))
	}
}
