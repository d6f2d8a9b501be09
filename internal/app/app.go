// Package app wires the camera, pose detector and sit-to-stand session
// together and fans session output out to storage, plugins, MQTT and the
// live views.
package app

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/sitstand/internal/capture"
	"github.com/ayusman/sitstand/internal/plugin"
	"github.com/ayusman/sitstand/internal/publish"
	"github.com/ayusman/sitstand/internal/recorder"
	"github.com/ayusman/sitstand/internal/scoring"
	"github.com/ayusman/sitstand/internal/session"
	"github.com/ayusman/sitstand/internal/store"
	"github.com/ayusman/sitstand/internal/vision"
)

// Pipeline timing constants.
const (
	// IdleFPS is the frame rate while nobody moves and no session runs.
	IdleFPS = 5
	// ActiveFPS is the frame rate while a session runs or motion was seen.
	ActiveFPS = 30
	// IdleTimeout is how long the scene must stay still before going idle.
	IdleTimeout = 2 * time.Second
	// PluginTimeoutMs bounds a single plugin call.
	PluginTimeoutMs = 5000
)

// Config holds configuration options for the application.
type Config struct {
	Store        *store.Store
	PluginDir    string
	Plugin       string
	PluginConfig json.RawMessage
	Camera       capture.Config
	MotionThresh float64
	Session      session.Config
	MQTT         publish.Config
}

// FrameHook receives every frame result the session produces.
type FrameHook func(session.FrameResult)

// ImageHook receives every captured image. The Mat is only valid during the call.
type ImageHook func(*gocv.Mat)

// App is the main application that runs the capture pipeline and owns the
// live session.
type App struct {
	config     Config
	camera     capture.Camera
	motion     *capture.MotionDetector
	activity   *capture.Activity
	detector   vision.Detector
	session    *session.Session
	pluginMgr  *plugin.Manager
	dispatcher *plugin.Dispatcher
	publisher  *publish.Publisher
	recorder   *recorder.Recorder

	frameHooks []FrameHook
	imageHooks []ImageHook
	last       *session.FrameResult

	mu     sync.RWMutex
	stopCh chan struct{}
	done   chan struct{}
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	motionThreshold := config.MotionThresh
	if motionThreshold <= 0 {
		motionThreshold = 1.0
	}

	if err := config.Session.Validate(); err != nil {
		log.Printf("Invalid session config (%v), using defaults", err)
		config.Session = session.DefaultConfig()
	}

	camera := capture.NewCamera(config.Camera)
	if _, h := camera.Size(); h > 0 {
		config.Session.Stability.FrameHeightPx = float64(h)
	}

	a := &App{
		config:    config,
		camera:    camera,
		motion:    capture.NewMotionDetector(motionThreshold),
		activity:  capture.NewActivity(IdleFPS, ActiveFPS, IdleTimeout),
		session:   session.New(config.Session),
		pluginMgr: plugin.NewManager(config.PluginDir),
	}

	a.dispatcher = plugin.NewDispatcher(a.pluginMgr, plugin.NewExecutor(PluginTimeoutMs), config.Plugin, plugin.DefaultQueueSize)
	a.dispatcher.SetConfig(config.PluginConfig)
	a.session.Subscribe(a.dispatcher.Handle)

	if config.Store != nil {
		a.recorder = recorder.New(config.Store, config.Session.DurationMs)
		a.session.Subscribe(a.recorder.Handle)
	}

	if config.MQTT.Broker != "" {
		if p, err := publish.Connect(config.MQTT); err != nil {
			log.Printf("MQTT disabled: %v", err)
		} else {
			a.publisher = p
			a.session.Subscribe(p.Handle)
			a.OnFrame(p.Frame)
		}
	}

	if mp, err := vision.NewMediaPipeDetector(vision.DefaultConfig()); err == nil {
		a.detector = mp
		log.Println("Using MediaPipe pose detection")
	} else {
		log.Printf("MediaPipe not available (%v), using mock detector", err)
		a.detector = vision.NewMockDetector()
	}

	return a
}

// SetDetector sets the pose detector implementation to use.
func (a *App) SetDetector(d vision.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// SetCamera replaces the frame source. It must be called before Start.
func (a *App) SetCamera(c capture.Camera) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.camera = c
}

// OnFrame registers h for every frame result.
func (a *App) OnFrame(h FrameHook) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frameHooks = append(a.frameHooks, h)
}

// OnImage registers h for every captured image.
func (a *App) OnImage(h ImageHook) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.imageHooks = append(a.imageHooks, h)
}

// Subscribe registers h for session events.
func (a *App) Subscribe(h session.Handler) {
	a.session.Subscribe(h)
}

// DiscoverPlugins scans the plugin directory and loads available plugins.
func (a *App) DiscoverPlugins() error {
	if err := a.pluginMgr.Discover(); err != nil {
		return err
	}
	for _, p := range a.pluginMgr.List() {
		log.Printf("Plugin %s %s: %v", p.Manifest.Name, p.Manifest.Version, p.Manifest.Actions)
	}
	return nil
}

// StartSession begins a new sit-to-stand test and returns its ID.
func (a *App) StartSession() string {
	a.mu.Lock()
	a.last = nil
	a.mu.Unlock()
	return a.session.Start()
}

// StopSession ends the running test and returns its summary.
func (a *App) StopSession() scoring.Summary {
	return a.session.Stop()
}

// ResetSession clears all session state. A running test is ended first and
// recorded with the reset reason.
func (a *App) ResetSession() {
	a.mu.Lock()
	a.last = nil
	a.mu.Unlock()
	a.session.Reset()
}

// Status returns the live session status.
func (a *App) Status() session.Status {
	return a.session.Status()
}

// LastResult returns the most recent frame result, if any.
func (a *App) LastResult() (session.FrameResult, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return session.FrameResult{}, false
	}
	return *a.last, true
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.camera
}

// Session returns the live session.
func (a *App) Session() *session.Session {
	return a.session
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// Detector returns the pose detector.
func (a *App) Detector() vision.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}
