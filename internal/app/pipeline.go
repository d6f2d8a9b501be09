package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/sitstand/internal/capture"
	"github.com/ayusman/sitstand/internal/session"
)

// Start opens the camera and begins the capture pipeline. Plugin delivery
// runs on its own goroutine until Stop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	a.camera.SetFPS(a.activity.FPS())

	ctx, cancel := context.WithCancel(context.Background())
	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})

	a.dispatcher.Start(ctx)
	go func() {
		<-a.stopCh
		cancel()
	}()
	go a.runPipeline(a.stopCh, a.done)

	log.Println("Capture pipeline started")
	return nil
}

// Stop halts the pipeline, ends a running session and releases resources.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, done := a.stopCh, a.done
	a.stopCh, a.done = nil, nil
	a.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-done
	}

	if a.session.Active() {
		a.session.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*PluginTimeoutMs*time.Millisecond)
	a.dispatcher.Drain(ctx)
	cancel()
	a.dispatcher.Wait()

	if err := a.Camera().Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	a.motion.Close()

	if d := a.Detector(); d != nil {
		if err := d.Close(); err != nil {
			log.Printf("Error closing detector: %v", err)
		}
	}
	if a.publisher != nil {
		a.publisher.Close()
	}

	log.Println("Capture pipeline stopped")
}

// runPipeline reads frames until stopCh closes. The frame rate drops to
// IdleFPS when the scene is still and no session is running, and rises to
// ActiveFPS on motion or when a session starts.
func (a *App) runPipeline(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(time.Second / time.Duration(a.activity.FPS()))
	defer ticker.Stop()

	camera := a.Camera()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}

		frame, err := camera.ReadFrame()
		if errors.Is(err, capture.ErrEndOfStream) {
			log.Println("Video source ended")
			if a.session.Active() {
				a.session.Stop()
			}
			return
		}
		if err != nil {
			log.Printf("Error reading frame: %v", err)
			continue
		}

		moved, _ := a.motion.Detect(&frame.Mat)
		if fps, changed := a.activity.Observe(time.Now(), moved, a.session.Active()); changed {
			camera.SetFPS(fps)
			ticker.Reset(time.Second / time.Duration(fps))
			if a.activity.Active() {
				log.Println("Switched to active mode")
			} else {
				log.Println("Switched to idle mode")
			}
		}

		a.emitImage(&frame.Mat)

		if a.session.Active() && !a.session.Tick(frame.TimestampMs) {
			if _, err := a.ProcessFrame(&frame.Mat, frame.TimestampMs); err != nil {
				log.Printf("Error processing frame: %v", err)
			}
		}
		frame.Close()
	}
}

// ProcessFrame runs pose detection on mat and feeds the pose, stamped with
// timestampMs, to the live session. It returns nil when nobody was detected.
func (a *App) ProcessFrame(mat *gocv.Mat, timestampMs int64) (*session.FrameResult, error) {
	d := a.Detector()
	if d == nil {
		return nil, nil
	}

	pose, err := d.Detect(mat)
	if err != nil {
		return nil, fmt.Errorf("detect pose: %w", err)
	}
	if pose == nil {
		return nil, nil
	}
	pose.TimestampMs = timestampMs

	res, err := a.session.ProcessFrame(pose)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.last = &res
	hooks := append([]FrameHook(nil), a.frameHooks...)
	a.mu.Unlock()

	for _, h := range hooks {
		h(res)
	}
	return &res, nil
}

func (a *App) emitImage(mat *gocv.Mat) {
	a.mu.RLock()
	hooks := append([]ImageHook(nil), a.imageHooks...)
	a.mu.RUnlock()

	for _, h := range hooks {
		h(mat)
	}
}
