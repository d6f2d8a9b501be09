package vision

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/sitstand/internal/detector"
)

// ErrServiceNotFound is returned when the pose service script cannot be located.
var ErrServiceNotFound = errors.New("pose_service.py not found")

// MediaPipeDetector runs MediaPipe Pose in a Python subprocess. Frames go to
// the service as length-prefixed JPEG; it answers with one JSON line per frame.
type MediaPipeDetector struct {
	config Config
	script string
	python string

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	idleTimer *time.Timer
}

// NewMediaPipeDetector locates the pose service. The subprocess itself is
// started lazily on the first Detect and stopped again after IdleTimeout.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	script := config.Script
	if script == "" {
		script = firstExisting(searchPaths("scripts/pose_service.py"))
	}
	if script == "" {
		return nil, ErrServiceNotFound
	}

	python := config.Python
	if python == "" {
		python = firstExisting(searchPaths("venv/bin/python", "../../venv/bin/python"))
	}
	if python == "" {
		python = "python3"
	}

	return &MediaPipeDetector{config: config, script: script, python: python}, nil
}

// serviceReply is one response line from the pose service. Missing landmarks
// are sent as null.
type serviceReply struct {
	Poses []servicePose `json:"poses"`
	Error string        `json:"error,omitempty"`
}

type servicePose struct {
	Landmarks []*detector.Landmark   `json:"landmarks"`
	World     []*detector.WorldPoint `json:"world"`
}

// Detect returns the first pose the service reports, or nil when the frame
// has nobody in it.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) (*detector.PoseFrame, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.start(); err != nil {
		return nil, err
	}

	reply, err := d.roundTrip(buf.GetBytes())
	if err != nil {
		d.stop()
		return nil, err
	}
	d.touch()

	if reply.Error != "" {
		return nil, fmt.Errorf("pose service: %s", reply.Error)
	}
	if len(reply.Poses) == 0 {
		return nil, nil
	}
	pf := reply.Poses[0].frame()
	return &pf, nil
}

func (d *MediaPipeDetector) roundTrip(jpeg []byte) (serviceReply, error) {
	var msg bytes.Buffer
	binary.Write(&msg, binary.BigEndian, uint32(len(jpeg)))
	msg.Write(jpeg)
	if _, err := d.stdin.Write(msg.Bytes()); err != nil {
		return serviceReply{}, fmt.Errorf("write frame: %w", err)
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		return serviceReply{}, fmt.Errorf("read response: %w", err)
	}

	var reply serviceReply
	if err := json.Unmarshal(line, &reply); err != nil {
		return serviceReply{}, fmt.Errorf("parse response: %w", err)
	}
	return reply, nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stop()
}

func (d *MediaPipeDetector) start() error {
	if d.cmd != nil {
		return nil
	}

	cmd := exec.Command(d.python, d.script,
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', 2, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', 2, 64),
		"--model-complexity", strconv.Itoa(d.config.ModelComplexity),
	)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start pose service: %w", err)
	}

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	return nil
}

func (d *MediaPipeDetector) stop() error {
	if d.cmd == nil {
		return nil
	}
	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	d.stdin.Close()
	err := d.cmd.Wait()
	d.cmd, d.stdin, d.stdout = nil, nil, nil
	return err
}

// touch rearms the idle shutdown.
func (d *MediaPipeDetector) touch() {
	if d.config.IdleTimeout <= 0 {
		return
	}
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(d.config.IdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.stop()
	})
}

func (p servicePose) frame() detector.PoseFrame {
	var pf detector.PoseFrame
	for i := 0; i < detector.NumLandmarks && i < len(p.Landmarks); i++ {
		if p.Landmarks[i] == nil {
			continue
		}
		pf.Points[i] = *p.Landmarks[i]
		pf.Present[i] = true
	}
	for i := 0; i < detector.NumLandmarks && i < len(p.World); i++ {
		if p.World[i] != nil {
			pf.World[i] = *p.World[i]
		}
	}
	return pf
}

// searchPaths expands rel into the working-directory, executable-directory
// and ~/.sitstand locations, plus any extra relative paths.
func searchPaths(rel string, extra ...string) []string {
	paths := []string{rel, filepath.Join("..", rel)}
	paths = append(paths, extra...)
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), rel))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".sitstand", rel))
	}
	return paths
}

// firstExisting returns the absolute form of the first path that exists.
func firstExisting(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
		return p
	}
	return ""
}
