// Command sitstand-replay runs a recorded pose sequence through a
// sit-to-stand session and prints the summary.
//
// The input holds one PoseFrame JSON object per line.
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/cheggaaa/pb/v3"

	"github.com/ayusman/sitstand/internal/detector"
	"github.com/ayusman/sitstand/internal/recorder"
	"github.com/ayusman/sitstand/internal/scoring"
	"github.com/ayusman/sitstand/internal/session"
	"github.com/ayusman/sitstand/internal/store"
)

const maxLineBytes = 1 << 20

func main() {
	in := flag.String("in", "", "JSONL file of pose frames (required)")
	dbPath := flag.String("db", "", "persist the session to this SQLite database")
	configPath := flag.String("config", "", "session config JSON file")
	noProgress := flag.Bool("no-progress", false, "hide the progress bar")
	flag.Parse()

	if *in == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := session.DefaultConfig()
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			log.Fatalf("Failed to read config: %v", err)
		}
		if cfg, err = session.ParseConfig(data); err != nil {
			log.Fatalf("%v", err)
		}
	}

	f, err := os.Open(*in)
	if err != nil {
		log.Fatalf("Failed to open input: %v", err)
	}
	frames, err := readFrames(f)
	f.Close()
	if err != nil {
		log.Fatalf("Failed to read frames: %v", err)
	}

	s := session.New(cfg)
	if *dbPath != "" {
		st, err := store.New(*dbPath)
		if err != nil {
			log.Fatalf("Failed to initialize store: %v", err)
		}
		defer st.Close()
		s.Subscribe(recorder.New(st, cfg.DurationMs).Handle)
	}

	var bar *pb.ProgressBar
	step := func() {}
	if !*noProgress {
		bar = pb.StartNew(len(frames))
		step = func() { bar.Increment() }
	}

	summary, skipped := replay(s, frames, step)
	if bar != nil {
		bar.Finish()
	}
	if skipped > 0 {
		log.Printf("Skipped %d out-of-order frames", skipped)
	}

	out, err := json.MarshalIndent(struct {
		SessionID string          `json:"session_id"`
		Frames    int             `json:"frames"`
		Summary   scoring.Summary `json:"summary"`
	}{s.ID(), len(frames), summary}, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode summary: %v", err)
	}
	fmt.Println(string(out))
}

// readFrames decodes one PoseFrame per non-empty line.
func readFrames(r io.Reader) ([]detector.PoseFrame, error) {
	var frames []detector.PoseFrame
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var frame detector.PoseFrame
		if err := json.Unmarshal(text, &frame); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		frames = append(frames, frame)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}

// replay starts a session and feeds it every frame until the frames run out
// or the session ends on its own. Out-of-order frames are counted and dropped.
func replay(s *session.Session, frames []detector.PoseFrame, step func()) (scoring.Summary, int) {
	s.Start()

	skipped := 0
	for i := range frames {
		step()
		if !s.Active() {
			continue
		}
		if _, err := s.ProcessFrame(&frames[i]); err != nil {
			if errors.Is(err, session.ErrOutOfOrder) {
				skipped++
				continue
			}
			break
		}
	}

	return s.Stop(), skipped
}
