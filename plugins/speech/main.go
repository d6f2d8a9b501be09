// Package main provides a speech plugin that reads coaching cues and session
// results aloud. It uses `say` on macOS and `espeak` elsewhere.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action    string          `json:"action"`
	Event     string          `json:"event"`
	SessionID string          `json:"session_id"`
	Text      string          `json:"text"`
	Config    json.RawMessage `json:"config"`
	Params    json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is read from the request; DryRun returns the phrase without speaking.
type Config struct {
	Voice  string `json:"voice"`
	DryRun bool   `json:"dry_run"`
}

type summaryParams struct {
	Reps    int `json:"reps"`
	Overall struct {
		Avg float64 `json:"avg"`
	} `json:"overall"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid config: %v", err))
			return
		}
	}

	phrase, err := phraseFor(req)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	if !cfg.DryRun {
		if err := speak(phrase, cfg.Voice); err != nil {
			writeErrorResponse(fmt.Sprintf("speak failed: %v", err))
			return
		}
	}

	data, _ := json.Marshal(map[string]string{"spoken": phrase})
	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Data: data})
}

func phraseFor(req Request) (string, error) {
	switch req.Action {
	case "speak":
		if req.Text == "" {
			return "", fmt.Errorf("text is required")
		}
		return req.Text, nil
	case "summary":
		var s summaryParams
		if err := json.Unmarshal(req.Params, &s); err != nil {
			return "", fmt.Errorf("failed to parse params: %w", err)
		}
		prefix := "Session complete."
		if req.Text == "time_up" {
			prefix = "Time is up."
		}
		return fmt.Sprintf("%s %d repetitions, overall score %.0f", prefix, s.Reps, s.Overall.Avg), nil
	default:
		return "", fmt.Errorf("unknown action: %s", req.Action)
	}
}

func speak(phrase, voice string) error {
	bin := "espeak"
	if runtime.GOOS == "darwin" {
		bin = "say"
	}
	var args []string
	if voice != "" {
		args = append(args, "-v", voice)
	}
	output, err := exec.Command(bin, append(args, phrase)...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}
