package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/ayusman/sitstand/internal/app"
	"github.com/ayusman/sitstand/internal/capture"
	"github.com/ayusman/sitstand/internal/publish"
	"github.com/ayusman/sitstand/internal/server"
	"github.com/ayusman/sitstand/internal/session"
	"github.com/ayusman/sitstand/internal/store"
	"github.com/ayusman/sitstand/internal/tray"
)

func main() {
	fmt.Println("Sit-Stand - Sit-to-stand repetition counter")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("Failed to get home directory: %v", err)
	}
	dataDir := filepath.Join(homeDir, ".sitstand")

	addr := flag.String("addr", ":8080", "HTTP listen address")
	dbPath := flag.String("db", filepath.Join(dataDir, "sitstand.db"), "SQLite database path")
	source := flag.String("camera", "0", "camera index or video file")
	pluginDir := flag.String("plugins", "plugins", "plugin directory")
	pluginName := flag.String("plugin", "", "deliver cues to this plugin only (default: all)")
	pluginConfig := flag.String("plugin-config", "", "JSON config passed to plugins")
	broker := flag.String("mqtt", "", "MQTT broker URL, e.g. tcp://localhost:1883")
	duration := flag.Duration("duration", 0, "test duration (0 keeps the configured value)")
	noTray := flag.Bool("no-tray", false, "run without the system tray")
	flag.Parse()

	if *pluginConfig != "" && !json.Valid([]byte(*pluginConfig)) {
		log.Fatalf("Invalid -plugin-config: not JSON")
	}

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	st, err := store.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	sessionCfg := loadSessionConfig(st)
	if *duration > 0 {
		sessionCfg.DurationMs = duration.Milliseconds()
	}

	cameraCfg := capture.DefaultConfig()
	cameraCfg.Source = *source

	mqttCfg := publish.DefaultConfig()
	mqttCfg.Broker = *broker

	a := app.New(app.Config{
		Store:        st,
		PluginDir:    *pluginDir,
		Plugin:       *pluginName,
		PluginConfig: []byte(*pluginConfig),
		Camera:       cameraCfg,
		Session:      sessionCfg,
		MQTT:         mqttCfg,
	})
	if err := a.DiscoverPlugins(); err != nil {
		log.Printf("Plugin discovery failed: %v", err)
	}

	webDir := findWebDir(dataDir)
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := server.New(server.Config{
		StaticDir:  webDir,
		Store:      st,
		Controller: a,
	})
	a.OnImage(srv.Stream().Push)
	a.OnFrame(srv.Live().BroadcastFrame)
	a.Subscribe(srv.Live().BroadcastEvent)

	if err := a.Start(); err != nil {
		log.Printf("Capture not running: %v", err)
	}
	defer a.Stop()

	go func() {
		fmt.Printf("Starting server on %s\n", *addr)
		if err := srv.ListenAndServe(*addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	if *noTray {
		<-sigCh
		log.Println("Shutting down")
		return
	}

	t := tray.New()
	a.Subscribe(t.HandleEvent)
	a.OnFrame(t.HandleFrame)
	t.OnStart(func() { a.StartSession() })
	t.OnStop(func() { a.StopSession() })
	t.OnReset(a.ResetSession)
	t.OnSettings(func() {
		if err := openBrowser(dashboardURL(*addr)); err != nil {
			log.Printf("Failed to open dashboard: %v", err)
		}
	})
	t.OnQuit(func() { log.Println("Shutting down") })

	go func() {
		<-sigCh
		t.Quit()
	}()
	t.Run()
}

// loadSessionConfig reads the saved session config, falling back to the
// defaults when none is stored or it no longer parses.
func loadSessionConfig(st *store.Store) session.Config {
	raw, err := st.Settings().Get(store.SettingSessionConfig)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("Failed to read session config: %v", err)
		}
		return session.DefaultConfig()
	}
	cfg, err := session.ParseConfig([]byte(raw))
	if err != nil {
		log.Printf("Ignoring saved session config: %v", err)
		return session.DefaultConfig()
	}
	return cfg
}

func dashboardURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
