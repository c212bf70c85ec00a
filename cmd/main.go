// pointerheat - pointer position heatmap recorder
// Records where the pointer goes across all screens and renders the density.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"pointerheat/internal/api"
	"pointerheat/internal/autostart"
	"pointerheat/internal/config"
	"pointerheat/internal/hotkey"
	"pointerheat/internal/input"
	"pointerheat/internal/platform"
	"pointerheat/internal/render"
	"pointerheat/internal/service"
	"pointerheat/internal/session"
	"pointerheat/internal/store"
	"pointerheat/internal/tray"
	"pointerheat/internal/ui"
)

var (
	version     = "0.3.0"
	showVer     = flag.Bool("version", false, "Show version")
	listDisp    = flag.Bool("list", false, "List screens, bounds and recorded data")
	viewTerm    = flag.Bool("view", false, "Show the heatmap in the terminal")
	exportPNG   = flag.Bool("export", false, "Export the heatmap as PNG and exit")
	timelineOut = flag.String("timeline", "", "Write an activity timeline PNG to this file")
	csvOut      = flag.String("csv", "", "Write all samples as CSV to this file (- for stdout)")
	clearData   = flag.Bool("clear", false, "Delete all recorded samples")
	assumeYes   = flag.Bool("yes", false, "Do not ask for confirmation with -clear")
	logToFile   = flag.Bool("log", false, "Write logs to pointerheat.log in the config directory")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("pointerheat version %s\n", version)
		return
	}

	// Initialize config
	cfgMgr, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	if *logToFile {
		f, err := os.OpenFile(filepath.Join(cfgMgr.Dir(), "pointerheat.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	if err := cfgMgr.Load(); err != nil {
		log.Printf("Warning: failed to load config: %v", err)
	}

	svc := newService(cfgMgr)
	if err := svc.Load(); err != nil {
		log.Printf("Warning: %v, starting with no recorded data", err)
	}

	switch {
	case *listDisp:
		listDisplays(cfgMgr, svc)
	case *viewTerm:
		runViewer(cfgMgr, svc)
	case *exportPNG:
		if path, err := exportHeatmap(cfgMgr, svc); err != nil {
			log.Fatalf("Export failed: %v", err)
		} else {
			fmt.Println(path)
		}
	case *timelineOut != "":
		if err := writeTimeline(*timelineOut, svc); err != nil {
			log.Fatalf("Timeline failed: %v", err)
		}
	case *csvOut != "":
		if err := writeCSV(*csvOut, svc); err != nil {
			log.Fatalf("CSV export failed: %v", err)
		}
	case *clearData:
		runClear(svc)
	default:
		runService(cfgMgr, svc)
	}
}

func newService(cfgMgr *config.Manager) *service.Service {
	cfg := cfgMgr.Get()
	interval := time.Duration(cfg.Capture.PollIntervalMs) * time.Millisecond
	queue := cfg.Capture.QueueSize
	return service.New(cfgMgr, platform.Displays(), func() input.Capture {
		return platform.NewCapture(interval, queue)
	}, session.Options{})
}

func listDisplays(cfgMgr *config.Manager, svc *service.Service) {
	topo := svc.Topology()
	st := svc.Status()

	fmt.Printf("Backend: %s\n", platform.Name())
	fmt.Println("Screens:")
	fmt.Println("--------")
	for i, r := range topo.Regions {
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("screen %d", i+1)
		}
		fmt.Printf("%s\n", name)
		fmt.Printf("  Origin: %d,%d\n", r.X, r.Y)
		fmt.Printf("  Size: %dx%d\n", r.Width, r.Height)
		if r.Primary {
			fmt.Printf("  Primary: yes\n")
		}
	}
	if len(topo.Regions) > 0 {
		fmt.Printf("Bounds: %s\n", topo.Bounds)
	}
	if topo.Fallback {
		fmt.Printf("Fallback: using assumed screen (%v)\n", topo.Err)
	} else if topo.Err != nil {
		fmt.Printf("Error: %v\n", topo.Err)
	}
	fmt.Println()
	fmt.Printf("Config: %s\n", cfgMgr.Path())
	fmt.Printf("Data file: %s\n", st.DataPath)
	fmt.Printf("Samples: %d in %d session(s)\n", st.Samples, st.Sessions)
}

func runViewer(cfgMgr *config.Manager, svc *service.Service) {
	v, err := svc.Snapshot()
	if err != nil {
		log.Fatalf("Nothing to show: %v", err)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		log.Fatalf("Failed to open terminal: %v", err)
	}
	if err := screen.Init(); err != nil {
		log.Fatalf("Failed to initialize terminal: %v", err)
	}
	defer screen.Fini()

	render.NewViewer(screen, v, cfgMgr.Get().Heatmap.Smoothing).Run()
}

func exportHeatmap(cfgMgr *config.Manager, svc *service.Service) (string, error) {
	v, err := svc.Visualize()
	if err != nil {
		return "", err
	}
	cfg := cfgMgr.Get()
	return render.ExportPNG(cfg.Heatmap.ExportDir, v, render.Options{
		Width:     cfg.Heatmap.ImageWidth,
		Smoothing: cfg.Heatmap.Smoothing,
	}, time.Now())
}

func writeTimeline(path string, svc *service.Service) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render.Timeline(f, svc.Store().All(), 60, 1200, 400); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	log.Printf("Render: Timeline saved as %s", path)
	return f.Close()
}

func writeCSV(path string, svc *service.Service) error {
	if path == "-" {
		return store.ExportCSV(os.Stdout, svc.Store().All())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := store.ExportCSV(f, svc.Store().All()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runClear(svc *service.Service) {
	st := svc.Status()
	if st.Samples == 0 {
		fmt.Println("No pointer data recorded.")
		return
	}

	if !*assumeYes {
		fmt.Printf("Delete %d samples from %s? Type 'yes' to confirm: ", st.Samples, st.DataPath)
		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if strings.TrimSpace(strings.ToLower(answer)) != "yes" {
			fmt.Println("Aborted.")
			return
		}
	}

	if err := svc.Clear(); err != nil {
		log.Fatalf("Failed to clear data: %v", err)
	}
	fmt.Println("All pointer data deleted.")
}

func runService(cfgMgr *config.Manager, svc *service.Service) {
	log.Println("pointerheat service starting...")

	cfg := cfgMgr.Get()
	if topo := svc.Topology(); len(topo.Regions) == 0 {
		log.Fatalf("No usable screens and fallback disabled: %v", topo.Err)
	}

	if err := autostart.Apply(cfg.General.StartOnBoot); err != nil {
		log.Printf("Warning: failed to update start on login: %v", err)
	}

	// The API server also backs the browser panel, so it exists even when not listening
	apiServer := api.NewServer(cfgMgr, svc)
	if cfg.General.APIEnabled {
		go func() {
			if err := apiServer.Start(cfg.General.APIPort); err != nil {
				log.Printf("API server error: %v", err)
			}
		}()
	}

	// Browser panel, started on first use
	var (
		panel   *ui.Server
		panelMu sync.Mutex
	)
	openPanel := func() {
		panelMu.Lock()
		defer panelMu.Unlock()
		if panel != nil {
			panel.Open()
			return
		}
		panel = ui.NewServer(cfgMgr, apiServer.Routes())
		go func() {
			if err := panel.Start(); err != nil {
				log.Printf("UI server error: %v", err)
			}
		}()
	}

	visualize := func() {
		path, err := exportHeatmap(cfgMgr, svc)
		if err != nil {
			if errors.Is(err, service.ErrNoData) {
				log.Printf("Tray: Nothing to visualize yet, start a capture first")
				return
			}
			log.Printf("Tray: Export failed: %v", err)
			return
		}
		log.Printf("Tray: Heatmap exported to %s", path)
	}

	exportTimeline := func() {
		dir := cfgMgr.Get().Heatmap.ExportDir
		if dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				log.Printf("Tray: Timeline failed: %v", err)
				return
			}
		}
		path := filepath.Join(dir, "pointer_timeline_"+time.Now().Format("20060102_150405")+".png")
		if err := writeTimeline(path, svc); err != nil {
			log.Printf("Tray: Timeline failed: %v", err)
		}
	}

	// Tray instance
	t := tray.New("pointerheat - idle")

	toggleID := t.AddMenuItem("Start Capture", func() {
		if err := svc.ToggleCapture(); err != nil {
			log.Printf("Tray: %v", err)
		}
	})
	t.AddMenuItem("Visualize (Export PNG)", visualize)
	t.AddMenuItem("Export Timeline", exportTimeline)
	t.AddSeparator()
	t.AddMenuItem("Open Panel...", openPanel)
	t.AddSeparator()
	t.AddMenuItem("Quit", func() {
		t.Stop()
	})

	svc.OnStateChange(func(info session.Info) {
		if info.State == session.StateCapturing {
			t.SetItemTitle(toggleID, "Stop Capture")
			t.SetTooltip("pointerheat - capturing")
		} else {
			t.SetItemTitle(toggleID, "Start Capture")
			t.SetTooltip("pointerheat - idle")
		}
	})

	// Global toggle hotkey
	hkMgr := hotkey.NewManager()
	var lastHkTime time.Time
	var hkMux sync.Mutex
	debounce := func() bool {
		hkMux.Lock()
		defer hkMux.Unlock()
		if time.Since(lastHkTime) < 500*time.Millisecond {
			return false
		}
		lastHkTime = time.Now()
		return true
	}
	toggle := func() {
		if !debounce() {
			return
		}
		if err := svc.ToggleCapture(); err != nil {
			log.Printf("Hotkey: %v", err)
		}
	}

	refreshShortcuts := func() {
		combo := cfgMgr.Get().General.ToggleHotkey
		hkMgr.Clear()
		if combo == "" {
			return
		}
		if err := hkMgr.Register(combo, toggle); err != nil {
			log.Printf("Warning: failed to register toggle hotkey: %v", err)
			return
		}
		// On macOS also accept CMD where the combination says CTRL
		if runtime.GOOS == "darwin" && strings.Contains(strings.ToUpper(combo), "CTRL") {
			hkMgr.Register(strings.ReplaceAll(strings.ToUpper(combo), "CTRL", "CMD"), toggle)
		}
		log.Printf("Hotkey: Toggle capture with %s", combo)
	}
	refreshShortcuts()
	cfgMgr.RegisterChangeCallback(refreshShortcuts)

	if cfg.General.ToggleHotkey != "" {
		if err := hkMgr.Start(); err != nil {
			log.Printf("Warning: Hotkey engine failed to start: %v", err)
		}
	}

	t.SetOnExit(func() {
		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(ctx); err != nil {
			log.Printf("API shutdown error: %v", err)
		}
		panelMu.Lock()
		if panel != nil {
			panel.Stop()
		}
		panelMu.Unlock()
		svc.Close()
	})

	if cfg.Capture.StartOnLaunch {
		if _, err := svc.StartCapture(); err != nil {
			log.Printf("Warning: failed to start capture: %v", err)
		}
	}

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		t.Stop()
	}()

	log.Println("pointerheat running. Press Ctrl+C to stop.")
	t.Run()
}
