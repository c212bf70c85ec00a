// Package ui provides the browser control panel.
package ui

import (
	"fmt"
	"html/template"
	"log"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"sync"

	"pointerheat/internal/config"
)

// Server serves the control panel page next to the API routes it calls
type Server struct {
	configMgr *config.Manager
	routes    http.Handler

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a new UI server. routes serves the /api and /ws endpoints.
func NewServer(cfgMgr *config.Manager, routes http.Handler) *Server {
	return &Server{
		configMgr: cfgMgr,
		routes:    routes,
	}
}

// Handler returns the panel page at / with everything else delegated to the API routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", s.handleIndex)
	mux.Handle("/", s.routes)
	return mux
}

// Start starts the UI server on a free loopback port and opens the browser
func (s *Server) Start() error {
	// Find an available port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	port := listener.Addr().(*net.TCPAddr).Port
	url := fmt.Sprintf("http://127.0.0.1:%d", port)

	log.Printf("UI: Starting control panel at %s", url)

	// Open browser
	go openBrowser(url)

	return http.Serve(listener, s.Handler())
}

// Open points the browser at a running panel again
func (s *Server) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return
	}
	port := s.listener.Addr().(*net.TCPAddr).Port
	go openBrowser(fmt.Sprintf("http://127.0.0.1:%d", port))
}

// Stop stops the UI server
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func openBrowser(url string) {
	var err error
	switch runtime.GOOS {
	case "darwin":
		err = exec.Command("open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		err = exec.Command("xdg-open", url).Start()
	}
	if err != nil {
		log.Printf("UI: Failed to open browser: %v", err)
	}
}

type pageData struct {
	ResolutionX int
	ResolutionY int
	Smoothing   float64
	DataPath    string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	cfg := s.configMgr.Get()
	data := pageData{
		ResolutionX: cfg.Heatmap.ResolutionX,
		ResolutionY: cfg.Heatmap.ResolutionY,
		Smoothing:   cfg.Heatmap.Smoothing,
		DataPath:    s.configMgr.DataPath(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		log.Printf("UI: Failed to render page: %v", err)
	}
}

var tmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Pointer Heatmap</title>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'SF Pro Display', 'Segoe UI', Roboto, sans-serif;
            background: linear-gradient(135deg, #1a1a2e 0%, #16213e 100%);
            color: #e2e8f0;
            min-height: 100vh;
            padding: 2rem;
        }
        .container { max-width: 1100px; margin: 0 auto; }
        h1 {
            font-size: 2rem;
            font-weight: 700;
            margin-bottom: 2rem;
            background: linear-gradient(135deg, #fca636 0%, #b12a90 100%);
            -webkit-background-clip: text;
            -webkit-text-fill-color: transparent;
        }
        .card {
            background: rgba(255,255,255,0.05);
            border: 1px solid rgba(255,255,255,0.1);
            border-radius: 16px;
            padding: 1.5rem;
            margin-bottom: 1.5rem;
        }
        .card h2 { font-size: 1.25rem; margin-bottom: 1rem; color: #fca636; }
        .stats { display: grid; grid-template-columns: repeat(auto-fit, minmax(160px, 1fr)); gap: 1rem; }
        .stat-label { font-size: 0.8rem; color: #94a3b8; }
        .stat-value { font-size: 1.4rem; font-weight: 600; }
        .capturing { color: #4ade80; }
        .idle { color: #94a3b8; }
        .action-btns { display: flex; flex-wrap: wrap; gap: 0.5rem; margin-top: 1rem; }
        .btn {
            background: linear-gradient(135deg, #b12a90 0%, #6a00a8 100%);
            border: none;
            border-radius: 8px;
            padding: 0.75rem 1.5rem;
            color: white;
            font-weight: 600;
            cursor: pointer;
            font-size: 0.875rem;
            text-decoration: none;
        }
        .btn-secondary { background: rgba(255,255,255,0.1); border: 1px solid rgba(255,255,255,0.2); }
        .btn-danger { background: rgba(239,68,68,0.8); }
        #heatmap { width: 100%; border-radius: 8px; display: none; }
        #heatmap-empty { color: #94a3b8; }
        table { width: 100%; border-collapse: collapse; font-size: 0.875rem; }
        th, td { text-align: left; padding: 0.4rem; border-bottom: 1px solid rgba(255,255,255,0.08); }
        .meta { font-size: 0.8rem; color: #64748b; margin-top: 0.5rem; }
        #status-bar {
            position: fixed;
            bottom: 2rem;
            right: 2rem;
            padding: 1rem 1.5rem;
            background: rgba(0,0,0,0.9);
            border-radius: 12px;
            display: none;
            color: white;
        }
    </style>
</head>
<body>
<div class="container">
    <h1>Pointer Heatmap</h1>

    <div class="card">
        <h2>Capture</h2>
        <div class="stats">
            <div><div class="stat-label">State</div><div class="stat-value idle" id="state">idle</div></div>
            <div><div class="stat-label">Samples</div><div class="stat-value" id="samples">0</div></div>
            <div><div class="stat-label">Sessions</div><div class="stat-value" id="sessions">0</div></div>
            <div><div class="stat-label">This session</div><div class="stat-value" id="recorded">-</div></div>
        </div>
        <div class="action-btns">
            <button class="btn" onclick="command('start')">Start</button>
            <button class="btn btn-secondary" onclick="command('stop')">Stop</button>
            <button class="btn" onclick="visualize()">Visualize</button>
            <a class="btn btn-secondary" href="/api/export.csv">Export CSV</a>
            <a class="btn btn-secondary" href="/api/timeline.png" target="_blank">Timeline</a>
            <button class="btn btn-danger" onclick="clearData()">Clear Data</button>
        </div>
        <div class="meta">Grid {{.ResolutionX}}x{{.ResolutionY}}, smoothing {{.Smoothing}} &middot; data file {{.DataPath}}</div>
    </div>

    <div class="card">
        <h2>Heatmap</h2>
        <p id="heatmap-empty">Press Visualize to render the recorded data.</p>
        <img id="heatmap" alt="pointer heatmap">
    </div>

    <div class="card">
        <h2>Hotspots</h2>
        <table>
            <thead><tr><th>#</th><th>Samples</th><th>X range</th><th>Y range</th></tr></thead>
            <tbody id="hotspots"></tbody>
        </table>
    </div>

    <div class="card">
        <h2>Screens</h2>
        <table>
            <thead><tr><th>Name</th><th>Origin</th><th>Size</th></tr></thead>
            <tbody id="screens"></tbody>
        </table>
        <div class="meta" id="bounds"></div>
    </div>
</div>
<div id="status-bar"></div>

<script>
    function showStatus(text) {
        const bar = document.getElementById('status-bar');
        bar.textContent = text;
        bar.style.display = 'block';
        setTimeout(() => { bar.style.display = 'none'; }, 3000);
    }

    function applyState(p) {
        const el = document.getElementById('state');
        el.textContent = p.state;
        el.className = 'stat-value ' + p.state;
        document.getElementById('samples').textContent = p.samples;
        document.getElementById('sessions').textContent = p.sessions;
        if (p.state !== 'capturing') {
            document.getElementById('recorded').textContent = '-';
        }
    }

    async function command(action) {
        const resp = await fetch('/api/session/' + action, { method: 'POST' });
        if (!resp.ok) {
            showStatus(await resp.text());
        }
    }

    async function visualize() {
        const resp = await fetch('/api/heatmap.png?ts=' + Date.now());
        if (!resp.ok) {
            showStatus(await resp.text());
            return;
        }
        const img = document.getElementById('heatmap');
        img.src = URL.createObjectURL(await resp.blob());
        img.style.display = 'block';
        document.getElementById('heatmap-empty').style.display = 'none';
        loadHotspots();
    }

    async function clearData() {
        if (!confirm('Delete all recorded pointer data? This cannot be undone.')) {
            return;
        }
        const resp = await fetch('/api/clear?confirm=true', { method: 'POST' });
        showStatus(resp.ok ? 'All data cleared' : await resp.text());
        if (resp.ok) {
            document.getElementById('heatmap').style.display = 'none';
            document.getElementById('heatmap-empty').style.display = 'block';
            document.getElementById('hotspots').innerHTML = '';
        }
    }

    async function loadHotspots() {
        const resp = await fetch('/api/hotspots?n=10');
        if (!resp.ok) return;
        const body = document.getElementById('hotspots');
        body.innerHTML = '';
        (await resp.json()).forEach((h, i) => {
            const row = body.insertRow();
            row.insertCell().textContent = i + 1;
            row.insertCell().textContent = h.count;
            row.insertCell().textContent = Math.round(h.area.MinX) + ' .. ' + Math.round(h.area.MaxX);
            row.insertCell().textContent = Math.round(h.area.MinY) + ' .. ' + Math.round(h.area.MaxY);
        });
    }

    async function loadScreens() {
        const resp = await fetch('/api/topology');
        if (!resp.ok) return;
        const topo = await resp.json();
        const body = document.getElementById('screens');
        body.innerHTML = '';
        (topo.regions || []).forEach(r => {
            const row = body.insertRow();
            row.insertCell().textContent = (r.name || 'screen') + (r.primary ? ' (primary)' : '');
            row.insertCell().textContent = r.x + ', ' + r.y;
            row.insertCell().textContent = r.width + 'x' + r.height;
        });
        const b = topo.bounds;
        let text = 'Bounds x ' + b.min_x + '..' + b.max_x + ', y ' + b.min_y + '..' + b.max_y;
        if (topo.fallback) text += ' (fallback)';
        if (topo.error) text += ' - ' + topo.error;
        document.getElementById('bounds').textContent = text;
    }

    function connect() {
        const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
        ws.onmessage = (ev) => {
            const msg = JSON.parse(ev.data);
            if (msg.type === 'state') {
                applyState(msg.payload);
            } else if (msg.type === 'stats') {
                document.getElementById('samples').textContent = msg.payload.samples;
                document.getElementById('recorded').textContent = msg.payload.recorded;
            } else if (msg.type === 'error') {
                showStatus(msg.payload.message);
            }
        };
        ws.onclose = () => setTimeout(connect, 2000);
    }

    loadScreens();
    connect();
</script>
</body>
</html>
`))
