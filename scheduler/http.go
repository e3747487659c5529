package scheduler

import (
	"encoding/json"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/telcorain/cmlrain/metadata"
	"github.com/telcorain/cmlrain/render"
)

// API serves the four documented HTTP routes plus a debug link-timeseries
// plot, using hand-written path parsing rather than a router dependency
// for a handful of routes.
type API struct {
	Meta       metadata.Store
	OutputsWeb string
	OutputsRaw string
	Links      LinkLookup // optional; nil disables /api/linkTimeseries
}

func (a *API) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", a.handleRoot)
	mux.HandleFunc("/api/hello", a.handleHello)
	mux.HandleFunc("/api/gridvalue", a.handleGridValue)
	if a.Links != nil {
		mux.HandleFunc("/api/linkTimeseries", DebugPlotHandler(a.Links))
	}
	return mux
}

func (a *API) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		entries, err := os.ReadDir(a.OutputsWeb)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body><ul>"))
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), ".png") {
				w.Write([]byte("<li><a href=\"/" + e.Name() + "\">" + e.Name() + "</a></li>"))
			}
		}
		w.Write([]byte("</ul></body></html>"))
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/")
	if strings.Contains(name, "/") || strings.Contains(name, "..") {
		http.NotFound(w, r)
		return
	}
	path := filepath.Join(a.OutputsWeb, name)
	if _, err := os.Stat(path); err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

func (a *API) handleHello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseGridValueRequest parses ?timestamp=YYYY-MM-DD_HHMM&parameters=<run_id>
// &latitude=<y>&longitude=<x>.
func parseGridValueRequest(r *http.Request) (t time.Time, runID int64, lat, lon float64, err error) {
	q := r.URL.Query()
	t, err = time.Parse("2006-01-02_1504", q.Get("timestamp"))
	if err != nil {
		return
	}
	runID, err = strconv.ParseInt(q.Get("parameters"), 10, 64)
	if err != nil {
		return
	}
	lat, err = strconv.ParseFloat(q.Get("latitude"), 64)
	if err != nil {
		return
	}
	lon, err = strconv.ParseFloat(q.Get("longitude"), 64)
	return
}

func (a *API) handleGridValue(w http.ResponseWriter, r *http.Request) {
	t, runID, lat, lon, err := parseGridValueRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx := r.Context()
	exists, err := a.Meta.VerifyRainGrid(ctx, runID, t)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !exists {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no grid for that run and timestamp"})
		return
	}

	run, err := a.Meta.GetRun(ctx, runID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	name := t.Format("2006-01-02_1504") + ".raw"
	h, values, err := render.ReadRawGrid(filepath.Join(a.OutputsRaw, name))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "raw grid file missing"})
		return
	}

	row := int((lat - run.BoundsYMin) / run.ResolutionDeg)
	col := int((lon - run.BoundsXMin) / run.ResolutionDeg)
	v, ok := render.CellAt(h, values, row, col)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "coordinates out of grid bounds"})
		return
	}
	if math.IsNaN(v) {
		v = 0
	}
	v = math.Round(v*1e4) / 1e4
	writeJSON(w, http.StatusOK, map[string]float64{"value": v})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
