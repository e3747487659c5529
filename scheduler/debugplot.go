package scheduler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/telcorain/cmlrain/internal/dataset"
)

// LinkLookup resolves a CML ID to its current in-memory dataset, for the
// debug time-series endpoint; nil if the link isn't part of the active
// run.
type LinkLookup func(cmlID int64) (*dataset.LinkDataset, bool)

// DebugPlotHandler serves GET /api/linkTimeseries?cml_id=<id>, a per-link
// R plot of every active channel rendered as a PNG with gonum/plot.
func DebugPlotHandler(lookup LinkLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.URL.Query().Get("cml_id"), 10, 64)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		link, ok := lookup(id)
		if !ok {
			http.NotFound(w, r)
			return
		}

		p := plot.New()
		p.Title.Text = fmt.Sprintf("CML %d rain rate", id)
		p.X.Label.Text = "time"
		p.Y.Label.Text = "mm/h"

		active := link.ActiveChannels()
		for _, c := range active {
			ch := link.Channels[c]
			xy := make(plotter.XYs, len(ch.Time))
			for i, t := range ch.Time {
				xy[i].X = float64(time.Unix(t, 0).Unix())
				xy[i].Y = ch.R[i]
			}
			if err := plotutil.AddLinePoints(p, fmt.Sprintf("channel %d", c), xy); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}

		w.Header().Set("Content-Type", "image/png")
		wt, err := p.WriterTo(6*vg.Inch, 3*vg.Inch, "png")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if _, err := wt.WriteTo(w); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}
