package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

func findFamily(m *Manager, name string) *dto.MetricFamily {
	families, err := m.Registry().Gather()
	So(err, ShouldBeNil)
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func TestManager(t *testing.T) {
	Convey("Given a metrics manager on its own registry", t, func() {
		m := NewManager()

		Convey("When engine events are recorded", func() {
			m.RecordEvaluation("legality")
			m.RecordEvaluation("legality")
			m.RecordFinding("fdp", "bad")
			m.ObserveFatigueScore(72)
			m.SetDutiesStored(14)

			Convey("Then the collectors carry them", func() {
				evals := findFamily(m, "dutyengine_engine_evaluations_total")
				So(evals, ShouldNotBeNil)
				So(evals.GetMetric()[0].GetCounter().GetValue(), ShouldEqual, 2)

				stored := findFamily(m, "dutyengine_store_duties")
				So(stored.GetMetric()[0].GetGauge().GetValue(), ShouldEqual, 14)

				score := findFamily(m, "dutyengine_engine_fatigue_score")
				So(score.GetMetric()[0].GetHistogram().GetSampleCount(), ShouldEqual, 1)
			})
		})

		Convey("When requests pass through the middleware", func() {
			r := chi.NewRouter()
			r.Use(m.Middleware)
			r.Get("/api/duties/{id}", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
			for _, id := range []string{"a", "b", "c"} {
				r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/duties/"+id, nil))
			}

			Convey("Then they are grouped by route pattern", func() {
				reqs := findFamily(m, "dutyengine_http_requests_total")
				So(reqs, ShouldNotBeNil)
				So(reqs.GetMetric(), ShouldHaveLength, 1)
				So(reqs.GetMetric()[0].GetCounter().GetValue(), ShouldEqual, 3)

				labels := map[string]string{}
				for _, l := range reqs.GetMetric()[0].GetLabel() {
					labels[l.GetName()] = l.GetValue()
				}
				So(labels["route"], ShouldEqual, "/api/duties/{id}")
				So(labels["status_code"], ShouldEqual, "204")
			})
		})

		Convey("When the handler is scraped", func() {
			m.RecordStoreError("list")
			rec := httptest.NewRecorder()
			m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
			body, _ := io.ReadAll(rec.Body)

			Convey("Then the text exposition contains the series", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(strings.Contains(string(body), `dutyengine_store_errors_total{operation="list"} 1`), ShouldBeTrue)
			})
		})
	})
}
