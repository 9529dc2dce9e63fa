package prometheus

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	goOverlay "github.com/MrEthical07/goOverlay"
	"github.com/MrEthical07/goOverlay/metrics/export/internaldefs"
)

// Source is what the exporter reads on each scrape. *goOverlay.Engine
// satisfies it.
type Source interface {
	MetricsSnapshot() goOverlay.MetricsSnapshot
	AuditDropped() uint64
}

// SuspensionLister is optionally implemented by a Source to expose the
// number of live suspensions as a gauge.
type SuspensionLister interface {
	ListSuspensions(ctx context.Context) []goOverlay.SuspensionRecord
}

const suspensionsActiveName = internaldefs.Namespace + "suspensions_active"

type Exporter struct {
	source Source
}

// New returns an exporter over engine.
func New(engine *goOverlay.Engine) *Exporter {
	return &Exporter{source: engine}
}

func NewFromSource(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves Render with the text exposition content type.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.render(r.Context())))
	})
}

// Render returns the current metrics. It is empty when metrics are disabled
// and nothing has been dropped.
func (p *Exporter) Render() string {
	return p.render(context.Background())
}

func (p *Exporter) render(ctx context.Context) string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	for _, def := range internaldefs.CounterDefs {
		writeSample(&b, def.Name, def.Help, "counter", snapshot.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		buckets := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID]))
		writeHistogram(&b, def.Name, def.Help, buckets)
	}
	writeSample(&b, internaldefs.AuditDroppedName, "Audit events dropped on a full buffer.", "counter", dropped)

	if lister, ok := p.source.(SuspensionLister); ok {
		active := len(lister.ListSuspensions(ctx))
		writeSample(&b, suspensionsActiveName, "Suspensions whose window is still open.", "gauge", uint64(active))
	}

	return b.String()
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteString("\n# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func writeSample(b *strings.Builder, name, help, kind string, value uint64) {
	writeHeader(b, name, help, kind)
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func writeHistogram(b *strings.Builder, name, help string, cumulative [8]uint64) {
	writeHeader(b, name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		b.WriteString(name)
		b.WriteString(`_bucket{le="`)
		b.WriteString(le)
		b.WriteString(`"} `)
		b.WriteString(strconv.FormatUint(cumulative[i], 10))
		b.WriteByte('\n')
	}
	b.WriteString(name)
	b.WriteString("_count ")
	b.WriteString(strconv.FormatUint(cumulative[len(cumulative)-1], 10))
	b.WriteByte('\n')

	// The engine keeps bucket counts only.
	b.WriteString(name)
	b.WriteString("_sum 0\n")
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, `\`, `\\`)
	return strings.ReplaceAll(help, "\n", `\n`)
}
