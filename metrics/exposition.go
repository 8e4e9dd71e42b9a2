package metrics

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// WritePrometheus writes every metric in the Prometheus text exposition
// format, sorted by name. Dots in metric names become underscores and a
// non-empty namespace is prepended. Histograms are emitted as summaries
// with _count, _sum, _min and _max lines.
func (r *Registry) WritePrometheus(w io.Writer, namespace string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bw := bufio.NewWriter(w)
	name := func(n string) string {
		n = strings.ReplaceAll(n, ".", "_")
		if namespace != "" {
			n = namespace + "_" + n
		}
		return n
	}
	for _, n := range sortedKeys(r.counters) {
		p := name(n)
		fmt.Fprintf(bw, "# TYPE %s counter\n%s %d\n", p, p, r.counters[n].Value())
	}
	for _, n := range sortedKeys(r.gauges) {
		p := name(n)
		fmt.Fprintf(bw, "# TYPE %s gauge\n%s %d\n", p, p, r.gauges[n].Value())
	}
	for _, n := range sortedKeys(r.histograms) {
		p, s := name(n), r.histograms[n].Snapshot()
		fmt.Fprintf(bw, "# TYPE %s summary\n", p)
		fmt.Fprintf(bw, "%s_count %d\n%s_sum %s\n", p, s.Count, p, formatFloat(s.Sum))
		if s.Count > 0 {
			fmt.Fprintf(bw, "%s_min %s\n%s_max %s\n", p, formatFloat(s.Min), p, formatFloat(s.Max))
		}
	}
	return bw.Flush()
}

func sortedKeys[T any](m map[string]*T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
