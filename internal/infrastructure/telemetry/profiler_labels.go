package telemetry

import (
	"context"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys.
const (
	ProfilingLabelWorkflow = "workflow"
	ProfilingLabelJob      = "job"
	ProfilingLabelMethod   = "cost_method"
	ProfilingLabelRoute    = "route"
)

// maxLabelValueLength caps label values to keep profile cardinality bounded
const maxLabelValueLength = 64

// identifiers never become profile labels
var highCardinalityLabels = map[string]bool{
	"product_id": true,
	"order_id":   true,
	"sale_id":    true,
	"lot_id":     true,
	"request_id": true,
	"trace_id":   true,
}

// WithProfilingLabels runs fn with pprof labels so Pyroscope can slice CPU
// time by workflow. Labels that are empty or high-cardinality are dropped.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// WorkflowLabels labels one ledger workflow
func WorkflowLabels(workflow string, extra ...string) map[string]string {
	labels := map[string]string{ProfilingLabelWorkflow: workflow}
	for i := 0; i+1 < len(extra); i += 2 {
		labels[extra[i]] = extra[i+1]
	}
	return labels
}

// sanitizeLabels returns sorted key/value pairs with snake_case keys
func sanitizeLabels(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(labels)*2)
	for _, k := range keys {
		v := labels[k]
		key := sanitizeLabelKey(k)
		if key == "" || v == "" || highCardinalityLabels[key] {
			continue
		}
		if len(v) > maxLabelValueLength {
			v = v[:maxLabelValueLength]
		}
		pairs = append(pairs, key, v)
	}
	return pairs
}

func sanitizeLabelKey(key string) string {
	key = strings.ToLower(strings.NewReplacer(" ", "_", "-", "_").Replace(key))
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
