package envelope

import (
	"strings"

	"github.com/tinytelemetry/relay/internal/model"
)

// Marker substrings the classifier looks for inside the raw entry text.
// The lambda category requires both its log-group marker and the
// instrumentation marker emitted by the monitoring wrapper.
const (
	vpcLogGroupMarker    = `"logGroup":"/aws/vpc/flow-logs"`
	lambdaLogGroupMarker = `"logGroup":"/aws/lambda/`
	lambdaMonitorMarker  = `,\"NR_LAMBDA_MONITORING\",`
)

// Classify derives the routing category from the entry text alone.
// Unmatched, partial, or malformed input always falls through to
// CategoryDefault; classification never fails.
func Classify(entry string) model.Category {
	switch {
	case strings.Contains(entry, vpcLogGroupMarker):
		return model.CategoryVPC
	case strings.Contains(entry, lambdaLogGroupMarker) && strings.Contains(entry, lambdaMonitorMarker):
		return model.CategoryLambda
	default:
		return model.CategoryDefault
	}
}
