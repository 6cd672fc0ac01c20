// Package trigger turns raw trigger events — streaming log-delivery
// blocks and stored-object notifications — into the log records the
// dispatcher consumes.
package trigger

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Kind identifies which trigger shape produced an event.
type Kind int

const (
	KindUnknown Kind = iota
	KindCloudWatch
	KindS3
)

func (k Kind) String() string {
	switch k {
	case KindCloudWatch:
		return "cloudwatch"
	case KindS3:
		return "s3"
	default:
		return "unknown"
	}
}

// Detect inspects a raw event document and reports its trigger shape.
// An awslogs key means a CloudWatch Logs stream; a Records[0].s3 block
// with an ObjectCreated event name means a stored-object notification.
func Detect(event string) Kind {
	if gjson.Get(event, "awslogs").Exists() {
		return KindCloudWatch
	}

	first := gjson.Get(event, "Records.0")
	if first.Get("s3").Exists() && strings.Contains(first.Get("eventName").String(), "ObjectCreated") {
		return KindS3
	}

	return KindUnknown
}
