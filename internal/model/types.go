package model

// InvocationContext identifies the invocation that produced a log record.
// It is copied verbatim from the trigger and never mutated afterwards.
type InvocationContext struct {
	FunctionName       string `json:"function_name"`
	InvokedFunctionARN string `json:"invoked_function_arn"`
	LogGroupName       string `json:"log_group_name"`
	LogStreamName      string `json:"log_stream_name"`
}

// Empty reports whether the context carries no identity at all.
// Building an envelope from an empty context is a programming error.
func (ic InvocationContext) Empty() bool {
	return ic == InvocationContext{}
}

// Envelope is the unit of context + log text before it is serialized and
// compressed for transmission. Entry is opaque text; it may itself be a
// JSON document carrying a logEvents array.
type Envelope struct {
	Context InvocationContext `json:"context"`
	Entry   string            `json:"entry"`
}

// Category routes an envelope to its ingest path. It is derived from the
// entry text and never stored.
type Category int

const (
	CategoryDefault Category = iota
	CategoryVPC
	CategoryLambda
)

// IngestPath returns the per-category path component of the ingest URL.
func (c Category) IngestPath() string {
	switch c {
	case CategoryVPC:
		return "/aws/vpc"
	case CategoryLambda:
		return "/aws/lambda"
	default:
		return "/aws"
	}
}

func (c Category) String() string {
	switch c {
	case CategoryVPC:
		return "vpc"
	case CategoryLambda:
		return "lambda"
	default:
		return "other"
	}
}
