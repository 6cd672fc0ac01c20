package trigger

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/tidwall/gjson"
)

// ErrNoLogData means an awslogs event carried no data field.
var ErrNoLogData = errors.New("trigger: awslogs event has no data")

// DecodeCloudWatch extracts the log block from a streaming trigger
// event. CloudWatch delivers it base64-encoded and gzip-compressed;
// the decoded text is returned as a single record.
func DecodeCloudWatch(event string) (string, error) {
	data := gjson.Get(event, "awslogs.data").String()
	if data == "" {
		return "", ErrNoLogData
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("trigger: decode awslogs data: %w", err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("trigger: decompress awslogs data: %w", err)
	}
	defer zr.Close()

	text, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("trigger: decompress awslogs data: %w", err)
	}
	return string(text), nil
}
