package transport

import (
	"fmt"
	"strings"

	"github.com/tinytelemetry/relay/internal/model"
)

// Region values accepted by the configuration. Anything starting with
// http:// or https:// is treated as an explicit host override. "auto"
// opts into the legacy heuristic that infers EU from an "eu"-prefixed
// license key; an empty region is rejected at validation time rather
// than guessed.
const (
	RegionUS   = "US"
	RegionEU   = "EU"
	RegionAuto = "auto"
)

// ResolveHost maps the configured region to an ingest host.
func ResolveHost(region, licenseKey string) (string, error) {
	switch {
	case region == RegionUS:
		return model.USIngestHost, nil
	case region == RegionEU:
		return model.EUIngestHost, nil
	case region == RegionAuto:
		if strings.HasPrefix(licenseKey, "eu") {
			return model.EUIngestHost, nil
		}
		return model.USIngestHost, nil
	case strings.HasPrefix(region, "http://"), strings.HasPrefix(region, "https://"):
		return strings.TrimRight(region, "/"), nil
	case region == "":
		return "", fmt.Errorf("transport: region is not set (use US, EU, auto, or an explicit URL)")
	default:
		return "", fmt.Errorf("transport: unknown region %q", region)
	}
}

// IngestURL joins host, per-category path, and the fixed API version.
func IngestURL(host string, category model.Category) string {
	return host + category.IngestPath() + "/" + model.IngestVersion
}
