package pool

import (
	"bytes"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// configSuffixes lists the extensions treated as CONFIG-shaped textual
// resources (module property files commonly bundled as resources).
var configSuffixes = []string{".properties", ".config", ".ini"}

// IsConfigResource reports whether path names a CONFIG-shaped resource,
// per configSuffixes.
func IsConfigResource(path string) bool {
	for _, suf := range configSuffixes {
		if len(path) >= len(suf) && path[len(path)-len(suf):] == suf {
			return true
		}
	}

	return false
}

// NormalizeConfigText strips a leading UTF-8/UTF-16 byte-order mark from a
// CONFIG resource's content and returns it re-encoded as plain UTF-8,
// matching how config-shaped payloads commonly carry a leading BOM the
// rest of the pipeline (hashing, compression) shouldn't have to special-
// case.
func NormalizeConfigText(content []byte) ([]byte, error) {
	transformer := unicode.BOMOverride(unicode.UTF8.NewDecoder())

	r := transform.NewReader(bytes.NewReader(content), transformer)

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return out, nil
}
