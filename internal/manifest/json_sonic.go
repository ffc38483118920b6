//go:build sonic

package manifest

import (
	"github.com/bytedance/sonic"
)

// ConfigStd sorts map keys so manifests stay byte-stable across builds.
var jsonMarshalIndent = sonic.ConfigStd.MarshalIndent
var jsonUnmarshal = sonic.ConfigStd.Unmarshal
