//go:build sonic

package ledger

import "github.com/bytedance/sonic"

var jsonMarshal = sonic.ConfigStd.Marshal
var jsonUnmarshal = sonic.ConfigStd.Unmarshal
