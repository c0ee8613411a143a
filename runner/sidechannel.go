package runner

import (
	"encoding/json"
	"os"

	"github.com/runflo/runflo/types"
)

// Payload is the structured side-channel record a child process writes
// before exiting. It travels on its own file, separate from the child's
// free-form stderr, so malformed diagnostics can never corrupt it.
type Payload struct {
	ErrMsg string             `json:"err_msg"`
	RData  map[string]float64 `json:"rdata,omitempty"`
}

// payloadFromResult captures the fields the parent needs to reconstruct a
// Result across the process boundary.
func payloadFromResult(r *types.Result) Payload {
	return Payload{
		ErrMsg: r.ErrMsg,
		RData: map[string]float64{
			"max_rss_mb": r.Usage.MaxRSSMB,
			"load_1":     r.Usage.Load[0],
			"load_5":     r.Usage.Load[1],
			"load_15":    r.Usage.Load[2],
		},
	}
}

// Usage reconstructs the resource sample from the rdata mapping. Unknown
// or missing fields read as zero.
func (p Payload) Usage() types.ResourceUsage {
	return types.ResourceUsage{
		MaxRSSMB: p.RData["max_rss_mb"],
		Load: [3]float64{
			p.RData["load_1"],
			p.RData["load_5"],
			p.RData["load_15"],
		},
	}
}

// writePayload serializes p to path.
func writePayload(path string, p Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// readPayload loads a payload from path. An absent, empty or malformed
// file is "no extra data", not a parse fatal.
func readPayload(path string) (Payload, bool) {
	var p Payload
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return p, false
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, false
	}
	return p, true
}
