package predict

import (
	"encoding/json"
	"math"
	"strings"

	"artvision-bot/api/internal/apierr"
)

// wireResult covers both backend shapes: {result, confidence, filename} on
// /predictions/ and {prediction, confidence} on the legacy routes.
type wireResult struct {
	Result     *string  `json:"result"`
	Prediction *string  `json:"prediction"`
	Confidence *float64 `json:"confidence"`
	Filename   *string  `json:"filename"`
}

func (w wireResult) label() string {
	if w.Result != nil {
		if s := strings.TrimSpace(*w.Result); s != "" {
			return s
		}
	}
	if w.Prediction != nil {
		return strings.TrimSpace(*w.Prediction)
	}
	return ""
}

// Normalize maps a 2xx body to a Result. Classification kinds must carry a
// label and a confidence in [0,1]; denoising must carry the result image
// URL; captioning must carry the caption.
func Normalize(op string, kind Kind, body []byte) (Result, error) {
	var w wireResult
	if err := json.Unmarshal(body, &w); err != nil {
		return Result{}, apierr.Malformed(op, "body is not a JSON object", body, err)
	}

	res := Result{Kind: kind, Label: w.label()}
	if w.Filename != nil {
		res.ResultAssetURL = strings.TrimSpace(*w.Filename)
	}

	switch {
	case kind == Denoising:
		if res.ResultAssetURL == "" {
			return Result{}, apierr.Malformed(op, "missing filename", body, nil)
		}
	case res.Label == "":
		return Result{}, apierr.Malformed(op, "missing result", body, nil)
	}

	if kind.Classification() {
		if w.Confidence == nil {
			return Result{}, apierr.Malformed(op, "missing confidence", body, nil)
		}
		c := *w.Confidence
		if math.IsNaN(c) || c < 0 || c > 1 {
			return Result{}, apierr.Malformed(op, "confidence out of [0,1]", body, nil)
		}
		res.Confidence = &c
	}
	return res, nil
}
