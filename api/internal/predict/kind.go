package predict

import (
	"fmt"
	"strings"
)

// Kind selects the backend operation and how its answer is read.
type Kind string

const (
	Binary     Kind = "binary"
	Multiclass Kind = "multiclass"
	Denoising  Kind = "denoising"
	Captioning Kind = "captioning"
)

// Kinds lists every operation in display order.
var Kinds = []Kind{Binary, Multiclass, Denoising, Captioning}

// Tag is the value the backend expects in the prediction_type field.
// The binary tag is French on the wire.
func (k Kind) Tag() string {
	switch k {
	case Binary:
		return "binaire"
	case Multiclass, Denoising, Captioning:
		return string(k)
	}
	return ""
}

// Classification reports whether results of this kind carry a confidence.
func (k Kind) Classification() bool {
	return k == Binary || k == Multiclass
}

func (k Kind) Valid() bool { return k.Tag() != "" }

func (k Kind) String() string { return string(k) }

// ParseKind accepts the kind name, its wire tag or a short alias.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "binary", "binaire":
		return Binary, nil
	case "multiclass", "multi":
		return Multiclass, nil
	case "denoising", "denoise":
		return Denoising, nil
	case "captioning", "caption":
		return Captioning, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// KindFromTag maps a stored prediction_type back to a Kind.
func KindFromTag(tag string) (Kind, bool) {
	for _, k := range Kinds {
		if k.Tag() == tag {
			return k, true
		}
	}
	return "", false
}
