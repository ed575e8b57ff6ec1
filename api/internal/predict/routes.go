package predict

// Route is where a kind is sent and the prediction_type it carries.
// An empty Tag means the route implies the operation.
type Route struct {
	Path string
	Tag  string
}

type Routes map[Kind]Route

// CanonicalRoutes sends every kind to the single parameterized endpoint.
func CanonicalRoutes() Routes {
	r := make(Routes, len(Kinds))
	for _, k := range Kinds {
		r[k] = Route{Path: "/predictions/", Tag: k.Tag()}
	}
	return r
}

// LegacyRoutes uses the older per-operation endpoints.
func LegacyRoutes() Routes {
	return Routes{
		Binary:     {Path: "/predict_binary"},
		Multiclass: {Path: "/predict_multiclass"},
		Denoising:  {Path: "/predictDenoising", Tag: Denoising.Tag()},
		Captioning: {Path: "/caption"},
	}
}

func (r Routes) lookup(k Kind) (Route, bool) {
	rt, ok := r[k]
	return rt, ok && rt.Path != ""
}
