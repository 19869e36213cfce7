package app

// Route maps a path to a screen. A route with Redirect set has no screen of
// its own.
type Route struct {
	Path     string
	Key      string
	Title    string
	Redirect string
}

// DefaultPath is shown at startup and for unknown paths.
const DefaultPath = "/students"

// Routes is the navigation table in tab order.
var Routes = []Route{
	{Path: "/", Redirect: DefaultPath},
	{Path: "/students", Key: "1", Title: "Students"},
	{Path: "/teachers", Key: "2", Title: "Teachers"},
	{Path: "/courses", Key: "3", Title: "Courses"},
	{Path: "/enrollment", Key: "4", Title: "Enrollment"},
	{Path: "/data", Key: "5", Title: "Data"},
	{Path: "/statistics", Key: "6", Title: "Statistics"},
}

// Resolve returns the route for path. Redirects are followed once and
// unknown paths resolve to the default route.
func Resolve(path string) Route {
	r, ok := lookup(path)
	if ok && r.Redirect != "" {
		r, ok = lookup(r.Redirect)
	}
	if !ok || r.Redirect != "" {
		r, _ = lookup(DefaultPath)
	}
	return r
}

// Screens returns the navigable routes, those with a key.
func Screens() []Route {
	var out []Route
	for _, r := range Routes {
		if r.Key != "" {
			out = append(out, r)
		}
	}
	return out
}

// ByKey returns the route bound to a number key.
func ByKey(k string) (Route, bool) {
	for _, r := range Routes {
		if r.Key != "" && r.Key == k {
			return r, true
		}
	}
	return Route{}, false
}

func lookup(path string) (Route, bool) {
	for _, r := range Routes {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}
