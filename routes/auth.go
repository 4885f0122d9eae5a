package routes

// AuthProvider answers whether auth scheme and policy names referenced by a
// route are actually configured. Queried once per Add, never per request.
type AuthProvider interface {
	HasScheme(name string) bool
	HasPolicy(name string) bool
}

// StaticAuth is an AuthProvider over fixed name sets.
type StaticAuth struct {
	Schemes  []string
	Policies []string
}

func (a *StaticAuth) HasScheme(name string) bool { return contains(a.Schemes, name) }
func (a *StaticAuth) HasPolicy(name string) bool { return contains(a.Policies, name) }

func contains(set []string, name string) bool {
	for _, s := range set {
		if s == name {
			return true
		}
	}
	return false
}
