// Package syftpath implements the syft:// URL grammar and the two flavors
// of filesystem path (absolute, relative-to-datasites-root) used throughout
// the RPC fabric.
package syftpath

import (
	"fmt"
	"regexp"
	"strings"
)

// syftURLPattern matches syft://<datasite>/app_data/<app>/rpc/<endpoint...>.
// The endpoint half is greedy so it can itself contain slashes.
var syftURLPattern = regexp.MustCompile(`^syft://(?P<site>[^/]+)/app_data/(?P<app>[^/]+)/rpc/(?P<endpoint>.+)$`)

// MalformedURLError is returned when a string does not match the syft://
// URL grammar.
type MalformedURLError struct {
	Raw string
}

func (e *MalformedURLError) Error() string {
	return fmt.Sprintf("syftpath: malformed syft url %q", e.Raw)
}

// URL is a parsed syft://<datasite>/app_data/<app>/rpc/<endpoint> address.
// Reconstruction via String is byte-exact for any URL produced by Parse.
type URL struct {
	Datasite string
	AppName  string
	Endpoint string
}

// New builds a URL from its parts. Endpoint is trimmed of leading/trailing
// slashes so that repeated round trips through String/Parse are stable.
func New(datasite, appName, endpoint string) URL {
	return URL{
		Datasite: datasite,
		AppName:  appName,
		Endpoint: strings.Trim(endpoint, "/"),
	}
}

// Parse parses a syft:// URL, returning *MalformedURLError if raw does not
// match the grammar in the protocol design doc.
func Parse(raw string) (URL, error) {
	m := syftURLPattern.FindStringSubmatch(raw)
	if m == nil {
		return URL{}, &MalformedURLError{Raw: raw}
	}
	names := syftURLPattern.SubexpNames()
	groups := make(map[string]string, len(names))
	for i, name := range names {
		if name == "" {
			continue
		}
		groups[name] = m[i]
	}
	return URL{
		Datasite: groups["site"],
		AppName:  groups["app"],
		Endpoint: strings.Trim(groups["endpoint"], "/"),
	}, nil
}

// String reconstructs the canonical syft:// form of the URL.
func (u URL) String() string {
	return fmt.Sprintf("syft://%s/app_data/%s/rpc/%s", u.Datasite, u.AppName, u.Endpoint)
}

// EndpointSegments splits the endpoint into its path components, e.g.
// "a/b/c" -> ["a", "b", "c"].
func (u URL) EndpointSegments() []string {
	if u.Endpoint == "" {
		return nil
	}
	return strings.Split(u.Endpoint, "/")
}

// RPCRoot returns the rpc/ directory for the URL's datasite and app,
// rooted at workspace: <workspace>/datasites/<site>/app_data/<app>/rpc/
func (u URL) RPCRoot(workspace string) Abs {
	return NewAbs(workspace).Join("datasites", u.Datasite, "app_data", u.AppName, "rpc")
}

// ToLocalPath converts the URL into the on-disk rpc directory it addresses,
// rooted at workspace: <workspace>/datasites/<site>/app_data/<app>/rpc/<endpoint>/
func (u URL) ToLocalPath(workspace string) Abs {
	return u.RPCRoot(workspace).Join(u.EndpointSegments()...)
}
