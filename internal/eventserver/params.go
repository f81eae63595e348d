package eventserver

import "context"

type paramsKey struct{}

func withParams(ctx context.Context, params map[string]string) context.Context {
	return context.WithValue(ctx, paramsKey{}, params)
}

// Params returns the segment-wildcard captures for the route that matched
// the request being handled (an empty map if the route has no wildcards),
// or nil if ctx carries no captures at all.
func Params(ctx context.Context) map[string]string {
	params, _ := ctx.Value(paramsKey{}).(map[string]string)
	return params
}
