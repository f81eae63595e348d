package eventserver

import (
	"context"
	"testing"

	"github.com/OpenMined/syft-extras/internal/protocol"
)

func dummyHandler(ctx context.Context, req protocol.Request) (interface{}, error) {
	return "ok", nil
}

func TestRouterMatchExact(t *testing.T) {
	r := &Router{}
	r.Register("ping", dummyHandler)

	if _, _, ok := r.Match("ping"); !ok {
		t.Fatal("expected exact match")
	}
	if _, _, ok := r.Match("pong"); ok {
		t.Fatal("expected no match")
	}
}

func TestRouterWildcardSegment(t *testing.T) {
	r := &Router{}
	r.Register("users/{id}/profile", dummyHandler)

	route, params, ok := r.Match("users/42/profile")
	if !ok {
		t.Fatal("expected match")
	}
	if route.Pattern != "users/{id}/profile" {
		t.Errorf("matched wrong route: %s", route.Pattern)
	}
	if params["id"] != "42" {
		t.Errorf("expected captured id=42, got %v", params)
	}
}

func TestRouterDoubleStarSuffix(t *testing.T) {
	r := &Router{}
	r.Register("http/**", dummyHandler)

	for _, ep := range []string{"http", "http/status", "http/a/b/c"} {
		if _, _, ok := r.Match(ep); !ok {
			t.Errorf("expected %q to match http/**", ep)
		}
	}
	if _, _, ok := r.Match("other"); ok {
		t.Error("did not expect other to match http/**")
	}
}

func TestRouterSpecificityOutranksWildcardAndDoubleStar(t *testing.T) {
	r := &Router{}
	r.Register("a/**", dummyHandler)
	r.Register("a/{name}", dummyHandler)
	exact := r.Register("a/b", dummyHandler)

	route, _, ok := r.Match("a/b")
	if !ok {
		t.Fatal("expected a match")
	}
	if route != exact {
		t.Errorf("expected the exact literal route to win, got pattern %q", route.Pattern)
	}
}

func TestRouterTiesBreakByRegistrationOrder(t *testing.T) {
	r := &Router{}
	first := r.Register("a/{x}", dummyHandler)
	r.Register("a/{y}", dummyHandler)

	route, _, ok := r.Match("a/1")
	if !ok {
		t.Fatal("expected a match")
	}
	if route != first {
		t.Errorf("expected the first-registered route to win a specificity tie")
	}
}
