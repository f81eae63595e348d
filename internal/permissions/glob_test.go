package permissions

import "testing"

func TestMatchGlob(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"**", "", true},
		{"**", "a/b/c", true},
		{"*.csv", "data.csv", true},
		{"*.csv", "a/data.csv", false},
		{"data/*.csv", "data/x.csv", true},
		{"data/*.csv", "data/sub/x.csv", false},
		{"a/**/b", "a/b", true},
		{"a/**/b", "a/x/b", true},
		{"a/**/b", "a/x/y/b", true},
		{"a/**/b", "a/b/c", false},
		{"**/b", "b", true},
		{"**/b", "x/b", true},
		{"**/b", "x/y/b", true},
		{"**/b", "x/y/bz", false},
		{"a/**", "a", true},
		{"a/**", "a/b", true},
		{"a/**", "a/b/c", true},
		{"a/**", "z/a", false},
	}
	for _, c := range cases {
		got, err := matchGlob(c.pattern, c.path)
		if err != nil {
			t.Fatalf("matchGlob(%q, %q): %v", c.pattern, c.path, err)
		}
		if got != c.want {
			t.Errorf("matchGlob(%q, %q) = %v, want %v", c.pattern, c.path, got, c.want)
		}
	}
}
