// Package permissions implements the hierarchical policy-file permission
// engine: parsing syft.pub.yaml (and legacy syftperm.yaml) files found
// while ascending a datasite's directory tree, and computing the effective
// (read, create, write, admin) tuple for a principal at a path.
package permissions

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/OpenMined/syft-extras/internal/syftpath"
)

// Permission is the computed (read, create, write, admin) tuple for a
// single (principal, path) pair.
type Permission struct {
	Read   bool
	Create bool
	Write  bool
	Admin  bool
}

// Has reports whether the permission grants at least tier t.
func (p Permission) Has(t Tier) bool {
	switch t {
	case Read:
		return p.Read
	case Create:
		return p.Create
	case Write:
		return p.Write
	case Admin:
		return p.Admin
	default:
		return false
	}
}

func (p *Permission) set(t Tier, v bool) {
	switch t {
	case Read:
		p.Read = v
	case Create:
		p.Create = v
	case Write:
		p.Write = v
	case Admin:
		p.Admin = v
	}
}

// closure applies the hierarchy rule admin => write => create => read.
func (p *Permission) closure() {
	if p.Admin {
		p.Write = true
	}
	if p.Write {
		p.Create = true
	}
	if p.Create {
		p.Read = true
	}
}

type cachedPolicy struct {
	modTime time.Time
	pf      *policyFile
	path    string
}

// Engine evaluates computed permissions against the policy files found in
// a workspace's datasites tree. AllowLegacy controls whether syftperm.yaml
// files are auto-converted; it is a field on the engine rather than a
// process-wide switch so that multiple engines in one process can disagree.
type Engine struct {
	Workspace   syftpath.Abs
	AllowLegacy bool

	mu    sync.Mutex
	cache map[string]cachedPolicy
}

// NewEngine constructs an Engine rooted at workspace.
func NewEngine(workspace syftpath.Abs, allowLegacy bool) *Engine {
	return &Engine{
		Workspace:   workspace,
		AllowLegacy: allowLegacy,
		cache:       make(map[string]cachedPolicy),
	}
}

// policyEntry pairs a parsed policy with the directory it was found in.
type policyEntry struct {
	dir syftpath.Abs
	pf  *policyFile
}

// ancestorDirs returns the sequence of directories from the datasites root
// down to (but not including) the final path component of target, in
// root-downward order, along with the path components of target relative
// to the datasites root.
func (e *Engine) ancestorDirs(target syftpath.Abs) ([]syftpath.Abs, []string, error) {
	ws := e.Workspace.Components()
	full := target.Components()
	if len(full) < len(ws) || !sameComponents(ws, full[:len(ws)]) {
		return nil, nil, fmt.Errorf("permissions: %s is outside workspace %s", target.String(), e.Workspace.String())
	}
	rel := full[len(ws):]
	if len(rel) == 0 || rel[0] != "datasites" {
		return nil, nil, fmt.Errorf("permissions: %s is not under datasites/", target.String())
	}
	rel = rel[1:]
	if len(rel) == 0 {
		return nil, nil, fmt.Errorf("permissions: %s names no datasite", target.String())
	}

	dirs := []syftpath.Abs{e.Workspace.Join("datasites")}
	for i := 1; i < len(rel); i++ {
		dirs = append(dirs, e.Workspace.Join(append([]string{"datasites"}, rel[:i]...)...))
	}
	return dirs, rel, nil
}

func sameComponents(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// loadCached loads the policy file directly inside dir (if any), caching
// the parse result keyed by the source file's modification time.
func (e *Engine) loadCached(dir string) (*policyFile, error) {
	modern := dir + string(os.PathSeparator) + policyFileName
	if info, err := os.Stat(modern); err == nil {
		return e.cachedParse(modern, info.ModTime(), false)
	}

	if !e.AllowLegacy {
		return nil, nil
	}
	legacy := dir + string(os.PathSeparator) + legacyFileName
	info, err := os.Stat(legacy)
	if err != nil {
		return nil, nil
	}
	return e.cachedParse(legacy, info.ModTime(), true)
}

func (e *Engine) cachedParse(path string, modTime time.Time, legacy bool) (*policyFile, error) {
	e.mu.Lock()
	if c, ok := e.cache[path]; ok && c.modTime.Equal(modTime) {
		e.mu.Unlock()
		return c.pf, nil
	}
	e.mu.Unlock()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil
	}
	var pf *policyFile
	if legacy {
		pf, err = convertLegacy(raw)
	} else {
		pf, err = parsePolicy(raw)
	}
	if err != nil {
		return nil, &MalformedPolicyError{Path: path, Err: err}
	}

	e.mu.Lock()
	e.cache[path] = cachedPolicy{modTime: modTime, pf: pf, path: path}
	e.mu.Unlock()
	return pf, nil
}

// Compute evaluates the permission tuple for principal at target, per the
// ascend/terminal-boundary/closure/owner-override algorithm.
func (e *Engine) Compute(principal string, target syftpath.Abs) (Permission, error) {
	dirs, rel, err := e.ancestorDirs(target)
	if err != nil {
		return Permission{}, err
	}
	owner := rel[0]

	var chain []policyEntry
	for _, d := range dirs {
		pf, lerr := e.loadCached(d.String())
		if lerr != nil {
			// Malformed policy: skip this file only, the rest of the
			// chain still applies.
			continue
		}
		if pf == nil {
			continue
		}
		chain = append(chain, policyEntry{dir: d, pf: pf})
	}

	cutoff := 0
	for i, entry := range chain {
		if entry.pf.Terminal {
			cutoff = i
		}
	}
	contributing := chain[cutoff:]

	var perm Permission
	targetComponents := target.Components()
	for _, entry := range contributing {
		dirComponents := entry.dir.Components()
		relPath := strings.Join(targetComponents[len(dirComponents):], "/")
		for _, rule := range entry.pf.Rules {
			matched, merr := matchGlob(rule.Pattern, relPath)
			if merr != nil || !matched {
				continue
			}
			for _, t := range tiers {
				principals := rule.Access.forTier(t)
				if containsPrincipal(principals, principal) {
					perm.set(t, rule.allow())
				}
			}
		}
	}

	perm.closure()

	if principal == owner {
		perm.Admin = true
		perm.closure()
	}

	return perm, nil
}

func containsPrincipal(principals []string, principal string) bool {
	for _, p := range principals {
		if p == "*" || p == principal {
			return true
		}
	}
	return false
}
