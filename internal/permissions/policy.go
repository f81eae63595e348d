package permissions

import (
	"gopkg.in/yaml.v3"
)

// Tier is one of the four permission tiers, ordered from weakest to
// strongest: Read < Create < Write < Admin.
type Tier int

const (
	Read Tier = iota
	Create
	Write
	Admin
)

var tiers = [...]Tier{Read, Create, Write, Admin}

func (t Tier) String() string {
	switch t {
	case Read:
		return "read"
	case Create:
		return "create"
	case Write:
		return "write"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

// accessMap lists, per tier, the principals granted that tier by a rule.
type accessMap struct {
	Read   []string `yaml:"read"`
	Create []string `yaml:"create"`
	Write  []string `yaml:"write"`
	Admin  []string `yaml:"admin"`
}

func (a accessMap) forTier(t Tier) []string {
	switch t {
	case Read:
		return a.Read
	case Create:
		return a.Create
	case Write:
		return a.Write
	case Admin:
		return a.Admin
	default:
		return nil
	}
}

// Rule is one entry of a policy file's rules list: a glob pattern, the set
// of principals granted each tier by it, and whether matching it grants
// (the default) or explicitly revokes those tiers.
//
// The on-disk schema (§6 of the design doc this package implements) does
// not carry an explicit allow/deny key in the common case; "allow" is
// therefore a pointer so that an absent key defaults to true while a rule
// author can still write "allow: false" to encode an explicit deny.
type Rule struct {
	Pattern string    `yaml:"pattern"`
	Access  accessMap `yaml:"access"`
	Allow   *bool     `yaml:"allow,omitempty"`
}

func (r Rule) allow() bool {
	if r.Allow == nil {
		return true
	}
	return *r.Allow
}

// policyFile is the parsed syft.pub.yaml schema. Unknown top-level keys are
// ignored by yaml.v3's default unmarshal behavior.
type policyFile struct {
	Terminal bool   `yaml:"terminal"`
	Rules    []Rule `yaml:"rules"`
}

// parsePolicy parses raw as a syft.pub.yaml document.
func parsePolicy(raw []byte) (*policyFile, error) {
	var pf policyFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, err
	}
	return &pf, nil
}

// legacyEntry is one rule of the older syftperm.yaml schema, which this
// package auto-converts into the policyFile shape when enabled. The legacy
// format was never itself versioned; this schema reflects the minimal
// shape needed to carry pattern, principal, and permission-list forward
// losslessly.
type legacyEntry struct {
	Pattern     string   `yaml:"pattern"`
	User        string   `yaml:"user"`
	Permissions []string `yaml:"permissions"`
}

type legacyFile struct {
	Rules []legacyEntry `yaml:"rules"`
}

// convertLegacy deterministically maps a syftperm.yaml document into the
// newer policyFile schema: each legacy entry becomes one rule with the
// same pattern, its single user placed into every tier its permission
// list names, granting (never denying).
func convertLegacy(raw []byte) (*policyFile, error) {
	var lf legacyFile
	if err := yaml.Unmarshal(raw, &lf); err != nil {
		return nil, err
	}
	pf := &policyFile{}
	for _, e := range lf.Rules {
		am := accessMap{}
		for _, p := range e.Permissions {
			switch p {
			case "read":
				am.Read = append(am.Read, e.User)
			case "create":
				am.Create = append(am.Create, e.User)
			case "write":
				am.Write = append(am.Write, e.User)
			case "admin":
				am.Admin = append(am.Admin, e.User)
			}
		}
		pf.Rules = append(pf.Rules, Rule{Pattern: e.Pattern, Access: am})
	}
	return pf, nil
}

const (
	policyFileName = "syft.pub.yaml"
	legacyFileName = "syftperm.yaml"
)
