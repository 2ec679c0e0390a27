package catalog

import (
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultProfileName is the reserved fallback profile. The catalog refuses to
// load without it.
const DefaultProfileName = "default"

// PatternRule is a single field extraction pattern with a confidence weight.
type PatternRule struct {
	Pattern string  `yaml:"pattern"`
	Flags   string  `yaml:"flags,omitempty"` // subset of "ims"
	Weight  float64 `yaml:"weight"`

	re *regexp.Regexp
}

// Regexp returns the compiled pattern. Only valid after catalog validation.
func (r *PatternRule) Regexp() *regexp.Regexp {
	return r.re
}

// compile builds the regex with flags applied and checks the weight
// invariant: weight must be in (0, 2].
func (r *PatternRule) compile(profile, field string) error {
	if r.Weight <= 0 || r.Weight > 2 {
		return eris.Errorf("catalog: profile %q field %q: weight %.2f outside (0, 2]", profile, field, r.Weight)
	}

	pattern := r.Pattern
	if r.Flags != "" {
		for _, f := range r.Flags {
			switch f {
			case 'i', 'm', 's':
			default:
				return eris.Errorf("catalog: profile %q field %q: unsupported flag %q", profile, field, string(f))
			}
		}
		pattern = "(?" + r.Flags + ")" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return eris.Wrapf(err, "catalog: profile %q field %q: pattern does not compile", profile, field)
	}
	r.re = re
	return nil
}

// Profile is a named bundle of vendor routing signatures and per-field
// extraction rules. Immutable once loaded into a snapshot.
type Profile struct {
	Name          string                 `yaml:"name"`
	Priority      int                    `yaml:"priority"`
	Signatures    []string               `yaml:"signatures,omitempty"`
	HeaderPattern string                 `yaml:"header_pattern,omitempty"`
	Fields        map[string]PatternRule `yaml:"fields"`

	headerRe *regexp.Regexp
}

// HeaderRegexp returns the compiled header pattern, or nil if none is set.
func (p *Profile) HeaderRegexp() *regexp.Regexp {
	return p.headerRe
}

// validate compiles all patterns and normalizes signatures to lower case.
// knownFields guards against typo'd field keys at load time.
func (p *Profile) validate(knownFields map[string]bool) error {
	if p.Name == "" {
		return eris.New("catalog: profile with empty name")
	}
	if len(p.Fields) == 0 {
		return eris.Errorf("catalog: profile %q defines no fields", p.Name)
	}

	for i, sig := range p.Signatures {
		p.Signatures[i] = strings.ToLower(strings.TrimSpace(sig))
	}

	if p.HeaderPattern != "" {
		re, err := regexp.Compile(p.HeaderPattern)
		if err != nil {
			return eris.Wrapf(err, "catalog: profile %q: header pattern does not compile", p.Name)
		}
		p.headerRe = re
	}

	for field, rule := range p.Fields {
		if !knownFields[field] {
			return eris.Errorf("catalog: profile %q references unknown field %q", p.Name, field)
		}
		if err := rule.compile(p.Name, field); err != nil {
			return err
		}
		p.Fields[field] = rule
	}
	return nil
}

// Snapshot is an immutable, validated view of the catalog at a version.
// Routing and extraction hold one snapshot for the duration of a run.
type Snapshot struct {
	Version  int
	profiles map[string]*Profile
	ordered  []*Profile
}

// Profile returns the named profile, or nil.
func (s *Snapshot) Profile(name string) *Profile {
	return s.profiles[name]
}

// Default returns the reserved default profile.
func (s *Snapshot) Default() *Profile {
	return s.profiles[DefaultProfileName]
}

// Profiles returns all profiles ordered by priority (descending), then name.
func (s *Snapshot) Profiles() []*Profile {
	return s.ordered
}

// Names returns all profile names in the snapshot's deterministic order.
func (s *Snapshot) Names() []string {
	names := make([]string, len(s.ordered))
	for i, p := range s.ordered {
		names[i] = p.Name
	}
	return names
}

func newSnapshot(version int, profiles []*Profile, knownFields map[string]bool) (*Snapshot, error) {
	snap := &Snapshot{
		Version:  version,
		profiles: make(map[string]*Profile, len(profiles)),
	}
	for _, p := range profiles {
		if err := p.validate(knownFields); err != nil {
			return nil, err
		}
		if _, dup := snap.profiles[p.Name]; dup {
			return nil, eris.Errorf("catalog: duplicate profile %q", p.Name)
		}
		snap.profiles[p.Name] = p
		snap.ordered = append(snap.ordered, p)
	}

	if snap.profiles[DefaultProfileName] == nil {
		return nil, eris.Errorf("catalog: reserved %q profile missing", DefaultProfileName)
	}

	sort.Slice(snap.ordered, func(i, j int) bool {
		if snap.ordered[i].Priority != snap.ordered[j].Priority {
			return snap.ordered[i].Priority > snap.ordered[j].Priority
		}
		return snap.ordered[i].Name < snap.ordered[j].Name
	})

	return snap, nil
}
