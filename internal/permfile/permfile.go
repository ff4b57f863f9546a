// Package permfile loads permission grants from a YAML file:
//
//	default: [cmd.help, cmd.roll]
//	groups:
//	  admin: ["*"]
//	  mod:   [cmd.teleport.*, -cmd.teleport.others]
//	actors:
//	  Alice:
//	    groups: [mod]
//	    grants: [cmd.bypass]
//
// A grant ending in ".*" covers every permission below it; "*" covers all.
// A grant starting with "-" denies, and denials win over grants.
package permfile

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/keshon/cmdmux/pkg/cmd"
	"gopkg.in/yaml.v3"
)

// Namespace derives stable actor ids from names listed in the file.
var Namespace = uuid.MustParse("0b7c6f3e-5f0e-4c1a-9a55-6d1b8f1f7a10")

// ActorEntry is one actor's grants.
type ActorEntry struct {
	ID     string   `yaml:"id,omitempty"`
	Groups []string `yaml:"groups,omitempty"`
	Grants []string `yaml:"grants,omitempty"`
}

// File is the parsed YAML document.
type File struct {
	Default []string              `yaml:"default,omitempty"`
	Groups  map[string][]string   `yaml:"groups,omitempty"`
	Actors  map[string]ActorEntry `yaml:"actors,omitempty"`
}

// group looks name up exactly, then case-insensitively.
func (f File) group(name string) ([]string, bool) {
	if gs, ok := f.Groups[name]; ok {
		return gs, true
	}
	for k, gs := range f.Groups {
		if strings.EqualFold(k, name) {
			return gs, true
		}
	}
	return nil, false
}

// Permissions answers permission queries from a File. It is safe for
// concurrent use and can be reloaded in place.
type Permissions struct {
	path string
	mu   sync.RWMutex
	file File
}

var _ cmd.Permissions = (*Permissions)(nil)

// Load reads path. A missing file yields an empty grant set.
func Load(path string) (*Permissions, error) {
	p := &Permissions{path: path}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Parse builds Permissions from YAML bytes.
func Parse(data []byte) (*Permissions, error) {
	f, err := decode(data)
	if err != nil {
		return nil, err
	}
	return &Permissions{file: f}, nil
}

func decode(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse permissions: %w", err)
	}
	for group, grants := range f.Groups {
		for _, g := range grants {
			if strings.TrimSpace(strings.TrimPrefix(g, "-")) == "" {
				return File{}, fmt.Errorf("parse permissions: empty grant in group %q", group)
			}
		}
	}
	for name, a := range f.Actors {
		for _, g := range a.Groups {
			if _, ok := f.group(g); !ok {
				return File{}, fmt.Errorf("parse permissions: actor %q references unknown group %q", name, g)
			}
		}
	}
	return f, nil
}

// Reload re-reads the file Load was given.
func (p *Permissions) Reload() error {
	if p.path == "" {
		return nil
	}
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		data = nil
	} else if err != nil {
		return fmt.Errorf("read permissions: %w", err)
	}
	f, err := decode(data)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.file = f
	p.mu.Unlock()
	return nil
}

// Save writes f to path as YAML.
func Save(path string, f File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// HasPermission implements cmd.Permissions.
func (p *Permissions) HasPermission(a cmd.Actor, perm string) bool {
	return Allows(p.Grants(a), perm)
}

// Grants returns the effective grant list of a: defaults, then its groups,
// then its own grants. Actors are matched by id, then by name.
func (p *Permissions) Grants(a cmd.Actor, extraGroups ...string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	grants := append([]string(nil), p.file.Default...)
	entry, ok := p.entry(a)
	groups := append(append([]string(nil), extraGroups...), entry.Groups...)
	for _, g := range groups {
		gs, _ := p.file.group(g)
		grants = append(grants, gs...)
	}
	if ok {
		grants = append(grants, entry.Grants...)
	}
	return grants
}

func (p *Permissions) entry(a cmd.Actor) (ActorEntry, bool) {
	for name, e := range p.file.Actors {
		if e.ID != "" && e.ID == a.ID {
			return e, true
		}
		if e.ID == "" && ActorID(name) == a.ID {
			return e, true
		}
	}
	for name, e := range p.file.Actors {
		if strings.EqualFold(name, a.Name) {
			return e, true
		}
	}
	return ActorEntry{}, false
}

// Actors lists the actors named in the file, sorted by name.
func (p *Permissions) Actors() []cmd.Actor {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]cmd.Actor, 0, len(p.file.Actors))
	for name, e := range p.file.Actors {
		id := e.ID
		if id == "" {
			id = ActorID(name)
		}
		out = append(out, cmd.Actor{ID: id, Name: name, Interactive: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ActorID is the stable id of an actor known only by name.
func ActorID(name string) string {
	return uuid.NewSHA1(Namespace, []byte(strings.ToLower(name))).String()
}

// Allows reports whether grants cover perm. An empty perm is always allowed.
func Allows(grants []string, perm string) bool {
	if perm == "" {
		return true
	}
	allowed := false
	for _, g := range grants {
		if deny, ok := strings.CutPrefix(g, "-"); ok {
			if covers(deny, perm) {
				return false
			}
			continue
		}
		if covers(g, perm) {
			allowed = true
		}
	}
	return allowed
}

func covers(grant, perm string) bool {
	grant = strings.ToLower(strings.TrimSpace(grant))
	perm = strings.ToLower(perm)
	switch {
	case grant == "*":
		return true
	case strings.HasSuffix(grant, ".*"):
		base := strings.TrimSuffix(grant, "*")
		return strings.HasPrefix(perm, base) || perm == strings.TrimSuffix(base, ".")
	default:
		return grant == perm
	}
}
