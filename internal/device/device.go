// Package device holds the device profiles a SERP can be requested as.
//
// Google varies both content and markup by client class, so each profile
// pairs a User-Agent pool with the selector of its result containers.
package device

import (
	"fmt"
	"math/rand/v2"
	"net/http"

	"github.com/FranksOps/serprank/pkg/useragent"
)

// Name identifies a device profile.
type Name string

const (
	Desktop Name = "desktop"
	Mobile  Name = "mobile"
)

// ParseName validates a profile name.
func ParseName(s string) (Name, error) {
	switch Name(s) {
	case Desktop, Mobile:
		return Name(s), nil
	}
	return "", fmt.Errorf("unknown device profile %q", s)
}

// Result container selectors for Google's desktop and mobile layouts.
const (
	DesktopSelector = "div.yuRUbf"
	MobileSelector  = "div.P8ujBc"
)

// Profile is the static configuration of one device class.
type Profile struct {
	Name       Name
	UserAgents []string
	Selector   string
}

// DefaultProfiles returns the built-in desktop and mobile profiles.
func DefaultProfiles() []Profile {
	return []Profile{
		{Name: Desktop, UserAgents: useragent.DesktopPool, Selector: DesktopSelector},
		{Name: Mobile, UserAgents: useragent.MobilePool, Selector: MobileSelector},
	}
}

type entry struct {
	profile Profile
	pool    *useragent.Pool
}

// Registry resolves headers and selectors per profile. It is immutable once
// built and safe for concurrent use.
type Registry struct {
	entries map[Name]entry
}

// NewRegistry builds a registry from profiles. Every profile must carry at
// least one User-Agent and a selector. rng drives User-Agent selection; pass a
// seeded generator for reproducible draws or nil for the global source.
func NewRegistry(profiles []Profile, rng *rand.Rand) (*Registry, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("registry: no device profiles")
	}
	r := &Registry{entries: make(map[Name]entry, len(profiles))}
	for _, p := range profiles {
		if _, err := ParseName(string(p.Name)); err != nil {
			return nil, fmt.Errorf("registry: %w", err)
		}
		if len(p.UserAgents) == 0 {
			return nil, fmt.Errorf("registry: profile %s has no user agents", p.Name)
		}
		if p.Selector == "" {
			return nil, fmt.Errorf("registry: profile %s has no selector", p.Name)
		}
		uas := append([]string(nil), p.UserAgents...)
		p.UserAgents = uas
		r.entries[p.Name] = entry{profile: p, pool: useragent.NewPool(uas, rng)}
	}
	return r, nil
}

// Profile returns the profile registered under name. Its User-Agents are a
// copy; changing them does not affect the registry.
func (r *Registry) Profile(name Name) (Profile, error) {
	e, ok := r.entries[name]
	if !ok {
		return Profile{}, fmt.Errorf("registry: profile %s not registered", name)
	}
	p := e.profile
	p.UserAgents = e.pool.GetAll()
	return p, nil
}

// HeadersFor returns request headers for one fetch. The User-Agent is drawn
// anew on every call so consecutive requests may differ.
func (r *Registry) HeadersFor(name Name) (http.Header, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("registry: profile %s not registered", name)
	}
	h := make(http.Header)
	h.Set("User-Agent", e.pool.GetRandom())
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "en-GB,en;q=0.5")
	return h, nil
}

// SelectorFor returns the result container selector for name.
func (r *Registry) SelectorFor(name Name) (string, error) {
	e, ok := r.entries[name]
	if !ok {
		return "", fmt.Errorf("registry: profile %s not registered", name)
	}
	return e.profile.Selector, nil
}
