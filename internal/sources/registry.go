package sources

import (
	"fmt"
	"strings"
)

// Source is one registered newsletter sender.
type Source struct {
	Address string `json:"sender_email"`
	Name    string `json:"custom_name"`
}

// Registry maps sender addresses to display names in registration order.
// Lookups are case-insensitive on the address.
type Registry struct {
	entries []Source
	index   map[string]int
}

// NewRegistry builds a registry, rejecting blank or duplicate addresses.
func NewRegistry(entries []Source) (*Registry, error) {
	r := &Registry{index: make(map[string]int, len(entries))}
	for _, entry := range entries {
		if err := r.add(entry); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(entry Source) error {
	address := strings.TrimSpace(entry.Address)
	if address == "" {
		return fmt.Errorf("source address must not be empty")
	}
	key := normalizeAddress(address)
	if _, ok := r.index[key]; ok {
		return fmt.Errorf("source %q registered twice", address)
	}
	name := strings.TrimSpace(entry.Name)
	r.index[key] = len(r.entries)
	r.entries = append(r.entries, Source{Address: address, Name: name})
	return nil
}

// Merge returns a registry holding r's entries followed by any entries from
// extra whose address is not already registered.
func (r *Registry) Merge(extra []Source) *Registry {
	merged := &Registry{index: make(map[string]int, len(r.entries)+len(extra))}
	for _, entry := range r.entries {
		_ = merged.add(entry)
	}
	for _, entry := range extra {
		if strings.TrimSpace(entry.Address) == "" {
			continue
		}
		if _, ok := merged.index[normalizeAddress(entry.Address)]; ok {
			continue
		}
		_ = merged.add(entry)
	}
	return merged
}

// Lookup returns the display name registered for address.
func (r *Registry) Lookup(address string) (string, bool) {
	idx, ok := r.index[normalizeAddress(address)]
	if !ok {
		return "", false
	}
	return r.entries[idx].Name, true
}

// DisplayName returns the chapter title for address, falling back to the
// address itself when no name is registered.
func (r *Registry) DisplayName(address string) string {
	if name, ok := r.Lookup(address); ok && name != "" {
		return name
	}
	return strings.TrimSpace(address)
}

// Position returns the registration index of address, or -1.
func (r *Registry) Position(address string) int {
	if idx, ok := r.index[normalizeAddress(address)]; ok {
		return idx
	}
	return -1
}

// Senders lists the registered addresses in registration order.
func (r *Registry) Senders() []string {
	out := make([]string, len(r.entries))
	for i, entry := range r.entries {
		out[i] = entry.Address
	}
	return out
}

// Entries returns a copy of the registry contents.
func (r *Registry) Entries() []Source {
	return append([]Source(nil), r.entries...)
}

// Len reports the number of registered senders.
func (r *Registry) Len() int {
	return len(r.entries)
}

// normalizeAddress strips an optional display-name wrapper ("Name <a@b>")
// and lowercases the address.
func normalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	if open := strings.LastIndex(address, "<"); open >= 0 {
		if closeIdx := strings.LastIndex(address, ">"); closeIdx > open {
			address = address[open+1 : closeIdx]
		}
	}
	return strings.ToLower(strings.TrimSpace(address))
}
