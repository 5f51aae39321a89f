package fhir

import "encoding/json"

// Bundle represents a FHIR Bundle resource. Entry resources are kept as
// raw JSON so that upstream payloads pass through byte-for-byte.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type,omitempty"`
	Total        *int          `json:"total,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// NewCollectionBundle creates a collection Bundle from raw resources,
// preserving the given order.
func NewCollectionBundle(resources []json.RawMessage) *Bundle {
	entries := make([]BundleEntry, len(resources))
	for i, r := range resources {
		entries[i] = BundleEntry{Resource: r}
	}
	return &Bundle{
		ResourceType: "Bundle",
		Type:         "collection",
		Entry:        entries,
	}
}

// NewSearchsetBundle creates a searchset Bundle from raw resources with
// optional fullUrls (parallel slice, may be nil).
func NewSearchsetBundle(resources []json.RawMessage, fullURLs []string) *Bundle {
	total := len(resources)
	entries := make([]BundleEntry, len(resources))
	for i, r := range resources {
		entries[i] = BundleEntry{Resource: r}
		if fullURLs != nil && i < len(fullURLs) {
			entries[i].FullURL = fullURLs[i]
		}
	}
	return &Bundle{
		ResourceType: "Bundle",
		Type:         "searchset",
		Total:        &total,
		Entry:        entries,
	}
}

// Resources returns the entry resources of a bundle in order, skipping
// empty entries.
func (b *Bundle) Resources() []json.RawMessage {
	out := make([]json.RawMessage, 0, len(b.Entry))
	for _, e := range b.Entry {
		if len(e.Resource) > 0 {
			out = append(out, e.Resource)
		}
	}
	return out
}
