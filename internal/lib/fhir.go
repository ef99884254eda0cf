package lib

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// FHIRResource represents a generic FHIR resource as a map
// We don't parse the full FHIR schema - just treat it as JSON
type FHIRResource map[string]interface{}

// GetResourceType extracts the resourceType field from a FHIR resource
func (r FHIRResource) GetResourceType() (string, error) {
	resourceType, ok := r["resourceType"]
	if !ok {
		return "", fmt.Errorf("missing resourceType field")
	}

	typeStr, ok := resourceType.(string)
	if !ok {
		return "", fmt.Errorf("resourceType is not a string")
	}

	return typeStr, nil
}

// GetID extracts the id field from a FHIR resource
func (r FHIRResource) GetID() (string, error) {
	id, ok := r["id"]
	if !ok {
		return "", nil // ID is optional in FHIR
	}

	idStr, ok := id.(string)
	if !ok {
		return "", fmt.Errorf("id is not a string")
	}

	return idStr, nil
}

// GetTotal extracts the total field of a searchset Bundle, 0 if absent
func (r FHIRResource) GetTotal() int {
	switch v := r["total"].(type) {
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return 0
	}
}

// ParseResource parses a JSON object into a FHIR resource
func ParseResource(data []byte) (FHIRResource, error) {
	var resource FHIRResource
	if err := json.Unmarshal(data, &resource); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if resource == nil {
		return nil, fmt.Errorf("document is not a JSON object")
	}
	return resource, nil
}

// CountResourceTypes counts entry[].resource.resourceType values in a Bundle.
// Best effort: invalid JSON yields no counts and malformed entries are skipped.
func CountResourceTypes(data []byte) map[string]int {
	counts := make(map[string]int)
	if !gjson.ValidBytes(data) {
		return counts
	}

	entries := gjson.GetBytes(data, "entry")
	if !entries.IsArray() {
		return counts
	}

	entries.ForEach(func(_, entry gjson.Result) bool {
		resourceType := entry.Get("resource.resourceType")
		if resourceType.Type == gjson.String && resourceType.Str != "" {
			counts[resourceType.Str]++
		}
		return true
	})

	return counts
}

// ServerInfo is the subset of a CapabilityStatement shown to the operator
type ServerInfo struct {
	Software    string
	FHIRVersion string
}

// ParseServerInfo extracts software.name and fhirVersion from a metadata response,
// using "Unknown" for anything missing
func ParseServerInfo(data []byte) ServerInfo {
	info := ServerInfo{Software: "Unknown", FHIRVersion: "Unknown"}
	if !gjson.ValidBytes(data) {
		return info
	}

	if name := gjson.GetBytes(data, "software.name"); name.Exists() && name.String() != "" {
		info.Software = name.String()
	}
	if version := gjson.GetBytes(data, "fhirVersion"); version.Exists() && version.String() != "" {
		info.FHIRVersion = version.String()
	}

	return info
}
