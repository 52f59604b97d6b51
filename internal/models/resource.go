package models

import "fmt"

// ResourceKind selects which per-game market resource a backfill collects
type ResourceKind string

const (
	ResourceGameLines   ResourceKind = "lines"
	ResourcePlayerProps ResourceKind = "props"
)

// ParseResourceKind validates a resource kind name
func ParseResourceKind(name string) (ResourceKind, error) {
	switch ResourceKind(name) {
	case ResourceGameLines, ResourcePlayerProps:
		return ResourceKind(name), nil
	default:
		return "", fmt.Errorf("unknown resource kind %q (expected %q or %q)", name, ResourceGameLines, ResourcePlayerProps)
	}
}
