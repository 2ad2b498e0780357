package auth

import (
	"net/http"
	"strings"
)

// routeRule grants access to requests under prefix whose path contains
// fragment. An empty fragment matches every path under prefix.
type routeRule struct {
	prefix   string
	fragment string
	role     Role
}

var defaultRules = []routeRule{
	{prefix: "/api/v1/devices/", fragment: "/export.", role: RoleOperator},
	{prefix: "/api/v1/alerts", role: RoleViewer},
}

// Policy maps requests to the role they require.
type Policy struct {
	exempt   map[string]struct{}
	prefixes []string
	rules    []routeRule
}

// NewDefaultPolicy builds the dashboard policy. Paths in exemptPaths and
// anything under exemptPrefixes skip authentication.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	exempt := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		exempt[path] = struct{}{}
	}
	return Policy{
		exempt:   exempt,
		prefixes: append([]string(nil), exemptPrefixes...),
		rules:    defaultRules,
	}
}

// IsExempt reports whether r skips authentication.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	path := r.URL.Path
	if _, ok := p.exempt[path]; ok {
		return true
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// RequiredRole resolves the minimum role for r. Unknown /api/ routes need
// viewer for reads and operator for writes; non-API paths need nothing.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	for _, rule := range p.rules {
		if strings.HasPrefix(path, rule.prefix) && strings.Contains(path, rule.fragment) {
			return rule.role, true
		}
	}
	if !strings.HasPrefix(path, "/api/") {
		return "", false
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return RoleViewer, true
	default:
		return RoleOperator, true
	}
}
