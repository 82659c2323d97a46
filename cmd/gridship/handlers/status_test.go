package handlers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gridship/gridship/internal/repository"
)

func TestRenderStatus(t *testing.T) {
	rec := repository.ClusterRecord{
		Name:         "grid",
		FrontendKind: "frontend",
		Groups: map[string][]repository.NodeRecord{
			"compute": {
				{Name: "compute001", Kind: "compute", InstanceID: "i-1", PreferredIP: "10.0.0.5", IPs: []string{"10.0.0.5", "203.0.113.9"}},
				{Name: "compute002", Kind: "compute"},
			},
			"frontend": {
				{Name: "frontend001", Kind: "frontend", InstanceID: "i-2", IPs: []string{"203.0.113.7"}},
			},
		},
	}

	var b strings.Builder
	renderStatus(&b, rec)
	out := b.String()

	assert.Contains(t, out, "Cluster: grid")
	assert.Contains(t, out, "Frontend kind: frontend")
	assert.Contains(t, out, "compute001")
	assert.Contains(t, out, "10.0.0.5,203.0.113.9")
	assert.Contains(t, out, "3 node(s) in 2 kind(s)")

	// A node that never launched renders placeholders, not empty columns.
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "compute002") {
			assert.Contains(t, line, "-")
		}
	}
}
