package settingsmenu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergePolicies(t *testing.T) {
	ce := Links{
		Global: []Link{{ID: "ce-g1"}, {ID: "ce-g2"}},
		Admin:  []Link{{ID: "ce-a1"}},
	}
	ee := Links{
		Global: []Link{{ID: "ee-g1"}},
		Admin:  []Link{{ID: "ee-a1"}, {ID: "ee-a2"}},
	}

	merged := MergeLinks(ce, ee)
	assert.Equal(t, []string{"ce-g1", "ce-g2", "ee-g1"}, ids(merged.Global))
	assert.Equal(t, []string{"ee-a1", "ee-a2", "ce-a1"}, ids(merged.Admin))

	merged.Global[0].ID = "changed"
	assert.Equal(t, "ce-g1", ce.Global[0].ID)
}

func TestMergeWithEmptyEnterprise(t *testing.T) {
	ce := CommunityLinks(nil, false)
	merged := MergeLinks(ce, Links{})
	assert.Equal(t, ids(ce.Global), ids(merged.Global))
	assert.Equal(t, ids(ce.Admin), ids(merged.Admin))
}

func ids(links []Link) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.ID)
	}
	return out
}
