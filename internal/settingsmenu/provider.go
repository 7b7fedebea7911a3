package settingsmenu

import (
	"context"

	"github.com/smallbiznis/console/internal/edition"
)

// LinksProvider supplies the enterprise link set.
type LinksProvider interface {
	Links(ctx context.Context) (Links, error)
}

type communityProvider struct{}

func (communityProvider) Links(context.Context) (Links, error) {
	return Links{}, nil
}

type enterpriseProvider struct {
	features FeatureSet
}

// Links returns the enterprise links the license grants.
func (p enterpriseProvider) Links(context.Context) (Links, error) {
	all := EnterpriseLinks()
	return Links{
		Global: licensedLinks(all.Global, p.features),
		Admin:  licensedLinks(all.Admin, p.features),
	}, nil
}

func licensedLinks(links []Link, features FeatureSet) []Link {
	out := make([]Link, 0, len(links))
	for _, link := range links {
		if link.Feature == "" || features.HasFeature(link.Feature) {
			out = append(out, link)
		}
	}
	return out
}

// NewLinksProvider picks the provider variant for the running edition.
func NewLinksProvider(ed edition.Edition) LinksProvider {
	if ed.IsEnterprise() {
		return enterpriseProvider{features: ed}
	}
	return communityProvider{}
}
