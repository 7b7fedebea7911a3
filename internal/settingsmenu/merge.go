package settingsmenu

// EnterpriseAdminFirst orders administration panel links with enterprise
// entries ahead of community ones.
func EnterpriseAdminFirst(community, enterprise Links) []Link {
	out := make([]Link, 0, len(enterprise.Admin)+len(community.Admin))
	out = append(out, cloneLinks(enterprise.Admin)...)
	return append(out, cloneLinks(community.Admin)...)
}

// CommunityGlobalFirst orders global links with community entries ahead of
// enterprise ones. The asymmetry with EnterpriseAdminFirst is intentional.
func CommunityGlobalFirst(community, enterprise Links) []Link {
	out := make([]Link, 0, len(community.Global)+len(enterprise.Global))
	out = append(out, cloneLinks(community.Global)...)
	return append(out, cloneLinks(enterprise.Global)...)
}

// MergeLinks combines both link sets. It is the feature switch combiner for
// the settings links.
func MergeLinks(community, enterprise Links) Links {
	return Links{
		Global: CommunityGlobalFirst(community, enterprise),
		Admin:  EnterpriseAdminFirst(community, enterprise),
	}
}
