package worker

import "net/url"

// domainGroup is a run of targets sharing one registrable host.
type domainGroup struct {
	domain  string
	targets []string
}

// groupByDomain buckets targets by host while preserving the order of first
// appearance, so browser sessions are shared across same-site pages without
// reordering the campaign's URL list. Unparseable URLs group under "".
func groupByDomain(targets []string) []domainGroup {
	index := make(map[string]int)
	groups := make([]domainGroup, 0, 4)
	for _, t := range targets {
		host := hostOf(t)
		i, ok := index[host]
		if !ok {
			i = len(groups)
			index[host] = i
			groups = append(groups, domainGroup{domain: host})
		}
		groups[i].targets = append(groups[i].targets, t)
	}
	return groups
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
