// Package filter decides whether a notification from a given application
// should be forwarded, based on configured allow and deny lists.
package filter

// ShouldForward reports whether a notification from appName passes the
// configured filter. A non-empty allow list takes precedence: only listed
// apps are forwarded and the deny list is ignored. Otherwise a non-empty
// deny list excludes its members. With both lists empty everything is
// forwarded. Matching is exact and case-sensitive.
func ShouldForward(appName string, allow, deny []string) bool {
	if len(allow) > 0 {
		return contains(allow, appName)
	}
	if len(deny) > 0 {
		return !contains(deny, appName)
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
