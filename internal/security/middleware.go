package security

import "net/http"

// Filter wraps next with the loopback-only security posture (invariant 9):
// any request whose remote address is not loopback is rejected 403, and any
// request to toolPath carrying an Origin header is rejected 403 regardless
// of origin.
func Filter(port int, toolPath string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAllowedRemoteAddr(r.RemoteAddr) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if !IsAllowedHost(r.Host, port) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if r.URL.Path == toolPath && r.Header.Get("Origin") != "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
