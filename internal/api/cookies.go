package api

import (
	"net"
	"net/http"
	"strings"

	"socialize/internal/session"
)

const SessionCookieName = "session_id"

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	opts := s.config.SessionCookieOptions()
	writeSessionCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(opts.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	opts := s.config.SessionCookieOptions()
	writeSessionCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

// writeSessionCookie drops any session cookie already queued on the response,
// so a response carries at most one session_id Set-Cookie.
func writeSessionCookie(w http.ResponseWriter, cookie *http.Cookie) {
	header := w.Header()
	var kept []string
	for _, v := range header.Values("Set-Cookie") {
		if !strings.HasPrefix(v, SessionCookieName+"=") {
			kept = append(kept, v)
		}
	}
	header.Del("Set-Cookie")
	for _, v := range kept {
		header.Add("Set-Cookie", v)
	}
	http.SetCookie(w, cookie)
}

func sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// clientIP expects middleware.RealIP to have run.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func clientMeta(r *http.Request) session.ClientMeta {
	return session.ClientMeta{UserAgent: r.UserAgent(), IPAddress: clientIP(r)}
}
