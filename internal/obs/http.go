package obs

import (
	"net/http"
	"time"
)

// statusRecorder remembers the status and size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.bytes += int64(n)
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// AccessLogMiddleware logs one http_access event per request at debug level.
// Fixture servers use it so a failing browser run shows what the page fetched.
func AccessLogMiddleware(pkg string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		From(r.Context()).With("pkg", pkg).Debug("http_access",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"content_type", rec.Header().Get("Content-Type"),
			"resp_bytes", rec.bytes,
			"dur_ms", float64(time.Since(start).Microseconds())/1000.0,
		)
	})
}
