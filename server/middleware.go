package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/zstd"
	log "github.com/sirupsen/logrus"
)

type zstdResponseWriter struct {
	http.ResponseWriter
	encoder *zstd.Encoder
}

func (w *zstdResponseWriter) Write(b []byte) (int, error) {
	return w.encoder.Write(b)
}

// ZstdMiddleware compresses responses for clients that accept zstd.
func ZstdMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Accept-Encoding")

		// only compress if the client explicitly accepts zstd
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "zstd") {
			next.ServeHTTP(w, r)
			return
		}

		encoder, err := zstd.NewWriter(w)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer encoder.Close()

		w.Header().Set("Content-Encoding", "zstd")
		w.Header().Del("Content-Length")

		next.ServeHTTP(&zstdResponseWriter{ResponseWriter: w, encoder: encoder}, r)
	})
}

// requestLogger logs one line per request through logrus.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"query":   c.Request.URL.RawQuery,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start),
		})
		if len(c.Errors) > 0 {
			entry.WithError(c.Errors.Last()).Error("request failed")
			return
		}
		entry.Debug("request")
	}
}
