package serv

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dosco/graphjin/populate/v3/core"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

// writeJSON encodes data as JSON and writes to response, handling errors
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "encoding error", http.StatusInternalServerError)
	}
}

// writeJSONError writes a JSON error response
func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDocs writes documents as relaxed extended JSON so object ids and
// dates survive a round trip back into a filter.
func writeDocs(w http.ResponseWriter, data any) {
	b, err := bson.MarshalExtJSON(bson.D{{Key: "data", Value: data}}, false, false)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b) //nolint:errcheck
}

func errorStatus(err error) int {
	switch {
	case core.IsRequestError(err):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotInitialized):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.zlog.Error("request failed",
			zap.String("request-id", requestIDFrom(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeJSONError(w, status, err.Error())
}

func readQuery(r *http.Request, schema string) (core.Query, error) {
	if r.Body == nil {
		return core.Query{}, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return core.Query{}, errors.Wrap(err, "read body")
	}
	q, err := core.ParseQueryJSON(body)
	return q, core.WithSchema(err, schema)
}

// populateHandler runs a query and returns the reconciled documents.
// With ?one=true the first document (or null) is returned.
// POST /api/v1/populate/{schema}
func (s1 *HttpService) populateHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := s1.Load().(*service)
		schema := chi.URLParam(r, "schema")

		q, err := readQuery(r, schema)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		one, _ := strconv.ParseBool(r.URL.Query().Get("one"))
		start := time.Now()

		var data any
		if one {
			data, err = s.engine.FindOne(r.Context(), schema, q)
		} else {
			data, err = s.engine.Find(r.Context(), schema, q)
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.zlog.Debug("populate",
			zap.String("request-id", requestIDFrom(r.Context())),
			zap.String("schema", schema),
			zap.Duration("duration", time.Since(start)))

		writeDocs(w, data)
	})
}

// explainHandler returns the compiled pipeline without running it.
// GET|POST /api/v1/explain/{schema}
func (s1 *HttpService) explainHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := s1.Load().(*service)
		schema := chi.URLParam(r, "schema")

		q, err := readQuery(r, schema)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		c, err := s.engine.Explain(schema, q)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	})
}

// schemasHandler lists the configured schemas and relations.
// GET /api/v1/schemas
func (s1 *HttpService) schemasHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := s1.Load().(*service)
		writeJSON(w, http.StatusOK, s.engine.Schemas())
	})
}

// healthCheckHandler pings the database
func healthCheckHandler(s1 *HttpService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := s1.Load().(*service)

		if s.conn != nil {
			if err := s.conn.Ping(r.Context(), s.conf.DB.PingTimeout); err != nil {
				s.log.Errorf("health check: %s", err)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK")) //nolint:errcheck
	})
}
