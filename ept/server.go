package ept

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"gocloud.dev/gcerrors"
)

const defaultRootTemplate = "https://na-c.entwine.io/%s"

// Server is the HTTP facade over a Registry, reproducing the two routes
// spec.md §6 names: GET /info/{name} and GET /read/{name}/{bbox}. It is
// Component L and is embedded unmodified by the Caddy plugin (Component M).
type Server struct {
	registry      *Registry
	logger        *log.Logger
	metrics       *Metrics
	rootTemplate  string
	cors          string
	router        *mux.Router
}

// NewServer builds a Server backed by its own Registry. rootTemplate is a
// printf template with one %s placeholder for the dataset name,
// configurable via EPT_ROOT_TEMPLATE; it defaults to the original
// source's hard-coded https://na-c.entwine.io/{} host, promoted here to a
// setting rather than a compiled-in constant.
func NewServer(logger *log.Logger, tileConcurrency int, rootTemplate string, cors string) *Server {
	if rootTemplate == "" {
		rootTemplate = defaultRootTemplate
	}
	s := &Server{
		registry:     NewRegistry(tileConcurrency),
		logger:       logger,
		metrics:      NewMetrics("server", logger),
		rootTemplate: rootTemplate,
		cors:         cors,
	}
	s.registry.SetMetrics(s.metrics)
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/info/{name}", s.handleInfo).Methods(http.MethodGet)
	r.HandleFunc("/read/{name}/{bbox}", s.handleRead).Methods(http.MethodGet)
	return r
}

// Handler returns the server's http.Handler, wrapped with gorilla/handlers
// request logging and, when a CORS origin is configured, CORS.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	if s.cors != "" {
		h = handlers.CORS(handlers.AllowedOrigins([]string{s.cors}))(h)
	}
	return handlers.LoggingHandler(s.logger.Writer(), h)
}

func (s *Server) resolveAddress(name string) string {
	return fmt.Sprintf(s.rootTemplate, name)
}

// RegistryForScheduler exposes the Server's backing Registry so a Scheduler
// can sweep it for idle resources without the server package depending on
// the scheduler's types.
func (s *Server) RegistryForScheduler() *Registry {
	return s.registry
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	tracker := s.metrics.startRequest()
	name := mux.Vars(r)["name"]

	address := s.resolveAddress(name)
	s.metrics.registryHit(s.registry.Peek(address))
	resource, err := s.registry.Get(r.Context(), address)
	if err != nil {
		s.writeError(w, err, tracker, "info")
		return
	}

	info, err := resource.Info(r.Context())
	if err != nil {
		s.writeError(w, err, tracker, "info")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(info.Raw)
	tracker.finish("info", "200")
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	tracker := s.metrics.startRequest()
	vars := mux.Vars(r)
	name := vars["name"]
	bbox := vars["bbox"]

	params, err := parseQueryParams(r, bbox)
	if err != nil {
		s.writeError(w, err, tracker, "read")
		return
	}

	address := s.resolveAddress(name)
	s.metrics.registryHit(s.registry.Peek(address))
	resource, err := s.registry.Get(r.Context(), address)
	if err != nil {
		s.writeError(w, err, tracker, "read")
		return
	}

	pc, err := resource.Query(r.Context(), params)
	if err != nil {
		s.writeError(w, err, tracker, "read")
		return
	}

	out, err := encodeLAZ(pc)
	if err != nil {
		s.writeError(w, &DecodeFailedError{Key: name, Cause: err}, tracker, "read")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	_, _ = w.Write(out)
	tracker.finish("read", "200")
}

// parseQueryParams parses the "{xmin},{ymin},{xmax},{ymax}" path segment
// plus optional zmin/zmax/depth-begin/depth-end query string parameters.
func parseQueryParams(r *http.Request, bbox string) (QueryParams, error) {
	parts := strings.Split(bbox, ",")
	if len(parts) != 4 {
		return QueryParams{}, &InvalidBoundsError{Axis: "bbox", Min: 0, Max: 0}
	}

	coords := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return QueryParams{}, &InvalidBoundsError{Axis: "bbox", Min: 0, Max: 0}
		}
		coords[i] = v
	}

	bounds2D, err := NewBoundingBox2D(coords[0], coords[1], coords[2], coords[3])
	if err != nil {
		return QueryParams{}, err
	}

	depthRange := UnboundedDepthRange()
	q := r.URL.Query()
	if beginStr := q.Get("depth-begin"); beginStr != "" {
		begin, err := strconv.Atoi(beginStr)
		if err != nil {
			return QueryParams{}, &InvalidDepthError{}
		}
		depthRange.DepthBegin = begin
	}
	if endStr := q.Get("depth-end"); endStr != "" {
		end, err := strconv.Atoi(endStr)
		if err != nil {
			return QueryParams{}, &InvalidDepthError{}
		}
		if end >= 0 {
			depthRange = NewDepthRange(depthRange.DepthBegin, end)
		}
	}

	if zminStr, zmaxStr := q.Get("zmin"), q.Get("zmax"); zminStr != "" && zmaxStr != "" {
		zmin, err1 := strconv.ParseFloat(zminStr, 64)
		zmax, err2 := strconv.ParseFloat(zmaxStr, 64)
		if err1 != nil || err2 != nil {
			return QueryParams{}, &InvalidBoundsError{Axis: "z", Min: zmin, Max: zmax}
		}
		bounds3D, err := NewBoundingBox3D(bounds2D.Xmin(), bounds2D.Ymin(), zmin, bounds2D.Xmax(), bounds2D.Ymax(), zmax)
		if err != nil {
			return QueryParams{}, err
		}
		return NewQueryParams3D(bounds3D, depthRange), nil
	}

	return NewQueryParams2D(bounds2D, depthRange), nil
}

func (s *Server) writeError(w http.ResponseWriter, err error, tracker *requestTracker, route string) {
	status := http.StatusInternalServerError

	var invalidBounds *InvalidBoundsError
	var invalidDepth *InvalidDepthError
	var unknownScheme *UnknownSchemeError
	var fetchFailed *FetchFailedError
	var decodeFailed *DecodeFailedError

	switch {
	case errors.As(err, &invalidBounds), errors.As(err, &invalidDepth), errors.As(err, &unknownScheme):
		status = http.StatusBadRequest
	case errors.As(err, &fetchFailed):
		if isNotFoundCause(fetchFailed.Cause) {
			status = http.StatusNotFound
		} else {
			status = http.StatusInternalServerError
		}
	case errors.As(err, &decodeFailed):
		status = http.StatusBadGateway
	}

	s.logger.Printf("%s request failed: %v", route, err)
	http.Error(w, err.Error(), status)
	tracker.finish(route, strconv.Itoa(status))
}

// isNotFoundCause reports whether a FetchFailedError's underlying cause
// signals "object does not exist" rather than some other backend failure,
// across all three Bucket implementations: HTTPBucket's httpStatusError,
// FileBucket's os.PathError, and BucketAdapter's gocloud.dev error codes.
func isNotFoundCause(cause error) bool {
	var httpErr *httpStatusError
	if errors.As(cause, &httpErr) {
		return httpErr.status == http.StatusNotFound
	}
	if os.IsNotExist(cause) {
		return true
	}
	return gcerrors.Code(cause) == gcerrors.NotFound
}
