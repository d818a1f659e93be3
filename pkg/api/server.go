// Package api serves the query service over HTTP and AWS Lambda.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/edgeflare/ragapi/pkg/httputil"
	mw "github.com/edgeflare/ragapi/pkg/httputil/middleware"
	"github.com/edgeflare/ragapi/pkg/rag"
	"go.uber.org/zap"
)

const defaultMaxQueryLength = 1000

// Querier answers a query. *rag.Service implements it.
type Querier interface {
	Query(ctx context.Context, text string) (*rag.QueryResponse, error)
}

// Counter reports the number of stored chunks, used for readiness.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

type Options struct {
	Logger         *zap.Logger
	APIKey         string   // empty disables the API key check
	CORSOrigins    []string // defaults to "*"
	MaxQueryLength int
}

type Server struct {
	router  *httputil.Router
	handler http.Handler
	querier Querier
	store   Counter
	logger  *zap.Logger
	opts    Options
}

func NewServer(querier Querier, store Counter, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxQueryLength <= 0 {
		opts.MaxQueryLength = defaultMaxQueryLength
	}

	s := &Server{
		querier: querier,
		store:   store,
		opts:    opts,
		logger:  opts.Logger,
		router: httputil.NewRouter(
			httputil.WithLogger(opts.Logger),
			httputil.WithServerOptions(func(srv *http.Server) {
				srv.ReadTimeout = 30 * time.Second
				srv.WriteTimeout = 2 * time.Minute
			}),
		),
	}
	s.registerHandlers()

	s.handler = mw.Chain(s.router,
		mw.RequestID,
		mw.LoggerWithOptions(&mw.LoggerOptions{Logger: opts.Logger}),
		mw.Recover,
		mw.CORSWithOptions(mw.CORSOrigins(opts.CORSOrigins...)),
	)
	return s
}

func (s *Server) registerHandlers() {
	s.router.HandleFunc("GET /", s.handleIndex)
	s.router.HandleFunc("GET /healthz", s.handleHealthz)

	protected := s.router.Group("")
	protected.Use(mw.VerifyAPIKey(s.opts.APIKey))
	protected.HandleFunc("POST /submit_query", s.handleSubmitQuery)
}

// Handler returns the routes wrapped in the global middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) ListenAndServe(addr string) error {
	return s.router.ListenAndServe(addr, s.handler)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.router.Shutdown(ctx)
}

// LambdaHandler adapts the server to API Gateway HTTP API (payload v2) and function URL events.
func (s *Server) LambdaHandler() func(context.Context, events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	return httpadapter.NewV2(s.handler).ProxyWithContext
}
