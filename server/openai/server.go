//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//


// Package openai serves model.Client backends behind an OpenAI-compatible
// HTTP API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/robraux/autogen/log"
	"github.com/robraux/autogen/model"
)

const (
	defaultMaxBodyBytes = 32 << 20
	defaultOwner        = "autogen"
)

// ErrModelNotFound is returned when no backend serves the requested model.
var ErrModelNotFound = errors.New("model not found")

type route struct {
	client  model.Client
	ownedBy string
}

// Server exposes chat completions, model listing and health endpoints.
type Server struct {
	router *mux.Router

	mu       sync.RWMutex
	routes   map[string]route
	fallback model.Client

	parallelism  int
	maxBodyBytes int64
}

// Option configures the Server instance.
type Option func(*Server)

// WithClient serves modelName with c. ownedBy is reported by /v1/models.
func WithClient(modelName, ownedBy string, c model.Client) Option {
	return func(s *Server) {
		if ownedBy == "" {
			ownedBy = defaultOwner
		}
		s.routes[modelName] = route{client: c, ownedBy: ownedBy}
	}
}

// WithDefaultClient serves requests for models without their own client.
func WithDefaultClient(c model.Client) Option {
	return func(s *Server) { s.fallback = c }
}

// WithBatchParallelism bounds the workers used by the batch endpoint.
func WithBatchParallelism(n int) Option {
	return func(s *Server) { s.parallelism = n }
}

// WithMaxBodyBytes limits request body size.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBodyBytes = n }
}

// New creates a server. Without WithDefaultClient, unknown models are
// rejected with 404.
func New(opts ...Option) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		routes:       make(map[string]route),
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
	})
	s.router.Use(c.Handler)
	s.registerRoutes()
	return s
}

// NewFromConfigList builds one client per config entry through the client
// registry. The first entry also serves unknown models.
func NewFromConfigList(ctx context.Context, configs []model.Config, opts ...Option) (*Server, error) {
	var base []Option
	for i, cfg := range configs {
		c, err := model.NewClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("config %d (%s): %w", i, cfg.Model, err)
		}
		if i == 0 {
			base = append(base, WithDefaultClient(c))
		}
		if cfg.Model != "" {
			base = append(base, WithClient(cfg.Model, cfg.APIType, c))
		}
	}
	return New(append(base, opts...)...), nil
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/models", s.handleListModels).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/chat/completions", s.handleChatCompletions).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/batch/chat/completions", s.handleBatch).Methods(http.MethodPost)

	// OPTIONS handlers to allow CORS pre-flight
	preflight := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
	s.router.HandleFunc("/v1/chat/completions", preflight).Methods(http.MethodOptions)
	s.router.HandleFunc("/v1/batch/chat/completions", preflight).Methods(http.MethodOptions)
}

// clientFor returns the client serving modelName.
func (s *Server) clientFor(modelName string) (model.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.routes[modelName]; ok {
		return r.client, nil
	}
	if s.fallback != nil {
		return s.fallback, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrModelNotFound, modelName)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	log.Debugf("handleListModels called: path=%s", r.URL.Path)
	s.mu.RLock()
	list := modelList{Object: "list", Data: make([]modelCard, 0, len(s.routes))}
	for name, rt := range s.routes {
		list.Data = append(list.Data, modelCard{
			ID:            name,
			Object:        "model",
			OwnedBy:       rt.ownedBy,
			ContextWindow: model.ResolveContextWindow(name),
		})
	}
	s.mu.RUnlock()
	sort.Slice(list.Data, func(i, j int) bool { return list.Data[i].ID < list.Data[j].ID })
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req model.Request
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	log.Infof("handleChatCompletions called: model=%s messages=%d stream=%t",
		req.Model, len(req.Messages), req.Stream)

	rsp, err := s.create(r.Context(), &req)
	if err != nil {
		log.Errorf("chat completion for model %s failed: %v", req.Model, err)
		writeError(w, statusCode(err), err)
		return
	}
	if req.Stream {
		writeStream(w, rsp)
		return
	}
	writeJSON(w, http.StatusOK, rsp)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var batch batchRequest
	if err := s.decode(w, r, &batch); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	log.Infof("handleBatch called: requests=%d", len(batch.Requests))

	results, err := model.CreateBatch(r.Context(), dispatcher{s}, batch.Requests, s.parallelism)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := batchResponse{Object: "list", Data: make([]batchItem, len(results))}
	for i, res := range results {
		out.Data[i] = batchItem{Index: i, Response: res.Response}
		if res.Err != nil {
			out.Data[i].Error = newErrorBody(statusCode(res.Err), res.Err)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) create(ctx context.Context, req *model.Request) (*model.Response, error) {
	c, err := s.clientFor(req.Model)
	if err != nil {
		return nil, err
	}
	return c.Create(ctx, req)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// dispatcher routes batch requests by model.
type dispatcher struct{ s *Server }

func (d dispatcher) Create(ctx context.Context, req *model.Request) (*model.Response, error) {
	if req == nil {
		return nil, errors.New("request is null")
	}
	return d.s.create(ctx, req)
}

func (d dispatcher) Cost(rsp *model.Response) float64 {
	if rsp == nil {
		return 0
	}
	return rsp.Cost
}

func (d dispatcher) Usage(rsp *model.Response) model.UsageSummary {
	if rsp == nil {
		return model.UsageSummary{}
	}
	return model.UsageSummary{
		PromptTokens:     rsp.Usage.PromptTokens,
		CompletionTokens: rsp.Usage.CompletionTokens,
		TotalTokens:      rsp.Usage.TotalTokens,
		Cost:             rsp.Cost,
		Model:            rsp.Model,
	}
}

func (d dispatcher) RetrieveMessages(rsp *model.Response) []model.Message {
	if rsp == nil {
		return nil
	}
	out := make([]model.Message, 0, len(rsp.Choices))
	for _, ch := range rsp.Choices {
		out = append(out, ch.Message)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}
