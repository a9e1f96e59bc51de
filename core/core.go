package plisp

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"time"

	"github.com/edwingeng/deque"
	"github.com/go-co-op/gocron/v2"
	"github.com/tevino/abool/v2"
)

// Config configures a Server.
type Config struct {
	SockPath string
	Dir      string // trace database directory; empty keeps traces in memory only
	MaxDepth int
	// EvalTimeout bounds the time one eval request may hold the actor.
	// 0 means no limit.
	EvalTimeout time.Duration
	MaxTraces   int
	MaxCache    int
	Retention   time.Duration // age after which stored traces are pruned
	PruneEvery  time.Duration
}

func DefaultConfig() Config {
	return Config{
		SockPath:    "/tmp/plisp.sock",
		MaxDepth:    DefaultMaxDepth,
		EvalTimeout: 10 * time.Second,
		MaxTraces:   1000,
		MaxCache:    4096,
		Retention:   24 * time.Hour,
		PruneEvery:  5 * time.Minute,
	}
}

// Server evaluates expressions for clients connected to a unix socket.
// Requests are handled one at a time by a single actor goroutine that owns
// the trace ring and the result cache.
type Server struct {
	cfg        Config
	eval       *Evaluator
	requests   chan serverRequest
	done       chan struct{}
	stopped    chan struct{} // closed when the actor has exited
	listener   net.Listener
	traces     deque.Deque // of *Trace, oldest first
	cache      map[string]string
	cacheOrder deque.Deque // of cache keys, oldest first
	store      *TraceStore
	scheduler  gocron.Scheduler
	pruning    *abool.AtomicBool
	closed     *abool.AtomicBool
}

type serverRequest struct {
	msg      map[string]any
	response chan map[string]any
}

// NewServer opens the trace store, if configured, and starts listening.
func NewServer(cfg Config) (*Server, error) {
	// Clean up a stale socket
	os.Remove(cfg.SockPath)

	s := &Server{
		cfg:        cfg,
		eval:       &Evaluator{MaxDepth: cfg.MaxDepth},
		requests:   make(chan serverRequest, 64),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
		traces:     deque.NewDeque(),
		cache:      make(map[string]string),
		cacheOrder: deque.NewDeque(),
		pruning:    abool.New(),
		closed:     abool.New(),
	}

	if cfg.Dir != "" {
		store, err := OpenTraceStore(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("init trace store: %w", err)
		}
		s.store = store

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("init scheduler: %w", err)
		}
		every := cfg.PruneEvery
		if every <= 0 {
			every = DefaultConfig().PruneEvery
		}
		if _, err := scheduler.NewJob(gocron.DurationJob(every), gocron.NewTask(s.pruneTraces)); err != nil {
			scheduler.Shutdown()
			store.Close()
			return nil, fmt.Errorf("schedule pruning: %w", err)
		}
		s.scheduler = scheduler
	}

	listener, err := net.Listen("unix", cfg.SockPath)
	if err != nil {
		s.closeStore()
		return nil, fmt.Errorf("listen: %w", err)
	}
	s.listener = listener

	go s.actorLoop()
	return s, nil
}

// Run accepts connections. Blocks until Shutdown.
func (s *Server) Run() {
	if s.scheduler != nil {
		s.scheduler.Start()
	}
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleClientConnection(conn)
	}
}

// Shutdown stops accepting connections and releases the trace store. It
// is safe to call more than once.
func (s *Server) Shutdown() {
	if !s.closed.SetToIf(false, true) {
		return
	}
	s.listener.Close()
	close(s.done)
	// The actor may be recording a trace.
	<-s.stopped
	s.closeStore()
}

func (s *Server) closeStore() {
	if s.scheduler != nil {
		if err := s.scheduler.Shutdown(); err != nil {
			log.Printf("stop scheduler: %v", err)
		}
	}
	if s.store != nil {
		s.store.Close()
	}
}

// actorLoop is the single goroutine that owns traces and cache.
func (s *Server) actorLoop() {
	defer close(s.stopped)
	for {
		select {
		case req := <-s.requests:
			req.response <- s.handleRequest(req.msg)
		case <-s.done:
			return
		}
	}
}

// sendToActor hands msg to the actor and waits for its response.
func (s *Server) sendToActor(msg map[string]any) map[string]any {
	id, _ := msg["id"].(string)
	resp := make(chan map[string]any, 1)
	select {
	case s.requests <- serverRequest{msg: msg, response: resp}:
	case <-s.done:
		return errorResponse(id, "server shutting down")
	}
	select {
	case r := <-resp:
		return r
	case <-s.done:
		return errorResponse(id, "server shutting down")
	}
}

func (s *Server) handleRequest(msg map[string]any) map[string]any {
	id, _ := msg["id"].(string)

	op, _ := msg["op"].(string)
	switch op {
	case "":
		return s.manual(id)
	case "eval":
		return s.handleEval(id, msg)
	case "parse":
		return s.handleParse(id, msg)
	case "analyze":
		return s.handleAnalyze(id, msg)
	case "traces":
		return s.handleTraces(id, msg)
	case "history":
		return s.handleHistory(id, msg)
	case "clear":
		return s.handleClear(id)
	default:
		return errorResponse(id, fmt.Sprintf("unknown op: %s", op))
	}
}

func (s *Server) manual(id string) map[string]any {
	return map[string]any{
		"id": id,
		"ok": true,
		"value": map[string]any{
			"name":    "plispd",
			"version": "1.0.0",
			"ops": map[string]any{
				"eval":    "Evaluate one expression. Params: source (string)",
				"parse":   "Parse one expression and print it back. Params: source (string)",
				"analyze": "Check definedness and arity without evaluating. Params: source (string)",
				"traces":  "Recent requests held in memory, oldest first. Params: limit (int, optional)",
				"history": "Recent requests from the trace database, oldest first. Params: limit (int, optional)",
				"clear":   "Forget in-memory traces and cached results.",
			},
			"primitives":   stringsToAny(Primitives()),
			"forms":        []any{formLambda, formLabel},
			"max_depth":    s.cfg.MaxDepth,
			"eval_timeout": s.cfg.EvalTimeout.String(),
			"error_kinds":  stringsToAny(ErrorKinds()),
		},
	}
}

func (s *Server) handleEval(id string, msg map[string]any) map[string]any {
	src, ok := msg["source"].(string)
	if !ok {
		return errorResponse(id, "eval: missing 'source' string")
	}

	start := time.Now()
	trace := &Trace{Op: "eval", Source: src, Hash: HashSource(src), Timestamp: start}

	result, cached := s.cache[trace.Hash]
	if !cached {
		val, err := s.evalSource(src)
		if err != nil {
			trace.Duration = time.Since(start)
			return s.fail(id, trace, err)
		}
		result = val.String()
		s.remember(trace.Hash, result)
	}
	trace.Result = result
	trace.Cached = cached
	trace.Duration = time.Since(start)
	s.recordTrace(trace)

	return map[string]any{
		"id": id,
		"ok": true,
		"value": map[string]any{
			"result": result,
			"hash":   trace.Hash,
			"cached": cached,
		},
	}
}

// evalSource parses and evaluates src within the configured time budget.
func (s *Server) evalSource(src string) (*SExpr, error) {
	expr, err := Parse(src)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	if s.cfg.EvalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.EvalTimeout)
		defer cancel()
	}
	return s.eval.EvalContext(ctx, expr, Env{})
}

func (s *Server) handleParse(id string, msg map[string]any) map[string]any {
	src, ok := msg["source"].(string)
	if !ok {
		return errorResponse(id, "parse: missing 'source' string")
	}

	start := time.Now()
	trace := &Trace{Op: "parse", Source: src, Hash: HashSource(src), Timestamp: start}
	expr, err := Parse(src)
	trace.Duration = time.Since(start)
	if err != nil {
		return s.fail(id, trace, err)
	}
	trace.Result = expr.String()
	s.recordTrace(trace)
	return map[string]any{"id": id, "ok": true, "value": trace.Result}
}

func (s *Server) handleAnalyze(id string, msg map[string]any) map[string]any {
	src, ok := msg["source"].(string)
	if !ok {
		return errorResponse(id, "analyze: missing 'source' string")
	}

	start := time.Now()
	trace := &Trace{Op: "analyze", Source: src, Hash: HashSource(src), Timestamp: start}
	expr, err := Parse(src)
	if err == nil {
		err = Analyze(expr)
	}
	trace.Duration = time.Since(start)
	if err != nil {
		return s.fail(id, trace, err)
	}
	trace.Result = "ok"
	s.recordTrace(trace)
	return map[string]any{"id": id, "ok": true, "value": "ok"}
}

func (s *Server) handleTraces(id string, msg map[string]any) map[string]any {
	n := s.traces.Len()
	if limit, ok := intParam(msg, "limit"); ok && limit >= 0 && limit < n {
		n = limit
	}
	start := s.traces.Len() - n
	out := make([]any, 0, n)
	for i := start; i < s.traces.Len(); i++ {
		out = append(out, s.traces.Peek(i).(*Trace).ToMap())
	}
	return map[string]any{"id": id, "ok": true, "value": out}
}

func (s *Server) handleHistory(id string, msg map[string]any) map[string]any {
	if s.store == nil {
		return errorResponse(id, "history: no trace database configured")
	}
	limit := s.cfg.MaxTraces
	if l, ok := intParam(msg, "limit"); ok && l >= 0 {
		limit = l
	}
	traces, err := s.store.Recent(limit)
	if err != nil {
		return errorResponse(id, err.Error())
	}
	out := make([]any, len(traces))
	for i := range traces {
		out[i] = traces[i].ToMap()
	}
	return map[string]any{"id": id, "ok": true, "value": out}
}

func (s *Server) handleClear(id string) map[string]any {
	s.traces = deque.NewDeque()
	s.cache = make(map[string]string)
	s.cacheOrder = deque.NewDeque()
	return map[string]any{"id": id, "ok": true, "value": "cleared"}
}

// fail records a failed request and builds its response.
func (s *Server) fail(id string, trace *Trace, err error) map[string]any {
	trace.Error = err.Error()
	trace.Kind = ErrorKind(err)
	s.recordTrace(trace)
	resp := errorResponse(id, trace.Error)
	resp["kind"] = trace.Kind
	return resp
}

func errorResponse(id, errMsg string) map[string]any {
	return map[string]any{"id": id, "ok": false, "error": errMsg}
}

// recordTrace appends t to the ring, dropping the oldest traces past
// MaxTraces, and persists it if a store is configured.
func (s *Server) recordTrace(t *Trace) {
	s.traces.PushBack(t)
	for s.cfg.MaxTraces > 0 && s.traces.Len() > s.cfg.MaxTraces {
		s.traces.PopFront()
	}
	if s.store != nil {
		if err := s.store.Insert(t); err != nil {
			log.Printf("store trace: %v", err)
		}
	}
}

// remember caches result under hash, evicting the oldest entries past
// MaxCache.
func (s *Server) remember(hash, result string) {
	if s.cfg.MaxCache <= 0 {
		return
	}
	s.cache[hash] = result
	s.cacheOrder.PushBack(hash)
	for s.cacheOrder.Len() > s.cfg.MaxCache {
		delete(s.cache, s.cacheOrder.PopFront().(string))
	}
}

func (s *Server) pruneTraces() {
	if !s.pruning.SetToIf(false, true) {
		return
	}
	defer s.pruning.UnSet()

	n, err := s.store.Prune(time.Now().Add(-s.cfg.Retention))
	if err != nil {
		log.Printf("prune traces: %v", err)
		return
	}
	if n > 0 {
		log.Printf("pruned %d traces older than %s", n, s.cfg.Retention)
	}
}

// --- Connection handling ---

func (s *Server) handleClientConnection(conn net.Conn) {
	defer conn.Close()

	for {
		msg, err := ReadMsg(conn)
		if err != nil {
			if err != io.EOF {
				log.Printf("read client message: %v", err)
			}
			return
		}

		resp := s.sendToActor(msg)
		if err := WriteMsg(conn, resp); err != nil {
			log.Printf("write client response: %v", err)
			return
		}
	}
}

// intParam reads a JSON number parameter.
func intParam(msg map[string]any, key string) (int, bool) {
	switch v := msg[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
