// Package handlers agrupa os handlers HTTP do gateway.
package handlers

import (
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"traffic-control/internal/adapters/metrics"
	"traffic-control/internal/core/domain"
	"traffic-control/internal/core/ports"
)

type upstream struct {
	proxy *httputil.ReverseProxy
	url   string
}

// ProxyHandler encaminha requisições admitidas para o nó escolhido pelo
// balanceador e realimenta o registro com latência e conexões em curso.
type ProxyHandler struct {
	balancer  ports.LoadBalancer
	strategy  domain.Strategy
	collector *metrics.Metrics
	logger    *log.Logger

	mu       sync.Mutex
	proxies  map[string]*upstream
	inflight map[string]*atomic.Int64
}

// NewProxyHandler cria o handler de proxy para a estratégia configurada.
func NewProxyHandler(balancer ports.LoadBalancer, strategy domain.Strategy, collector *metrics.Metrics, logger *log.Logger) *ProxyHandler {
	if logger == nil {
		logger = log.Default()
	}

	return &ProxyHandler{
		balancer:  balancer,
		strategy:  strategy,
		collector: collector,
		logger:    logger,
		proxies:   make(map[string]*upstream),
		inflight:  make(map[string]*atomic.Int64),
	}
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	node, err := h.balancer.NextNode(h.strategy)
	if err != nil {
		h.logger.Printf("proxy: node selection failed: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if node == nil {
		http.Error(w, "no healthy upstream nodes", http.StatusServiceUnavailable)
		return
	}

	proxy, err := h.proxyFor(node)
	if err != nil {
		h.logger.Printf("proxy: invalid upstream url for node %s: %v", node.ID, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	counter := h.inflightCounter(node.ID)
	h.balancer.UpdateNodeStatus(node.ID, domain.NodeStatusUpdate{Connections: int64Ptr(counter.Add(1))})

	w.Header().Set("X-Upstream-Node", node.ID)

	start := time.Now()
	proxy.ServeHTTP(w, r)
	elapsed := time.Since(start)

	h.balancer.UpdateNodeStatus(node.ID, domain.NodeStatusUpdate{Connections: int64Ptr(counter.Add(-1))})
	h.balancer.UpdateMetrics(node.ID, elapsed)

	if h.collector != nil {
		h.collector.UpstreamLatency.WithLabelValues(node.ID).Observe(elapsed.Seconds())
	}
}

// proxyFor devolve o reverse proxy do nó, reconstruindo quando a URL mudou.
func (h *ProxyHandler) proxyFor(node *domain.Node) (*httputil.ReverseProxy, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cached, ok := h.proxies[node.ID]; ok && cached.url == node.URL {
		return cached.proxy, nil
	}

	target, err := url.Parse(node.URL)
	if err != nil {
		return nil, err
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	nodeID := node.ID
	proxy.ErrorHandler = func(w http.ResponseWriter, _ *http.Request, err error) {
		h.logger.Printf("proxy: upstream %s failed: %v", nodeID, err)
		healthy := false
		h.balancer.UpdateNodeStatus(nodeID, domain.NodeStatusUpdate{Healthy: &healthy})
		if h.collector != nil {
			h.collector.UpstreamErrors.WithLabelValues(nodeID).Inc()
		}
		w.WriteHeader(http.StatusBadGateway)
	}

	h.proxies[node.ID] = &upstream{proxy: proxy, url: node.URL}

	return proxy, nil
}

func (h *ProxyHandler) inflightCounter(nodeID string) *atomic.Int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	counter, ok := h.inflight[nodeID]
	if !ok {
		counter = &atomic.Int64{}
		h.inflight[nodeID] = counter
	}

	return counter
}

func int64Ptr(v int64) *int64 {
	return &v
}
