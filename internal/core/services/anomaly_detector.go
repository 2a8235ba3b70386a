package services

import (
	"strings"
	"sync"
	"time"
)

const (
	burstWindow    = time.Second
	burstThreshold = 10
	minSignals     = 2
)

// genericAgents reúne user agents de bibliotecas HTTP que não identificam um navegador.
var genericAgents = map[string]struct{}{
	"curl":            {},
	"wget":            {},
	"python-requests": {},
	"python-urllib":   {},
	"go-http-client":  {},
	"okhttp":          {},
	"java":            {},
	"httpclient":      {},
	"axios":           {},
	"node-fetch":      {},
}

// AnomalyDetector acumula sinais heurísticos de tráfego automatizado por IP.
// É uma heurística barata, não um mecanismo de autenticação: falsos positivos
// são aceitos como custo da detecção.
type AnomalyDetector struct {
	mu        sync.Mutex
	recent    map[string][]time.Time
	scores    map[string]int
	retention time.Duration
	lastSweep time.Time
}

// NewAnomalyDetector cria um detector que poda seus registros a cada retention.
func NewAnomalyDetector(retention time.Duration) *AnomalyDetector {
	if retention <= 0 {
		retention = time.Minute
	}
	return &AnomalyDetector{
		recent:    make(map[string][]time.Time),
		scores:    make(map[string]int),
		retention: retention,
	}
}

// Inspect registra a requisição e responde se ela aparenta ser automatizada.
// Pelo menos dois sinais precisam coincidir para uma requisição ser suspeita.
func (d *AnomalyDetector) Inspect(ip, endpoint string, headers map[string]string, at time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sweepLocked(at)

	key := ip + "|" + endpoint
	d.recent[key] = append(d.recent[key], at)

	signals := 0
	if d.burstingLocked(key, at) {
		signals++
	}
	if isGenericAgent(headers["User-Agent"]) {
		signals++
	}
	if strings.TrimSpace(headers["Accept"]) == "" {
		signals++
	}
	if forwardedMismatch(headers["X-Forwarded-For"], ip) {
		signals++
	}

	return signals >= minSignals
}

// RaiseScore incrementa o score de suspeita do IP e devolve o novo valor.
func (d *AnomalyDetector) RaiseScore(ip string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.scores[ip]++
	return d.scores[ip]
}

// Score devolve o score atual de um IP.
func (d *AnomalyDetector) Score(ip string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.scores[ip]
}

// ResetScore zera o score de um IP. Scores não decaem com o tempo; somente
// reinício do processo ou esta ação administrativa os limpa.
func (d *AnomalyDetector) ResetScore(ip string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.scores, ip)
}

func (d *AnomalyDetector) burstingLocked(key string, at time.Time) bool {
	horizon := at.Add(-burstWindow)
	count := 0
	for _, seen := range d.recent[key] {
		if seen.After(horizon) {
			count++
		}
	}
	return count >= burstThreshold
}

// sweepLocked poda timestamps mais antigos que a retenção; disparado de forma
// preguiçosa quando mais que a própria retenção se passou desde a última poda.
func (d *AnomalyDetector) sweepLocked(at time.Time) {
	if at.Sub(d.lastSweep) <= d.retention {
		return
	}
	horizon := at.Add(-d.retention)
	for key, stamps := range d.recent {
		kept := stamps[:0]
		for _, seen := range stamps {
			if seen.After(horizon) {
				kept = append(kept, seen)
			}
		}
		if len(kept) == 0 {
			delete(d.recent, key)
			continue
		}
		d.recent[key] = kept
	}
	d.lastSweep = at
}

func isGenericAgent(agent string) bool {
	agent = strings.ToLower(strings.TrimSpace(agent))
	if agent == "" {
		return true
	}
	// "curl/8.4.0" and "python-requests 2.31" count as their bare library names.
	if i := strings.IndexAny(agent, "/ "); i > 0 {
		agent = agent[:i]
	}
	_, generic := genericAgents[agent]
	return generic
}

func forwardedMismatch(forwarded, connectingIP string) bool {
	forwarded = strings.TrimSpace(forwarded)
	if forwarded == "" {
		return false
	}
	if i := strings.Index(forwarded, ","); i >= 0 {
		forwarded = forwarded[:i]
	}
	return !strings.EqualFold(strings.TrimSpace(forwarded), strings.TrimSpace(connectingIP))
}
