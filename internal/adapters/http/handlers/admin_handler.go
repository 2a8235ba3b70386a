package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"traffic-control/internal/core/domain"
	"traffic-control/internal/core/ports"
)

// AdminHandler expõe a API administrativa: inventário de nós do balanceador e
// inspeção de bloqueios e suspeitas do limiter.
type AdminHandler struct {
	balancer ports.LoadBalancer
	limiter  ports.LimiterAdmin
	logger   *log.Logger
}

type addNodeRequest struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Weight int    `json:"weight"`
}

type blockStatusResponse struct {
	IP      string `json:"ip"`
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
}

type suspicionResponse struct {
	IP    string `json:"ip"`
	Score int    `json:"score"`
}

// NewAdminHandler cria o handler administrativo.
func NewAdminHandler(balancer ports.LoadBalancer, limiter ports.LimiterAdmin, logger *log.Logger) *AdminHandler {
	if logger == nil {
		logger = log.Default()
	}

	return &AdminHandler{balancer: balancer, limiter: limiter, logger: logger}
}

// Routes monta o roteador administrativo.
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/nodes", h.listNodes)
	r.Post("/nodes", h.addNode)
	r.Delete("/nodes/{id}", h.removeNode)

	r.Get("/blocks/{ip}", h.blockStatus)
	r.Delete("/blocks/{ip}", h.unblock)

	r.Get("/suspicion/{ip}", h.suspicionScore)
	r.Delete("/suspicion/{ip}", h.resetSuspicion)

	return r
}

func (h *AdminHandler) listNodes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.balancer.NodeStatuses())
}

func (h *AdminHandler) addNode(w http.ResponseWriter, r *http.Request) {
	var payload addNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}

	node, err := h.balancer.AddNode(payload.ID, payload.URL, payload.Weight)
	if err != nil {
		if domain.IsNodeExistsError(err) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}

		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.logger.Printf("admin: node %s registered at %s", node.ID, node.URL)
	writeJSON(w, http.StatusCreated, node)
}

func (h *AdminHandler) removeNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.balancer.RemoveNode(id) {
		http.Error(w, "node not found", http.StatusNotFound)
		return
	}

	h.logger.Printf("admin: node %s removed", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) blockStatus(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")

	reason, blocked, err := h.limiter.BlockStatus(r.Context(), ip)
	if err != nil {
		h.logger.Printf("admin: block lookup failed for %s: %v", ip, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, blockStatusResponse{IP: ip, Blocked: blocked, Reason: reason})
}

func (h *AdminHandler) unblock(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")

	if err := h.limiter.Unblock(r.Context(), ip); err != nil {
		h.logger.Printf("admin: unblock failed for %s: %v", ip, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.logger.Printf("admin: block removed for %s", ip)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) suspicionScore(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	writeJSON(w, http.StatusOK, suspicionResponse{IP: ip, Score: h.limiter.SuspicionScore(ip)})
}

func (h *AdminHandler) resetSuspicion(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	h.limiter.ResetSuspicion(ip)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
