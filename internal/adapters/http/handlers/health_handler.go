package handlers

import (
	"encoding/json"
	"net/http"
)

// HealthzHandler responde com um JSON simples indicando que o gateway está de pé.
func HealthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
