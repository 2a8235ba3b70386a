package domain

import "time"

const (
	MinNodeWeight = 1
	MaxNodeWeight = 10
)

type Node struct {
	ID                string        `json:"id"`
	URL               string        `json:"url"`
	Weight            int           `json:"weight"`
	ActiveConnections int64         `json:"active_connections"`
	LastResponseTime  time.Duration `json:"last_response_time"`
	LastHealthCheck   time.Time     `json:"last_health_check"`
	Healthy           bool          `json:"healthy"`
}

// NodeStatus é o snapshot somente leitura entregue a coletores externos.
type NodeStatus struct {
	URL          string    `json:"url"`
	Healthy      bool      `json:"healthy"`
	Connections  int64     `json:"connections"`
	ResponseTime float64   `json:"response_time"`
	LastCheck    time.Time `json:"last_check"`
}

// NodeStatusUpdate descreve uma atualização parcial: apenas campos não nulos são aplicados.
type NodeStatusUpdate struct {
	Healthy      *bool
	ResponseTime *time.Duration
	Connections  *int64
}

func ClampWeight(weight int) int {
	if weight < MinNodeWeight {
		return MinNodeWeight
	}
	if weight > MaxNodeWeight {
		return MaxNodeWeight
	}
	return weight
}
