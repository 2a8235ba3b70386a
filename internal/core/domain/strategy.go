package domain

import (
	"fmt"
	"strings"
)

// Strategy enumera os algoritmos de seleção de nós reconhecidos pelo balanceador.
type Strategy uint8

const (
	StrategyRoundRobin Strategy = iota
	StrategyLeastConnections
	StrategyWeighted
	StrategyResponseTime
)

// ParseStrategy valida o nome da estratégia no momento da configuração.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "round_robin":
		return StrategyRoundRobin, nil
	case "least_connections":
		return StrategyLeastConnections, nil
	case "weighted":
		return StrategyWeighted, nil
	case "response_time":
		return StrategyResponseTime, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

func (s Strategy) String() string {
	switch s {
	case StrategyRoundRobin:
		return "round_robin"
	case StrategyLeastConnections:
		return "least_connections"
	case StrategyWeighted:
		return "weighted"
	case StrategyResponseTime:
		return "response_time"
	default:
		return fmt.Sprintf("strategy(%d)", uint8(s))
	}
}
