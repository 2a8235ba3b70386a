// Package domain concentra entidades e estruturas centrais da camada de tráfego.
package domain

import "time"

// ReasonSuspicious é a razão registrada quando o detector de anomalias bloqueia um IP.
const ReasonSuspicious = "suspicious activity"

type Request struct {
	ClientIP string
	Path     string
	Method   string
	Headers  map[string]string
	// At is the evaluation instant; the zero value means "now".
	At time.Time
}

type Decision struct {
	Allowed      bool
	Identifier   string
	Endpoint     string
	Limit        int
	CurrentCount int64
	Reason       string
	RetryAfter   time.Duration
	WindowEnds   time.Time
}
