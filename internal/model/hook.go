package model

import "time"

// HookInvocation records the outcome of running one hook program.
type HookInvocation struct {
	Hook     string        `json:"hook"`
	Arg      string        `json:"arg"`
	Output   string        `json:"output"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

func (h HookInvocation) Succeeded() bool {
	return h.Err == nil
}
