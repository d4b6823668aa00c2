package tui

import "github.com/kirillkom/plagctl/internal/core/domain"

type startedMsg struct {
	runID string
	err   error
}

type snapshotMsg struct {
	snapshot domain.CheckSnapshot
}
