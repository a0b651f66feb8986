package domain

import "context"

// Instance is a registered database instance and its installation home.
type Instance struct {
	SID  string
	Home string
}

type InstanceDirectory interface {
	Resolve(sid string) (Instance, error)
	ListRegistered() ([]string, error)
}

// ProcessLister reports the SIDs of instances that currently have a running
// background process.
type ProcessLister interface {
	Running(ctx context.Context) (map[string]bool, error)
}
