package runner

import "golang.org/x/sys/unix"

// Syncer is the filesystem-sync collaborator invoked once after a
// streaming run completes, so files the child wrote are durable before
// the result is returned.
type Syncer interface {
	Sync()
}

type kernelSyncer struct{}

func (kernelSyncer) Sync() {
	unix.Sync()
}

// NewKernelSyncer returns a Syncer backed by sync(2).
func NewKernelSyncer() Syncer {
	return kernelSyncer{}
}
