package views

import (
	"context"
	"sync"
)

// viewOperation runs one cancellable session request at a time.
type viewOperation struct {
	cancel context.CancelFunc
	lock   sync.Mutex

	root *Views
}

// newViewOperation returns a new operations manager.
func newViewOperation(root *Views) *viewOperation {
	return &viewOperation{root: root}
}

// startOperation runs dofunc in the background with a context that is
// cancelled by the user (via the Cancel key) or when the views are released.
func (v *viewOperation) startOperation(dofunc func(ctx context.Context)) {
	v.lock.Lock()
	defer v.lock.Unlock()

	if v.cancel != nil {
		v.root.status.InfoMessage("Operation still in progress", false)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel

	go func() {
		dofunc(ctx)
		v.cancelOperation(false)
	}()
}

// cancelOperation cancels the currently running operation.
func (v *viewOperation) cancelOperation(cancelfunc bool) {
	v.lock.Lock()
	defer v.lock.Unlock()

	if v.cancel == nil {
		return
	}

	cancel := v.cancel
	v.cancel = nil

	if cancelfunc {
		cancel()
		return
	}

	// The operation finished on its own; release the context's resources.
	cancel()
}
