package orchestrator

// CancelToken signals cooperative cancellation. Long-running loops poll it at
// iteration boundaries; a cancelled run returns a nil result without error.
type CancelToken interface {
	Stopped() bool
}

type neverCancel struct{}

func (neverCancel) Stopped() bool { return false }

// NeverCancel returns a token that is never cancelled.
func NeverCancel() CancelToken { return neverCancel{} }
