package scene

import "sync"

// Coordinator is the single owner of the suspend-writes flag. The logout
// flow is the only caller of Suspend/Resume; everything else holds a
// read-only view through WritesSuspended. Keeping the flag here, behind
// explicit set/clear methods, replaces scattering ad hoc booleans across
// call sites.
type Coordinator struct {
	mu        sync.Mutex
	suspended bool
}

func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// SuspendWrites blocks every write path: session broadcasts, scheduled
// saves, leave-triggered flushes, and the owner-store autosave path.
func (c *Coordinator) SuspendWrites() {
	c.mu.Lock()
	c.suspended = true
	c.mu.Unlock()
}

// ResumeWrites clears the flag. Called only after the logout clearing
// sequence has completed.
func (c *Coordinator) ResumeWrites() {
	c.mu.Lock()
	c.suspended = false
	c.mu.Unlock()
}

// WritesSuspended reports whether writes are currently blocked
func (c *Coordinator) WritesSuspended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suspended
}

// Logout runs the clearing sequence with writes suspended. The flag is
// set before any clearing begins and cleared only after clear returns.
func (c *Coordinator) Logout(clear func() error) error {
	c.SuspendWrites()
	defer c.ResumeWrites()
	return clear()
}
