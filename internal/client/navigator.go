package client

import (
	"context"
	"sync"
)

// Route names a screen.
type Route string

const (
	RouteLogin    Route = "login"
	RouteHome     Route = "home"
	RouteSettings Route = "settings"
)

// StartRoute picks the first screen for the given authentication state.
func StartRoute(authenticated bool) Route {
	if authenticated {
		return RouteHome
	}
	return RouteLogin
}

// Navigator keeps the screen back stack.
type Navigator struct {
	mu    sync.Mutex
	stack []Route
	route *Stream[Route]
}

// NewNavigator starts at StartRoute(authenticated).
func NewNavigator(authenticated bool) *Navigator {
	start := StartRoute(authenticated)
	return &Navigator{stack: []Route{start}, route: NewStream(start)}
}

// Current returns the visible route.
func (n *Navigator) Current() Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stack[len(n.stack)-1]
}

// History returns a copy of the back stack, root first.
func (n *Navigator) History() []Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Route(nil), n.stack...)
}

// Subscribe observes the visible route.
func (n *Navigator) Subscribe() (<-chan Route, func()) {
	return n.route.Subscribe()
}

// Navigate pushes route. Navigating to the visible route is a no-op.
func (n *Navigator) Navigate(route Route) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stack[len(n.stack)-1] == route {
		return
	}
	n.stack = append(n.stack, route)
	n.route.Set(route)
}

// Back pops the visible route. It reports false at the root.
func (n *Navigator) Back() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.stack) <= 1 {
		return false
	}
	n.stack = n.stack[:len(n.stack)-1]
	n.route.Set(n.stack[len(n.stack)-1])
	return true
}

// LoginSucceeded shows home and drops login from the history.
func (n *Navigator) LoginSucceeded() {
	n.mu.Lock()
	defer n.mu.Unlock()

	stack := make([]Route, 0, len(n.stack))
	for _, route := range n.stack {
		if route != RouteLogin {
			stack = append(stack, route)
		}
	}
	if len(stack) == 0 || stack[len(stack)-1] != RouteHome {
		stack = append(stack, RouteHome)
	}
	n.stack = stack
	n.route.Set(RouteHome)
}

// LoggedOut discards all history and shows login.
func (n *Navigator) LoggedOut() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resetLocked()
}

// OnAuthChanged routes on a session change.
func (n *Navigator) OnAuthChanged(authenticated bool) {
	n.mu.Lock()
	current := n.stack[len(n.stack)-1]
	if !authenticated {
		if current != RouteLogin || len(n.stack) > 1 {
			n.resetLocked()
		}
		n.mu.Unlock()
		return
	}
	n.mu.Unlock()

	if current == RouteLogin {
		n.LoginSucceeded()
	}
}

// Follow applies session changes until changes closes or ctx ends.
func (n *Navigator) Follow(ctx context.Context, changes <-chan bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case authenticated, ok := <-changes:
			if !ok {
				return
			}
			n.OnAuthChanged(authenticated)
		}
	}
}

// Close closes route subscriptions.
func (n *Navigator) Close() {
	n.route.Close()
}

func (n *Navigator) resetLocked() {
	n.stack = []Route{RouteLogin}
	n.route.Set(RouteLogin)
}
