package client

// AuthKind tags the active AuthState variant.
type AuthKind int

const (
	AuthUnauthenticated AuthKind = iota
	AuthLoading
	AuthAuthenticated
	AuthFailed
)

func (k AuthKind) String() string {
	switch k {
	case AuthUnauthenticated:
		return "unauthenticated"
	case AuthLoading:
		return "loading"
	case AuthAuthenticated:
		return "authenticated"
	case AuthFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// AuthState is the login form state. Message is set only for AuthFailed.
type AuthState struct {
	Kind    AuthKind
	Message string
}

func unauthenticated() AuthState { return AuthState{Kind: AuthUnauthenticated} }

func authLoading() AuthState { return AuthState{Kind: AuthLoading} }

func authenticated() AuthState { return AuthState{Kind: AuthAuthenticated} }

func authFailed(message string) AuthState { return AuthState{Kind: AuthFailed, Message: message} }
