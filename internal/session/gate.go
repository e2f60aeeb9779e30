package session

// Decision is what a screen should do given the current readiness.
type Decision int

const (
	// Render shows the screen.
	Render Decision = iota
	// Loading shows only a loading indicator; readiness is not known yet.
	Loading
	// RedirectLogin sends the user to the login entry point.
	RedirectLogin
	// RedirectHome sends an authenticated user away from the auth screens.
	RedirectHome
)

func (d Decision) String() string {
	switch d {
	case Render:
		return "render"
	case Loading:
		return "loading"
	case RedirectLogin:
		return "redirect-login"
	case RedirectHome:
		return "redirect-home"
	default:
		return "unknown"
	}
}

// Decide gates a screen. Private screens render only when authenticated;
// public auth screens (login, register) bounce authenticated users home.
// Nothing is guessed while readiness is Unknown.
func Decide(r Readiness, private bool) Decision {
	switch r {
	case Unknown:
		return Loading
	case Authenticated:
		if private {
			return Render
		}
		return RedirectHome
	default:
		if private {
			return RedirectLogin
		}
		return Render
	}
}

// Decide gates a screen against the store's current readiness.
func (s *Store) Decide(private bool) Decision {
	return Decide(s.Readiness(), private)
}
