package schemas

import "time"

// -- Session and Persistence Schemas --

// Cookie is a browser cookie captured in a session profile.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Secure   bool      `json:"secure"`
	HTTPOnly bool      `json:"httpOnly"`
	Expires  time.Time `json:"expires,omitempty"`
}

// SessionProfile is a stored browser session a Profile can reference by ID.
type SessionProfile struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Domain  string   `json:"domain"`
	Cookies []Cookie `json:"cookies"`
}

// SaveResult reports the outcome of a profile save. Canceled is set when the
// user dismissed the path prompt; it is not an error.
type SaveResult struct {
	Path     string `json:"path,omitempty"`
	Canceled bool   `json:"canceled,omitempty"`
}

// LoadResult reports the outcome of a profile load.
type LoadResult struct {
	Path     string  `json:"path,omitempty"`
	Profile  Profile `json:"data"`
	Canceled bool    `json:"canceled,omitempty"`
}
