package review

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

// Flash categories.
const (
	Success = "success"
	Info    = "info"
	Warning = "warning"
	Failure = "error"
)

// Flash is a one-shot user message carried across a redirect.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Page is a rendered review screen.
type Page struct {
	Title    string  `json:"title"`
	Messages []Flash `json:"messages"`
	Data     any     `json:"data,omitempty"`
}

// Responder renders review pages and carries flash messages across redirects.
type Responder interface {
	// Render writes page after attaching and clearing pending flashes.
	Render(w http.ResponseWriter, r *http.Request, page Page)
	// Redirect queues flashes and redirects with 303 See Other.
	Redirect(w http.ResponseWriter, r *http.Request, to string, flashes ...Flash)
	// Error writes a terminal error response.
	Error(w http.ResponseWriter, r *http.Request, status int, msg string)
}

// FlashCookie is the cookie holding pending flash messages.
const FlashCookie = "import_flash"

// JSONResponder renders pages as JSON and keeps flashes in a cookie.
type JSONResponder struct {
	// Path scopes the flash cookie. Empty means "/".
	Path string
}

// NewJSONResponder returns a JSONResponder scoped to path.
func NewJSONResponder(path string) *JSONResponder {
	return &JSONResponder{Path: path}
}

func (j *JSONResponder) Render(w http.ResponseWriter, r *http.Request, page Page) {
	page.Messages = append(j.drain(w, r), page.Messages...)
	if page.Messages == nil {
		page.Messages = []Flash{}
	}
	writeJSON(w, http.StatusOK, page)
}

func (j *JSONResponder) Redirect(w http.ResponseWriter, r *http.Request, to string, flashes ...Flash) {
	pending := append(j.pending(r), flashes...)
	if len(pending) > 0 {
		b, err := json.Marshal(pending)
		if err == nil {
			http.SetCookie(w, &http.Cookie{
				Name:     FlashCookie,
				Value:    base64.RawURLEncoding.EncodeToString(b),
				Path:     j.path(),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func (j *JSONResponder) Error(w http.ResponseWriter, _ *http.Request, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// drain returns pending flashes and expires the cookie.
func (j *JSONResponder) drain(w http.ResponseWriter, r *http.Request) []Flash {
	flashes := j.pending(r)
	if _, err := r.Cookie(FlashCookie); err == nil {
		http.SetCookie(w, &http.Cookie{Name: FlashCookie, Path: j.path(), MaxAge: -1, HttpOnly: true})
	}
	return flashes
}

// pending decodes the flash cookie; a corrupt cookie yields nothing.
func (j *JSONResponder) pending(r *http.Request) []Flash {
	c, err := r.Cookie(FlashCookie)
	if err != nil {
		return nil
	}
	b, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var flashes []Flash
	if err := json.Unmarshal(b, &flashes); err != nil {
		return nil
	}
	return flashes
}

func (j *JSONResponder) path() string {
	if j.Path == "" {
		return "/"
	}
	return j.Path
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
