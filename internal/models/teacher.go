package models

// Teacher is a faculty roster entry shown on the public site, ordered by the
// admin-controlled Order field.
type Teacher struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	Position   string `json:"position"`
	Department string `json:"department"`
	ImageURL   string `json:"imageUrl,omitempty"`
	Email      string `json:"email,omitempty"`
	Order      int    `json:"order"`
}
