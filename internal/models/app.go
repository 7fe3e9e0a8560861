package models

import "time"

// App is a registered tenant. The raw API key is returned once at registration
// and never stored; only the bcrypt hash is persisted.
type App struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	OwnerEmail string     `json:"ownerEmail"`
	APIKeyHash string     `json:"-"`
	Revoked    bool       `json:"revoked"`
	RevokedAt  *time.Time `json:"revokedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UserID     *string    `json:"userId,omitempty"`
}

// IsActive reports whether the app's key can still authenticate requests.
func (a *App) IsActive() bool {
	return !a.Revoked
}

// AppResponse is the public view of an app. It never carries key material.
type AppResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	OwnerEmail string    `json:"ownerEmail"`
	Revoked    bool      `json:"revoked"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (a *App) ToResponse() *AppResponse {
	return &AppResponse{
		ID:         a.ID,
		Name:       a.Name,
		OwnerEmail: a.OwnerEmail,
		Revoked:    a.Revoked,
		CreatedAt:  a.CreatedAt,
	}
}

// User is the owner identity behind an app. Only the ownership path touches it.
type User struct {
	ID        string    `json:"id"`
	GoogleID  *string   `json:"googleId,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
