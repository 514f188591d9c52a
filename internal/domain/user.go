package domain

import "context"

// User es la identidad externa normalizada desde el proveedor OAuth.
// No se persiste como registro propio: viaja en la cookie de sesión y como
// dueño de cada conversación.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Image string `json:"image,omitempty"`
}

type identityKey struct{}

// WithIdentity guarda la identidad verificada en el contexto del request.
func WithIdentity(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, identityKey{}, user)
}

// IdentityFrom devuelve la identidad resuelta por el middleware de sesión.
func IdentityFrom(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(identityKey{}).(User)
	if !ok || user.ID == "" {
		return User{}, false
	}
	return user, true
}
