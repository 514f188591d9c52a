package oauth

import "fmt"

// TokenExchangeError indica que el token endpoint rechazó el código.
// StatusCode es 0 cuando el fallo fue de red o de formato, no del proveedor.
type TokenExchangeError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TokenExchangeError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("token exchange failed: %v", e.Err)
	}
	return fmt.Sprintf("token exchange failed: %d", e.StatusCode)
}

func (e *TokenExchangeError) Unwrap() error { return e.Err }

// ProfileFetchError indica que userinfo no devolvió un perfil utilizable.
type ProfileFetchError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ProfileFetchError) Error() string {
	if e.StatusCode == 0 || e.Err != nil {
		return fmt.Sprintf("profile fetch failed: %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("profile fetch failed: %d", e.StatusCode)
}

func (e *ProfileFetchError) Unwrap() error { return e.Err }

// RegistrationError transporta el detail que devuelve el proveedor al registrar clientes.
type RegistrationError struct {
	StatusCode int
	Detail     string
}

func (e *RegistrationError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("oauth client registration failed: %d", e.StatusCode)
}
