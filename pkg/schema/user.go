package schema

import "time"

// User is a person who can travel and claim expenses.
type User struct {
	ID            int       `json:"id"`
	Nombre        string    `json:"nombre"`
	Email         string    `json:"email"`
	Cargo         string    `json:"cargo"`
	Departamento  string    `json:"departamento"`
	Activo        bool      `json:"activo"`
	FechaCreacion time.Time `json:"fechaCreacion"`
}

// NewUser carries the fields a caller supplies when registering a user.
// Activo defaults to true when left nil.
type NewUser struct {
	Nombre       string `json:"nombre" binding:"notblank"`
	Email        string `json:"email" binding:"required,email"`
	Cargo        string `json:"cargo" binding:"notblank"`
	Departamento string `json:"departamento" binding:"notblank"`
	Activo       *bool  `json:"activo,omitempty"`
}

// UserPatch is a partial update; nil fields are left untouched.
type UserPatch struct {
	Nombre       *string `json:"nombre,omitempty" binding:"omitnil,notblank"`
	Email        *string `json:"email,omitempty" binding:"omitnil,email"`
	Cargo        *string `json:"cargo,omitempty" binding:"omitnil,notblank"`
	Departamento *string `json:"departamento,omitempty" binding:"omitnil,notblank"`
	Activo       *bool   `json:"activo,omitempty"`
}

// Apply shallow-merges the patch into u.
func (p UserPatch) Apply(u *User) {
	if p.Nombre != nil {
		u.Nombre = *p.Nombre
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Cargo != nil {
		u.Cargo = *p.Cargo
	}
	if p.Departamento != nil {
		u.Departamento = *p.Departamento
	}
	if p.Activo != nil {
		u.Activo = *p.Activo
	}
}
