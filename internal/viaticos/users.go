package viaticos

import (
	"context"

	"github.com/celerix-dev/viaticos/internal/notify"
	"github.com/celerix-dev/viaticos/internal/sheets"
	"github.com/celerix-dev/viaticos/pkg/schema"
)

const entityUsers = "usuarios"

// AddUser registers a user. Activo defaults to true.
func (s *Store) AddUser(ctx context.Context, in schema.NewUser) (schema.User, error) {
	s.mu.Lock()
	if err := s.writable(); err != nil {
		s.mu.Unlock()
		return schema.User{}, err
	}

	u := schema.User{
		ID:            s.seq.Users,
		Nombre:        in.Nombre,
		Email:         in.Email,
		Cargo:         in.Cargo,
		Departamento:  in.Departamento,
		Activo:        true,
		FechaCreacion: s.now().UTC(),
	}
	if in.Activo != nil {
		u.Activo = *in.Activo
	}

	seq := s.seq
	seq.Users++
	users := append(clone(s.users), u)
	if err := s.save(ctx, entry{KeySequences, seq}, entry{KeyUsers, users}); err != nil {
		s.mu.Unlock()
		return schema.User{}, err
	}
	s.seq, s.users = seq, users
	s.mu.Unlock()

	s.notes.Notify("Usuario agregado correctamente", notify.Success)
	s.mirror(ctx, entityUsers, sheets.ActionCreate, u)
	return u, nil
}

// UpdateUser merges patch into the user with the given id. It reports false,
// and changes nothing, when there is no such user.
func (s *Store) UpdateUser(ctx context.Context, id int, patch schema.UserPatch) (bool, error) {
	s.mu.Lock()
	if err := s.writable(); err != nil {
		s.mu.Unlock()
		return false, err
	}

	i := indexOf(s.users, func(u schema.User) bool { return u.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return false, nil
	}
	users := clone(s.users)
	patch.Apply(&users[i])
	if err := s.save(ctx, entry{KeyUsers, users}); err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.users = users
	updated := users[i]
	s.mu.Unlock()

	s.notes.Notify("Usuario actualizado correctamente", notify.Success)
	s.mirror(ctx, entityUsers, sheets.ActionUpdate, updated)
	return true, nil
}

// DeleteUser removes a user. Trips referencing the user are kept.
func (s *Store) DeleteUser(ctx context.Context, id int) (bool, error) {
	s.mu.Lock()
	if err := s.writable(); err != nil {
		s.mu.Unlock()
		return false, err
	}

	i := indexOf(s.users, func(u schema.User) bool { return u.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return false, nil
	}
	users := append(clone(s.users[:i]), s.users[i+1:]...)
	if err := s.save(ctx, entry{KeyUsers, users}); err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.users = users
	s.mu.Unlock()

	s.notes.Notify("Usuario eliminado correctamente", notify.Success)
	s.mirror(ctx, entityUsers, sheets.ActionDelete, map[string]int{"id": id})
	return true, nil
}
