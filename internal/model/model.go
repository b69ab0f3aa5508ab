// Package model contains the portal's database entities: characters,
// corporations, alliances, roles, permissions, and recruitment applications.
package model

// All returns every model for migration, ordered so foreign-key targets
// migrate before their referrers.
func All() []interface{} {
	return []interface{}{
		&Alliance{},
		&Corporation{},
		&Character{},
		&Permission{},
		&Role{},
		&Application{},
	}
}
