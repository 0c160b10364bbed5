package db

import (
	"context"
	"strings"

	"github.com/geocoder89/profilehub/internal/repo/postgres"
)

// EnsureRoles inserts any missing role. Registration fails its role step
// when "User" does not exist, so startup seeds it.
func EnsureRoles(ctx context.Context, db postgres.DBTX, roles ...string) error {
	for _, role := range roles {
		_, err := db.Exec(ctx,
			`INSERT INTO roles (name, normalized_name)
			VALUES ($1, $2)
			ON CONFLICT (normalized_name) DO NOTHING`,
			role, strings.ToUpper(role),
		)
		if err != nil {
			return err
		}
	}
	return nil
}
